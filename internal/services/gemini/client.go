package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"jimaku/internal/config"
	"jimaku/internal/logging"
	"jimaku/internal/services"
)

const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultAttemptTimeout = 5 * time.Minute
	defaultMaxAttempts    = 5
	defaultInitialBackoff = 2 * time.Second
	defaultMaxBackoff     = time.Minute
	defaultMaxElapsed     = 10 * time.Minute
)

// Config captures the runtime settings required to talk to Gemini.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	AttemptTimeout time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxElapsed     time.Duration
}

// FromSettings converts the [gemini] config section.
func FromSettings(g config.Gemini) Config {
	return Config{
		APIKey:         g.APIKey,
		BaseURL:        g.BaseURL,
		Model:          g.Model,
		AttemptTimeout: time.Duration(g.TimeoutSeconds) * time.Second,
		MaxAttempts:    g.MaxAttempts,
		InitialBackoff: time.Duration(g.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(g.MaxBackoffMS) * time.Millisecond,
		MaxElapsed:     time.Duration(g.MaxElapsedSeconds) * time.Second,
	}
}

// Client wraps the generateContent endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger attaches a logger for retry notices.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a Gemini client using the supplied configuration.
// Per-attempt deadlines come from AttemptTimeout rather than the HTTP
// client, so a caller-provided client should not set its own Timeout.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimPrefix(strings.TrimSpace(cfg.Model), "models/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = defaultMaxElapsed
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "gemini")
	return client
}

// Model returns the model identifier requests are sent to.
func (c *Client) Model() string {
	return c.cfg.Model
}

type httpStatusError struct {
	StatusCode int
	Status     string
	Message    string
	RetryAfter time.Duration
	DailyQuota bool
}

func (e *httpStatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Status != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Status, msg)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, msg)
}

func (c *Client) endpoint(model string) string {
	return c.cfg.BaseURL + "/models/" + model + ":generateContent"
}

// generate sends payload with retries on transient failures and returns the
// first candidate's text.
func (c *Client) generate(ctx context.Context, op, model string, payload generateRequest) (string, error) {
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrFatalBackend, "gemini", op, "api key required", nil)
	}
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	if model == "" {
		model = c.cfg.Model
	}
	if model == "" {
		return "", services.Wrap(services.ErrConfiguration, "gemini", op, "model required", nil)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("gemini %s: encode body: %w", op, err)
	}

	policy := newHintedBackOff(c.cfg.InitialBackoff, c.cfg.MaxBackoff)
	attempt := 0
	text, err := backoff.Retry(ctx, func() (string, error) {
		attempt++
		text, err := c.sendOnce(ctx, c.endpoint(model), encoded)
		if err == nil {
			return text, nil
		}
		classified := c.classify(ctx, op, err)
		if !errors.Is(classified, services.ErrTransientBackend) {
			return "", backoff.Permanent(classified)
		}
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
			policy.hint(statusErr.RetryAfter)
		}
		return "", classified
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(c.cfg.MaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			logging.WarnWithContext(c.logger, "gemini request failed; retrying", "backend_retry",
				logging.String("operation", op),
				logging.Attempt(attempt),
				logging.Duration("retry_in", next),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "transient backend error; waiting before the next attempt"),
				logging.String(logging.FieldImpact, "chunk transcription is delayed"))
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return "", fmt.Errorf("gemini %s: %w", op, ctxErr)
		}
		return "", err
	}
	return text, nil
}

func (c *Client) sendOnce(ctx context.Context, endpoint string, body []byte) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http error (timeout=%s): %w", c.cfg.AttemptTimeout, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body (timeout=%s): %w", c.cfg.AttemptTimeout, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", newStatusError(resp, raw)
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &invalidResponseError{reason: "decode response", snippet: summarizePayloadSnippet(string(raw)), err: err}
	}
	return decoded.text()
}

type invalidResponseError struct {
	reason  string
	snippet string
	err     error
}

func (e *invalidResponseError) Error() string {
	msg := e.reason
	if e.err != nil {
		msg += ": " + e.err.Error()
	}
	if e.snippet != "" {
		msg += " (response_snippet=" + e.snippet + ")"
	}
	return msg
}

func (e *invalidResponseError) Unwrap() error { return e.err }

func newStatusError(resp *http.Response, raw []byte) *httpStatusError {
	statusErr := &httpStatusError{StatusCode: resp.StatusCode}
	if delay, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
		statusErr.RetryAfter = delay
	}
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		statusErr.Status = envelope.Error.Status
		statusErr.Message = strings.TrimSpace(envelope.Error.Message)
		for _, detail := range envelope.Error.Details {
			if statusErr.RetryAfter == 0 && detail.RetryDelay != "" {
				if delay, err := time.ParseDuration(detail.RetryDelay); err == nil && delay > 0 {
					statusErr.RetryAfter = delay
				}
			}
			for _, v := range detail.Violations {
				if strings.Contains(v.QuotaID, "PerDay") {
					statusErr.DailyQuota = true
				}
			}
		}
	} else {
		statusErr.Message = summarizePayloadSnippet(string(raw))
	}
	return statusErr
}

// classify maps a raw attempt failure onto the backend sentinels.
func (c *Client) classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var invalid *invalidResponseError
	if errors.As(err, &invalid) {
		return services.Wrap(services.ErrInvalidResponse, "gemini", op, "", err)
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests && statusErr.DailyQuota:
			return services.Wrap(services.ErrFatalBackend, "gemini", op, "daily quota exhausted", err)
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransientBackend, "gemini", op, "", err)
		default:
			return services.Wrap(services.ErrFatalBackend, "gemini", op, "", err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTransientBackend, "gemini", op, "attempt timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTransientBackend, "gemini", op, "network timeout", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return services.Wrap(services.ErrTransientBackend, "gemini", op, "network error", err)
	}
	return services.Wrap(services.ErrFatalBackend, "gemini", op, "", err)
}

// hintedBackOff is an exponential policy that yields to server-provided
// retry delays, capped at the policy maximum.
type hintedBackOff struct {
	base    *backoff.ExponentialBackOff
	max     time.Duration
	pending time.Duration
}

func newHintedBackOff(initial, maxDelay time.Duration) *hintedBackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initial
	exp.MaxInterval = maxDelay
	return &hintedBackOff{base: exp, max: maxDelay}
}

func (b *hintedBackOff) hint(delay time.Duration) {
	b.pending = min(delay, b.max)
}

func (b *hintedBackOff) NextBackOff() time.Duration {
	if b.pending > 0 {
		delay := b.pending
		b.pending = 0
		return delay
	}
	return b.base.NextBackOff()
}

func (b *hintedBackOff) Reset() {
	b.pending = 0
	b.base.Reset()
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
