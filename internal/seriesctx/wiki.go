package seriesctx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jimaku/internal/services"
)

// DefaultWikiURL is the Japanese Wikipedia action API.
const DefaultWikiURL = "https://ja.wikipedia.org/w/api.php"

const userAgent = "jimaku/1.0 (subtitle context generator)"

// Article is the plain-text body of a Wikipedia page.
type Article struct {
	Title   string
	Content string
}

// WikiClient fetches article extracts from a MediaWiki installation.
type WikiClient struct {
	baseURL    string
	httpClient *http.Client
}

// WikiOption configures a WikiClient.
type WikiOption func(*WikiClient)

// WithWikiHTTPClient overrides the default HTTP client.
func WithWikiHTTPClient(client *http.Client) WikiOption {
	return func(c *WikiClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewWikiClient returns a client for the API at baseURL (DefaultWikiURL when empty).
func NewWikiClient(baseURL string, opts ...WikiOption) *WikiClient {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultWikiURL
	}
	client := &WikiClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type queryResponse struct {
	Query struct {
		Pages []queryPage `json:"pages"`
	} `json:"query"`
}

type queryPage struct {
	Title     string            `json:"title"`
	Missing   bool              `json:"missing"`
	Invalid   bool              `json:"invalid"`
	Extract   string            `json:"extract"`
	PageProps map[string]string `json:"pageprops"`
	Links     []struct {
		Title string `json:"title"`
	} `json:"links"`
}

// AmbiguousError reports a disambiguation page whose first option could not
// be resolved either.
type AmbiguousError struct {
	Query   string
	Options []string
}

func (e *AmbiguousError) Error() string {
	if len(e.Options) == 0 {
		return fmt.Sprintf("ambiguous wikipedia title %q", e.Query)
	}
	return fmt.Sprintf("ambiguous wikipedia title %q (options: %s)", e.Query, strings.Join(e.Options, ", "))
}

// Fetch returns the article titled query. Redirects are followed. A
// disambiguation page resolves to its first listed article.
func (c *WikiClient) Fetch(ctx context.Context, query string) (Article, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Article{}, errors.New("wikipedia query must not be empty")
	}
	page, err := c.page(ctx, query)
	if err != nil {
		return Article{}, err
	}
	if _, ok := page.PageProps["disambiguation"]; !ok {
		return Article{Title: page.Title, Content: strings.TrimSpace(page.Extract)}, nil
	}

	options := make([]string, 0, len(page.Links))
	for _, link := range page.Links {
		options = append(options, link.Title)
	}
	if len(options) == 0 {
		return Article{}, &AmbiguousError{Query: query}
	}
	resolved, err := c.page(ctx, options[0])
	if err != nil {
		return Article{}, &AmbiguousError{Query: query, Options: firstN(options, 5)}
	}
	if _, ok := resolved.PageProps["disambiguation"]; ok {
		return Article{}, &AmbiguousError{Query: query, Options: firstN(options, 5)}
	}
	return Article{Title: resolved.Title, Content: strings.TrimSpace(resolved.Extract)}, nil
}

func (c *WikiClient) page(ctx context.Context, title string) (queryPage, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return queryPage{}, fmt.Errorf("parse wikipedia url: %w", err)
	}
	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("redirects", "1")
	params.Set("prop", "extracts|pageprops|links")
	params.Set("explaintext", "1")
	params.Set("ppprop", "disambiguation")
	params.Set("plnamespace", "0")
	params.Set("pllimit", "20")
	params.Set("titles", title)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return queryPage{}, fmt.Errorf("build wikipedia request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return queryPage{}, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return queryPage{}, fmt.Errorf("wikipedia query returned %d (latency=%v)", resp.StatusCode, latency)
	}

	var payload queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return queryPage{}, fmt.Errorf("decode wikipedia response: %w", err)
	}
	if len(payload.Query.Pages) == 0 {
		return queryPage{}, services.Wrap(services.ErrNotFound, "seriesctx", "wikipedia", fmt.Sprintf("no page for %q", title), nil)
	}
	page := payload.Query.Pages[0]
	if page.Missing || page.Invalid {
		return queryPage{}, services.Wrap(services.ErrNotFound, "seriesctx", "wikipedia", fmt.Sprintf("page %q not found", title), nil)
	}
	return page, nil
}

func firstN(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
