package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"jimaku/internal/services"
	"jimaku/internal/timecode"
)

// PromptVersion identifies the prompt and response schema. Cached results
// produced under another version are not reused.
const PromptVersion = "3"

const systemInstruction = "You are an expert Japanese media transcriber. " +
	"You transcribe spoken Japanese exactly as spoken, with timestamps relative to the start of the supplied audio."

// Request is one chunk submission.
type Request struct {
	// Model overrides the client's configured model when set.
	Model    string
	Audio    []byte
	MIMEType string
	// ContextText is the English reference dialogue for the chunk, one line
	// per event with chunk-relative timestamps.
	ContextText string
	// SeriesContext is optional background on the show (names, terms).
	SeriesContext string
	// Hint explains why the previous attempt was rejected.
	Hint string
}

// Segment is one transcribed line relative to the start of the submitted audio.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

type wireSegment struct {
	StartOffset string `json:"start_offset"`
	EndOffset   string `json:"end_offset"`
	Text        string `json:"text"`
}

func segmentSchema() *schema {
	return &schema{
		Type: "ARRAY",
		Items: &schema{
			Type: "OBJECT",
			Properties: map[string]*schema{
				"start_offset": {Type: "STRING", Description: "Start of the line relative to the audio, MM:SS.mmm"},
				"end_offset":   {Type: "STRING", Description: "End of the line relative to the audio, MM:SS.mmm"},
				"text":         {Type: "STRING", Description: "Japanese dialogue exactly as spoken"},
			},
			Required: []string{"start_offset", "end_offset", "text"},
			Ordering: []string{"start_offset", "end_offset", "text"},
		},
	}
}

// BuildPrompt assembles the user prompt for req.
func BuildPrompt(req Request) string {
	parts := make([]string, 0, 4)
	if s := strings.TrimSpace(req.SeriesContext); s != "" {
		parts = append(parts, "Series information:\n"+s)
	}
	parts = append(parts, "Transcribe the Japanese dialogue in the attached audio. "+
		"Return one entry per spoken line in order. "+
		"start_offset and end_offset are MM:SS.mmm measured from the start of this audio clip. "+
		"Do not translate, summarize or invent dialogue. Return an empty array if nobody speaks.")
	if c := strings.TrimSpace(req.ContextText); c != "" {
		parts = append(parts, "English reference subtitles for this clip (timestamps relative to the clip):\n"+c)
	}
	if h := strings.TrimSpace(req.Hint); h != "" {
		parts = append(parts, "Your previous answer for this clip was rejected: "+h)
	}
	return strings.Join(parts, "\n\n")
}

// Transcribe submits one audio chunk and returns its segments in order.
func (c *Client) Transcribe(ctx context.Context, req Request) ([]Segment, error) {
	if len(req.Audio) == 0 {
		return nil, services.Wrap(services.ErrValidation, "gemini", "transcribe", "audio payload is empty", nil)
	}
	mime := strings.TrimSpace(req.MIMEType)
	if mime == "" {
		mime = "audio/flac"
	}
	payload := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: systemInstruction}}},
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{MIMEType: mime, Data: req.Audio}},
				{Text: BuildPrompt(req)},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:      0,
			ResponseMIMEType: "application/json",
			ResponseSchema:   segmentSchema(),
		},
	}
	text, err := c.generate(ctx, "transcribe", req.Model, payload)
	if err != nil {
		return nil, err
	}
	segments, err := DecodeSegments(text)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidResponse, "gemini", "transcribe", "", err)
	}
	return segments, nil
}

// GenerateText issues a plain text request and returns the reply.
func (c *Client) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("gemini generate: prompt required")
	}
	payload := generateRequest{
		Contents:         []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{Temperature: 0.2},
	}
	if system = strings.TrimSpace(system); system != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	return c.generate(ctx, "generate", "", payload)
}

// DecodeSegments parses the model's JSON reply.
func DecodeSegments(text string) ([]Segment, error) {
	var wire []wireSegment
	if err := DecodeModelJSON(text, &wire); err != nil {
		return nil, err
	}
	segments := make([]Segment, 0, len(wire))
	for i, w := range wire {
		start, err := timecode.Parse(w.StartOffset)
		if err != nil {
			return nil, fmt.Errorf("segment %d start_offset: %w", i, err)
		}
		end, err := timecode.Parse(w.EndOffset)
		if err != nil {
			return nil, fmt.Errorf("segment %d end_offset: %w", i, err)
		}
		segments = append(segments, Segment{Start: start, End: end, Text: strings.TrimSpace(w.Text)})
	}
	return segments, nil
}

// DecodeModelJSON decodes JSON from a model response, handling code fences
// and stray prose around the payload.
func DecodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizePayloadSnippet(trimmed))
	}

	sanitizedErr := json.Unmarshal([]byte(sanitized), target)
	if sanitizedErr == nil {
		return nil
	}
	return fmt.Errorf("%w (sanitized payload snippet: %s)", sanitizedErr, summarizePayloadSnippet(sanitized))
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
