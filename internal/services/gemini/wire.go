package gemini

import (
	"errors"
	"strings"
)

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
	ResponseSchema   *schema `json:"responseSchema,omitempty"`
}

type schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Items       *schema            `json:"items,omitempty"`
	Properties  map[string]*schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Ordering    []string           `json:"propertyOrdering,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text    string `json:"text"`
				Thought bool   `json:"thought"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiErrorEnvelope struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type       string `json:"@type"`
			RetryDelay string `json:"retryDelay"`
			Violations []struct {
				QuotaID string `json:"quotaId"`
			} `json:"violations"`
		} `json:"details"`
	} `json:"error"`
}

// blockedFinishReasons end generation without usable output.
var blockedFinishReasons = map[string]bool{
	"SAFETY":                  true,
	"RECITATION":              true,
	"BLOCKLIST":               true,
	"PROHIBITED_CONTENT":      true,
	"SPII":                    true,
	"MAX_TOKENS":              true,
	"MALFORMED_FUNCTION_CALL": true,
}

// text returns the concatenated non-thought parts of the first candidate.
func (r generateResponse) text() (string, error) {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return "", &invalidResponseError{reason: "prompt blocked: " + r.PromptFeedback.BlockReason}
	}
	if len(r.Candidates) == 0 {
		return "", &invalidResponseError{reason: "empty candidates"}
	}
	candidate := r.Candidates[0]
	if blockedFinishReasons[candidate.FinishReason] {
		return "", &invalidResponseError{reason: "finish_reason=" + candidate.FinishReason}
	}
	var b strings.Builder
	for _, p := range candidate.Content.Parts {
		if p.Thought {
			continue
		}
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", &invalidResponseError{reason: "empty content", err: errors.New("finish_reason=" + candidate.FinishReason)}
	}
	return text, nil
}
