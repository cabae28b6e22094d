package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const (
	geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"
	geminiModel    = "gemini-2.0-flash"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string `json:"response_mime_type"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Gemini calls the Google generateContent API.
type Gemini struct {
	cfg Config
}

// NewGemini creates the Gemini provider.
func NewGemini(cfg Config) *Gemini {
	return &Gemini{cfg: cfg.withDefaults(geminiEndpoint, geminiModel)}
}

// Name returns the provider identifier.
func (p *Gemini) Name() string { return "gemini" }

// Query asks for a JSON completion.
func (p *Gemini) Query(ctx context.Context, prompt string) (string, error) {
	var req geminiRequest
	req.Contents = []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}
	req.GenerationConfig.ResponseMimeType = "application/json"

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s",
		strings.TrimRight(p.cfg.Endpoint, "/"), p.cfg.Model, url.QueryEscape(p.cfg.APIKey))

	var resp geminiResponse
	if err := postJSON(ctx, p.cfg.httpClient(), p.Name(), endpoint, nil, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: no candidates: %w", ErrMalformedResponse)
	}
	return nonEmpty(p.Name(), resp.Candidates[0].Content.Parts[0].Text)
}
