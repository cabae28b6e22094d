package llm

import (
	"context"
	"fmt"
)

const (
	anthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicModel    = "claude-3-sonnet-20240229"
	anthropicVersion  = "2023-06-01"
)

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Anthropic calls the Messages API.
type Anthropic struct {
	cfg Config
}

// NewAnthropic creates the Anthropic provider.
func NewAnthropic(cfg Config) *Anthropic {
	return &Anthropic{cfg: cfg.withDefaults(anthropicEndpoint, anthropicModel)}
}

// Name returns the provider identifier.
func (p *Anthropic) Name() string { return "anthropic" }

// Query returns the first text block of the reply.
func (p *Anthropic) Query(ctx context.Context, prompt string) (string, error) {
	req := anthropicRequest{
		Model:     p.cfg.Model,
		MaxTokens: 300,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{
		"x-api-key":         p.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}

	var resp anthropicResponse
	if err := postJSON(ctx, p.cfg.httpClient(), p.Name(), p.cfg.Endpoint, headers, req, &resp); err != nil {
		return "", err
	}
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			return nonEmpty(p.Name(), block.Text)
		}
	}
	return "", fmt.Errorf("anthropic: no text block: %w", ErrMalformedResponse)
}
