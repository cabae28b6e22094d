package llm

import (
	"context"
	"fmt"
)

const (
	openAIEndpoint = "https://api.openai.com/v1/chat/completions"
	openAIModel    = "gpt-3.5-turbo"

	mistralEndpoint = "https://api.mistral.ai/v1/chat/completions"
	mistralModel    = "mistral-small"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ChatCompletions talks to an OpenAI-compatible chat completions API.
// OpenAI and Mistral both speak this protocol.
type ChatCompletions struct {
	name string
	cfg  Config
}

// NewOpenAI creates the OpenAI provider.
func NewOpenAI(cfg Config) *ChatCompletions {
	return &ChatCompletions{name: "openai", cfg: cfg.withDefaults(openAIEndpoint, openAIModel)}
}

// NewMistral creates the Mistral provider.
func NewMistral(cfg Config) *ChatCompletions {
	return &ChatCompletions{name: "mistral", cfg: cfg.withDefaults(mistralEndpoint, mistralModel)}
}

// Name returns the provider identifier.
func (p *ChatCompletions) Name() string { return p.name }

// Query asks for a JSON object completion.
func (p *ChatCompletions) Query(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:          p.cfg.Model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	headers := map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}

	var resp chatResponse
	if err := postJSON(ctx, p.cfg.httpClient(), p.name, p.cfg.Endpoint, headers, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices: %w", p.name, ErrMalformedResponse)
	}
	return nonEmpty(p.name, resp.Choices[0].Message.Content)
}
