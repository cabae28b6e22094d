package llm

import "context"

const (
	ollamaEndpoint = "http://localhost:11434/api/generate"
	ollamaModel    = "mistral"
)

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// Ollama calls a local Ollama server. It needs no API key.
type Ollama struct {
	cfg Config
}

// NewOllama creates the Ollama provider.
func NewOllama(cfg Config) *Ollama {
	return &Ollama{cfg: cfg.withDefaults(ollamaEndpoint, ollamaModel)}
}

// Name returns the provider identifier.
func (p *Ollama) Name() string { return "ollama" }

// Query runs a non-streaming JSON generation.
func (p *Ollama) Query(ctx context.Context, prompt string) (string, error) {
	req := ollamaRequest{Model: p.cfg.Model, Prompt: prompt, Format: "json"}

	var resp ollamaResponse
	if err := postJSON(ctx, p.cfg.httpClient(), p.Name(), p.cfg.Endpoint, nil, req, &resp); err != nil {
		return "", err
	}
	return nonEmpty(p.Name(), resp.Response)
}
