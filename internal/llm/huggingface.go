package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	huggingFaceEndpoint = "https://api-inference.huggingface.co/models"
	huggingFaceModel    = "mistralai/Mistral-7B-Instruct-v0.1"
)

type huggingFaceRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		ReturnFullText bool `json:"return_full_text"`
		MaxNewTokens   int  `json:"max_new_tokens"`
	} `json:"parameters"`
}

type huggingFaceResponse []struct {
	GeneratedText string `json:"generated_text"`
}

// HuggingFace calls the hosted inference API.
type HuggingFace struct {
	cfg Config
}

// NewHuggingFace creates the HuggingFace provider.
func NewHuggingFace(cfg Config) *HuggingFace {
	return &HuggingFace{cfg: cfg.withDefaults(huggingFaceEndpoint, huggingFaceModel)}
}

// Name returns the provider identifier.
func (p *HuggingFace) Name() string { return "huggingface" }

// Query returns the generated text without the prompt.
func (p *HuggingFace) Query(ctx context.Context, prompt string) (string, error) {
	req := huggingFaceRequest{Inputs: prompt}
	req.Parameters.MaxNewTokens = 300

	endpoint := strings.TrimRight(p.cfg.Endpoint, "/") + "/" + p.cfg.Model
	headers := map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}

	var resp huggingFaceResponse
	if err := postJSON(ctx, p.cfg.httpClient(), p.Name(), endpoint, headers, req, &resp); err != nil {
		return "", err
	}
	if len(resp) == 0 {
		return "", fmt.Errorf("huggingface: no generations: %w", ErrMalformedResponse)
	}
	return nonEmpty(p.Name(), resp[0].GeneratedText)
}
