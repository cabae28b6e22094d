// Package llm implements the HTTP clients for the language model providers
// that caretaker asks for pet-care decisions.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 30 * time.Second

// ErrMalformedResponse is returned when a provider answers 200 but the
// envelope cannot be decoded or carries no text.
var ErrMalformedResponse = errors.New("llm: malformed response")

// Provider is one ranked decision provider.
type Provider interface {
	// Name returns the provider identifier used for rate limiting and logs.
	Name() string

	// Query sends the prompt and returns the raw completion text.
	Query(ctx context.Context, prompt string) (string, error)
}

// Config holds the connection settings shared by every provider.
type Config struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

func (c Config) withDefaults(endpoint, model string) Config {
	if c.Endpoint == "" {
		c.Endpoint = endpoint
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

func (c Config) httpClient() *http.Client {
	return &http.Client{Timeout: c.Timeout}
}

// ProviderError is a non-2xx response from a provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
}

func (err *ProviderError) Error() string {
	if err.Type != "" {
		return fmt.Sprintf("%s: HTTP %d: %s: %s", err.Provider, err.StatusCode, err.Type, err.Message)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", err.Provider, err.StatusCode, err.Message)
}

// IsRateLimited reports whether the provider rejected the call with 429.
func (err *ProviderError) IsRateLimited() bool {
	return err.StatusCode == http.StatusTooManyRequests
}

// postJSON sends body as JSON and decodes a 2xx response into out.
func postJSON(ctx context.Context, client *http.Client, name, endpoint string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshaling request: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: sending request: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readProviderError(name, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w: %v", name, ErrMalformedResponse, err)
	}
	return nil
}

// readProviderError parses {"error":{"type":"...","message":"..."}} bodies,
// falling back to the raw text for providers that use other shapes.
func readProviderError(name string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var wire struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	perr := &ProviderError{Provider: name, StatusCode: resp.StatusCode}
	if json.Unmarshal(body, &wire) == nil && wire.Error.Message != "" {
		perr.Type = wire.Error.Type
		perr.Message = wire.Error.Message
		return perr
	}
	perr.Message = strings.TrimSpace(string(body))
	if perr.Message == "" {
		perr.Message = http.StatusText(resp.StatusCode)
	}
	return perr
}

func nonEmpty(name, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: empty completion: %w", name, ErrMalformedResponse)
	}
	return text, nil
}

// New builds the provider registered under name.
func New(name string, cfg Config) (Provider, error) {
	switch name {
	case "openai", "chatgpt":
		return NewOpenAI(cfg), nil
	case "gemini":
		return NewGemini(cfg), nil
	case "mistral":
		return NewMistral(cfg), nil
	case "huggingface":
		return NewHuggingFace(cfg), nil
	case "ollama":
		return NewOllama(cfg), nil
	case "anthropic":
		return NewAnthropic(cfg), nil
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}
