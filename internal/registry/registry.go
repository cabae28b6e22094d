// Package registry lists the accounts that should be supervised.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/fentz26/caretaker/internal/models"
)

// Registry returns the desired account set. A failed call must not be
// mistaken for an empty set.
type Registry interface {
	ListDesired(ctx context.Context) (map[models.AccountID]models.Credential, error)
}

// HTTP reads the desired set from the account server. The response is a JSON
// array of records; records without both userId and session are skipped.
type HTTP struct {
	url    string
	client *http.Client
}

// NewHTTP creates a registry client for url.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{url: url, client: &http.Client{Timeout: timeout}}
}

type record struct {
	UserID  accountID `json:"userId"`
	Session string    `json:"session"`
}

// accountID accepts both string and numeric ids.
type accountID string

func (a *accountID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = accountID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("invalid userId %s", data)
	}
	*a = accountID(n.String())
	return nil
}

// ListDesired fetches and decodes the account list.
func (r *HTTP) ListDesired(ctx context.Context) (map[models.AccountID]models.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("registry error (%d): %s", resp.StatusCode, string(body))
	}

	var records []record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	return collect(records), nil
}

func collect(records []record) map[models.AccountID]models.Credential {
	out := make(map[models.AccountID]models.Credential, len(records))
	for _, rec := range records {
		if rec.UserID == "" || rec.Session == "" {
			continue
		}
		out[models.AccountID(rec.UserID)] = models.Credential(rec.Session)
	}
	return out
}
