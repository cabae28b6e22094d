package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fentz26/caretaker/internal/models"
)

// HTTPPublisher posts reports to the account dashboard server.
type HTTPPublisher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPPublisher creates a publisher for the server at baseURL.
func NewHTTPPublisher(baseURL string) *HTTPPublisher {
	return &HTTPPublisher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultDeliveryTimeout},
	}
}

// Name returns the publisher identifier.
func (p *HTTPPublisher) Name() string { return "http" }

type errorPayload struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

// statsPayload keeps the field names the dashboard stores.
type statsPayload struct {
	UserID string    `json:"user_id"`
	Stats  wireStats `json:"stats"`
}

type wireStats struct {
	Energy      int     `json:"energy"`
	Clean       int     `json:"clean"`
	Health      int     `json:"health"`
	Hunger      int     `json:"hunger"`
	Happiness   int     `json:"happiness"`
	IsSleeping  bool    `json:"is_sleeping"`
	CurrentRoom *string `json:"current_room"`
}

func toWireStats(s models.StatusSnapshot) wireStats {
	w := wireStats{
		Energy:     s.Energy,
		Clean:      s.Cleanliness,
		Health:     s.Health,
		Hunger:     s.Satiety,
		Happiness:  s.Mood,
		IsSleeping: s.Resting,
	}
	if s.Location != nil {
		room := string(*s.Location)
		w.CurrentRoom = &room
	}
	return w
}

// PublishError posts to /UserErrors.
func (p *HTTPPublisher) PublishError(ctx context.Context, account models.AccountID, message string) error {
	return p.post(ctx, "/UserErrors", errorPayload{UserID: string(account), Error: message})
}

// PublishStatus posts to /Pet_stats.
func (p *HTTPPublisher) PublishStatus(ctx context.Context, account models.AccountID, snapshot models.StatusSnapshot) error {
	return p.post(ctx, "/Pet_stats", statsPayload{UserID: string(account), Stats: toWireStats(snapshot)})
}

func (p *HTTPPublisher) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
