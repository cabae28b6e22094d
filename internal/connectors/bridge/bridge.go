// Package bridge drives an account's chat session through the session bridge
// HTTP service. The bridge owns the chat client; caretaker only sends it
// allow-listed actions and routines.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fentz26/caretaker/internal/connectors"
	"github.com/fentz26/caretaker/internal/models"
	"github.com/fentz26/caretaker/internal/statusparse"
)

// DefaultTimeout bounds a single bridge request.
const DefaultTimeout = 30 * time.Second

var (
	// ErrActionNotAllowed is returned for actions outside the allowlist.
	ErrActionNotAllowed = errors.New("action not allowed")
	// ErrRoutineNotAllowed is returned for routines outside the allowlist.
	ErrRoutineNotAllowed = errors.New("routine not allowed")
	// ErrNotConnected is returned when a session call is made before Connect.
	ErrNotConnected = errors.New("session not connected")
)

// allowedActions is the set of actions the bridge knows how to script.
var allowedActions = map[models.Action]bool{
	models.ActionFeed:          true,
	models.ActionBathe:         true,
	models.ActionRest:          true,
	models.ActionWake:          true,
	models.ActionPlay:          true,
	models.ActionEmergencyCare: true,
}

// DefaultRoutines are the maintenance routines enabled out of the box.
var DefaultRoutines = []string{"wordle", "doors"}

// Client talks to one bridge service.
type Client struct {
	baseURL  string
	http     *http.Client
	routines map[string]bool
	now      func() time.Time
}

// NewClient creates a bridge client. A nil routines list means DefaultRoutines.
func NewClient(baseURL string, timeout time.Duration, routines []string) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if routines == nil {
		routines = DefaultRoutines
	}
	allowed := make(map[string]bool, len(routines))
	for _, r := range routines {
		allowed[r] = true
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		routines: allowed,
		now:      time.Now,
	}
}

// IsAllowed reports whether an action may be sent to the bridge.
func (c *Client) IsAllowed(action models.Action) bool {
	return allowedActions[action]
}

// Session returns the session handle for an account.
func (c *Client) Session(account models.AccountID, credential models.Credential) *Session {
	return &Session{client: c, account: account, credential: credential}
}

// Session is one account's chat session on the bridge.
type Session struct {
	client     *Client
	account    models.AccountID
	credential models.Credential

	mu sync.Mutex
	id string
}

var _ connectors.Session = (*Session)(nil)

type connectRequest struct {
	AccountID  string `json:"account_id"`
	Credential string `json:"credential"`
}

type connectResponse struct {
	SessionID string `json:"session_id"`
}

type latestResponse struct {
	Text string `json:"text"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// Connect opens the session on the bridge.
func (s *Session) Connect(ctx context.Context) error {
	var resp connectResponse
	req := connectRequest{AccountID: string(s.account), Credential: string(s.credential)}
	if err := s.client.do(ctx, http.MethodPost, "/sessions", req, &resp); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if resp.SessionID == "" {
		return errors.New("connect: bridge returned no session id")
	}

	s.mu.Lock()
	s.id = resp.SessionID
	s.mu.Unlock()
	return nil
}

// Reconnect asks the bridge to restart the session, or connects if there is none.
func (s *Session) Reconnect(ctx context.Context) error {
	id, err := s.sessionID()
	if err != nil {
		return s.Connect(ctx)
	}
	if err := s.client.do(ctx, http.MethodPost, sessionPath(id, "reconnect"), nil, nil); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	return nil
}

// Close ends the session. Closing an unconnected session is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	id := s.id
	s.id = ""
	s.mu.Unlock()
	if id == "" {
		return nil
	}
	if err := s.client.do(ctx, http.MethodDelete, sessionPath(id), nil, nil); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// FetchLatest returns the bot's most recent message.
func (s *Session) FetchLatest(ctx context.Context) (string, error) {
	id, err := s.sessionID()
	if err != nil {
		return "", err
	}
	var resp latestResponse
	err = s.client.do(ctx, http.MethodGet, sessionPath(id, "messages", "latest"), nil, &resp)
	var herr *HTTPError
	if errors.As(err, &herr) && herr.StatusCode == http.StatusNotFound {
		return "", connectors.ErrNoStatus
	}
	if err != nil {
		return "", fmt.Errorf("fetch latest: %w", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", connectors.ErrNoStatus
	}
	return resp.Text, nil
}

// ExtractSnapshot parses a status message.
func (s *Session) ExtractSnapshot(raw string) models.StatusSnapshot {
	return statusparse.Extract(raw, s.client.now())
}

// Perform runs a care action.
func (s *Session) Perform(ctx context.Context, action models.Action) (bool, error) {
	if !s.client.IsAllowed(action) {
		return false, fmt.Errorf("%w: %s", ErrActionNotAllowed, action)
	}
	return s.post(ctx, "actions", string(action))
}

// RunRoutine runs a maintenance routine.
func (s *Session) RunRoutine(ctx context.Context, name string) (bool, error) {
	if !s.client.routines[name] {
		return false, fmt.Errorf("%w: %s", ErrRoutineNotAllowed, name)
	}
	return s.post(ctx, "routines", name)
}

func (s *Session) post(ctx context.Context, kind, name string) (bool, error) {
	id, err := s.sessionID()
	if err != nil {
		return false, err
	}
	var resp okResponse
	if err := s.client.do(ctx, http.MethodPost, sessionPath(id, kind, name), nil, &resp); err != nil {
		return false, fmt.Errorf("%s %s: %w", kind, name, err)
	}
	return resp.OK, nil
}

func (s *Session) sessionID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == "" {
		return "", ErrNotConnected
	}
	return s.id, nil
}

func sessionPath(id string, parts ...string) string {
	p := "/sessions/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// HTTPError is a non-2xx bridge response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("bridge error (%d): %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bridge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode bridge response: %w", err)
	}
	return nil
}
