package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fentz26/caretaker/internal/connectors"
	"github.com/fentz26/caretaker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBridge records requests and serves canned responses.
type fakeBridge struct {
	mu       sync.Mutex
	requests []string
	latest   string
	ok       bool
}

func (f *fakeBridge) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		var req connectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.record("connect " + req.AccountID + " " + req.Credential)
		_ = json.NewEncoder(w).Encode(connectResponse{SessionID: "s-1"})
	})
	mux.HandleFunc("POST /sessions/{id}/reconnect", func(w http.ResponseWriter, r *http.Request) {
		f.record("reconnect " + r.PathValue("id"))
	})
	mux.HandleFunc("DELETE /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record("close " + r.PathValue("id"))
	})
	mux.HandleFunc("GET /sessions/{id}/messages/latest", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		text := f.latest
		f.mu.Unlock()
		if text == "" {
			http.Error(w, "no messages", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(latestResponse{Text: text})
	})
	mux.HandleFunc("POST /sessions/{id}/{kind}/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r.PathValue("kind") + " " + r.PathValue("name"))
		f.mu.Lock()
		ok := f.ok
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(okResponse{OK: ok})
	})
	return mux
}

func (f *fakeBridge) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, s)
}

func (f *fakeBridge) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newTestSession(t *testing.T, f *fakeBridge) *Session {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 0, nil).Session("acct-1", "cred-1")
}

func TestIsAllowed(t *testing.T) {
	c := NewClient("http://bridge", 0, nil)

	tests := []struct {
		action  models.Action
		allowed bool
	}{
		{models.ActionFeed, true},
		{models.ActionBathe, true},
		{models.ActionRest, true},
		{models.ActionWake, true},
		{models.ActionPlay, true},
		{models.ActionEmergencyCare, true},
		{models.ActionWait, false},
		{models.Action("delete_account"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.allowed, c.IsAllowed(tt.action))
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := &fakeBridge{latest: "🔋 | Energy: **44**", ok: true}
	s := newTestSession(t, f)
	ctx := context.Background()

	require.NoError(t, s.Connect(ctx))

	raw, err := s.FetchLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 44, s.ExtractSnapshot(raw).Energy)

	ok, err := s.Perform(ctx, models.ActionFeed)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.RunRoutine(ctx, "wordle")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Reconnect(ctx))
	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))

	assert.Equal(t, []string{
		"connect acct-1 cred-1",
		"actions feed",
		"routines wordle",
		"reconnect s-1",
		"close s-1",
	}, f.calls())
}

func TestPerformReportsNoEffect(t *testing.T) {
	f := &fakeBridge{ok: false}
	s := newTestSession(t, f)
	require.NoError(t, s.Connect(context.Background()))

	ok, err := s.Perform(context.Background(), models.ActionPlay)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPerformRejectsDisallowedAction(t *testing.T) {
	f := &fakeBridge{}
	s := newTestSession(t, f)
	require.NoError(t, s.Connect(context.Background()))

	_, err := s.Perform(context.Background(), models.ActionWait)
	assert.ErrorIs(t, err, ErrActionNotAllowed)

	_, err = s.RunRoutine(context.Background(), "rm-rf")
	assert.ErrorIs(t, err, ErrRoutineNotAllowed)

	assert.Equal(t, []string{"connect acct-1 cred-1"}, f.calls())
}

func TestFetchLatestNoMessage(t *testing.T) {
	s := newTestSession(t, &fakeBridge{})
	require.NoError(t, s.Connect(context.Background()))

	_, err := s.FetchLatest(context.Background())
	assert.ErrorIs(t, err, connectors.ErrNoStatus)
}

func TestCallsBeforeConnect(t *testing.T) {
	s := newTestSession(t, &fakeBridge{})

	_, err := s.FetchLatest(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = s.Perform(context.Background(), models.ActionFeed)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestReconnectWithoutSessionConnects(t *testing.T) {
	f := &fakeBridge{}
	s := newTestSession(t, f)

	require.NoError(t, s.Reconnect(context.Background()))
	assert.Equal(t, []string{"connect acct-1 cred-1"}, f.calls())
}

func TestBridgeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credential", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, 0, nil).Session("a", "c").Connect(context.Background())
	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusUnauthorized, herr.StatusCode)
	assert.Equal(t, "bad credential", herr.Body)
}
