package decision

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fentz26/caretaker/internal/llm"
	"github.com/fentz26/caretaker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mock.Mock
	name string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Query(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type recordingLimiter struct {
	calls []string
	err   error
}

func (l *recordingLimiter) Wait(ctx context.Context, account models.AccountID, provider string) error {
	l.calls = append(l.calls, string(account)+"/"+provider)
	return l.err
}

var hungry = models.StatusSnapshot{Energy: 80, Cleanliness: 80, Health: 80, Satiety: 10, Mood: 80}

func TestChainFirstSuccessWins(t *testing.T) {
	t.Parallel()

	first := &mockProvider{name: "openai"}
	first.On("Query", mock.Anything, mock.Anything).Return("", errors.New("boom"))
	second := &mockProvider{name: "gemini"}
	second.On("Query", mock.Anything, mock.Anything).
		Return(`{"action":"play","rationale":"bored","urgency":"low"}`, nil)
	third := &mockProvider{name: "mistral"}

	limiter := &recordingLimiter{}
	chain := NewChain([]llm.Provider{first, second, third}, WithLimiter(limiter))

	d := chain.Decide(context.Background(), "acct", hungry)

	assert.Equal(t, models.Decision{Action: models.ActionPlay, Rationale: "bored", Urgency: models.UrgencyLow, Source: "gemini"}, d)
	assert.Equal(t, []string{"acct/openai", "acct/gemini"}, limiter.calls)
	first.AssertExpectations(t)
	second.AssertExpectations(t)
	third.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
}

func TestChainAllFailUsesFallback(t *testing.T) {
	t.Parallel()

	a := &mockProvider{name: "openai"}
	a.On("Query", mock.Anything, mock.Anything).Return("", &llm.ProviderError{StatusCode: 500})
	b := &mockProvider{name: "ollama"}
	b.On("Query", mock.Anything, mock.Anything).Return("", llm.ErrMalformedResponse)

	d := NewChain([]llm.Provider{a, b}).Decide(context.Background(), "acct", hungry)

	assert.Equal(t, models.ActionFeed, d.Action)
	assert.Equal(t, models.UrgencyHigh, d.Urgency)
	assert.Equal(t, models.SourceFallback, d.Source)
}

func TestChainEmptyUsesFallback(t *testing.T) {
	t.Parallel()

	d := NewChain(nil).Decide(context.Background(), "acct", models.StatusSnapshot{Health: 5})
	assert.Equal(t, models.ActionEmergencyCare, d.Action)
}

func TestChainLimiterErrorSkipsProvider(t *testing.T) {
	t.Parallel()

	p := &mockProvider{name: "openai"}
	chain := NewChain([]llm.Provider{p}, WithLimiter(&recordingLimiter{err: context.DeadlineExceeded}))

	d := chain.Decide(context.Background(), "acct", hungry)
	assert.Equal(t, models.SourceFallback, d.Source)
	p.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
}

func TestChainStopsWhenContextDone(t *testing.T) {
	t.Parallel()

	p := &mockProvider{name: "openai"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewChain([]llm.Provider{p}).Decide(ctx, "acct", hungry)
	assert.Equal(t, models.SourceFallback, d.Source)
	p.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
}

func TestChainAppliesCallTimeout(t *testing.T) {
	t.Parallel()

	p := &mockProvider{name: "openai"}
	p.On("Query", mock.Anything, mock.Anything).Return("wait", nil).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 500*time.Millisecond)
	})

	NewChain([]llm.Provider{p}, WithCallTimeout(time.Second)).Decide(context.Background(), "acct", hungry)
	p.AssertExpectations(t)
}

func TestChainProviders(t *testing.T) {
	t.Parallel()

	chain := NewChain([]llm.Provider{&mockProvider{name: "openai"}, &mockProvider{name: "gemini"}})
	assert.Equal(t, []string{"openai", "gemini"}, chain.Providers())
}

func TestParseStrictJSON(t *testing.T) {
	t.Parallel()

	d := Parse(`{"action":"emergency","rationale":"critical","urgency":"HIGH"}`)
	assert.Equal(t, models.Decision{Action: models.ActionEmergencyCare, Rationale: "critical", Urgency: models.UrgencyHigh}, d)
}

func TestParseLegacyFieldNames(t *testing.T) {
	t.Parallel()

	d := Parse(`{"action":"sleep","reasoning":"tired","priority":"medium"}`)
	assert.Equal(t, models.Decision{Action: models.ActionRest, Rationale: "tired", Urgency: models.UrgencyMedium}, d)
}

func TestParseKeywordScan(t *testing.T) {
	t.Parallel()

	cases := map[string]models.Action{
		"I think you should FEED the pet":             models.ActionFeed,
		"Let the pet play, then bathe":                models.ActionBathe,
		"wake up and play":                            models.ActionWake,
		"Call emergency services now":                 models.ActionEmergencyCare,
		"nothing useful here":                         models.ActionWait,
		"":                                            models.ActionWait,
		`{"action":"dance","rationale":"sleep well"}`: models.ActionRest,
	}

	for raw, want := range cases {
		d := Parse(raw)
		assert.Equal(t, want, d.Action, "raw %q", raw)
		assert.Equal(t, models.UrgencyMedium, d.Urgency)
		assert.Equal(t, keywordRationale, d.Rationale)
	}
}

func TestParseRejectsMissingField(t *testing.T) {
	t.Parallel()

	d := Parse(`{"action":"feed","urgency":"high"}`)
	assert.Equal(t, models.ActionFeed, d.Action)
	assert.Equal(t, models.UrgencyMedium, d.Urgency)
	assert.Equal(t, keywordRationale, d.Rationale)
}

func TestFallbackRules(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		in      models.StatusSnapshot
		action  models.Action
		urgency models.Urgency
	}{
		{"critical health beats everything", models.StatusSnapshot{Health: 10, Energy: 100, Satiety: 100, Cleanliness: 100, Mood: 100}, models.ActionEmergencyCare, models.UrgencyHigh},
		{"rested pet wakes", models.StatusSnapshot{Health: 90, Resting: true, Energy: 50}, models.ActionWake, models.UrgencyMedium},
		{"tired sleeper keeps sleeping", models.StatusSnapshot{Health: 90, Resting: true, Energy: 30}, models.ActionWait, models.UrgencyLow},
		{"hungry", models.StatusSnapshot{Health: 90, Energy: 10, Satiety: 20}, models.ActionFeed, models.UrgencyHigh},
		{"exhausted", models.StatusSnapshot{Health: 90, Energy: 10, Satiety: 50}, models.ActionRest, models.UrgencyHigh},
		{"dirty", models.StatusSnapshot{Health: 90, Energy: 50, Satiety: 50, Cleanliness: 30}, models.ActionBathe, models.UrgencyMedium},
		{"sad", models.StatusSnapshot{Health: 90, Energy: 50, Satiety: 50, Cleanliness: 50, Mood: 20}, models.ActionPlay, models.UrgencyLow},
		{"sad but tired", models.StatusSnapshot{Health: 90, Energy: 40, Satiety: 50, Cleanliness: 50, Mood: 20}, models.ActionWait, models.UrgencyLow},
		{"fine", models.StatusSnapshot{Health: 90, Energy: 90, Satiety: 90, Cleanliness: 90, Mood: 90}, models.ActionWait, models.UrgencyLow},
		{"boundary health 25", models.StatusSnapshot{Health: 25, Energy: 90, Satiety: 90, Cleanliness: 90, Mood: 90}, models.ActionWait, models.UrgencyLow},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := Fallback(tc.in)
			assert.Equal(t, tc.action, d.Action)
			assert.Equal(t, tc.urgency, d.Urgency)
			assert.Equal(t, models.SourceFallback, d.Source)
			assert.NotEmpty(t, d.Rationale)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	loc := models.LocationKitchen
	p := BuildPrompt(models.StatusSnapshot{Energy: 12, Cleanliness: 34, Health: 56, Satiety: 78, Mood: 90, Resting: true, Location: &loc})

	for _, want := range []string{"Energy: 12%", "Clean: 34%", "Health: 56%", "Hunger: 78%", "Happiness: 90%", "Is Sleeping: true", "Room: kitchen", `"urgency"`} {
		assert.True(t, strings.Contains(p, want), "prompt missing %q", want)
	}
	assert.NotContains(t, BuildPrompt(models.StatusSnapshot{}), "Room:")
}
