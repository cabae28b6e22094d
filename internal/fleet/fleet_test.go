package fleet

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fentz26/caretaker/internal/clock"
	"github.com/fentz26/caretaker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

type fakeRegistry struct {
	mu      sync.Mutex
	desired map[models.AccountID]models.Credential
	err     error

	// When gate is set ListDesired signals entered and blocks until gate closes.
	gate    chan struct{}
	entered chan struct{}
}

func (r *fakeRegistry) set(ids ...models.AccountID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.desired = make(map[models.AccountID]models.Credential, len(ids))
	for _, id := range ids {
		r.desired[id] = models.Credential("cred-" + string(id))
	}
	r.err = nil
}

func (r *fakeRegistry) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *fakeRegistry) ListDesired(ctx context.Context) (map[models.AccountID]models.Credential, error) {
	if r.gate != nil {
		r.entered <- struct{}{}
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[models.AccountID]models.Credential, len(r.desired))
	for k, v := range r.desired {
		out[k] = v
	}
	return out, nil
}

// fakeRunner blocks until cancelled. When stubborn it also waits for release.
type fakeRunner struct {
	account   models.AccountID
	stubborn  bool
	release   chan struct{}
	exit      chan error
	exited    chan struct{}
	cancelled atomic.Bool
	live      *liveCounter
}

type liveCounter struct {
	mu   sync.Mutex
	cur  int
	peak int
}

func (l *liveCounter) inc() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cur++
	if l.cur > l.peak {
		l.peak = l.cur
	}
}

func (l *liveCounter) dec() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cur--
}

func (l *liveCounter) max() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peak
}

func (r *fakeRunner) Run(ctx context.Context) error {
	defer close(r.exited)
	defer r.live.dec()
	select {
	case <-ctx.Done():
		r.cancelled.Store(true)
		if r.stubborn {
			<-r.release
		}
		return nil
	case err := <-r.exit:
		return err
	}
}

func (r *fakeRunner) State() models.MonitorState { return models.MonitorPolling }

type fakeFactory struct {
	mu      sync.Mutex
	live    liveCounter
	runners map[models.AccountID][]*fakeRunner
	failFor map[models.AccountID]bool
	stubborn bool
}

func newFactory() *fakeFactory {
	return &fakeFactory{
		runners: make(map[models.AccountID][]*fakeRunner),
		failFor: make(map[models.AccountID]bool),
	}
}

func (f *fakeFactory) build(account models.AccountID, _ models.Credential) (Runner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[account] {
		return nil, errors.New("invalid session")
	}
	r := &fakeRunner{
		account:  account,
		stubborn: f.stubborn,
		release:  make(chan struct{}),
		exit:     make(chan error, 1),
		exited:   make(chan struct{}),
		live:     &f.live,
	}
	f.live.inc()
	f.runners[account] = append(f.runners[account], r)
	return r, nil
}

func (f *fakeFactory) spawns(account models.AccountID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runners[account])
}

func (f *fakeFactory) latest(account models.AccountID) *fakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	rs := f.runners[account]
	if len(rs) == 0 {
		return nil
	}
	return rs[len(rs)-1]
}

func waitExited(t *testing.T, r *fakeRunner) {
	t.Helper()
	select {
	case <-r.exited:
	case <-time.After(5 * time.Second):
		t.Fatalf("monitor %s did not exit", r.account)
	}
}

func accounts(infos []models.MonitorInfo) []models.AccountID {
	out := make([]models.AccountID, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.AccountID)
	}
	return out
}

func newTestOrchestrator(t *testing.T, reg *fakeRegistry, f *fakeFactory, cfg Config) (*Orchestrator, *clock.FakeClock) {
	t.Helper()
	fc := clock.Fake(start)
	o := New(reg, f.build, cfg, WithClock(fc))
	t.Cleanup(o.Stop)
	return o, fc
}

func TestReconcileScalesUpAndDown(t *testing.T) {
	reg := &fakeRegistry{}
	f := newFactory()
	o, _ := newTestOrchestrator(t, reg, f, Config{MaxMonitors: 10})
	ctx := context.Background()

	reg.set("A", "B", "C")
	o.Reconcile(ctx)
	assert.ElementsMatch(t, []models.AccountID{"A", "B", "C"}, accounts(o.Monitors()))

	reg.set("B", "C", "D")
	o.Reconcile(ctx)

	waitExited(t, f.latest("A"))
	assert.True(t, f.latest("A").cancelled.Load())
	assert.ElementsMatch(t, []models.AccountID{"B", "C", "D"}, accounts(o.Monitors()))
	assert.Equal(t, 1, f.spawns("B"))
	assert.Equal(t, 1, f.spawns("C"))
	assert.Equal(t, 1, f.spawns("D"))
	assert.False(t, f.latest("B").cancelled.Load())
}

func TestCapHoldsAtAllTimes(t *testing.T) {
	reg := &fakeRegistry{}
	f := newFactory()
	o, _ := newTestOrchestrator(t, reg, f, Config{MaxMonitors: 2})
	ctx := context.Background()

	reg.set("A", "B", "C")
	o.Reconcile(ctx)
	assert.Equal(t, []models.AccountID{"A", "B"}, accounts(o.Monitors()))

	reg.set("B", "C", "D", "E")
	o.Reconcile(ctx)
	waitExited(t, f.latest("A"))
	o.Reconcile(ctx)

	assert.Len(t, o.Monitors(), 2)
	assert.LessOrEqual(t, f.live.max(), 2)
	assert.Zero(t, f.spawns("D"))
}

func TestRegistryFailureKeepsRunningSet(t *testing.T) {
	reg := &fakeRegistry{}
	f := newFactory()
	o, _ := newTestOrchestrator(t, reg, f, Config{})
	ctx := context.Background()

	reg.set("A", "B")
	o.Reconcile(ctx)

	reg.fail(errors.New("registry unavailable"))
	o.Reconcile(ctx)

	assert.ElementsMatch(t, []models.AccountID{"A", "B"}, accounts(o.Monitors()))
	assert.False(t, f.latest("A").cancelled.Load())
	assert.Equal(t, "registry unavailable", o.GetStats().LastError)
}

func TestSlowRegistryDoesNotBlockStop(t *testing.T) {
	reg := &fakeRegistry{}
	f := newFactory()
	o, _ := newTestOrchestrator(t, reg, f, Config{})
	ctx := context.Background()

	reg.set("A")
	o.Reconcile(ctx)
	require.Len(t, o.Monitors(), 1)

	reg.gate = make(chan struct{})
	reg.entered = make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Reconcile(ctx)
	}()
	<-reg.entered

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		o.Stop()
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked behind the registry fetch")
	}
	assert.True(t, f.latest("A").cancelled.Load())

	close(reg.gate)
	<-done
}

func TestSpawnFailureIsIsolated(t *testing.T) {
	reg := &fakeRegistry{}
	f := newFactory()
	f.failFor["B"] = true
	o, _ := newTestOrchestrator(t, reg, f, Config{})

	reg.set("A", "B", "C")
	o.Reconcile(context.Background())

	assert.Equal(t, []models.AccountID{"A", "C"}, accounts(o.Monitors()))
}

func TestExitedMonitorIsRestarted(t *testing.T) {
	reg := &fakeRegistry{}
	f := newFactory()
	o, _ := newTestOrchestrator(t, reg, f, Config{})
	ctx := context.Background()

	reg.set("A")
	o.Reconcile(ctx)
	first := f.latest("A")
	first.exit <- errors.New("panicked")
	waitExited(t, first)

	assert.Equal(t, models.MonitorEnding, o.Monitors()[0].State)

	o.Reconcile(ctx)
	assert.Equal(t, 2, f.spawns("A"))
	assert.NotSame(t, first, f.latest("A"))
	require.Len(t, o.Monitors(), 1)
	assert.Equal(t, models.MonitorPolling, o.Monitors()[0].State)
}

func TestStoppingMonitorBlocksRespawn(t *testing.T) {
	reg := &fakeRegistry{}
	f := newFactory()
	f.stubborn = true
	o, _ := newTestOrchestrator(t, reg, f, Config{})
	ctx := context.Background()

	reg.set("A")
	o.Reconcile(ctx)
	first := f.latest("A")

	reg.set()
	o.Reconcile(ctx)
	reg.set("A")
	o.Reconcile(ctx)

	assert.Equal(t, 1, f.spawns("A"))
	assert.Equal(t, 1, o.GetStats().Stopping)

	close(first.release)
	waitExited(t, first)
	o.Reconcile(ctx)

	assert.Equal(t, 2, f.spawns("A"))
	assert.Zero(t, o.GetStats().Stopping)
	assert.LessOrEqual(t, f.live.max(), 1)
	close(f.latest("A").release)
}

func TestTrimKeepsOldest(t *testing.T) {
	reg := &fakeRegistry{}
	f := newFactory()
	o, fc := newTestOrchestrator(t, reg, f, Config{MaxMonitors: 3})
	ctx := context.Background()

	reg.set("C")
	o.Reconcile(ctx)
	fc.Advance(time.Minute)
	reg.set("A", "B", "C")
	o.Reconcile(ctx)

	o.mu.Lock()
	o.cfg.MaxMonitors = 1
	o.mu.Unlock()
	o.Reconcile(ctx)

	assert.Equal(t, []models.AccountID{"C"}, accounts(o.Monitors()))
	waitExited(t, f.latest("A"))
	waitExited(t, f.latest("B"))
}

func TestTrimTieBreaksOnSpawnOrder(t *testing.T) {
	reg := &fakeRegistry{}
	f := newFactory()
	o, _ := newTestOrchestrator(t, reg, f, Config{MaxMonitors: 3})
	ctx := context.Background()

	reg.set("A", "B", "C")
	o.Reconcile(ctx)

	o.mu.Lock()
	o.cfg.MaxMonitors = 2
	o.trim()
	o.publish("")
	o.mu.Unlock()

	assert.Equal(t, []models.AccountID{"A", "B"}, accounts(o.Monitors()))
}

func TestRunReconcilesOnInterval(t *testing.T) {
	reg := &fakeRegistry{}
	f := newFactory()
	fc := clock.Fake(start)
	o := New(reg, f.build, Config{ReconcileInterval: time.Minute}, WithClock(fc))

	reg.set("A")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	fc.WaitForTimers(1)
	assert.Equal(t, int64(1), o.GetStats().Reconciles)
	assert.Equal(t, 1, f.spawns("A"))

	reg.set("A", "B")
	fc.Advance(time.Minute)
	fc.WaitForTimers(1)
	assert.Equal(t, int64(2), o.GetStats().Reconciles)
	assert.Equal(t, 1, f.spawns("B"))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not stop")
	}
	waitExited(t, f.latest("A"))
	waitExited(t, f.latest("B"))
	assert.Empty(t, o.Monitors())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{MaxMonitors: 3}.withDefaults()
	assert.Equal(t, 3, cfg.MaxMonitors)
	assert.Equal(t, 5*time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, 10*time.Second, cfg.RegistryTimeout)
}
