// Package fleet reconciles the desired set of accounts against running monitors.
package fleet

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fentz26/caretaker/internal/clock"
	"github.com/fentz26/caretaker/internal/models"
	"github.com/fentz26/caretaker/internal/registry"
	"github.com/rs/zerolog"
)

// Runner is a single account monitor.
type Runner interface {
	Run(ctx context.Context) error
	State() models.MonitorState
}

// Factory builds the monitor for an account. An error is a spawn failure
// and only affects that account.
type Factory func(account models.AccountID, credential models.Credential) (Runner, error)

// handle is owned by the reconciliation loop. Only done, err and the
// runner's state are read from elsewhere.
type handle struct {
	account   models.AccountID
	runner    Runner
	cancel    context.CancelFunc
	startedAt time.Time
	seq       uint64
	done      chan struct{}
	err       error
}

func (h *handle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *handle) info() models.MonitorInfo {
	state := h.runner.State()
	if h.exited() {
		state = models.MonitorEnding
	}
	return models.MonitorInfo{AccountID: h.account, State: state, StartedAt: h.startedAt}
}

// Stats is a point-in-time summary of the orchestrator.
type Stats struct {
	Running       int       `json:"running"`
	Stopping      int       `json:"stopping"`
	MaxMonitors   int       `json:"max_monitors"`
	Reconciles    int64     `json:"reconciles"`
	Spawned       int64     `json:"spawned"`
	LastReconcile time.Time `json:"last_reconcile,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

type published struct {
	running  []*handle
	stopping int
	at       time.Time
	lastErr  string
}

// Orchestrator keeps one monitor running per desired account, up to the cap.
type Orchestrator struct {
	registry registry.Registry
	factory  Factory
	cfg      Config
	clock    clock.Clock
	logger   zerolog.Logger

	// mu serializes reconciliation. The maps below are only touched under it.
	mu       sync.Mutex
	running  map[models.AccountID]*handle
	stopping map[models.AccountID]*handle
	seq      uint64
	wg       sync.WaitGroup

	view       atomic.Pointer[published]
	reconciles atomic.Int64
	spawned    atomic.Int64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source used for the reconcile ticker and
// monitor start times.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithLogger sets the parent logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator.
func New(reg registry.Registry, factory Factory, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: reg,
		factory:  factory,
		cfg:      cfg.withDefaults(),
		clock:    clock.Real(),
		logger:   zerolog.Nop(),
		running:  make(map[models.AccountID]*handle),
		stopping: make(map[models.AccountID]*handle),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With().Str("component", "fleet").Logger()
	o.view.Store(&published{})
	return o
}

// Run reconciles immediately and then every ReconcileInterval until ctx is
// done. On return every monitor has been cancelled and has exited.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info().
		Int("max_monitors", o.cfg.MaxMonitors).
		Dur("interval", o.cfg.ReconcileInterval).
		Msg("orchestrator started")
	defer o.Stop()

	for {
		o.Reconcile(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-o.clock.After(o.cfg.ReconcileInterval):
		}
	}
}

// Stop cancels every monitor and waits for all of them to exit.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	for account, h := range o.running {
		h.cancel()
		o.stopping[account] = h
		delete(o.running, account)
	}
	o.mu.Unlock()

	o.wg.Wait()

	o.mu.Lock()
	o.reap()
	o.publish("")
	o.mu.Unlock()
	o.logger.Info().Msg("orchestrator stopped")
}

// Reconcile runs one pass: fetch the desired set, reap exited monitors,
// scale down, scale up under the cap, trim any excess and publish the
// result. The registry is queried before the lock is taken. Monitors
// spawned here live under ctx.
func (o *Orchestrator) Reconcile(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, o.cfg.RegistryTimeout)
	desired, err := o.registry.ListDesired(rctx)
	cancel()
	if ctx.Err() != nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.reconciles.Add(1)

	o.reap()
	if err != nil {
		o.logger.Error().Err(err).Int("running", len(o.running)).Msg("registry fetch failed, keeping running set")
		o.publish(err.Error())
		return
	}

	o.scaleDown(desired)
	o.scaleUp(ctx, desired)
	o.trim()
	o.publish("")

	o.logger.Info().
		Int("desired", len(desired)).
		Int("running", len(o.running)).
		Int("stopping", len(o.stopping)).
		Msg("reconciled")
}

// reap drops handles whose monitor goroutine has returned.
func (o *Orchestrator) reap() {
	for account, h := range o.running {
		if !h.exited() {
			continue
		}
		delete(o.running, account)
		ev := o.logger.Info()
		if h.err != nil {
			ev = o.logger.Warn().Err(h.err)
		}
		ev.Str("account", string(account)).Msg("monitor exited")
	}
	for account, h := range o.stopping {
		if h.exited() {
			delete(o.stopping, account)
		}
	}
}

func (o *Orchestrator) scaleDown(desired map[models.AccountID]models.Credential) {
	for account, h := range o.running {
		if _, ok := desired[account]; ok {
			continue
		}
		o.stop(h)
		o.logger.Info().Str("account", string(account)).Msg("account no longer desired, monitor cancelled")
	}
}

func (o *Orchestrator) scaleUp(ctx context.Context, desired map[models.AccountID]models.Credential) {
	missing := make([]models.AccountID, 0, len(desired))
	for account := range desired {
		if _, ok := o.running[account]; !ok {
			missing = append(missing, account)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })

	skipped := 0
	for _, account := range missing {
		// A cancelled monitor for the same account may still be finishing
		// its action; wait for it to exit before starting another.
		if _, ok := o.stopping[account]; ok {
			o.logger.Debug().Str("account", string(account)).Msg("previous monitor still stopping")
			continue
		}
		if o.live() >= o.cfg.MaxMonitors {
			skipped++
			continue
		}
		if err := o.spawn(ctx, account, desired[account]); err != nil {
			o.logger.Error().Err(err).Str("account", string(account)).Msg("failed to spawn monitor")
		}
	}
	if skipped > 0 {
		o.logger.Warn().Int("skipped", skipped).Int("max_monitors", o.cfg.MaxMonitors).Msg("monitor cap reached")
	}
}

func (o *Orchestrator) spawn(ctx context.Context, account models.AccountID, credential models.Credential) error {
	runner, err := o.factory(account, credential)
	if err != nil {
		return fmt.Errorf("build monitor: %w", err)
	}

	mctx, cancel := context.WithCancel(ctx)
	o.seq++
	h := &handle{
		account:   account,
		runner:    runner,
		cancel:    cancel,
		startedAt: o.clock.Now(),
		seq:       o.seq,
		done:      make(chan struct{}),
	}
	o.running[account] = h
	o.spawned.Add(1)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(h.done)
		defer cancel()
		h.err = runner.Run(mctx)
	}()

	o.logger.Info().Str("account", string(account)).Msg("monitor started")
	return nil
}

// trim cancels monitors beyond the cap. The oldest start times stay; the
// spawn sequence breaks ties.
func (o *Orchestrator) trim() {
	excess := o.live() - o.cfg.MaxMonitors
	if excess <= 0 {
		return
	}
	handles := o.sortedRunning()
	for i := len(handles) - 1; i >= 0 && excess > 0; i-- {
		o.stop(handles[i])
		excess--
		o.logger.Warn().Str("account", string(handles[i].account)).Msg("monitor cancelled over cap")
	}
}

func (o *Orchestrator) stop(h *handle) {
	h.cancel()
	delete(o.running, h.account)
	if !h.exited() {
		o.stopping[h.account] = h
	}
}

func (o *Orchestrator) live() int {
	return len(o.running) + len(o.stopping)
}

// sortedRunning returns running handles oldest first.
func (o *Orchestrator) sortedRunning() []*handle {
	handles := make([]*handle, 0, len(o.running))
	for _, h := range o.running {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool {
		if !handles[i].startedAt.Equal(handles[j].startedAt) {
			return handles[i].startedAt.Before(handles[j].startedAt)
		}
		return handles[i].seq < handles[j].seq
	})
	return handles
}

func (o *Orchestrator) publish(lastErr string) {
	o.view.Store(&published{
		running:  o.sortedRunning(),
		stopping: len(o.stopping),
		at:       o.clock.Now(),
		lastErr:  lastErr,
	})
}

// Monitors returns the monitors published by the last reconciliation, oldest
// first, with their current state.
func (o *Orchestrator) Monitors() []models.MonitorInfo {
	view := o.view.Load()
	infos := make([]models.MonitorInfo, 0, len(view.running))
	for _, h := range view.running {
		infos = append(infos, h.info())
	}
	return infos
}

// GetStats returns current orchestrator statistics.
func (o *Orchestrator) GetStats() Stats {
	view := o.view.Load()
	return Stats{
		Running:       len(view.running),
		Stopping:      view.stopping,
		MaxMonitors:   o.cfg.MaxMonitors,
		Reconciles:    o.reconciles.Load(),
		Spawned:       o.spawned.Load(),
		LastReconcile: view.at,
		LastError:     view.lastErr,
	}
}
