// Package monitor runs the poll, decide and act loop for a single account.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/fentz26/caretaker/internal/clock"
	"github.com/fentz26/caretaker/internal/connectors"
	"github.com/fentz26/caretaker/internal/models"
	"github.com/fentz26/caretaker/internal/telemetry"
	"github.com/rs/zerolog"
)

// closeTimeout bounds the session teardown when a monitor exits.
const closeTimeout = 10 * time.Second

// Decider picks the next action for a snapshot. It must always return a
// decision, falling back locally when it cannot reach a provider.
type Decider interface {
	Decide(ctx context.Context, account models.AccountID, snapshot models.StatusSnapshot) models.Decision
}

// DecisionRecorder keeps an audit trail of decisions.
type DecisionRecorder interface {
	Record(ctx context.Context, account models.AccountID, snapshot models.StatusSnapshot, d models.Decision) (*models.DecisionRecord, error)
}

// Monitor supervises one account. A Monitor is single-use: Run once.
type Monitor struct {
	account     models.AccountID
	session     connectors.Session
	decider     Decider
	sink        telemetry.Sink
	recorder    DecisionRecorder
	maintenance []Maintenance
	cfg         Config
	clock       clock.Clock
	logger      zerolog.Logger

	state             atomic.Value
	consecutiveErrors int
	lastRun           map[string]time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithConfig sets the monitor timing. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(m *Monitor) { m.cfg = cfg.withDefaults() }
}

// WithClock overrides the time source used for sleeps and schedules.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithLogger sets the parent logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithRecorder writes every decision to r.
func WithRecorder(r DecisionRecorder) Option {
	return func(m *Monitor) { m.recorder = r }
}

// WithMaintenance sets the maintenance tasks, run in the given order.
func WithMaintenance(tasks ...Maintenance) Option {
	return func(m *Monitor) { m.maintenance = tasks }
}

// New creates a monitor for account.
func New(account models.AccountID, session connectors.Session, decider Decider, sink telemetry.Sink, opts ...Option) *Monitor {
	if sink == nil {
		sink = telemetry.Discard{}
	}
	m := &Monitor{
		account: account,
		session: session,
		decider: decider,
		sink:    sink,
		cfg:     DefaultConfig(),
		clock:   clock.Real(),
		logger:  zerolog.Nop(),
		lastRun: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "monitor").Str("account", string(account)).Logger()
	m.state.Store(models.MonitorStarting)
	return m
}

// Account returns the supervised account.
func (m *Monitor) Account() models.AccountID { return m.account }

// State returns the current lifecycle phase.
func (m *Monitor) State() models.MonitorState {
	return m.state.Load().(models.MonitorState)
}

func (m *Monitor) setState(s models.MonitorState) {
	m.state.Store(s)
}

// Run supervises the account until ctx is cancelled, the session lifetime
// ends, or a fatal error occurs. It returns nil on cancellation and on
// lifetime expiry. A failed connect or a recovered panic is returned as an
// error; a failed reconnect is reported and retried on the next poll.
func (m *Monitor) Run(ctx context.Context) (err error) {
	m.setState(models.MonitorStarting)
	defer m.setState(models.MonitorEnding)

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Bool("critical", true).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("critical monitoring failure")
			m.sink.ReportError(m.account, fmt.Sprintf("Critical monitoring failure: %v", r))
			err = fmt.Errorf("monitor %s panicked: %v", m.account, r)
		}
	}()

	if err := m.session.Connect(ctx); err != nil {
		m.logger.Error().Err(err).Msg("failed to start session")
		m.sink.ReportError(m.account, fmt.Sprintf("Session start failed: %v", err))
		return fmt.Errorf("connect %s: %w", m.account, err)
	}
	defer m.close(ctx)

	m.logger.Info().Msg("monitoring session started")
	deadline := m.clock.Now().Add(m.cfg.MaxSession)

	for {
		if ctx.Err() != nil {
			m.logger.Info().Msg("monitoring cancelled")
			return nil
		}
		remaining := deadline.Sub(m.clock.Now())
		if remaining <= 0 {
			m.logger.Info().Msg("session lifetime reached")
			return nil
		}

		next, err := m.cycle(ctx)
		if err != nil {
			return err
		}
		if next > remaining {
			next = remaining
		}
		m.setState(models.MonitorPolling)
		m.logger.Debug().Dur("next", next).Msg("sleeping until next check")
		if !m.sleep(ctx, next) {
			m.logger.Info().Msg("monitoring cancelled")
			return nil
		}
	}
}

// cycle runs one poll, decide, act pass and returns the pause before the next.
func (m *Monitor) cycle(ctx context.Context) (time.Duration, error) {
	m.setState(models.MonitorPolling)

	raw, err := m.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil
		}
		return m.handleFetchFailure(ctx, err)
	}
	m.consecutiveErrors = 0

	snapshot := m.session.ExtractSnapshot(raw)
	m.sink.ReportStatus(m.account, snapshot)
	m.logger.Info().
		Int("energy", snapshot.Energy).
		Int("clean", snapshot.Cleanliness).
		Int("health", snapshot.Health).
		Int("hunger", snapshot.Satiety).
		Int("happiness", snapshot.Mood).
		Bool("sleeping", snapshot.Resting).
		Msg("current status")

	m.setState(models.MonitorDeciding)
	d := m.decide(ctx, snapshot)
	m.record(ctx, snapshot, d)

	if ctx.Err() != nil {
		return 0, nil
	}

	m.setState(models.MonitorActing)
	m.act(ctx, d)
	m.runMaintenance(ctx)

	if d.Urgency == models.UrgencyHigh {
		return m.cfg.UrgentInterval, nil
	}
	return m.cfg.IdleInterval, nil
}

func (m *Monitor) fetch(ctx context.Context) (string, error) {
	fctx, cancel := context.WithTimeout(ctx, m.cfg.StatusTimeout)
	defer cancel()

	raw, err := m.session.FetchLatest(fctx)
	if err != nil {
		return "", err
	}
	if raw == "" {
		return "", connectors.ErrNoStatus
	}
	return raw, nil
}

func (m *Monitor) handleFetchFailure(ctx context.Context, fetchErr error) (time.Duration, error) {
	m.consecutiveErrors++

	msg := "No message received from bot"
	if !errors.Is(fetchErr, connectors.ErrNoStatus) {
		msg = fmt.Sprintf("Status fetch failed: %v", fetchErr)
	}
	m.logger.Warn().Err(fetchErr).Int("consecutive_errors", m.consecutiveErrors).Msg("no status")
	m.sink.ReportError(m.account, msg)

	if m.consecutiveErrors >= m.cfg.MaxConsecutiveErrors {
		m.logger.Error().Msg("too many consecutive errors, reconnecting session")
		if err := m.reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return 0, nil
			}
			m.logger.Error().Err(err).Msg("reconnect failed, retrying on next poll")
			m.sink.ReportError(m.account, fmt.Sprintf("Reconnect failed: %v", err))
		}
		m.consecutiveErrors = 0
	}
	return m.cfg.ErrorRetryDelay, nil
}

func (m *Monitor) reconnect(ctx context.Context) error {
	if !m.sleep(ctx, m.cfg.ReconnectDelay) {
		return ctx.Err()
	}
	return m.session.Reconnect(ctx)
}

type decideResult struct {
	decision models.Decision
	panicked any
}

// decide runs the decider under DecisionTimeout. On timeout the cycle waits.
func (m *Monitor) decide(ctx context.Context, snapshot models.StatusSnapshot) models.Decision {
	dctx, cancel := context.WithTimeout(ctx, m.cfg.DecisionTimeout)
	defer cancel()

	results := make(chan decideResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- decideResult{panicked: r}
			}
		}()
		results <- decideResult{decision: m.decider.Decide(dctx, m.account, snapshot)}
	}()

	select {
	case res := <-results:
		if res.panicked != nil {
			panic(res.panicked)
		}
		m.logger.Info().
			Str("action", string(res.decision.Action)).
			Str("urgency", string(res.decision.Urgency)).
			Str("source", res.decision.Source).
			Str("rationale", res.decision.Rationale).
			Msg("decision")
		return res.decision
	case <-dctx.Done():
		if ctx.Err() == nil {
			m.logger.Warn().Msg("decision timeout, using default action")
			m.sink.ReportError(m.account, "AI decision timeout")
		}
		return models.Decision{
			Action:    models.ActionWait,
			Rationale: "decision timeout",
			Urgency:   models.UrgencyMedium,
			Source:    models.SourceTimeout,
		}
	}
}

func (m *Monitor) record(ctx context.Context, snapshot models.StatusSnapshot, d models.Decision) {
	if m.recorder == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if _, err := m.recorder.Record(rctx, m.account, snapshot, d); err != nil {
		m.logger.Warn().Err(err).Msg("failed to record decision")
	}
}

// act dispatches the decision. Actions run on a context detached from
// cancellation so an in-flight UI sequence is never cut in half.
func (m *Monitor) act(ctx context.Context, d models.Decision) {
	if d.Action == models.ActionWait {
		return
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ActionTimeout)
	defer cancel()

	ok, err := m.session.Perform(actx, d.Action)
	switch {
	case err != nil:
		m.logger.Error().Err(err).Str("action", string(d.Action)).Msg("action failed")
		m.sink.ReportError(m.account, fmt.Sprintf("Action failed: %v", err))
	case !ok:
		m.logger.Warn().Str("action", string(d.Action)).Msg("action had no effect")
		m.sink.ReportError(m.account, fmt.Sprintf("Action %s had no effect", d.Action))
	default:
		m.logger.Info().Str("action", string(d.Action)).Msg("action completed")
	}
}

// runMaintenance runs every due task in order. The last-run time moves on
// every attempt so a failing routine waits a full interval before retrying.
func (m *Monitor) runMaintenance(ctx context.Context) {
	for _, task := range m.maintenance {
		if ctx.Err() != nil {
			return
		}
		now := m.clock.Now()
		if last, ok := m.lastRun[task.Name]; ok && now.Sub(last) < task.Interval {
			continue
		}

		m.logger.Info().Str("task", task.Name).Msg("running maintenance")
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ActionTimeout)
		err := task.Run(tctx)
		cancel()
		m.lastRun[task.Name] = now

		if err != nil {
			m.logger.Error().Err(err).Str("task", task.Name).Msg("maintenance failed")
			m.sink.ReportError(m.account, fmt.Sprintf("%s automation failed: %v", task.Name, err))
		}
	}
}

// sleep waits d on the monitor clock and reports false if ctx ended first.
func (m *Monitor) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-m.clock.After(d):
		return true
	}
}

func (m *Monitor) close(ctx context.Context) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := m.session.Close(cctx); err != nil {
		m.logger.Warn().Err(err).Msg("failed to close session")
	}
	m.logger.Info().Msg("monitoring session ended")
}
