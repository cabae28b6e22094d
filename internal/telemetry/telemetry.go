// Package telemetry delivers per-account error reports and status snapshots
// to the configured publishers without ever blocking a monitor.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/fentz26/caretaker/internal/models"
	"github.com/rs/zerolog"
)

// Sink accepts reports fire-and-forget. Implementations must not block and
// must not surface delivery failures to the caller.
type Sink interface {
	ReportError(account models.AccountID, message string)
	ReportStatus(account models.AccountID, snapshot models.StatusSnapshot)
}

// Publisher delivers a single report to one backend.
type Publisher interface {
	Name() string
	PublishError(ctx context.Context, account models.AccountID, message string) error
	PublishStatus(ctx context.Context, account models.AccountID, snapshot models.StatusSnapshot) error
}

const (
	// DefaultBuffer is the number of reports queued before new ones are dropped.
	DefaultBuffer = 256
	// DefaultDeliveryTimeout bounds one publisher call.
	DefaultDeliveryTimeout = 10 * time.Second
)

type eventKind int

const (
	kindError eventKind = iota
	kindStatus
)

type event struct {
	kind     eventKind
	account  models.AccountID
	message  string
	snapshot models.StatusSnapshot
}

// Async queues reports and fans them out to publishers on a background worker.
type Async struct {
	publishers []Publisher
	timeout    time.Duration
	logger     zerolog.Logger

	events chan event
	done   chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped uint64
}

var _ Sink = (*Async)(nil)

// NewAsync starts a delivery worker over publishers.
func NewAsync(publishers []Publisher, buffer int, timeout time.Duration, logger zerolog.Logger) *Async {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	a := &Async{
		publishers: publishers,
		timeout:    timeout,
		logger:     logger.With().Str("component", "telemetry").Logger(),
		events:     make(chan event, buffer),
		done:       make(chan struct{}),
	}
	go a.run()
	return a
}

// ReportError queues an error report.
func (a *Async) ReportError(account models.AccountID, message string) {
	a.enqueue(event{kind: kindError, account: account, message: message})
}

// ReportStatus queues a status report.
func (a *Async) ReportStatus(account models.AccountID, snapshot models.StatusSnapshot) {
	a.enqueue(event{kind: kindStatus, account: account, snapshot: snapshot})
}

// Dropped returns how many reports were discarded because the queue was full.
func (a *Async) Dropped() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dropped
}

// Close stops accepting reports and waits for queued ones to be delivered
// or for ctx to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) enqueue(ev event) {
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return
	}
	select {
	case a.events <- ev:
		a.mu.RUnlock()
		return
	default:
	}
	a.mu.RUnlock()

	a.mu.Lock()
	a.dropped++
	a.mu.Unlock()
	a.logger.Warn().Str("account", string(ev.account)).Msg("telemetry queue full, dropping report")
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.events {
		for _, p := range a.publishers {
			a.deliver(p, ev)
		}
	}
}

func (a *Async) deliver(p Publisher, ev event) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	var err error
	switch ev.kind {
	case kindError:
		err = p.PublishError(ctx, ev.account, ev.message)
	case kindStatus:
		err = p.PublishStatus(ctx, ev.account, ev.snapshot)
	}
	if err != nil {
		a.logger.Error().Err(err).
			Str("publisher", p.Name()).
			Str("account", string(ev.account)).
			Msg("telemetry delivery failed")
	}
}

// Discard is a Sink that drops everything.
type Discard struct{}

func (Discard) ReportError(models.AccountID, string) {}
func (Discard) ReportStatus(models.AccountID, models.StatusSnapshot) {}
