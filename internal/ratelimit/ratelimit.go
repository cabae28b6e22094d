// Package ratelimit provides per-account, per-provider sliding window admission.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/fentz26/caretaker/internal/clock"
	"github.com/fentz26/caretaker/internal/models"
)

type partitionKey struct {
	account  models.AccountID
	provider string
}

// window holds the admitted request times of one partition, oldest first.
type window struct {
	mu      sync.Mutex
	entries []time.Time
}

// Limiter computes how long a caller must wait before calling a provider.
//
// Each partition is written by a single monitor in practice; the partition
// mutex keeps the read-modify-write atomic if that ever changes.
type Limiter struct {
	rules map[string]Rule
	clock clock.Clock

	mu         sync.Mutex
	partitions map[partitionKey]*window
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// New creates a Limiter. A nil rules map means DefaultRules.
func New(rules map[string]Rule, opts ...Option) *Limiter {
	if rules == nil {
		rules = DefaultRules()
	}
	l := &Limiter{
		rules:      rules,
		clock:      clock.Real(),
		partitions: make(map[partitionKey]*window),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit records a request for (account, provider) and returns how long the
// caller must wait before issuing it. Zero means go now.
//
// The request is recorded at the time it will actually be issued, so a caller
// that honors the returned wait never exceeds the rule.
func (l *Limiter) Admit(account models.AccountID, provider string) time.Duration {
	rule, ok := l.rules[provider]
	if !ok || !rule.enabled() {
		return 0
	}

	w := l.partition(account, provider)
	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.clock.Now()

	// Prune entries that have left the window.
	keep := 0
	for keep < len(w.entries) && now.Sub(w.entries[keep]) >= rule.Window {
		keep++
	}
	w.entries = w.entries[keep:]

	var wait time.Duration
	if n := len(w.entries); n >= rule.MaxRequests {
		anchor := w.entries[n-rule.MaxRequests]
		wait = rule.Window - now.Sub(anchor)
		if wait < 0 {
			wait = 0
		}
	}

	at := now.Add(wait)
	if n := len(w.entries); n > 0 && at.Before(w.entries[n-1]) {
		at = w.entries[n-1]
	}
	w.entries = append(w.entries, at)

	return wait
}

// Wait admits a request and sleeps for the returned duration.
func (l *Limiter) Wait(ctx context.Context, account models.AccountID, provider string) error {
	d := l.Admit(account, provider)
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.clock.After(d):
		return nil
	}
}

// Len returns the number of recorded entries in a partition.
func (l *Limiter) Len(account models.AccountID, provider string) int {
	l.mu.Lock()
	w, ok := l.partitions[partitionKey{account, provider}]
	l.mu.Unlock()
	if !ok {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

func (l *Limiter) partition(account models.AccountID, provider string) *window {
	key := partitionKey{account: account, provider: provider}

	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.partitions[key]
	if !ok {
		w = &window{}
		l.partitions[key] = w
	}
	return w
}
