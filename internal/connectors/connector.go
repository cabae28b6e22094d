// Package connectors defines the external capabilities a monitor drives.
package connectors

import (
	"context"
	"errors"

	"github.com/fentz26/caretaker/internal/models"
)

// ErrNoStatus is returned when the channel has no status message to read.
var ErrNoStatus = errors.New("no status message")

// Channel is the authenticated session an account is observed through.
type Channel interface {
	// Connect opens the session.
	Connect(ctx context.Context) error

	// Reconnect tears the session down and opens it again.
	Reconnect(ctx context.Context) error

	// Close releases the session.
	Close(ctx context.Context) error
}

// StatusSource reads the latest status text for an account.
type StatusSource interface {
	// FetchLatest returns the most recent status message. An empty string
	// or ErrNoStatus means no status was available.
	FetchLatest(ctx context.Context) (string, error)

	// ExtractSnapshot parses raw status text.
	ExtractSnapshot(raw string) models.StatusSnapshot
}

// ActionExecutor performs a care action. It reports false when the action
// ran but did not take effect.
type ActionExecutor interface {
	Perform(ctx context.Context, action models.Action) (bool, error)
}

// RoutineRunner runs a named maintenance routine such as a daily game.
type RoutineRunner interface {
	RunRoutine(ctx context.Context, name string) (bool, error)
}

// Session bundles every capability a monitor needs for one account.
type Session interface {
	Channel
	StatusSource
	ActionExecutor
	RoutineRunner
}
