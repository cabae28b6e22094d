package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fentz26/caretaker/internal/models"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// DefaultSubjectPrefix is the subject root reports are published under.
const DefaultSubjectPrefix = "caretaker"

// Event is the envelope published on NATS.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	AccountID models.AccountID       `json:"account_id"`
	Time      time.Time              `json:"time"`
	Error     string                 `json:"error,omitempty"`
	Snapshot  *models.StatusSnapshot `json:"snapshot,omitempty"`
}

// Event types.
const (
	EventError  = "account.error"
	EventStatus = "account.status"
)

// NATSPublisher publishes reports as JSON events on core NATS subjects
// <prefix>.errors.<account> and <prefix>.status.<account>.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{nc: nc, prefix: prefix}
}

// Connect dials NATS with reconnect logging.
func Connect(url string, logger zerolog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("caretaker"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Name returns the publisher identifier.
func (p *NATSPublisher) Name() string { return "nats" }

// Subject returns the subject for an event kind and account.
func (p *NATSPublisher) Subject(kind string, account models.AccountID) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, kind, account)
}

// PublishError publishes an account.error event.
func (p *NATSPublisher) PublishError(ctx context.Context, account models.AccountID, message string) error {
	return p.publish(ctx, p.Subject("errors", account), Event{
		Type: EventError, AccountID: account, Error: message,
	})
}

// PublishStatus publishes an account.status event.
func (p *NATSPublisher) PublishStatus(ctx context.Context, account models.AccountID, snapshot models.StatusSnapshot) error {
	return p.publish(ctx, p.Subject("status", account), Event{
		Type: EventStatus, AccountID: account, Snapshot: &snapshot,
	})
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev.ID = uuid.New().String()
	ev.Time = time.Now().UTC()

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", ev.Type, err)
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
	}
	return nil
}
