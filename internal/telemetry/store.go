package telemetry

import (
	"context"

	"github.com/fentz26/caretaker/internal/models"
)

// Recorder is the subset of the store the local publisher writes to.
type Recorder interface {
	WriteError(ctx context.Context, account models.AccountID, message string) (*models.ErrorRecord, error)
	SaveSnapshot(ctx context.Context, account models.AccountID, snap models.StatusSnapshot) (*models.SnapshotRecord, error)
}

// StorePublisher keeps reports in the local database for the control plane.
type StorePublisher struct {
	rec Recorder
}

// NewStorePublisher creates a publisher over rec.
func NewStorePublisher(rec Recorder) *StorePublisher {
	return &StorePublisher{rec: rec}
}

// Name returns the publisher identifier.
func (p *StorePublisher) Name() string { return "store" }

// PublishError stores an error record.
func (p *StorePublisher) PublishError(ctx context.Context, account models.AccountID, message string) error {
	_, err := p.rec.WriteError(ctx, account, message)
	return err
}

// PublishStatus stores a snapshot.
func (p *StorePublisher) PublishStatus(ctx context.Context, account models.AccountID, snapshot models.StatusSnapshot) error {
	_, err := p.rec.SaveSnapshot(ctx, account, snapshot)
	return err
}
