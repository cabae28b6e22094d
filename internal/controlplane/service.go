// Package controlplane provides the read-only HTTP API and service layer for caretaker.
package controlplane

import (
	"context"
	"strings"

	"github.com/fentz26/caretaker/internal/fleet"
	"github.com/fentz26/caretaker/internal/models"
	"github.com/fentz26/caretaker/internal/store"
)

const (
	defaultDecisionLimit = 20
	maxDecisionLimit     = 200
	errorLimit           = 5
)

// FleetView is the read side of the orchestrator.
type FleetView interface {
	Monitors() []models.MonitorInfo
	GetStats() fleet.Stats
}

// Service provides the control plane queries.
type Service struct {
	store *store.Store
	fleet FleetView
}

// NewService creates a new control plane service.
func NewService(s *store.Store, f FleetView) *Service {
	return &Service{store: s, fleet: f}
}

// FleetResponse is the body of GET /fleet.
type FleetResponse struct {
	Stats    fleet.Stats          `json:"stats"`
	Monitors []models.MonitorInfo `json:"monitors"`
}

// Fleet returns the running monitors and orchestrator stats.
func (s *Service) Fleet() FleetResponse {
	monitors := s.fleet.Monitors()
	if monitors == nil {
		monitors = []models.MonitorInfo{}
	}
	return FleetResponse{Stats: s.fleet.GetStats(), Monitors: monitors}
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// LatestSnapshot returns the newest stored snapshot for an account.
func (s *Service) LatestSnapshot(ctx context.Context, account string) (*models.SnapshotRecord, error) {
	id, err := parseAccount(account)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.LatestSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Decisions returns up to limit recent decisions, newest first. A limit
// outside 1..200 falls back to 20.
func (s *Service) Decisions(ctx context.Context, account string, limit int) ([]models.DecisionRecord, error) {
	id, err := parseAccount(account)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxDecisionLimit {
		limit = defaultDecisionLimit
	}
	return s.store.ListDecisions(ctx, id, limit)
}

// Errors returns the five most recent reported errors, newest first.
func (s *Service) Errors(ctx context.Context, account string) ([]models.ErrorRecord, error) {
	id, err := parseAccount(account)
	if err != nil {
		return nil, err
	}
	return s.store.ListErrors(ctx, id, errorLimit)
}

func parseAccount(account string) (models.AccountID, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return "", ErrInvalidAccount
	}
	return models.AccountID(account), nil
}
