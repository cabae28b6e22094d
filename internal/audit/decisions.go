// Package audit writes decision records so every action taken for an account
// can be traced back to the snapshot that produced it.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/fentz26/caretaker/internal/models"
)

// DecisionStore persists decision records.
type DecisionStore interface {
	WriteDecision(ctx context.Context, account models.AccountID, d models.Decision, inputsHash string) (*models.DecisionRecord, error)
}

// DecisionWriter records decisions for the audit trail.
type DecisionWriter struct {
	store DecisionStore
}

// NewDecisionWriter creates a new decision writer.
func NewDecisionWriter(s DecisionStore) *DecisionWriter {
	return &DecisionWriter{store: s}
}

// Record writes a decision together with a hash of the snapshot it was made from.
func (w *DecisionWriter) Record(ctx context.Context, account models.AccountID, snapshot models.StatusSnapshot, d models.Decision) (*models.DecisionRecord, error) {
	return w.store.WriteDecision(ctx, account, d, hashInputs(snapshot))
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
