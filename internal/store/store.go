// Package store provides SQLite-backed persistence for caretaker's
// observability data: status snapshots, decision records and error logs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/caretaker/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store provides access to the caretaker SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL lets the control plane read while monitors write.
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		energy INTEGER NOT NULL,
		cleanliness INTEGER NOT NULL,
		health INTEGER NOT NULL,
		satiety INTEGER NOT NULL,
		mood INTEGER NOT NULL,
		resting INTEGER NOT NULL,
		location TEXT,
		captured_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		action TEXT NOT NULL,
		rationale TEXT NOT NULL,
		urgency TEXT NOT NULL,
		source TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS errors (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_account ON snapshots(account_id, captured_at);
	CREATE INDEX IF NOT EXISTS idx_decisions_account ON decisions(account_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_errors_account ON errors(account_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Snapshot Operations ---

// SaveSnapshot stores a status snapshot for an account.
func (s *Store) SaveSnapshot(ctx context.Context, account models.AccountID, snap models.StatusSnapshot) (*models.SnapshotRecord, error) {
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now().UTC()
	}
	rec := &models.SnapshotRecord{ID: uuid.New().String(), AccountID: account, Snapshot: snap}

	var location sql.NullString
	if snap.Location != nil {
		location = sql.NullString{String: string(*snap.Location), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, account_id, energy, cleanliness, health, satiety, mood, resting, location, captured_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(account), snap.Energy, snap.Cleanliness, snap.Health, snap.Satiety, snap.Mood, snap.Resting, location, snap.CapturedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	return rec, nil
}

// LatestSnapshot returns the newest snapshot for an account, or nil if none.
func (s *Store) LatestSnapshot(ctx context.Context, account models.AccountID) (*models.SnapshotRecord, error) {
	rec := &models.SnapshotRecord{}
	var location sql.NullString
	var accountID string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, energy, cleanliness, health, satiety, mood, resting, location, captured_at FROM snapshots WHERE account_id = ? ORDER BY captured_at DESC, rowid DESC LIMIT 1`,
		string(account),
	).Scan(&rec.ID, &accountID, &rec.Snapshot.Energy, &rec.Snapshot.Cleanliness, &rec.Snapshot.Health,
		&rec.Snapshot.Satiety, &rec.Snapshot.Mood, &rec.Snapshot.Resting, &location, &rec.Snapshot.CapturedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	rec.AccountID = models.AccountID(accountID)
	if location.Valid {
		loc := models.Location(location.String)
		rec.Snapshot.Location = &loc
	}
	return rec, nil
}

// --- Decision Operations ---

// WriteDecision stores a decision record.
func (s *Store) WriteDecision(ctx context.Context, account models.AccountID, d models.Decision, inputsHash string) (*models.DecisionRecord, error) {
	rec := &models.DecisionRecord{
		ID:         uuid.New().String(),
		AccountID:  account,
		Action:     d.Action,
		Rationale:  d.Rationale,
		Urgency:    d.Urgency,
		Source:     d.Source,
		InputsHash: inputsHash,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, account_id, action, rationale, urgency, source, inputs_hash, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.AccountID), string(rec.Action), rec.Rationale, string(rec.Urgency), rec.Source, rec.InputsHash, rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert decision: %w", err)
	}
	return rec, nil
}

// ListDecisions returns the newest decisions for an account, newest first.
func (s *Store) ListDecisions(ctx context.Context, account models.AccountID, limit int) ([]models.DecisionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, action, rationale, urgency, source, inputs_hash, created_at FROM decisions WHERE account_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		string(account), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var records []models.DecisionRecord
	for rows.Next() {
		var rec models.DecisionRecord
		var accountID, action, urgency string
		if err := rows.Scan(&rec.ID, &accountID, &action, &rec.Rationale, &urgency, &rec.Source, &rec.InputsHash, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.AccountID = models.AccountID(accountID)
		rec.Action = models.Action(action)
		rec.Urgency = models.Urgency(urgency)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// --- Error Operations ---

// WriteError stores an error reported for an account.
func (s *Store) WriteError(ctx context.Context, account models.AccountID, message string) (*models.ErrorRecord, error) {
	rec := &models.ErrorRecord{
		ID:        uuid.New().String(),
		AccountID: account,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO errors (id, account_id, message, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, string(rec.AccountID), rec.Message, rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert error: %w", err)
	}
	return rec, nil
}

// ListErrors returns the newest errors for an account, newest first.
func (s *Store) ListErrors(ctx context.Context, account models.AccountID, limit int) ([]models.ErrorRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, message, created_at FROM errors WHERE account_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		string(account), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query errors: %w", err)
	}
	defer rows.Close()

	var records []models.ErrorRecord
	for rows.Next() {
		var rec models.ErrorRecord
		var accountID string
		if err := rows.Scan(&rec.ID, &accountID, &rec.Message, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		rec.AccountID = models.AccountID(accountID)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PruneBefore deletes records older than cutoff and returns how many went.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, q := range []string{
		`DELETE FROM snapshots WHERE captured_at < ?`,
		`DELETE FROM decisions WHERE created_at < ?`,
		`DELETE FROM errors WHERE created_at < ?`,
	} {
		res, err := s.db.ExecContext(ctx, q, cutoff.UTC())
		if err != nil {
			return total, fmt.Errorf("prune: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
