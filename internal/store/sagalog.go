package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tx-coordinator/internal/models"

	"github.com/jmoiron/sqlx"
)

// SagaLogStore persists transaction records and their append-only step log.
// The log is the durable source of truth for what a saga has done so far; a
// recovery process can replay it to finish or roll back a run that crashed
// mid-flight.
type SagaLogStore struct {
	db *sqlx.DB
}

// NewSagaLogStore creates a saga log store on the orders database handle.
func NewSagaLogStore(db *sqlx.DB) *SagaLogStore {
	return &SagaLogStore{db: db}
}

// InitSchema creates the saga log tables if they do not exist.
func (s *SagaLogStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transaction_records (
			transaction_id VARCHAR(255) PRIMARY KEY,
			phase VARCHAR(50) NOT NULL,
			needs_review BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS transaction_steps (
			id BIGSERIAL PRIMARY KEY,
			transaction_id VARCHAR(255) NOT NULL REFERENCES transaction_records(transaction_id) ON DELETE CASCADE,
			step VARCHAR(100) NOT NULL,
			success BOOLEAN NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Begin inserts a new record in the STARTED phase. Transaction ids are never
// reused, so a conflict here is a hard error.
func (s *SagaLogStore) Begin(ctx context.Context, transactionID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transaction_records (transaction_id, phase) VALUES ($1, $2)`,
		transactionID, models.PhaseStarted)
	if err != nil {
		return fmt.Errorf("failed to begin transaction record: %w", err)
	}
	return nil
}

// SetPhase advances the record's phase. Records already in a terminal phase
// are left untouched.
func (s *SagaLogStore) SetPhase(ctx context.Context, transactionID, phase string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE transaction_records SET phase = $2, updated_at = NOW()
		WHERE transaction_id = $1 AND phase NOT IN ($3, $4, $5)`,
		transactionID, phase,
		models.PhaseConfirmed, models.PhaseCancelled, models.PhaseFailed)
	if err != nil {
		return fmt.Errorf("failed to set phase: %w", err)
	}
	return nil
}

// AppendStep appends one step outcome to the log.
func (s *SagaLogStore) AppendStep(ctx context.Context, transactionID, step string, success bool, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transaction_steps (transaction_id, step, success, detail)
		VALUES ($1, $2, $3, $4)`,
		transactionID, step, success, detail)
	if err != nil {
		return fmt.Errorf("failed to append step: %w", err)
	}
	return nil
}

// MarkForReview flags a record for manual reconciliation after a failed
// compensation. The flag survives the terminal FAILED phase.
func (s *SagaLogStore) MarkForReview(ctx context.Context, transactionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE transaction_records SET needs_review = TRUE, updated_at = NOW()
		WHERE transaction_id = $1`,
		transactionID)
	return err
}

// Get retrieves a record with its ordered step log.
func (s *SagaLogStore) Get(ctx context.Context, transactionID string) (*models.TransactionRecord, error) {
	var record models.TransactionRecord
	err := s.db.GetContext(ctx, &record, `
		SELECT transaction_id, phase, needs_review, created_at, updated_at
		FROM transaction_records WHERE transaction_id = $1`, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction not found: %s", transactionID)
	}
	if err != nil {
		return nil, err
	}

	err = s.db.SelectContext(ctx, &record.Steps, `
		SELECT id, transaction_id, step, success, detail, created_at
		FROM transaction_steps WHERE transaction_id = $1 ORDER BY id`, transactionID)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
