package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tx-coordinator/internal/models"

	"github.com/jmoiron/sqlx"
)

// PaymentStore owns the payments table in the payments database, which is a
// separate Postgres instance from the orders side. The unique index on
// transaction_id enforces exactly one payment per saga run.
type PaymentStore struct {
	db *sqlx.DB
}

// NewPaymentStore creates a payment store on the payments database handle.
func NewPaymentStore(db *sqlx.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

// InitSchema creates the payments table if it does not exist.
func (s *PaymentStore) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS payments (
			id BIGSERIAL PRIMARY KEY,
			transaction_id VARCHAR(255) UNIQUE NOT NULL,
			customer_id BIGINT NOT NULL,
			amount DECIMAL(10,2) NOT NULL CHECK (amount > 0),
			currency VARCHAR(3) NOT NULL DEFAULT 'PEN',
			payment_method VARCHAR(50) NOT NULL DEFAULT 'credit_card',
			status VARCHAR(50) NOT NULL DEFAULT 'pending',
			fraud_score DECIMAL(3,2) NOT NULL DEFAULT 0.0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

// Create inserts a pending payment and returns it with its assigned id.
func (s *PaymentStore) Create(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	query := `
		INSERT INTO payments (transaction_id, customer_id, amount, currency, payment_method, status, fraud_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	created := *payment
	err := s.db.QueryRowxContext(ctx, query,
		payment.TransactionID, payment.CustomerID, payment.Amount,
		payment.Currency, payment.PaymentMethod, payment.Status, payment.FraudScore,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return &created, nil
}

// UpdateStatus moves a payment to a new status and returns the updated row.
func (s *PaymentStore) UpdateStatus(ctx context.Context, paymentID int64, status string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, `
		UPDATE payments SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, transaction_id, customer_id, amount, currency, payment_method, status, fraud_score, created_at, updated_at`,
		status, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment not found: %d", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}
	return &payment, nil
}

// SetFraudScore records the score the risk scorer produced for the payment.
func (s *PaymentStore) SetFraudScore(ctx context.Context, paymentID int64, score float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE payments SET fraud_score = $1, updated_at = NOW() WHERE id = $2`,
		score, paymentID)
	return err
}

// Get retrieves a payment by ID.
func (s *PaymentStore) Get(ctx context.Context, paymentID int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, `
		SELECT id, transaction_id, customer_id, amount, currency, payment_method, status, fraud_score, created_at, updated_at
		FROM payments WHERE id = $1`, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment not found: %d", paymentID)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByTransactionID retrieves the payment correlated with a saga run.
func (s *PaymentStore) GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, `
		SELECT id, transaction_id, customer_id, amount, currency, payment_method, status, fraud_score, created_at, updated_at
		FROM payments WHERE transaction_id = $1`, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment not found for transaction: %s", transactionID)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// List retrieves payments newest first with limit/offset pagination.
func (s *PaymentStore) List(ctx context.Context, limit, offset int) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments, `
		SELECT id, transaction_id, customer_id, amount, currency, payment_method, status, fraud_score, created_at, updated_at
		FROM payments ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	return payments, err
}
