package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tx-coordinator/internal/models"

	"github.com/jmoiron/sqlx"
)

// OrderStore owns the orders table in the orders database. Creates are
// guarded by a unique index on transaction_id so a retried create for the
// same saga run can never produce a duplicate order.
type OrderStore struct {
	db *sqlx.DB
}

// NewOrderStore creates an order store on the orders database handle.
func NewOrderStore(db *sqlx.DB) *OrderStore {
	return &OrderStore{db: db}
}

// InitSchema creates the orders table if it does not exist.
func (s *OrderStore) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			transaction_id VARCHAR(255) UNIQUE NOT NULL,
			customer_id BIGINT NOT NULL,
			product_id BIGINT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			amount DECIMAL(10,2) NOT NULL CHECK (amount > 0),
			status VARCHAR(50) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

// Create inserts a pending order and returns it with its assigned id.
func (s *OrderStore) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	query := `
		INSERT INTO orders (transaction_id, customer_id, product_id, quantity, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	created := *order
	err := s.db.QueryRowxContext(ctx, query,
		order.TransactionID, order.CustomerID, order.ProductID,
		order.Quantity, order.Amount, order.Status,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return &created, nil
}

// UpdateStatus moves an order to a new status and returns the updated row.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID int64, status string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, transaction_id, customer_id, product_id, quantity, amount, status, created_at, updated_at`,
		status, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order not found: %d", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	return &order, nil
}

// Get retrieves an order by ID.
func (s *OrderStore) Get(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		SELECT id, transaction_id, customer_id, product_id, quantity, amount, status, created_at, updated_at
		FROM orders WHERE id = $1`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order not found: %d", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByTransactionID retrieves the order correlated with a saga run.
func (s *OrderStore) GetByTransactionID(ctx context.Context, transactionID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `
		SELECT id, transaction_id, customer_id, product_id, quantity, amount, status, created_at, updated_at
		FROM orders WHERE transaction_id = $1`, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order not found for transaction: %s", transactionID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// List retrieves orders newest first with limit/offset pagination.
func (s *OrderStore) List(ctx context.Context, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, `
		SELECT id, transaction_id, customer_id, product_id, quantity, amount, status, created_at, updated_at
		FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	return orders, err
}

// ListDetailed retrieves orders joined with customer names for the dashboard.
func (s *OrderStore) ListDetailed(ctx context.Context, limit, offset int) ([]models.OrderWithCustomer, error) {
	var orders []models.OrderWithCustomer
	err := s.db.SelectContext(ctx, &orders, `
		SELECT o.id, o.transaction_id, o.customer_id, o.product_id, o.quantity, o.amount, o.status,
		       o.created_at, o.updated_at, COALESCE(c.name, '') AS customer_name
		FROM orders o
		LEFT JOIN customers c ON c.id = o.customer_id
		ORDER BY o.created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	return orders, err
}
