package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tx-coordinator/internal/models"

	"github.com/jmoiron/sqlx"
)

// CatalogStore reads products and customers from the orders database. Both
// are owned by external collaborators; the coordinator never writes them.
type CatalogStore struct {
	db *sqlx.DB
}

// NewCatalogStore creates a catalog store on the orders database handle.
func NewCatalogStore(db *sqlx.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// InitSchema creates the customers and products tables if they do not exist.
// The collaborators that own these tables normally create them; this keeps a
// fresh database usable.
func (s *CatalogStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			phone VARCHAR(50) NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price DECIMAL(10,2) NOT NULL CHECK (price > 0),
			stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
			category VARCHAR(100) NOT NULL DEFAULT '',
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

// GetProduct retrieves a product by ID.
func (s *CatalogStore) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, `
		SELECT id, name, description, price, stock_quantity, category, created_at
		FROM products WHERE id = $1`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", productID, models.ErrProductNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetCustomer retrieves a customer by ID.
func (s *CatalogStore) GetCustomer(ctx context.Context, customerID int64) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer, `
		SELECT id, name, email, phone, address, created_at
		FROM customers WHERE id = $1`, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer not found: %d", customerID)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}
