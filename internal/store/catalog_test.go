package store

import (
	"context"
	"testing"
	"time"

	"tx-coordinator/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogStoreGetProduct(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewCatalogStore(db)

	mock.ExpectQuery("FROM products WHERE id").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "price", "stock_quantity", "category", "created_at",
		}).AddRow(int64(1), "Laptop", "", 899.99, 10, "electronics", time.Now()))

	product, err := s.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Laptop", product.Name)
	assert.InDelta(t, 899.99, product.Price, 1e-9)
	assert.Equal(t, 10, product.StockQuantity)
}

func TestCatalogStoreGetProductNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewCatalogStore(db)

	mock.ExpectQuery("FROM products WHERE id").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetProduct(context.Background(), 42)
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestCatalogStoreGetCustomer(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewCatalogStore(db)

	mock.ExpectQuery("FROM customers WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "email", "phone", "address", "created_at",
		}).AddRow(int64(7), "Maria", "maria@example.com", "", "", time.Now()))

	customer, err := s.GetCustomer(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Maria", customer.Name)
}
