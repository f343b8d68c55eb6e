package service

import (
	"context"
	"fmt"
	"time"

	"tx-coordinator/internal/models"
	"tx-coordinator/internal/redisclient"
	"tx-coordinator/internal/util"

	"go.uber.org/zap"
)

// InventoryValidator checks product existence and stock. It is a pure read
// with no side effects, so callers may retry it freely. Stock is the
// catalog's value observed at validation time; no reservation is held.
type InventoryValidator struct {
	catalog  ProductCatalog
	cache    *redisclient.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewInventoryValidator creates a validator. cache may be nil to disable the
// read-through product cache.
func NewInventoryValidator(catalog ProductCatalog, cache *redisclient.Client, cacheTTL time.Duration) *InventoryValidator {
	return &InventoryValidator{
		catalog:  catalog,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// Validate resolves the product and checks stock against the requested
// quantity. Returns ErrProductNotFound or ErrInsufficientStock wrapped with
// detail.
func (v *InventoryValidator) Validate(ctx context.Context, productID int64, quantity int) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "InventoryValidator.Validate")
	defer span.End()

	product, err := v.lookup(ctx, productID)
	if err != nil {
		return nil, err
	}

	if product.StockQuantity < quantity {
		return nil, fmt.Errorf("product %d has %d in stock, requested %d: %w",
			productID, product.StockQuantity, quantity, models.ErrInsufficientStock)
	}

	return product, nil
}

// lookup reads through the cache to the catalog. The cache TTL is short
// because cached stock goes stale; the stock check is best effort either way.
func (v *InventoryValidator) lookup(ctx context.Context, productID int64) (*models.Product, error) {
	if v.cache != nil {
		product, err := v.cache.GetProduct(ctx, productID)
		if err != nil {
			v.logger.Warn("Product cache read failed, falling back to catalog",
				zap.Int64("product_id", productID),
				zap.Error(err))
		} else if product != nil {
			return product, nil
		}
	}

	product, err := v.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	if v.cache != nil {
		if err := v.cache.SetProduct(ctx, product, v.cacheTTL); err != nil {
			v.logger.Warn("Failed to cache product",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}

	return product, nil
}
