package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tx-coordinator/internal/models"

	"github.com/go-redis/redis/v8"
)

const (
	productKeyPrefix = "product:"
	statsKey         = "dashboard:stats"
	reviewQueueKey   = "reconciliation:pending"
)

// Client wraps Redis for the coordinator's caching and operator-queue needs.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies connectivity.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetProduct returns a cached product, or (nil, nil) on a cache miss.
func (c *Client) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf("%s%d", productKeyPrefix, productID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, fmt.Errorf("corrupt product cache entry: %w", err)
	}
	return &product, nil
}

// SetProduct caches a product with a TTL.
func (c *Client) SetProduct(ctx context.Context, product *models.Product, ttl time.Duration) error {
	data, err := json.Marshal(product)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf("%s%d", productKeyPrefix, product.ID), data, ttl).Err()
}

// GetStats returns cached dashboard stats, or (nil, nil) on a cache miss.
func (c *Client) GetStats(ctx context.Context) (*models.DashboardStats, error) {
	data, err := c.rdb.Get(ctx, statsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var stats models.DashboardStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("corrupt stats cache entry: %w", err)
	}
	return &stats, nil
}

// SetStats caches dashboard stats with a TTL.
func (c *Client) SetStats(ctx context.Context, stats *models.DashboardStats, ttl time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, statsKey, data, ttl).Err()
}

// PushReview queues a transaction for manual reconciliation. Operators drain
// this list; entries are "<transaction_id>|<reason>".
func (c *Client) PushReview(ctx context.Context, transactionID, reason string) error {
	return c.rdb.RPush(ctx, reviewQueueKey, fmt.Sprintf("%s|%s", transactionID, reason)).Err()
}

// PendingReviews returns up to limit queued reconciliation entries without
// removing them.
func (c *Client) PendingReviews(ctx context.Context, limit int64) ([]string, error) {
	return c.rdb.LRange(ctx, reviewQueueKey, 0, limit-1).Result()
}
