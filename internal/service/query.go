package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tx-coordinator/internal/models"
	"tx-coordinator/internal/redisclient"
	"tx-coordinator/internal/util"

	"go.uber.org/zap"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
	statsScanLimit   = 1000
	topCustomerCount = 5
	recentCount      = 10
)

// QueryService is the read-only surface for dashboards: paginated order and
// payment listings, transaction status, and aggregate stats derived purely
// from ledger contents.
type QueryService struct {
	orders   OrderReader
	payments PaymentReader
	sagaLog  SagaLog
	cache    *redisclient.Client
	statsTTL time.Duration
	logger   *zap.Logger
}

// NewQueryService creates a query service. cache may be nil to disable stats
// caching.
func NewQueryService(orders OrderReader, payments PaymentReader, sagaLog SagaLog, cache *redisclient.Client, statsTTL time.Duration) *QueryService {
	return &QueryService{
		orders:   orders,
		payments: payments,
		sagaLog:  sagaLog,
		cache:    cache,
		statsTTL: statsTTL,
		logger:   util.GetLogger(),
	}
}

// ListOrders returns orders newest first. Limit is clamped to a sane page.
func (q *QueryService) ListOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	limit, offset = clampPage(limit, offset)
	return q.orders.List(ctx, limit, offset)
}

// ListPayments returns payments newest first. Limit is clamped to a sane page.
func (q *QueryService) ListPayments(ctx context.Context, limit, offset int) ([]models.Payment, error) {
	limit, offset = clampPage(limit, offset)
	return q.payments.List(ctx, limit, offset)
}

// GetTransaction returns the saga record with its full step log.
func (q *QueryService) GetTransaction(ctx context.Context, transactionID string) (*models.TransactionRecord, error) {
	return q.sagaLog.Get(ctx, transactionID)
}

// Stats computes dashboard aggregates by scanning ledger contents. Served
// from the Redis cache when fresh.
func (q *QueryService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	ctx, span := util.StartSpan(ctx, "QueryService.Stats")
	defer span.End()

	if q.cache != nil {
		cached, err := q.cache.GetStats(ctx)
		if err != nil {
			q.logger.Warn("Stats cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	orders, err := q.orders.ListDetailed(ctx, statsScanLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to scan orders: %w", err)
	}
	payments, err := q.payments.List(ctx, statsScanLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to scan payments: %w", err)
	}

	stats := computeStats(orders, payments)

	if q.cache != nil {
		if err := q.cache.SetStats(ctx, stats, q.statsTTL); err != nil {
			q.logger.Warn("Failed to cache stats", zap.Error(err))
		}
	}
	return stats, nil
}

// computeStats aggregates the scanned records. Revenue and top customers
// count confirmed orders only.
func computeStats(orders []models.OrderWithCustomer, payments []models.Payment) *models.DashboardStats {
	var (
		revenue   float64
		confirmed int
	)
	byCustomer := make(map[int64]*models.TopCustomer)

	for _, o := range orders {
		tc, ok := byCustomer[o.CustomerID]
		if !ok {
			name := o.CustomerName
			if name == "" {
				name = fmt.Sprintf("customer %d", o.CustomerID)
			}
			tc = &models.TopCustomer{CustomerID: o.CustomerID, CustomerName: name}
			byCustomer[o.CustomerID] = tc
		}
		tc.TotalOrders++

		if o.Status == models.OrderStatusConfirmed {
			confirmed++
			revenue += o.Amount
			tc.TotalSpent += o.Amount
		}
	}

	top := make([]models.TopCustomer, 0, len(byCustomer))
	for _, tc := range byCustomer {
		top = append(top, *tc)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].TotalSpent != top[j].TotalSpent {
			return top[i].TotalSpent > top[j].TotalSpent
		}
		return top[i].CustomerID < top[j].CustomerID
	})
	if len(top) > topCustomerCount {
		top = top[:topCustomerCount]
	}

	recent := orders
	if len(recent) > recentCount {
		recent = recent[:recentCount]
	}

	var successRate, avgAmount float64
	if len(orders) > 0 {
		successRate = float64(confirmed) / float64(len(orders)) * 100
	}
	if confirmed > 0 {
		avgAmount = revenue / float64(confirmed)
	}

	return &models.DashboardStats{
		TotalOrders:        len(orders),
		TotalPayments:      len(payments),
		TotalRevenue:       revenue,
		SuccessRate:        successRate,
		AvgOrderAmount:     avgAmount,
		TopCustomers:       top,
		RecentTransactions: recent,
	}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
