package service

import (
	"context"

	"tx-coordinator/internal/models"
)

// OrderLedger is the coordinator's capability over the orders store. Create
// is idempotent-safe when retried with the same transaction_id: the store
// enforces a unique constraint on it.
type OrderLedger interface {
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status string) (*models.Order, error)
	Get(ctx context.Context, orderID int64) (*models.Order, error)
}

// PaymentLedger is the coordinator's capability over the payments store,
// independently owned from the orders side.
type PaymentLedger interface {
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	UpdateStatus(ctx context.Context, paymentID int64, status string) (*models.Payment, error)
	SetFraudScore(ctx context.Context, paymentID int64, score float64) error
	Get(ctx context.Context, paymentID int64) (*models.Payment, error)
}

// ProductCatalog resolves products for validation. Read only.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID int64) (*models.Product, error)
}

// RiskScorer produces a fraud score in [0, 1] for a pending transaction. The
// coordinator treats it as an opaque, potentially slow, potentially failing
// dependency.
type RiskScorer interface {
	Score(ctx context.Context, tc models.TransactionContext) (float64, error)
}

// SagaLog is the durable, append-only record of everything a saga run has
// done so far.
type SagaLog interface {
	Begin(ctx context.Context, transactionID string) error
	SetPhase(ctx context.Context, transactionID, phase string) error
	AppendStep(ctx context.Context, transactionID, step string, success bool, detail string) error
	MarkForReview(ctx context.Context, transactionID string) error
	Get(ctx context.Context, transactionID string) (*models.TransactionRecord, error)
}

// TransitionPublisher emits one event per saga transition for auditing and
// the operator path. Publishing is best effort; a broker outage never fails
// the saga. Every CANCELLED run emits TransactionCompensated, even a
// rejection that had nothing to undo; FAILED runs emit TransactionFailed.
type TransitionPublisher interface {
	PublishTransactionStarted(ctx context.Context, event *models.TransactionStartedEvent) error
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishPaymentCreated(ctx context.Context, event *models.PaymentCreatedEvent) error
	PublishTransactionConfirmed(ctx context.Context, event *models.TransactionConfirmedEvent) error
	PublishTransactionCompensated(ctx context.Context, event *models.TransactionCompensatedEvent) error
	PublishTransactionFailed(ctx context.Context, event *models.TransactionFailedEvent) error
}

// OrderReader is the read-only order surface for dashboards.
type OrderReader interface {
	List(ctx context.Context, limit, offset int) ([]models.Order, error)
	ListDetailed(ctx context.Context, limit, offset int) ([]models.OrderWithCustomer, error)
}

// PaymentReader is the read-only payment surface for dashboards.
type PaymentReader interface {
	List(ctx context.Context, limit, offset int) ([]models.Payment, error)
}
