package models

import "time"

// Event types published for every saga transition.
const (
	EventTypeTransactionStarted     = "TRANSACTION_STARTED"
	EventTypeOrderCreated           = "ORDER_CREATED"
	EventTypePaymentCreated         = "PAYMENT_CREATED"
	EventTypeTransactionConfirmed   = "TRANSACTION_CONFIRMED"
	EventTypeTransactionCompensated = "TRANSACTION_COMPENSATED"
	EventTypeTransactionFailed      = "TRANSACTION_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// TransactionStartedEvent published when a saga run begins
type TransactionStartedEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	CustomerID    int64  `json:"customer_id"`
	ProductID     int64  `json:"product_id"`
	Quantity      int    `json:"quantity"`
}

// OrderCreatedEvent published when the pending order lands in the orders store
type OrderCreatedEvent struct {
	BaseEvent
	TransactionID string  `json:"transaction_id"`
	OrderID       int64   `json:"order_id"`
	CustomerID    int64   `json:"customer_id"`
	Amount        float64 `json:"amount"`
}

// PaymentCreatedEvent published when the pending payment lands in the payments store
type PaymentCreatedEvent struct {
	BaseEvent
	TransactionID string  `json:"transaction_id"`
	PaymentID     int64   `json:"payment_id"`
	CustomerID    int64   `json:"customer_id"`
	Amount        float64 `json:"amount"`
}

// TransactionConfirmedEvent published when both sides reach their confirmed statuses
type TransactionConfirmedEvent struct {
	BaseEvent
	TransactionID string  `json:"transaction_id"`
	OrderID       int64   `json:"order_id"`
	PaymentID     int64   `json:"payment_id"`
	Amount        float64 `json:"amount"`
	FraudScore    float64 `json:"fraud_score"`
}

// TransactionCompensatedEvent published whenever a run ends CANCELLED. That
// covers completed compensations and rejections that wrote nothing, so
// consumers always see exactly one terminal event per run.
type TransactionCompensatedEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

// TransactionFailedEvent published when compensation itself could not
// complete. The reconciliation worker picks these up for the operator path.
type TransactionFailedEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}
