package models

import (
	"errors"
	"time"
)

// Customer is created and owned by an external collaborator. The coordinator
// only ever reads it (existence for orders, names for stats).
type Customer struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	Address   string    `db:"address" json:"address,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Product lives in the orders-side catalog. Stock is validated, never
// decremented, by the coordinator.
type Product struct {
	ID            int64     `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Description   string    `db:"description" json:"description,omitempty"`
	Price         float64   `db:"price" json:"price"`
	StockQuantity int       `db:"stock_quantity" json:"stock_quantity"`
	Category      string    `db:"category" json:"category,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Order is owned by the orders store. Amount is fixed at validation time
// (price * quantity) and never recomputed.
type Order struct {
	ID            int64     `db:"id" json:"id"`
	TransactionID string    `db:"transaction_id" json:"transaction_id"`
	CustomerID    int64     `db:"customer_id" json:"customer_id"`
	ProductID     int64     `db:"product_id" json:"product_id"`
	Quantity      int       `db:"quantity" json:"quantity"`
	Amount        float64   `db:"amount" json:"amount"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// OrderWithCustomer joins the customer name onto an order row for the
// dashboard query surface.
type OrderWithCustomer struct {
	Order
	CustomerName string `db:"customer_name" json:"customer_name"`
}

// Payment is owned by the payments store. Exactly one payment exists per
// transaction_id and its amount always equals the order's amount.
type Payment struct {
	ID            int64     `db:"id" json:"id"`
	TransactionID string    `db:"transaction_id" json:"transaction_id"`
	CustomerID    int64     `db:"customer_id" json:"customer_id"`
	Amount        float64   `db:"amount" json:"amount"`
	Currency      string    `db:"currency" json:"currency"`
	PaymentMethod string    `db:"payment_method" json:"payment_method"`
	Status        string    `db:"status" json:"status"`
	FraudScore    float64   `db:"fraud_score" json:"fraud_score"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusCancelled  = "cancelled"
	OrderStatusFailed     = "failed"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusProcessed = "processed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Saga phases. CONFIRMED, CANCELLED and FAILED are terminal; a record in a
// terminal phase never transitions again.
const (
	PhaseStarted        = "STARTED"
	PhaseValidated      = "VALIDATED"
	PhaseOrderCreated   = "ORDER_CREATED"
	PhasePaymentCreated = "PAYMENT_CREATED"
	PhaseRiskScored     = "RISK_SCORED"
	PhaseConfirmed      = "CONFIRMED"
	PhaseCompensating   = "COMPENSATING"
	PhaseCancelled      = "CANCELLED"
	PhaseFailed         = "FAILED"
)

// IsTerminalPhase reports whether a saga phase admits no further transitions.
func IsTerminalPhase(phase string) bool {
	return phase == PhaseConfirmed || phase == PhaseCancelled || phase == PhaseFailed
}

// TransactionRecord is the only entity the coordinator owns directly: the
// durable record that makes the non-atomic Order+Payment pair auditable and
// compensable.
type TransactionRecord struct {
	TransactionID string            `db:"transaction_id" json:"transaction_id"`
	Phase         string            `db:"phase" json:"phase"`
	NeedsReview   bool              `db:"needs_review" json:"needs_review"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
	Steps         []TransactionStep `json:"steps,omitempty"`
}

// TransactionStep is one appended outcome in the saga log.
type TransactionStep struct {
	ID            int64     `db:"id" json:"id"`
	TransactionID string    `db:"transaction_id" json:"transaction_id"`
	Step          string    `db:"step" json:"step"`
	Success       bool      `db:"success" json:"success"`
	Detail        string    `db:"detail" json:"detail,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Saga step names as they appear in the log.
const (
	StepStarted           = "STARTED"
	StepValidateInventory = "VALIDATE_INVENTORY"
	StepCreateOrder       = "CREATE_ORDER"
	StepCreatePayment     = "CREATE_PAYMENT"
	StepScoreRisk         = "SCORE_RISK"
	StepConfirmOrder      = "CONFIRM_ORDER"
	StepConfirmPayment    = "CONFIRM_PAYMENT"
	StepFailPayment       = "FAIL_PAYMENT"
	StepCancelOrder       = "CANCEL_ORDER"
)

// OrderRequest is the single orchestration input.
type OrderRequest struct {
	CustomerID int64 `json:"customer_id" binding:"required"`
	ProductID  int64 `json:"product_id" binding:"required"`
	Quantity   int   `json:"quantity" binding:"required,min=1"`
}

// TransactionContext is what the risk scorer sees about a pending transaction.
type TransactionContext struct {
	TransactionID string  `json:"transaction_id"`
	CustomerID    int64   `json:"customer_id"`
	ProductID     int64   `json:"product_id"`
	Quantity      int     `json:"quantity"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	PaymentMethod string  `json:"payment_method"`
}

// Result statuses returned to the caller. Execute never returns a pending
// transaction.
const (
	ResultCompleted = "completed"
	ResultFailed    = "failed"
)

// TransactionResult is the terminal outcome of one saga run.
type TransactionResult struct {
	TransactionID  string          `json:"transaction_id"`
	Status         string          `json:"status"`
	Message        string          `json:"message"`
	OrderDetails   *OrderDetails   `json:"order_details,omitempty"`
	PaymentDetails *PaymentDetails `json:"payment_details,omitempty"`
}

// OrderDetails summarizes the created order in a result.
type OrderDetails struct {
	OrderID int64   `json:"order_id"`
	Amount  float64 `json:"amount"`
	Status  string  `json:"status"`
}

// PaymentDetails summarizes the created payment in a result.
type PaymentDetails struct {
	PaymentID  int64   `json:"payment_id"`
	FraudScore float64 `json:"fraud_score"`
	Status     string  `json:"status"`
}

// TopCustomer is an aggregate row for the dashboard.
type TopCustomer struct {
	CustomerID   int64   `json:"customer_id"`
	CustomerName string  `json:"customer_name"`
	TotalOrders  int     `json:"total_orders"`
	TotalSpent   float64 `json:"total_spent"`
}

// DashboardStats is derived purely from order and payment records.
type DashboardStats struct {
	TotalOrders        int                 `json:"total_orders"`
	TotalPayments      int                 `json:"total_payments"`
	TotalRevenue       float64             `json:"total_revenue"`
	SuccessRate        float64             `json:"success_rate"`
	AvgOrderAmount     float64             `json:"avg_order_amount"`
	TopCustomers       []TopCustomer       `json:"top_customers"`
	RecentTransactions []OrderWithCustomer `json:"recent_transactions"`
}

// Payment defaults applied to every transaction.
const (
	DefaultCurrency      = "PEN"
	DefaultPaymentMethod = "credit_card"
	MaxOrderQuantity     = 100
)

// Validation errors. No remote side effects exist when one of these is
// returned.
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrQuantityLimit     = errors.New("quantity exceeds per-order limit")
	ErrInvalidRequest    = errors.New("invalid order request")
)
