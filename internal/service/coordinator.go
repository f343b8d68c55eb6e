package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tx-coordinator/internal/models"
	"tx-coordinator/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CoordinatorConfig tunes one coordinator instance.
type CoordinatorConfig struct {
	FraudThreshold    float64
	MaxQuantity       int
	ExecuteTimeout    time.Duration
	CompensateTimeout time.Duration
	Currency          string
	PaymentMethod     string
}

// Coordinator drives the order+payment saga across the two independently
// owned stores. It never attempts a cross-store commit: consistency comes
// from the strict step order, the saga log, and compensation.
//
// Steps for one run:
//
//	STARTED -> VALIDATED -> ORDER_CREATED -> PAYMENT_CREATED -> RISK_SCORED
//	  -> CONFIRMED, or COMPENSATING -> CANCELLED (FAILED if compensation broke)
type Coordinator struct {
	orders    OrderLedger
	payments  PaymentLedger
	validator *InventoryValidator
	scorer    RiskScorer
	sagaLog   SagaLog
	events    TransitionPublisher
	cfg       CoordinatorConfig
	logger    *zap.Logger
}

// NewCoordinator creates a transaction coordinator.
func NewCoordinator(
	orders OrderLedger,
	payments PaymentLedger,
	validator *InventoryValidator,
	scorer RiskScorer,
	sagaLog SagaLog,
	events TransitionPublisher,
	cfg CoordinatorConfig,
) *Coordinator {
	if cfg.FraudThreshold <= 0 {
		cfg.FraudThreshold = 0.7
	}
	if cfg.MaxQuantity <= 0 {
		cfg.MaxQuantity = models.MaxOrderQuantity
	}
	if cfg.ExecuteTimeout <= 0 {
		cfg.ExecuteTimeout = 30 * time.Second
	}
	if cfg.CompensateTimeout <= 0 {
		cfg.CompensateTimeout = 10 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = models.DefaultCurrency
	}
	if cfg.PaymentMethod == "" {
		cfg.PaymentMethod = models.DefaultPaymentMethod
	}

	return &Coordinator{
		orders:    orders,
		payments:  payments,
		validator: validator,
		scorer:    scorer,
		sagaLog:   sagaLog,
		events:    events,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

// Execute runs one saga to a terminal result. The returned result is always
// terminal: no owned entity is ever left pending when Execute returns. A
// non-nil error is returned only for rejected requests (no saga ran) or when
// the saga log itself is unreachable.
func (c *Coordinator) Execute(ctx context.Context, req *models.OrderRequest) (*models.TransactionResult, error) {
	if err := c.validateRequest(req); err != nil {
		util.ValidationFailuresTotal.WithLabelValues("bad_request").Inc()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ExecuteTimeout)
	defer cancel()

	ctx, span := util.StartSpan(ctx, "Coordinator.Execute")
	defer span.End()

	transactionID := uuid.New().String()
	logger := c.logger.With(zap.String("transaction_id", transactionID))

	logger.Info("Starting transaction",
		zap.Int64("customer_id", req.CustomerID),
		zap.Int64("product_id", req.ProductID),
		zap.Int("quantity", req.Quantity))
	util.TransactionsStartedTotal.Inc()

	if err := c.sagaLog.Begin(ctx, transactionID); err != nil {
		return nil, fmt.Errorf("failed to start saga log: %w", err)
	}
	c.appendStep(ctx, transactionID, models.StepStarted, true, "")
	c.publishStarted(ctx, transactionID, req)

	// Step 1: validate inventory and fix the amount. Nothing remote has been
	// written yet, so a failure here terminates with no compensation.
	stop := stepTimer(models.StepValidateInventory)
	product, err := c.validator.Validate(ctx, req.ProductID, req.Quantity)
	stop()
	if err != nil {
		c.appendStep(ctx, transactionID, models.StepValidateInventory, false, err.Error())
		logger.Warn("Inventory validation failed", zap.Error(err))
		util.ValidationFailuresTotal.WithLabelValues(validationReason(err)).Inc()
		return c.reject(transactionID, validationMessage(err)), nil
	}
	c.appendStep(ctx, transactionID, models.StepValidateInventory, true, "")
	c.setPhase(ctx, transactionID, models.PhaseValidated)

	// Fixed at this instant; later price changes do not affect this run.
	amount := product.Price * float64(req.Quantity)

	// Step 2: pending order.
	stop = stepTimer(models.StepCreateOrder)
	order, err := c.orders.Create(ctx, &models.Order{
		TransactionID: transactionID,
		CustomerID:    req.CustomerID,
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		Amount:        amount,
		Status:        models.OrderStatusPending,
	})
	stop()
	if err != nil {
		// The order write failed atomically; there is nothing to undo.
		c.appendStep(ctx, transactionID, models.StepCreateOrder, false, err.Error())
		logger.Error("Order creation failed", zap.Error(err))
		return c.reject(transactionID, "order creation failed"), nil
	}
	c.appendStep(ctx, transactionID, models.StepCreateOrder, true, "")
	c.setPhase(ctx, transactionID, models.PhaseOrderCreated)
	c.publishOrderCreated(ctx, transactionID, order)

	// Step 3: pending payment on the other store, same correlation key.
	stop = stepTimer(models.StepCreatePayment)
	payment, err := c.payments.Create(ctx, &models.Payment{
		TransactionID: transactionID,
		CustomerID:    req.CustomerID,
		Amount:        amount,
		Currency:      c.cfg.Currency,
		PaymentMethod: c.cfg.PaymentMethod,
		Status:        models.PaymentStatusPending,
	})
	stop()
	if err != nil {
		c.appendStep(ctx, transactionID, models.StepCreatePayment, false, err.Error())
		logger.Error("Payment creation failed", zap.Error(err))
		return c.compensate(transactionID, order, nil, "payment creation failed"), nil
	}
	c.appendStep(ctx, transactionID, models.StepCreatePayment, true, "")
	c.setPhase(ctx, transactionID, models.PhasePaymentCreated)
	c.publishPaymentCreated(ctx, transactionID, payment)

	// Step 4: fraud score.
	stop = stepTimer(models.StepScoreRisk)
	score, err := c.scorer.Score(ctx, models.TransactionContext{
		TransactionID: transactionID,
		CustomerID:    req.CustomerID,
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		Amount:        amount,
		Currency:      c.cfg.Currency,
		PaymentMethod: c.cfg.PaymentMethod,
	})
	stop()
	if err != nil {
		c.appendStep(ctx, transactionID, models.StepScoreRisk, false, err.Error())
		logger.Error("Risk scoring failed", zap.Error(err))
		return c.compensate(transactionID, order, payment, "risk scoring failed"), nil
	}
	c.appendStep(ctx, transactionID, models.StepScoreRisk, true, fmt.Sprintf("score=%.3f", score))
	c.setPhase(ctx, transactionID, models.PhaseRiskScored)

	if err := c.payments.SetFraudScore(ctx, payment.ID, score); err != nil {
		logger.Warn("Failed to persist fraud score", zap.Error(err))
	}

	// Strictly greater than: a score exactly at the threshold passes.
	if score > c.cfg.FraudThreshold {
		logger.Warn("Transaction rejected for fraud risk", zap.Float64("score", score))
		util.FraudRejectionsTotal.Inc()
		return c.compensate(transactionID, order, payment,
			fmt.Sprintf("transaction rejected for high fraud risk (score %.2f)", score)), nil
	}

	// Step 5: confirm both sides.
	if _, err := c.orders.UpdateStatus(ctx, order.ID, models.OrderStatusConfirmed); err != nil {
		c.appendStep(ctx, transactionID, models.StepConfirmOrder, false, err.Error())
		logger.Error("Order confirmation failed", zap.Error(err))
		return c.compensate(transactionID, order, payment, "order confirmation failed"), nil
	}
	c.appendStep(ctx, transactionID, models.StepConfirmOrder, true, "")

	if _, err := c.payments.UpdateStatus(ctx, payment.ID, models.PaymentStatusProcessed); err != nil {
		c.appendStep(ctx, transactionID, models.StepConfirmPayment, false, err.Error())
		logger.Error("Payment confirmation failed", zap.Error(err))
		return c.compensate(transactionID, order, payment, "payment confirmation failed"), nil
	}
	c.appendStep(ctx, transactionID, models.StepConfirmPayment, true, "")

	c.setPhase(ctx, transactionID, models.PhaseConfirmed)
	util.TransactionsConfirmedTotal.Inc()
	c.publishConfirmed(ctx, transactionID, order, payment, score)

	logger.Info("Transaction completed",
		zap.Float64("amount", amount),
		zap.Float64("fraud_score", score))

	return &models.TransactionResult{
		TransactionID: transactionID,
		Status:        models.ResultCompleted,
		Message:       "transaction completed successfully",
		OrderDetails: &models.OrderDetails{
			OrderID: order.ID,
			Amount:  amount,
			Status:  models.OrderStatusConfirmed,
		},
		PaymentDetails: &models.PaymentDetails{
			PaymentID:  payment.ID,
			FraudScore: score,
			Status:     models.PaymentStatusProcessed,
		},
	}, nil
}

// validateRequest rejects malformed requests before any saga state exists.
func (c *Coordinator) validateRequest(req *models.OrderRequest) error {
	if req == nil || req.CustomerID <= 0 || req.ProductID <= 0 || req.Quantity <= 0 {
		return models.ErrInvalidRequest
	}
	if req.Quantity > c.cfg.MaxQuantity {
		return fmt.Errorf("quantity %d exceeds maximum %d: %w",
			req.Quantity, c.cfg.MaxQuantity, models.ErrQuantityLimit)
	}
	return nil
}

// reject terminates a saga that created no remote side effects. It still
// emits the compensated transition: consumers get one terminal event per run
// whether or not anything had to be undone. The terminal bookkeeping runs on
// a detached context so an expired caller deadline cannot leave the record
// mid-phase.
func (c *Coordinator) reject(transactionID, message string) *models.TransactionResult {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CompensateTimeout)
	defer cancel()

	c.setPhase(ctx, transactionID, models.PhaseCancelled)
	c.publishCompensated(ctx, transactionID, message)

	return &models.TransactionResult{
		TransactionID: transactionID,
		Status:        models.ResultFailed,
		Message:       message,
	}
}

// compensate rolls back whatever was created, payment side first, and drives
// the saga to CANCELLED. If any rollback write fails the saga ends FAILED and
// is flagged for manual reconciliation; it is never silently dropped. Runs on
// a detached context: compensation must proceed even when the caller's
// deadline already fired.
func (c *Coordinator) compensate(transactionID string, order *models.Order, payment *models.Payment, reason string) *models.TransactionResult {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CompensateTimeout)
	defer cancel()

	logger := c.logger.With(zap.String("transaction_id", transactionID))
	logger.Warn("Compensating transaction", zap.String("reason", reason))

	c.setPhase(ctx, transactionID, models.PhaseCompensating)
	util.TransactionsCompensatedTotal.Inc()

	var broken bool

	if payment != nil {
		if _, err := c.payments.UpdateStatus(ctx, payment.ID, models.PaymentStatusFailed); err != nil {
			c.appendStep(ctx, transactionID, models.StepFailPayment, false, err.Error())
			logger.Error("Failed to fail payment during compensation",
				zap.Int64("payment_id", payment.ID),
				zap.Error(err))
			broken = true
		} else {
			c.appendStep(ctx, transactionID, models.StepFailPayment, true, "")
		}
	}

	if order != nil {
		if _, err := c.orders.UpdateStatus(ctx, order.ID, models.OrderStatusCancelled); err != nil {
			c.appendStep(ctx, transactionID, models.StepCancelOrder, false, err.Error())
			logger.Error("Failed to cancel order during compensation",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
			broken = true
		} else {
			c.appendStep(ctx, transactionID, models.StepCancelOrder, true, "")
		}
	}

	if broken {
		c.setPhase(ctx, transactionID, models.PhaseFailed)
		if err := c.sagaLog.MarkForReview(ctx, transactionID); err != nil {
			logger.Error("Failed to flag transaction for review", zap.Error(err))
		}
		util.CompensationFailuresTotal.Inc()
		util.TransactionsFailedTotal.WithLabelValues("compensation_failed").Inc()
		c.publishFailed(ctx, transactionID, reason)
		logger.Error("Compensation incomplete; cross-store state needs manual reconciliation")

		return &models.TransactionResult{
			TransactionID: transactionID,
			Status:        models.ResultFailed,
			Message:       reason + "; compensation incomplete, flagged for manual reconciliation",
		}
	}

	c.setPhase(ctx, transactionID, models.PhaseCancelled)
	util.TransactionsFailedTotal.WithLabelValues("compensated").Inc()
	c.publishCompensated(ctx, transactionID, reason)

	return &models.TransactionResult{
		TransactionID: transactionID,
		Status:        models.ResultFailed,
		Message:       reason,
	}
}

func (c *Coordinator) appendStep(ctx context.Context, transactionID, step string, success bool, detail string) {
	if err := c.sagaLog.AppendStep(ctx, transactionID, step, success, detail); err != nil {
		c.logger.Error("Failed to append saga step",
			zap.String("transaction_id", transactionID),
			zap.String("step", step),
			zap.Error(err))
	}
}

func (c *Coordinator) setPhase(ctx context.Context, transactionID, phase string) {
	if err := c.sagaLog.SetPhase(ctx, transactionID, phase); err != nil {
		c.logger.Error("Failed to set saga phase",
			zap.String("transaction_id", transactionID),
			zap.String("phase", phase),
			zap.Error(err))
	}
}

func stepTimer(step string) func() {
	start := time.Now()
	return func() {
		util.SagaStepLatency.WithLabelValues(step).Observe(time.Since(start).Seconds())
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrInsufficientStock):
		return "insufficient stock"
	case errors.Is(err, models.ErrProductNotFound):
		return "product not found"
	default:
		return err.Error()
	}
}

func validationReason(err error) string {
	switch {
	case errors.Is(err, models.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, models.ErrProductNotFound):
		return "product_not_found"
	default:
		return "error"
	}
}

func (c *Coordinator) publishStarted(ctx context.Context, transactionID string, req *models.OrderRequest) {
	event := &models.TransactionStartedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeTransactionStarted),
		TransactionID: transactionID,
		CustomerID:    req.CustomerID,
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
	}
	if err := c.events.PublishTransactionStarted(ctx, event); err != nil {
		c.logger.Error("Failed to publish TransactionStarted event", zap.Error(err))
	}
}

func (c *Coordinator) publishOrderCreated(ctx context.Context, transactionID string, order *models.Order) {
	event := &models.OrderCreatedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderCreated),
		TransactionID: transactionID,
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		Amount:        order.Amount,
	}
	if err := c.events.PublishOrderCreated(ctx, event); err != nil {
		c.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

func (c *Coordinator) publishPaymentCreated(ctx context.Context, transactionID string, payment *models.Payment) {
	event := &models.PaymentCreatedEvent{
		BaseEvent:     newBaseEvent(models.EventTypePaymentCreated),
		TransactionID: transactionID,
		PaymentID:     payment.ID,
		CustomerID:    payment.CustomerID,
		Amount:        payment.Amount,
	}
	if err := c.events.PublishPaymentCreated(ctx, event); err != nil {
		c.logger.Error("Failed to publish PaymentCreated event", zap.Error(err))
	}
}

func (c *Coordinator) publishConfirmed(ctx context.Context, transactionID string, order *models.Order, payment *models.Payment, score float64) {
	event := &models.TransactionConfirmedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeTransactionConfirmed),
		TransactionID: transactionID,
		OrderID:       order.ID,
		PaymentID:     payment.ID,
		Amount:        order.Amount,
		FraudScore:    score,
	}
	if err := c.events.PublishTransactionConfirmed(ctx, event); err != nil {
		c.logger.Error("Failed to publish TransactionConfirmed event", zap.Error(err))
	}
}

func (c *Coordinator) publishCompensated(ctx context.Context, transactionID, reason string) {
	event := &models.TransactionCompensatedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeTransactionCompensated),
		TransactionID: transactionID,
		Reason:        reason,
	}
	if err := c.events.PublishTransactionCompensated(ctx, event); err != nil {
		c.logger.Error("Failed to publish TransactionCompensated event", zap.Error(err))
	}
}

func (c *Coordinator) publishFailed(ctx context.Context, transactionID, reason string) {
	event := &models.TransactionFailedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeTransactionFailed),
		TransactionID: transactionID,
		Reason:        reason,
	}
	if err := c.events.PublishTransactionFailed(ctx, event); err != nil {
		c.logger.Error("Failed to publish TransactionFailed event", zap.Error(err))
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
