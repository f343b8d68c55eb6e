package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"tx-coordinator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	products map[int64]*models.Product
}

func (f *fakeCatalog) GetProduct(_ context.Context, productID int64) (*models.Product, error) {
	p, ok := f.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", productID, models.ErrProductNotFound)
	}
	cp := *p
	return &cp, nil
}

type memOrders struct {
	mu        sync.Mutex
	seq       int64
	orders    map[int64]*models.Order
	createErr error
	updateErr error
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[int64]*models.Order)}
}

func (m *memOrders) Create(_ context.Context, order *models.Order) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.seq++
	cp := *order
	cp.ID = m.seq
	m.orders[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, orderID int64, status string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	order, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order not found: %d", orderID)
	}
	order.Status = status
	cp := *order
	return &cp, nil
}

func (m *memOrders) Get(_ context.Context, orderID int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order not found: %d", orderID)
	}
	cp := *order
	return &cp, nil
}

type memPayments struct {
	mu        sync.Mutex
	seq       int64
	payments  map[int64]*models.Payment
	createErr error
	updateErr error
}

func newMemPayments() *memPayments {
	return &memPayments{payments: make(map[int64]*models.Payment)}
}

func (m *memPayments) Create(_ context.Context, payment *models.Payment) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.seq++
	cp := *payment
	cp.ID = m.seq
	m.payments[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memPayments) UpdateStatus(_ context.Context, paymentID int64, status string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	payment, ok := m.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("payment not found: %d", paymentID)
	}
	payment.Status = status
	cp := *payment
	return &cp, nil
}

func (m *memPayments) SetFraudScore(_ context.Context, paymentID int64, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if payment, ok := m.payments[paymentID]; ok {
		payment.FraudScore = score
	}
	return nil
}

func (m *memPayments) Get(_ context.Context, paymentID int64) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("payment not found: %d", paymentID)
	}
	cp := *payment
	return &cp, nil
}

type memSagaLog struct {
	mu      sync.Mutex
	records map[string]*models.TransactionRecord
}

func newMemSagaLog() *memSagaLog {
	return &memSagaLog{records: make(map[string]*models.TransactionRecord)}
}

func (m *memSagaLog) Begin(_ context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[transactionID]; ok {
		return fmt.Errorf("transaction id reused: %s", transactionID)
	}
	m.records[transactionID] = &models.TransactionRecord{
		TransactionID: transactionID,
		Phase:         models.PhaseStarted,
	}
	return nil
}

func (m *memSagaLog) SetPhase(_ context.Context, transactionID, phase string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[transactionID]
	if !ok {
		return fmt.Errorf("transaction not found: %s", transactionID)
	}
	if models.IsTerminalPhase(record.Phase) {
		return nil
	}
	record.Phase = phase
	return nil
}

func (m *memSagaLog) AppendStep(_ context.Context, transactionID, step string, success bool, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[transactionID]
	if !ok {
		return fmt.Errorf("transaction not found: %s", transactionID)
	}
	record.Steps = append(record.Steps, models.TransactionStep{
		TransactionID: transactionID,
		Step:          step,
		Success:       success,
		Detail:        detail,
	})
	return nil
}

func (m *memSagaLog) MarkForReview(_ context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.records[transactionID]; ok {
		record.NeedsReview = true
	}
	return nil
}

func (m *memSagaLog) Get(_ context.Context, transactionID string) (*models.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[transactionID]
	if !ok {
		return nil, fmt.Errorf("transaction not found: %s", transactionID)
	}
	cp := *record
	return &cp, nil
}

type nopPublisher struct{}

func (nopPublisher) PublishTransactionStarted(context.Context, *models.TransactionStartedEvent) error {
	return nil
}
func (nopPublisher) PublishOrderCreated(context.Context, *models.OrderCreatedEvent) error { return nil }
func (nopPublisher) PublishPaymentCreated(context.Context, *models.PaymentCreatedEvent) error {
	return nil
}
func (nopPublisher) PublishTransactionConfirmed(context.Context, *models.TransactionConfirmedEvent) error {
	return nil
}
func (nopPublisher) PublishTransactionCompensated(context.Context, *models.TransactionCompensatedEvent) error {
	return nil
}
func (nopPublisher) PublishTransactionFailed(context.Context, *models.TransactionFailedEvent) error {
	return nil
}

type rig struct {
	orders   *memOrders
	payments *memPayments
	sagaLog  *memSagaLog
	catalog  *fakeCatalog
}

func newRig(products ...*models.Product) *rig {
	catalog := &fakeCatalog{products: make(map[int64]*models.Product)}
	for _, p := range products {
		catalog.products[p.ID] = p
	}
	return &rig{
		orders:   newMemOrders(),
		payments: newMemPayments(),
		sagaLog:  newMemSagaLog(),
		catalog:  catalog,
	}
}

func (r *rig) coordinator(scorer RiskScorer) *Coordinator {
	validator := NewInventoryValidator(r.catalog, nil, 0)
	return NewCoordinator(r.orders, r.payments, validator, scorer, r.sagaLog, nopPublisher{}, CoordinatorConfig{})
}

// assertNothingPending checks that no owned entity is left in a non-terminal
// status once Execute has returned.
func (r *rig) assertNothingPending(t *testing.T) {
	t.Helper()
	for _, order := range r.orders.orders {
		assert.NotEqual(t, models.OrderStatusPending, order.Status)
		assert.NotEqual(t, models.OrderStatusProcessing, order.Status)
	}
	for _, payment := range r.payments.payments {
		assert.NotEqual(t, models.PaymentStatusPending, payment.Status)
	}
}

func laptop() *models.Product {
	return &models.Product{ID: 1, Name: "Laptop", Price: 899.99, StockQuantity: 10}
}

func TestExecuteConfirmsLowRiskTransaction(t *testing.T) {
	r := newRig(laptop())
	c := r.coordinator(FixedScorer{Value: 0.2})

	result, err := c.Execute(context.Background(), &models.OrderRequest{
		CustomerID: 7, ProductID: 1, Quantity: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ResultCompleted, result.Status)
	require.NotNil(t, result.OrderDetails)
	require.NotNil(t, result.PaymentDetails)
	assert.InDelta(t, 1799.98, result.OrderDetails.Amount, 1e-9)
	assert.InDelta(t, 0.2, result.PaymentDetails.FraudScore, 1e-9)

	order, err := r.orders.Get(context.Background(), result.OrderDetails.OrderID)
	require.NoError(t, err)
	payment, err := r.payments.Get(context.Background(), result.PaymentDetails.PaymentID)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	assert.Equal(t, models.PaymentStatusProcessed, payment.Status)
	assert.Equal(t, order.TransactionID, payment.TransactionID)
	assert.InDelta(t, order.Amount, payment.Amount, 1e-9)
	assert.Equal(t, models.DefaultCurrency, payment.Currency)

	record, err := r.sagaLog.Get(context.Background(), result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseConfirmed, record.Phase)
	r.assertNothingPending(t)
}

func TestExecuteCompensatesFraudRejection(t *testing.T) {
	r := newRig(laptop())
	c := r.coordinator(FixedScorer{Value: 0.85})

	result, err := c.Execute(context.Background(), &models.OrderRequest{
		CustomerID: 7, ProductID: 1, Quantity: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ResultFailed, result.Status)
	assert.Contains(t, result.Message, "fraud")

	require.Len(t, r.orders.orders, 1)
	require.Len(t, r.payments.payments, 1)
	for _, order := range r.orders.orders {
		assert.Equal(t, models.OrderStatusCancelled, order.Status)
	}
	for _, payment := range r.payments.payments {
		assert.Equal(t, models.PaymentStatusFailed, payment.Status)
		assert.InDelta(t, 0.85, payment.FraudScore, 1e-9)
	}

	record, err := r.sagaLog.Get(context.Background(), result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCancelled, record.Phase)
	assert.False(t, record.NeedsReview)
	r.assertNothingPending(t)
}

func TestExecuteScoreAtThresholdPasses(t *testing.T) {
	r := newRig(laptop())
	c := r.coordinator(FixedScorer{Value: 0.7})

	result, err := c.Execute(context.Background(), &models.OrderRequest{
		CustomerID: 7, ProductID: 1, Quantity: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ResultCompleted, result.Status)
}

func TestExecuteRejectsInsufficientStock(t *testing.T) {
	product := laptop()
	product.StockQuantity = 1
	r := newRig(product)
	c := r.coordinator(FixedScorer{Value: 0.2})

	result, err := c.Execute(context.Background(), &models.OrderRequest{
		CustomerID: 7, ProductID: 1, Quantity: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ResultFailed, result.Status)
	assert.Equal(t, "insufficient stock", result.Message)
	assert.Empty(t, r.orders.orders)
	assert.Empty(t, r.payments.payments)

	record, err := r.sagaLog.Get(context.Background(), result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCancelled, record.Phase)
}

func TestExecuteRejectsUnknownProduct(t *testing.T) {
	r := newRig()
	c := r.coordinator(FixedScorer{Value: 0.2})

	result, err := c.Execute(context.Background(), &models.OrderRequest{
		CustomerID: 7, ProductID: 42, Quantity: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ResultFailed, result.Status)
	assert.Equal(t, "product not found", result.Message)
	assert.Empty(t, r.orders.orders)
	assert.Empty(t, r.payments.payments)
}

func TestExecuteCompensatesOrderWhenPaymentStoreDown(t *testing.T) {
	r := newRig(laptop())
	r.payments.createErr = errors.New("payment store unavailable")
	c := r.coordinator(FixedScorer{Value: 0.2})

	result, err := c.Execute(context.Background(), &models.OrderRequest{
		CustomerID: 7, ProductID: 1, Quantity: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ResultFailed, result.Status)

	require.Len(t, r.orders.orders, 1)
	for _, order := range r.orders.orders {
		assert.Equal(t, models.OrderStatusCancelled, order.Status)
	}
	assert.Empty(t, r.payments.payments)

	record, err := r.sagaLog.Get(context.Background(), result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCancelled, record.Phase)
	r.assertNothingPending(t)
}

func TestExecuteFlagsBrokenCompensation(t *testing.T) {
	r := newRig(laptop())
	r.orders.updateErr = errors.New("orders store unavailable")
	c := r.coordinator(FixedScorer{Value: 0.95})

	result, err := c.Execute(context.Background(), &models.OrderRequest{
		CustomerID: 7, ProductID: 1, Quantity: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ResultFailed, result.Status)
	assert.Contains(t, result.Message, "manual reconciliation")

	record, err := r.sagaLog.Get(context.Background(), result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseFailed, record.Phase)
	assert.True(t, record.NeedsReview)

	// The payment side still reached a terminal status.
	for _, payment := range r.payments.payments {
		assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	}
}

type recordingPublisher struct {
	nopPublisher
	confirmed   []string
	compensated []string
	failed      []string
}

func (p *recordingPublisher) PublishTransactionConfirmed(_ context.Context, event *models.TransactionConfirmedEvent) error {
	p.confirmed = append(p.confirmed, event.TransactionID)
	return nil
}

func (p *recordingPublisher) PublishTransactionCompensated(_ context.Context, event *models.TransactionCompensatedEvent) error {
	p.compensated = append(p.compensated, event.Reason)
	return nil
}

func (p *recordingPublisher) PublishTransactionFailed(_ context.Context, event *models.TransactionFailedEvent) error {
	p.failed = append(p.failed, event.Reason)
	return nil
}

// Every run that ends CANCELLED emits exactly one compensated transition,
// including rejections that never wrote an order or payment.
func TestCancelledRunsEmitOneCompensatedTransition(t *testing.T) {
	product := laptop()
	product.StockQuantity = 1
	r := newRig(product)
	pub := &recordingPublisher{}
	c := NewCoordinator(r.orders, r.payments,
		NewInventoryValidator(r.catalog, nil, 0),
		FixedScorer{Value: 0.2}, r.sagaLog, pub, CoordinatorConfig{})

	result, err := c.Execute(context.Background(), &models.OrderRequest{
		CustomerID: 7, ProductID: 1, Quantity: 5,
	})
	require.NoError(t, err)
	require.Equal(t, models.ResultFailed, result.Status)

	assert.Equal(t, []string{"insufficient stock"}, pub.compensated)
	assert.Empty(t, pub.failed)
	assert.Empty(t, pub.confirmed)
}

// cancellingScorer kills the caller's context before failing, simulating a
// client that gives up mid-saga.
type cancellingScorer struct {
	cancel context.CancelFunc
}

func (s cancellingScorer) Score(context.Context, models.TransactionContext) (float64, error) {
	s.cancel()
	return 0, context.Canceled
}

func TestExecuteCompensatesWhenCallerCancelsMidSaga(t *testing.T) {
	r := newRig(laptop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := r.coordinator(cancellingScorer{cancel: cancel})

	result, err := c.Execute(ctx, &models.OrderRequest{
		CustomerID: 7, ProductID: 1, Quantity: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ResultFailed, result.Status)

	// Both entities were already written when the context died; compensation
	// must still drive them to terminal statuses.
	require.Len(t, r.orders.orders, 1)
	for _, order := range r.orders.orders {
		assert.Equal(t, models.OrderStatusCancelled, order.Status)
	}
	require.Len(t, r.payments.payments, 1)
	for _, payment := range r.payments.payments {
		assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	}

	record, err := r.sagaLog.Get(context.Background(), result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCancelled, record.Phase)
	r.assertNothingPending(t)
}

func TestExecuteRejectsBadRequestsBeforeSagaStarts(t *testing.T) {
	r := newRig(laptop())
	c := r.coordinator(FixedScorer{Value: 0.2})

	cases := []struct {
		name string
		req  *models.OrderRequest
	}{
		{"zero quantity", &models.OrderRequest{CustomerID: 7, ProductID: 1, Quantity: 0}},
		{"negative quantity", &models.OrderRequest{CustomerID: 7, ProductID: 1, Quantity: -1}},
		{"missing customer", &models.OrderRequest{ProductID: 1, Quantity: 1}},
		{"missing product", &models.OrderRequest{CustomerID: 7, Quantity: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := c.Execute(context.Background(), tc.req)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, models.ErrInvalidRequest)
		})
	}

	_, err := c.Execute(context.Background(), &models.OrderRequest{
		CustomerID: 7, ProductID: 1, Quantity: models.MaxOrderQuantity + 1,
	})
	assert.ErrorIs(t, err, models.ErrQuantityLimit)

	assert.Empty(t, r.sagaLog.records)
	assert.Empty(t, r.orders.orders)
	assert.Empty(t, r.payments.payments)
}

func TestExecuteAllocatesFreshTransactionIDs(t *testing.T) {
	r := newRig(laptop())
	c := r.coordinator(FixedScorer{Value: 0.2})

	req := &models.OrderRequest{CustomerID: 7, ProductID: 1, Quantity: 1}

	first, err := c.Execute(context.Background(), req)
	require.NoError(t, err)
	second, err := c.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.TransactionID, second.TransactionID)
	assert.Len(t, r.sagaLog.records, 2)
}

func TestExecuteRecordsStepOutcomes(t *testing.T) {
	r := newRig(laptop())
	c := r.coordinator(FixedScorer{Value: 0.1})

	result, err := c.Execute(context.Background(), &models.OrderRequest{
		CustomerID: 7, ProductID: 1, Quantity: 1,
	})
	require.NoError(t, err)

	record, err := r.sagaLog.Get(context.Background(), result.TransactionID)
	require.NoError(t, err)

	var steps []string
	for _, step := range record.Steps {
		require.True(t, step.Success)
		steps = append(steps, step.Step)
	}
	assert.Equal(t, []string{
		models.StepStarted,
		models.StepValidateInventory,
		models.StepCreateOrder,
		models.StepCreatePayment,
		models.StepScoreRisk,
		models.StepConfirmOrder,
		models.StepConfirmPayment,
	}, steps)
}
