package worker

import (
	"context"

	"tx-coordinator/internal/broker"
	"tx-coordinator/internal/models"
	"tx-coordinator/internal/redisclient"
	"tx-coordinator/internal/util"

	"go.uber.org/zap"
)

// ReviewMarker flags a transaction record for manual reconciliation.
type ReviewMarker interface {
	MarkForReview(ctx context.Context, transactionID string) error
}

// ReconciliationWorker is the operator path for compensation failures: it
// consumes TransactionFailed events and queues each transaction for a human
// to reconcile the inconsistent cross-store state.
type ReconciliationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	marker       ReviewMarker
	redis        *redisclient.Client
	logger       *zap.Logger
}

// NewReconciliationWorker creates a reconciliation worker.
func NewReconciliationWorker(consumer *broker.Consumer, marker ReviewMarker, redis *redisclient.Client) *ReconciliationWorker {
	w := &ReconciliationWorker{
		consumer: consumer,
		marker:   marker,
		redis:    redis,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnTransactionFailed(w.handleTransactionFailed)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *ReconciliationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting reconciliation worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReconciliationWorker) Stop() error {
	w.logger.Info("Stopping reconciliation worker")
	return w.consumer.Close()
}

// handleTransactionFailed flags the record and pushes it onto the operator
// queue. Duplicate deliveries only re-set the flag and re-queue, both
// harmless for the operator path.
func (w *ReconciliationWorker) handleTransactionFailed(ctx context.Context, event *models.TransactionFailedEvent) error {
	w.logger.Error("Transaction requires manual reconciliation",
		zap.String("transaction_id", event.TransactionID),
		zap.String("reason", event.Reason))

	util.ReconciliationQueuedTotal.Inc()

	if err := w.marker.MarkForReview(ctx, event.TransactionID); err != nil {
		return err
	}

	if w.redis != nil {
		if err := w.redis.PushReview(ctx, event.TransactionID, event.Reason); err != nil {
			w.logger.Error("Failed to queue transaction for review",
				zap.String("transaction_id", event.TransactionID),
				zap.Error(err))
		}
	}

	return nil
}
