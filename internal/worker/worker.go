package worker

import (
	"context"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// ReconciliationStore persists orders whose cart was left uncleared
type ReconciliationStore interface {
	CreateReconciliation(ctx context.Context, rec *models.Reconciliation) error
}

// ReconciliationWorker consumes storefront events and records every
// CART_CLEAR_FAILED so an operator can clear the affected session.
type ReconciliationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        ReconciliationStore
	logger       *zap.Logger
}

// NewReconciliationWorker creates a new reconciliation worker
func NewReconciliationWorker(consumer *broker.Consumer, store ReconciliationStore) *ReconciliationWorker {
	w := &ReconciliationWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		store:        store,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnCartClearFailed(w.handleCartClearFailed)
	w.eventHandler.OnOrderPlaced(w.handleOrderPlaced)

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
	if w.consumer == nil {
		return nil
	}
	return w.consumer.Close()
}

func (w *ReconciliationWorker) handleCartClearFailed(ctx context.Context, event *models.CartClearFailedEvent) error {
	rec := &models.Reconciliation{
		EventID:   event.EventID,
		OrderID:   event.OrderID,
		SessionID: event.SessionID,
		Reason:    event.Reason,
	}

	if err := w.store.CreateReconciliation(ctx, rec); err != nil {
		util.ReconciliationsTotal.WithLabelValues(util.ResultError).Inc()
		return err
	}

	util.ReconciliationsTotal.WithLabelValues(util.ResultOK).Inc()
	w.logger.Warn("Recorded order with uncleared cart",
		zap.Int64("order_id", event.OrderID),
		zap.String("session_id", event.SessionID),
		zap.String("reason", event.Reason))
	return nil
}

func (w *ReconciliationWorker) handleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	w.logger.Info("Order placed",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("grand_total", event.GrandTotal),
		zap.Int("items", len(event.Items)))
	return nil
}
