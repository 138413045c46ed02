package orders

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
)

// ViewInvalidator drops cached read models of an order after it changed.
type ViewInvalidator interface {
	Invalidate(ctx context.Context, orderID string) error
}

// Decisions applies a vendor's accept or reject to one order line. The
// line and its product are locked for the whole transaction, so the stock
// decrement and the status change commit together or not at all.
type Decisions struct {
	store   DecisionStore
	events  Publisher
	views   ViewInvalidator
	logger  *slog.Logger
	metrics *engineMetrics
	now     func() time.Time
}

// NewDecisions accepts nil for events and views.
func NewDecisions(store DecisionStore, events Publisher, views ViewInvalidator, logger *slog.Logger) *Decisions {
	return &Decisions{
		store:   store,
		events:  events,
		views:   views,
		logger:  logger,
		metrics: newEngineMetrics(),
		now:     time.Now,
	}
}

// Decide records decision for orderItemID on behalf of the vendor account
// owned by vendorUserID. There are no internal retries: a transient
// persistence error is returned to the caller as retryable.
func (d *Decisions) Decide(ctx context.Context, orderItemID, vendorUserID, decision string) (*domain.OrderItem, error) {
	ctx, span := tracer.Start(ctx, "order_item.decide")
	defer span.End()
	span.SetAttributes(
		attribute.String("order_item.id", orderItemID),
		attribute.String("decision", decision),
	)

	status, err := domain.ParseDecision(decision)
	if err != nil {
		return nil, err
	}

	vendorID, ok, err := d.store.VendorIDForUser(ctx, vendorUserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotAVendor
	}

	start := d.now()
	var decided domain.OrderItem
	err = d.store.InTx(ctx, func(tx DecisionTx) error {
		locked, err := tx.LockItem(ctx, orderItemID, vendorID)
		if err != nil {
			return err
		}
		if locked.Item.VendorStatus != domain.VendorStatusPending {
			return domain.ErrAlreadyDecided
		}

		if status == domain.VendorStatusAccepted {
			remaining := locked.Stock - locked.Item.Quantity
			if remaining < 0 {
				return domain.ErrInsufficientStock
			}
			if err := tx.WriteLockedStock(ctx, locked.Item.ProductID, remaining); err != nil {
				return err
			}
		}

		decidedAt := d.now().UTC()
		if err := tx.SetVendorStatus(ctx, locked.Item.ID, status, decidedAt); err != nil {
			return err
		}

		decided = locked.Item
		decided.VendorStatus = status
		decided.DecidedAt = &decidedAt
		return nil
	})
	d.metrics.recordTx(ctx, "decision", start, err)
	d.metrics.recordDecision(ctx, status, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	d.logger.InfoContext(ctx, "order item decided",
		"order_item_id", decided.ID,
		"order_id", decided.OrderID,
		"vendor_id", vendorID,
		"decision", status,
	)

	d.afterCommit(ctx, &decided)
	return &decided, nil
}

func (d *Decisions) afterCommit(ctx context.Context, item *domain.OrderItem) {
	if d.views != nil {
		if err := d.views.Invalidate(ctx, item.OrderID); err != nil {
			d.logger.WarnContext(ctx, "failed to invalidate status view", "error", err, "order_id", item.OrderID)
		}
	}

	if d.events == nil {
		return
	}

	event := domain.OrderItemDecidedEvent{
		OrderItemID: item.ID,
		OrderID:     item.OrderID,
		ProductID:   item.ProductID,
		VendorID:    item.VendorID,
		Quantity:    item.Quantity,
		Decision:    item.VendorStatus,
		Timestamp:   *item.DecidedAt,
	}
	if err := d.events.Publish(ctx, item.OrderID, event); err != nil {
		d.logger.ErrorContext(ctx, "failed to publish order item decided event", "error", err, "order_item_id", item.ID)
	}
}
