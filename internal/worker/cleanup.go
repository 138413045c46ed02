// Package worker consumes order events that need work outside the request
// path.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
	"github.com/ThekraQaqish/Quikko-sub000/internal/messaging"
)

// CartDeleter removes a cart once an order references it and reports
// whether a row was deleted.
type CartDeleter interface {
	DeleteCheckedOut(ctx context.Context, cartID string) (bool, error)
}

// CartCleanupHandler deletes the cart behind every placed order. Running it
// twice for the same event is a no-op.
type CartCleanupHandler struct {
	carts  CartDeleter
	logger *slog.Logger
}

func NewCartCleanupHandler(carts CartDeleter, logger *slog.Logger) *CartCleanupHandler {
	return &CartCleanupHandler{carts: carts, logger: logger}
}

func (h *CartCleanupHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return messaging.Permanent(fmt.Errorf("unmarshal order placed event: %w", err))
	}
	if event.CartID == "" {
		return messaging.Permanent(fmt.Errorf("order placed event %s has no cart id", event.OrderID))
	}

	deleted, err := h.carts.DeleteCheckedOut(ctx, event.CartID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to delete cart", "error", err, "cart_id", event.CartID, "order_id", event.OrderID)
		return fmt.Errorf("delete cart %s: %w", event.CartID, err)
	}

	if deleted {
		h.logger.InfoContext(ctx, "cart deleted after checkout", "cart_id", event.CartID, "order_id", event.OrderID)
	} else {
		h.logger.InfoContext(ctx, "cart already gone", "cart_id", event.CartID, "order_id", event.OrderID)
	}
	return nil
}
