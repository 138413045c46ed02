package orders

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
)

// Publisher emits an event after the transaction that produced it has
// committed. Failures are logged and never undo the commit.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type CheckoutRequest struct {
	CartID  string
	Caller  domain.Owner
	Address domain.Address
	Payment domain.PaymentDetails
}

// Checkout turns a cart into an order, its items and a payment record in
// one transaction. It never touches stock.
type Checkout struct {
	store   CheckoutStore
	events  Publisher
	logger  *slog.Logger
	metrics *engineMetrics
	now     func() time.Time
}

// NewCheckout accepts a nil events publisher when no broker is configured.
func NewCheckout(store CheckoutStore, events Publisher, logger *slog.Logger) *Checkout {
	return &Checkout{
		store:   store,
		events:  events,
		logger:  logger,
		metrics: newEngineMetrics(),
		now:     time.Now,
	}
}

func (c *Checkout) Place(ctx context.Context, req CheckoutRequest) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "checkout.place")
	defer span.End()
	span.SetAttributes(attribute.String("cart.id", req.CartID))

	if req.Caller.IsZero() {
		return nil, domain.ErrMissingOwner
	}
	address, err := req.Address.Normalize()
	if err != nil {
		return nil, err
	}
	if req.Payment == nil {
		return nil, domain.ErrInvalidPaymentMethod
	}

	start := c.now()
	var order *domain.Order
	err = c.store.InTx(ctx, func(tx CheckoutTx) error {
		var err error
		order, err = c.place(ctx, tx, req, address)
		return err
	})
	c.metrics.recordTx(ctx, "checkout", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.metrics.recordPlaced(ctx, req.Payment.Method())
	span.SetAttributes(attribute.String("order.id", order.ID))
	c.logger.InfoContext(ctx, "order placed",
		"order_id", order.ID,
		"cart_id", order.CartID,
		"items", len(order.Items),
		"total", order.TotalAmount.StringFixed(2),
		"payment_method", req.Payment.Method(),
	)

	c.publishPlaced(ctx, order)
	return order, nil
}

func (c *Checkout) place(ctx context.Context, tx CheckoutTx, req CheckoutRequest, address domain.Address) (*domain.Order, error) {
	cart, err := tx.GetCart(ctx, req.CartID)
	if err != nil {
		return nil, err
	}
	if !cart.Owner.Equal(req.Caller) {
		return nil, domain.ErrCartNotFound
	}
	if len(cart.Items) == 0 {
		return nil, domain.ErrCartEmpty
	}

	now := c.now().UTC()
	order := &domain.Order{
		ID:              uuid.New().String(),
		Customer:        req.Caller,
		CartID:          cart.ID,
		ShippingAddress: address,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.OrderPaymentUnpaid,
		Items:           make([]domain.OrderItem, 0, len(cart.Items)),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Payment.Method().Electronic() {
		order.PaymentStatus = domain.OrderPaymentPaid
	}

	total := decimal.Zero
	for _, line := range cart.Items {
		product, err := tx.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}

		item := domain.OrderItem{
			ID:           uuid.New().String(),
			OrderID:      order.ID,
			ProductID:    product.ID,
			VendorID:     product.VendorID,
			Quantity:     line.Quantity,
			UnitPrice:    product.Price,
			Variant:      copyVariant(line.Variant),
			VendorStatus: domain.VendorStatusPending,
		}
		total = total.Add(item.LineTotal())
		order.Items = append(order.Items, item)
	}
	order.TotalAmount = total

	if err := tx.InsertOrder(ctx, order); err != nil {
		return nil, err
	}

	for i := range order.Items {
		if err := tx.InsertOrderItem(ctx, &order.Items[i]); err != nil {
			return nil, err
		}
	}

	payment := domain.NewPayment(order.ID, req.Caller, total, req.Payment)
	payment.ID = uuid.New().String()
	payment.CreatedAt = now
	if err := tx.InsertPayment(ctx, payment); err != nil {
		return nil, err
	}
	order.Payment = payment

	return order, nil
}

func (c *Checkout) publishPlaced(ctx context.Context, order *domain.Order) {
	if c.events == nil {
		return
	}

	event := domain.OrderPlacedEvent{
		OrderID:       order.ID,
		CartID:        order.CartID,
		Customer:      order.Customer,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: order.Payment.Method,
		ItemCount:     len(order.Items),
		Timestamp:     order.CreatedAt,
	}
	if err := c.events.Publish(ctx, order.ID, event); err != nil {
		c.logger.ErrorContext(ctx, "failed to publish order placed event", "error", err, "order_id", order.ID)
	}
}

// copyVariant snapshots the cart line's variant so later cart edits cannot
// reach the order item.
func copyVariant(v domain.Variant) domain.Variant {
	out := make(domain.Variant, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
