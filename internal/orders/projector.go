package orders

import (
	"context"
	"log/slog"

	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
)

// OrderStatusView is the read model reported for an order. Status is the
// order's own field as set by delivery updates; it is never derived from
// the vendor decisions counted in ItemCounts.
type OrderStatusView struct {
	OrderID       string                      `json:"order_id"`
	Status        domain.OrderStatus          `json:"status"`
	PaymentStatus domain.OrderPaymentStatus   `json:"payment_status"`
	Payment       *PaymentView                `json:"payment,omitempty"`
	ItemCounts    map[domain.VendorStatus]int `json:"item_counts"`
	TotalItems    int                         `json:"total_items"`
	Settled       bool                        `json:"settled"`
}

type PaymentView struct {
	Method domain.PaymentMethod `json:"method"`
	Status domain.PaymentStatus `json:"status"`
}

func (v *OrderStatusView) setCounts(pending, accepted, rejected int) {
	v.ItemCounts = map[domain.VendorStatus]int{
		domain.VendorStatusPending:  pending,
		domain.VendorStatusAccepted: accepted,
		domain.VendorStatusRejected: rejected,
	}
	v.TotalItems = pending + accepted + rejected
	v.Settled = pending == 0
}

type ViewSource interface {
	LoadStatusView(ctx context.Context, orderID string) (*OrderStatusView, error)
}

// ViewCache stores rendered views. Get returns nil, nil on a miss.
//
// Every Delete advances the order's version. SetIfVersion stores the view
// only while the version still equals the one read before the view was
// loaded, so a view rendered before an invalidation is never written back.
type ViewCache interface {
	Get(ctx context.Context, orderID string) (*OrderStatusView, error)
	Version(ctx context.Context, orderID string) (int64, error)
	SetIfVersion(ctx context.Context, view *OrderStatusView, version int64) (bool, error)
	Delete(ctx context.Context, orderID string) error
}

// Projector answers status queries without writing business tables.
type Projector struct {
	source ViewSource
	cache  ViewCache
	logger *slog.Logger
}

// NewProjector accepts a nil cache, in which case every view is read from
// the source.
func NewProjector(source ViewSource, cache ViewCache, logger *slog.Logger) *Projector {
	return &Projector{
		source: source,
		cache:  cache,
		logger: logger,
	}
}

func (p *Projector) View(ctx context.Context, orderID string) (*OrderStatusView, error) {
	if p.cache == nil {
		return p.source.LoadStatusView(ctx, orderID)
	}

	view, err := p.cache.Get(ctx, orderID)
	if err != nil {
		p.logger.WarnContext(ctx, "status view cache read failed", "error", err, "order_id", orderID)
	}
	if view != nil {
		return view, nil
	}

	// The version must be read before the load.
	version, err := p.cache.Version(ctx, orderID)
	if err != nil {
		p.logger.WarnContext(ctx, "status view version read failed", "error", err, "order_id", orderID)
		return p.source.LoadStatusView(ctx, orderID)
	}

	view, err = p.source.LoadStatusView(ctx, orderID)
	if err != nil {
		return nil, err
	}

	stored, err := p.cache.SetIfVersion(ctx, view, version)
	switch {
	case err != nil:
		p.logger.WarnContext(ctx, "status view cache write failed", "error", err, "order_id", orderID)
	case !stored:
		p.logger.DebugContext(ctx, "status view invalidated during load, not cached", "order_id", orderID)
	}

	return view, nil
}

func (p *Projector) Invalidate(ctx context.Context, orderID string) error {
	if p.cache == nil {
		return nil
	}
	return p.cache.Delete(ctx, orderID)
}
