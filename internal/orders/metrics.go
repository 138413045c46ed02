package orders

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
)

var (
	tracer = otel.Tracer("orders")
	meter  = otel.Meter("orders")
)

type engineMetrics struct {
	placed     metric.Int64Counter
	decisions  metric.Int64Counter
	txDuration metric.Float64Histogram
}

// newEngineMetrics falls back to no-op instruments when registration fails.
func newEngineMetrics() *engineMetrics {
	placed, err := meter.Int64Counter("checkout.placed",
		metric.WithDescription("Orders placed by checkout"),
		metric.WithUnit("{order}"))
	if err != nil {
		otel.Handle(err)
	}

	decisions, err := meter.Int64Counter("order_item.decisions",
		metric.WithDescription("Vendor decisions on order items by outcome"),
		metric.WithUnit("{decision}"))
	if err != nil {
		otel.Handle(err)
	}

	txDuration, err := meter.Float64Histogram("core.tx.duration",
		metric.WithDescription("Duration of checkout and decision transactions"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000))
	if err != nil {
		otel.Handle(err)
	}

	return &engineMetrics{placed: placed, decisions: decisions, txDuration: txDuration}
}

// outcome labels a transaction result by error kind.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.KindOf(err).String()
}

func (m *engineMetrics) recordTx(ctx context.Context, op string, start time.Time, err error) {
	if m.txDuration == nil {
		return
	}
	m.txDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000,
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", outcome(err)),
		))
}

func (m *engineMetrics) recordPlaced(ctx context.Context, method domain.PaymentMethod) {
	if m.placed == nil {
		return
	}
	m.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", string(method))))
}

func (m *engineMetrics) recordDecision(ctx context.Context, decision domain.VendorStatus, err error) {
	if m.decisions == nil {
		return
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("decision", string(decision)),
		attribute.String("outcome", outcome(err)),
	))
}
