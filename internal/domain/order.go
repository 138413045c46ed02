package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusOutForDelivery, OrderStatusCancelled},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusOutForDelivery,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a delivery-side update may move an order
// from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Predecessors lists the statuses from which an order may move to s.
func (s OrderStatus) Predecessors() []OrderStatus {
	var from []OrderStatus
	for prev, nexts := range orderTransitions {
		for _, next := range nexts {
			if next == s {
				from = append(from, prev)
			}
		}
	}
	return from
}

type OrderPaymentStatus string

const (
	OrderPaymentUnpaid OrderPaymentStatus = "unpaid"
	OrderPaymentPaid   OrderPaymentStatus = "paid"
)

// VendorStatus is the per-line decision a seller makes. A line leaves
// pending at most once.
type VendorStatus string

const (
	VendorStatusPending  VendorStatus = "pending"
	VendorStatusAccepted VendorStatus = "accepted"
	VendorStatusRejected VendorStatus = "rejected"
)

// ParseDecision accepts only the two terminal statuses a vendor may choose.
func ParseDecision(s string) (VendorStatus, error) {
	switch VendorStatus(s) {
	case VendorStatusAccepted, VendorStatusRejected:
		return VendorStatus(s), nil
	}
	return "", ErrInvalidDecision
}

type OrderItem struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	ProductID    string          `json:"product_id"`
	VendorID     string          `json:"vendor_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Variant      Variant         `json:"variant"`
	VendorStatus VendorStatus    `json:"vendor_status"`
	DecidedAt    *time.Time      `json:"decided_at,omitempty"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID              string             `json:"id"`
	Customer        Owner              `json:"customer"`
	CartID          string             `json:"cart_id"`
	ShippingAddress Address            `json:"shipping_address"`
	Status          OrderStatus        `json:"status"`
	PaymentStatus   OrderPaymentStatus `json:"payment_status"`
	TotalAmount     decimal.Decimal    `json:"total_amount"`
	Items           []OrderItem        `json:"items"`
	Payment         *Payment           `json:"payment,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// ItemsTotal recomputes Σ unit price × quantity over the order's lines.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}
