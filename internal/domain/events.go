package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicOrderPlaced      = "order.placed"
	TopicOrderItemDecided = "order_item.decided"
)

type OrderPlacedEvent struct {
	OrderID       string          `json:"order_id"`
	CartID        string          `json:"cart_id"`
	Customer      Owner           `json:"customer"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	ItemCount     int             `json:"item_count"`
	Timestamp     time.Time       `json:"timestamp"`
}

type OrderItemDecidedEvent struct {
	OrderItemID string       `json:"order_item_id"`
	OrderID     string       `json:"order_id"`
	ProductID   string       `json:"product_id"`
	VendorID    string       `json:"vendor_id"`
	Quantity    int          `json:"quantity"`
	Decision    VendorStatus `json:"decision"`
	Timestamp   time.Time    `json:"timestamp"`
}
