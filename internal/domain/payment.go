package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodPayPal PaymentMethod = "paypal"
)

// Electronic methods are confirmed by the gateway before checkout runs.
func (m PaymentMethod) Electronic() bool {
	return m == PaymentMethodCard || m == PaymentMethodPayPal
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// PaymentDetails is the normalized, method-specific payment data. The set
// of implementations is closed: COD, Card and PayPal.
type PaymentDetails interface {
	Method() PaymentMethod
	apply(p *Payment)
}

type COD struct{}

func (COD) Method() PaymentMethod { return PaymentMethodCOD }
func (COD) apply(*Payment) {}

type Card struct {
	Last4         string
	Brand         string
	ExpiryMonth   int
	ExpiryYear    int
	TransactionID string
}

func (Card) Method() PaymentMethod { return PaymentMethodCard }

func (c Card) apply(p *Payment) {
	p.TransactionID = optionalString(c.TransactionID)
	p.CardLast4 = optionalString(c.Last4)
	p.CardBrand = optionalString(c.Brand)
	p.CardExpiryMonth = optionalInt(c.ExpiryMonth)
	p.CardExpiryYear = optionalInt(c.ExpiryYear)
}

type PayPal struct {
	PayerEmail    string
	PayerName     string
	TransactionID string
}

func (PayPal) Method() PaymentMethod { return PaymentMethodPayPal }

func (pp PayPal) apply(p *Payment) {
	p.TransactionID = optionalString(pp.TransactionID)
	p.PayerEmail = optionalString(pp.PayerEmail)
	p.PayerName = optionalString(pp.PayerName)
}

// PaymentData is the loose shape clients submit at checkout. It is turned
// into PaymentDetails by NormalizePayment before entering the core.
type PaymentData struct {
	TransactionID   string `json:"transaction_id"`
	CardLast4       string `json:"card_last4"`
	CardBrand       string `json:"card_brand"`
	CardExpiryMonth int    `json:"card_expiry_month"`
	CardExpiryYear  int    `json:"card_expiry_year"`
	PayerEmail      string `json:"payer_email"`
	PayerName       string `json:"payer_name"`
}

func NormalizePayment(method string, data PaymentData) (PaymentDetails, error) {
	txID := strings.TrimSpace(data.TransactionID)

	switch PaymentMethod(strings.ToLower(strings.TrimSpace(method))) {
	case PaymentMethodCOD:
		return COD{}, nil

	case PaymentMethodCard:
		if txID == "" {
			return nil, fmt.Errorf("%w: card payment requires a transaction id", ErrInvalidPaymentMethod)
		}
		last4 := strings.TrimSpace(data.CardLast4)
		if last4 != "" && !isDigits(last4, 4) {
			return nil, fmt.Errorf("%w: card_last4 must be 4 digits", ErrInvalidPaymentMethod)
		}
		if data.CardExpiryMonth < 0 || data.CardExpiryMonth > 12 {
			return nil, fmt.Errorf("%w: card_expiry_month out of range", ErrInvalidPaymentMethod)
		}
		return Card{
			Last4:         last4,
			Brand:         strings.TrimSpace(data.CardBrand),
			ExpiryMonth:   data.CardExpiryMonth,
			ExpiryYear:    data.CardExpiryYear,
			TransactionID: txID,
		}, nil

	case PaymentMethodPayPal:
		if txID == "" {
			return nil, fmt.Errorf("%w: paypal payment requires a transaction id", ErrInvalidPaymentMethod)
		}
		return PayPal{
			PayerEmail:    strings.TrimSpace(data.PayerEmail),
			PayerName:     strings.TrimSpace(data.PayerName),
			TransactionID: txID,
		}, nil
	}

	return nil, ErrInvalidPaymentMethod
}

type Payment struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	Customer        Owner           `json:"customer"`
	Method          PaymentMethod   `json:"method"`
	Amount          decimal.Decimal `json:"amount"`
	Status          PaymentStatus   `json:"status"`
	TransactionID   *string         `json:"transaction_id"`
	CardLast4       *string         `json:"card_last4"`
	CardBrand       *string         `json:"card_brand"`
	CardExpiryMonth *int            `json:"card_expiry_month"`
	CardExpiryYear  *int            `json:"card_expiry_year"`
	PayerEmail      *string         `json:"payer_email"`
	PayerName       *string         `json:"payer_name"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewPayment builds the payment record for an order. COD starts pending;
// electronic methods start paid because the gateway already confirmed them.
func NewPayment(orderID string, customer Owner, amount decimal.Decimal, details PaymentDetails) *Payment {
	p := &Payment{
		OrderID:  orderID,
		Customer: customer,
		Method:   details.Method(),
		Amount:   amount,
		Status:   PaymentStatusPending,
	}
	if p.Method.Electronic() {
		p.Status = PaymentStatusPaid
	}
	details.apply(p)
	return p
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
