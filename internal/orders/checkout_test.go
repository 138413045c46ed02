package orders_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
	"github.com/ThekraQaqish/Quikko-sub000/internal/orders"
)

var springfield = domain.Address{Line1: "1 Main St", City: "Springfield"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPlace_SingleLineCOD(t *testing.T) {
	store := newMemStore()
	store.addProduct("p", "vendor-1", "10.00", 5)
	alice := domain.RegisteredOwner("alice")
	store.addCart("cart-1", alice, domain.CartItem{ProductID: "p", Quantity: 3})

	events := &recordingPublisher{}
	checkout := orders.NewCheckout(store.checkoutStore(), events, discardLogger())

	order, err := checkout.Place(context.Background(), orders.CheckoutRequest{
		CartID:  "cart-1",
		Caller:  alice,
		Address: springfield,
		Payment: domain.COD{},
	})
	require.NoError(t, err)

	assert.Equal(t, "30.00", order.TotalAmount.StringFixed(2))
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.OrderPaymentUnpaid, order.PaymentStatus)
	require.Len(t, order.Items, 1)
	assert.Equal(t, domain.VendorStatusPending, order.Items[0].VendorStatus)
	assert.Equal(t, "vendor-1", order.Items[0].VendorID)
	assert.Equal(t, 5, store.stock("p"), "checkout must not touch stock")

	require.NotNil(t, order.Payment)
	assert.Equal(t, domain.PaymentStatusPending, order.Payment.Status)
	assert.Nil(t, order.Payment.TransactionID)

	require.Len(t, events.events, 1)
	placed, ok := events.events[0].(domain.OrderPlacedEvent)
	require.True(t, ok)
	assert.Equal(t, order.ID, placed.OrderID)
	assert.Equal(t, "cart-1", placed.CartID)
	assert.Equal(t, domain.PaymentMethodCOD, placed.PaymentMethod)
}

func TestPlace_ElectronicPaymentIsPaid(t *testing.T) {
	store := newMemStore()
	store.addProduct("p", "vendor-1", "4.99", 10)
	store.addProduct("q", "vendor-2", "0.10", 10)
	guest := domain.GuestOwner("guest-token")
	store.addCart("cart-1", guest,
		domain.CartItem{ProductID: "p", Quantity: 3, Variant: domain.Variant{"size": "M"}},
		domain.CartItem{ProductID: "q", Quantity: 7},
	)

	checkout := orders.NewCheckout(store.checkoutStore(), nil, discardLogger())
	order, err := checkout.Place(context.Background(), orders.CheckoutRequest{
		CartID:  "cart-1",
		Caller:  guest,
		Address: springfield,
		Payment: domain.Card{Last4: "4242", Brand: "visa", ExpiryMonth: 12, ExpiryYear: 2030, TransactionID: "tx-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderPaymentPaid, order.PaymentStatus)
	assert.Equal(t, domain.PaymentStatusPaid, order.Payment.Status)
	require.NotNil(t, order.Payment.CardLast4)
	assert.Equal(t, "4242", *order.Payment.CardLast4)
	assert.Nil(t, order.Payment.PayerEmail)

	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("15.67")))
	assert.True(t, order.TotalAmount.Equal(order.ItemsTotal()))
	assert.Equal(t, domain.Variant{"size": "M"}, order.Items[0].Variant)
}

func TestPlace_TotalSurvivesPriceChange(t *testing.T) {
	store := newMemStore()
	store.addProduct("p", "vendor-1", "10.00", 5)
	alice := domain.RegisteredOwner("alice")
	store.addCart("cart-1", alice, domain.CartItem{ProductID: "p", Quantity: 2})

	checkout := orders.NewCheckout(store.checkoutStore(), nil, discardLogger())
	order, err := checkout.Place(context.Background(), orders.CheckoutRequest{
		CartID: "cart-1", Caller: alice, Address: springfield, Payment: domain.COD{},
	})
	require.NoError(t, err)

	store.addProduct("p", "vendor-1", "99.00", 5)

	st := store.read()
	stored := st.orders[order.ID]
	assert.Equal(t, "20.00", stored.TotalAmount.StringFixed(2))
	assert.Equal(t, "10.00", st.items[order.Items[0].ID].UnitPrice.StringFixed(2))
}

func TestPlace_Validation(t *testing.T) {
	store := newMemStore()
	store.addProduct("p", "vendor-1", "10.00", 5)
	alice := domain.RegisteredOwner("alice")
	store.addCart("cart-1", alice, domain.CartItem{ProductID: "p", Quantity: 1})
	store.addCart("empty", alice)
	checkout := orders.NewCheckout(store.checkoutStore(), nil, discardLogger())

	tests := []struct {
		name    string
		req     orders.CheckoutRequest
		wantErr error
	}{
		{
			name:    "missing line1",
			req:     orders.CheckoutRequest{CartID: "cart-1", Caller: alice, Address: domain.Address{City: "Springfield"}, Payment: domain.COD{}},
			wantErr: domain.ErrInvalidAddress,
		},
		{
			name:    "blank city",
			req:     orders.CheckoutRequest{CartID: "cart-1", Caller: alice, Address: domain.Address{Line1: "1 Main St", City: "  "}, Payment: domain.COD{}},
			wantErr: domain.ErrInvalidAddress,
		},
		{
			name:    "no payment",
			req:     orders.CheckoutRequest{CartID: "cart-1", Caller: alice, Address: springfield},
			wantErr: domain.ErrInvalidPaymentMethod,
		},
		{
			name:    "anonymous caller",
			req:     orders.CheckoutRequest{CartID: "cart-1", Address: springfield, Payment: domain.COD{}},
			wantErr: domain.ErrMissingOwner,
		},
		{
			name:    "empty cart",
			req:     orders.CheckoutRequest{CartID: "empty", Caller: alice, Address: springfield, Payment: domain.COD{}},
			wantErr: domain.ErrCartEmpty,
		},
		{
			name:    "unknown cart",
			req:     orders.CheckoutRequest{CartID: "nope", Caller: alice, Address: springfield, Payment: domain.COD{}},
			wantErr: domain.ErrCartNotFound,
		},
		{
			name:    "someone else's cart",
			req:     orders.CheckoutRequest{CartID: "cart-1", Caller: domain.GuestOwner("alice"), Address: springfield, Payment: domain.COD{}},
			wantErr: domain.ErrCartNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := checkout.Place(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, store.read().orders)
		})
	}
}

func TestPlace_MissingProductAbortsEverything(t *testing.T) {
	store := newMemStore()
	store.addProduct("p", "vendor-1", "10.00", 5)
	alice := domain.RegisteredOwner("alice")
	store.addCart("cart-1", alice,
		domain.CartItem{ProductID: "p", Quantity: 1},
		domain.CartItem{ProductID: "gone", Quantity: 1},
	)

	checkout := orders.NewCheckout(store.checkoutStore(), nil, discardLogger())
	_, err := checkout.Place(context.Background(), orders.CheckoutRequest{
		CartID: "cart-1", Caller: alice, Address: springfield, Payment: domain.COD{},
	})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	st := store.read()
	assert.Empty(t, st.orders)
	assert.Empty(t, st.items)
}

func TestPlace_PaymentFailureRollsBack(t *testing.T) {
	store := newMemStore()
	store.addProduct("p", "vendor-1", "10.00", 5)
	alice := domain.RegisteredOwner("alice")
	store.addCart("cart-1", alice, domain.CartItem{ProductID: "p", Quantity: 3})
	store.failInsertPayment = &domain.PersistenceError{Op: "insert payment", Err: errors.New("connection reset")}

	events := &recordingPublisher{}
	checkout := orders.NewCheckout(store.checkoutStore(), events, discardLogger())
	_, err := checkout.Place(context.Background(), orders.CheckoutRequest{
		CartID: "cart-1", Caller: alice, Address: springfield, Payment: domain.COD{},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.True(t, domain.IsRetryable(err))

	st := store.read()
	assert.Empty(t, st.orders)
	assert.Empty(t, st.items)
	assert.Empty(t, st.payments)
	assert.Empty(t, events.events, "nothing is published for a rolled back checkout")

	store.failInsertPayment = nil
	_, err = checkout.Place(context.Background(), orders.CheckoutRequest{
		CartID: "cart-1", Caller: alice, Address: springfield, Payment: domain.COD{},
	})
	assert.NoError(t, err, "retry after rollback succeeds")
}

func TestPlace_CartIsNeverReused(t *testing.T) {
	store := newMemStore()
	store.addProduct("p", "vendor-1", "10.00", 5)
	alice := domain.RegisteredOwner("alice")
	store.addCart("cart-1", alice, domain.CartItem{ProductID: "p", Quantity: 1})

	checkout := orders.NewCheckout(store.checkoutStore(), nil, discardLogger())
	req := orders.CheckoutRequest{CartID: "cart-1", Caller: alice, Address: springfield, Payment: domain.COD{}}

	_, err := checkout.Place(context.Background(), req)
	require.NoError(t, err)

	_, err = checkout.Place(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrCartCheckedOut)
	assert.Len(t, store.read().orders, 1)
}

func TestPlace_PublishFailureKeepsOrder(t *testing.T) {
	store := newMemStore()
	store.addProduct("p", "vendor-1", "10.00", 5)
	alice := domain.RegisteredOwner("alice")
	store.addCart("cart-1", alice, domain.CartItem{ProductID: "p", Quantity: 1})

	events := &recordingPublisher{err: errors.New("broker down")}
	checkout := orders.NewCheckout(store.checkoutStore(), events, discardLogger())

	order, err := checkout.Place(context.Background(), orders.CheckoutRequest{
		CartID: "cart-1", Caller: alice, Address: springfield, Payment: domain.COD{},
	})
	require.NoError(t, err)
	assert.Contains(t, store.read().orders, order.ID)
}
