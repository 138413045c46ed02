package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
	"github.com/ThekraQaqish/Quikko-sub000/internal/orders"
)

type recordingInvalidator struct {
	mu       sync.Mutex
	orderIDs []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orderIDs = append(r.orderIDs, orderID)
	return nil
}

// placeOrder checks out a one-line cart and returns the created item id.
func placeOrder(t *testing.T, store *memStore, cartID, productID string, quantity int) string {
	t.Helper()
	owner := domain.RegisteredOwner("customer-" + cartID)
	store.addCart(cartID, owner, domain.CartItem{ProductID: productID, Quantity: quantity})

	checkout := orders.NewCheckout(store.checkoutStore(), nil, discardLogger())
	order, err := checkout.Place(context.Background(), orders.CheckoutRequest{
		CartID: cartID, Caller: owner, Address: springfield, Payment: domain.COD{},
	})
	require.NoError(t, err)
	return order.Items[0].ID
}

func TestDecide_AcceptThenAlreadyDecided(t *testing.T) {
	store := newMemStore()
	store.addVendor("vendor-user", "vendor-1")
	store.addProduct("p", "vendor-1", "10.00", 5)
	itemID := placeOrder(t, store, "cart-1", "p", 3)
	require.Equal(t, 5, store.stock("p"))

	events := &recordingPublisher{}
	views := &recordingInvalidator{}
	decisions := orders.NewDecisions(store.decisionStore(), events, views, discardLogger())

	item, err := decisions.Decide(context.Background(), itemID, "vendor-user", "accepted")
	require.NoError(t, err)
	assert.Equal(t, domain.VendorStatusAccepted, item.VendorStatus)
	assert.NotNil(t, item.DecidedAt)
	assert.Equal(t, 2, store.stock("p"))

	_, err = decisions.Decide(context.Background(), itemID, "vendor-user", "accepted")
	assert.ErrorIs(t, err, domain.ErrAlreadyDecided)
	assert.Equal(t, 2, store.stock("p"), "second decision must not touch stock")

	_, err = decisions.Decide(context.Background(), itemID, "vendor-user", "rejected")
	assert.ErrorIs(t, err, domain.ErrAlreadyDecided)
	assert.Equal(t, domain.VendorStatusAccepted, store.item(itemID).VendorStatus)

	require.Len(t, events.events, 1)
	decided, ok := events.events[0].(domain.OrderItemDecidedEvent)
	require.True(t, ok)
	assert.Equal(t, domain.VendorStatusAccepted, decided.Decision)
	assert.Equal(t, []string{item.OrderID}, views.orderIDs)
}

func TestDecide_RejectLeavesStock(t *testing.T) {
	store := newMemStore()
	store.addVendor("vendor-user", "vendor-1")
	store.addProduct("p", "vendor-1", "10.00", 5)
	itemID := placeOrder(t, store, "cart-1", "p", 3)

	decisions := orders.NewDecisions(store.decisionStore(), nil, nil, discardLogger())
	item, err := decisions.Decide(context.Background(), itemID, "vendor-user", "rejected")
	require.NoError(t, err)
	assert.Equal(t, domain.VendorStatusRejected, item.VendorStatus)
	assert.Equal(t, 5, store.stock("p"))
}

func TestDecide_InsufficientStockKeepsPending(t *testing.T) {
	store := newMemStore()
	store.addVendor("vendor-user", "vendor-1")
	store.addProduct("p", "vendor-1", "10.00", 2)
	itemID := placeOrder(t, store, "cart-1", "p", 3)

	decisions := orders.NewDecisions(store.decisionStore(), nil, nil, discardLogger())
	_, err := decisions.Decide(context.Background(), itemID, "vendor-user", "accepted")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.False(t, domain.IsRetryable(err))
	assert.Equal(t, 2, store.stock("p"))
	assert.Equal(t, domain.VendorStatusPending, store.item(itemID).VendorStatus)

	// The line stays pending, so the vendor can still reject it.
	_, err = decisions.Decide(context.Background(), itemID, "vendor-user", "rejected")
	assert.NoError(t, err)
}

func TestDecide_Rejections(t *testing.T) {
	store := newMemStore()
	store.addVendor("vendor-user", "vendor-1")
	store.addVendor("other-vendor-user", "vendor-2")
	store.addProduct("p", "vendor-1", "10.00", 5)
	itemID := placeOrder(t, store, "cart-1", "p", 1)

	decisions := orders.NewDecisions(store.decisionStore(), nil, nil, discardLogger())

	tests := []struct {
		name     string
		itemID   string
		userID   string
		decision string
		wantErr  error
	}{
		{name: "bad decision", itemID: itemID, userID: "vendor-user", decision: "pending", wantErr: domain.ErrInvalidDecision},
		{name: "empty decision", itemID: itemID, userID: "vendor-user", decision: "", wantErr: domain.ErrInvalidDecision},
		{name: "not a vendor", itemID: itemID, userID: "customer", decision: "accepted", wantErr: domain.ErrNotAVendor},
		{name: "foreign vendor", itemID: itemID, userID: "other-vendor-user", decision: "accepted", wantErr: domain.ErrOrderItemNotFound},
		{name: "unknown item", itemID: "missing", userID: "vendor-user", decision: "accepted", wantErr: domain.ErrOrderItemNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decisions.Decide(context.Background(), tt.itemID, tt.userID, tt.decision)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 5, store.stock("p"))
			assert.Equal(t, domain.VendorStatusPending, store.item(itemID).VendorStatus)
		})
	}
}

func TestDecide_PersistenceFailureIsRetryable(t *testing.T) {
	store := newMemStore()
	store.addVendor("vendor-user", "vendor-1")
	store.addProduct("p", "vendor-1", "10.00", 5)
	itemID := placeOrder(t, store, "cart-1", "p", 1)

	store.failLockItem = &domain.PersistenceError{Op: "lock order item", Err: errors.New("lock timeout"), Transient: true}
	decisions := orders.NewDecisions(store.decisionStore(), nil, nil, discardLogger())

	_, err := decisions.Decide(context.Background(), itemID, "vendor-user", "accepted")
	assert.True(t, domain.IsRetryable(err))
	assert.True(t, domain.IsTransient(err))

	store.failLockItem = nil
	_, err = decisions.Decide(context.Background(), itemID, "vendor-user", "accepted")
	assert.NoError(t, err)
	assert.Equal(t, 4, store.stock("p"))
}

func TestDecide_ConcurrentAcceptsNeverOversell(t *testing.T) {
	store := newMemStore()
	store.addVendor("vendor-user", "vendor-1")
	store.addProduct("p", "vendor-1", "10.00", 1)
	first := placeOrder(t, store, "cart-1", "p", 1)
	second := placeOrder(t, store, "cart-2", "p", 1)

	decisions := orders.NewDecisions(store.decisionStore(), nil, nil, discardLogger())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{first, second} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = decisions.Decide(context.Background(), id, "vendor-user", "accepted")
		}(i, id)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, 0, store.stock("p"))

	statuses := []domain.VendorStatus{store.item(first).VendorStatus, store.item(second).VendorStatus}
	assert.ElementsMatch(t, []domain.VendorStatus{domain.VendorStatusAccepted, domain.VendorStatusPending}, statuses)
}

func TestDecide_ConcurrentSameItemSingleTransition(t *testing.T) {
	store := newMemStore()
	store.addVendor("vendor-user", "vendor-1")
	store.addProduct("p", "vendor-1", "10.00", 100)
	itemID := placeOrder(t, store, "cart-1", "p", 2)

	decisions := orders.NewDecisions(store.decisionStore(), nil, nil, discardLogger())

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := decisions.Decide(context.Background(), itemID, "vendor-user", "accepted")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAlreadyDecided)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 98, store.stock("p"))
}
