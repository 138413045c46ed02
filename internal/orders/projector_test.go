package orders_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
	"github.com/ThekraQaqish/Quikko-sub000/internal/orders"
)

type mapViewCache struct {
	views    map[string]*orders.OrderStatusView
	versions map[string]int64
	getErr   error
}

func newMapViewCache() *mapViewCache {
	return &mapViewCache{
		views:    map[string]*orders.OrderStatusView{},
		versions: map[string]int64{},
	}
}

func (c *mapViewCache) Get(_ context.Context, orderID string) (*orders.OrderStatusView, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.views[orderID], nil
}

func (c *mapViewCache) Version(_ context.Context, orderID string) (int64, error) {
	return c.versions[orderID], nil
}

func (c *mapViewCache) SetIfVersion(_ context.Context, view *orders.OrderStatusView, version int64) (bool, error) {
	if c.versions[view.OrderID] != version {
		return false, nil
	}
	c.views[view.OrderID] = view
	return true, nil
}

func (c *mapViewCache) Delete(_ context.Context, orderID string) error {
	c.versions[orderID]++
	delete(c.views, orderID)
	return nil
}

// interleavedSource runs afterLoad once, between reading the view and
// handing it back to the projector.
type interleavedSource struct {
	orders.ViewSource
	afterLoad func()
}

func (s *interleavedSource) LoadStatusView(ctx context.Context, orderID string) (*orders.OrderStatusView, error) {
	view, err := s.ViewSource.LoadStatusView(ctx, orderID)
	if s.afterLoad != nil {
		hook := s.afterLoad
		s.afterLoad = nil
		hook()
	}
	return view, err
}

func TestProjector_ReportsDistributionWithoutDerivingStatus(t *testing.T) {
	store := newMemStore()
	store.addVendor("vendor-user", "vendor-1")
	store.addProduct("p", "vendor-1", "10.00", 5)
	store.addProduct("q", "vendor-1", "3.00", 5)
	alice := domain.RegisteredOwner("alice")
	store.addCart("cart-1", alice,
		domain.CartItem{ProductID: "p", Quantity: 1},
		domain.CartItem{ProductID: "q", Quantity: 1},
	)

	order, err := orders.NewCheckout(store.checkoutStore(), nil, discardLogger()).
		Place(context.Background(), orders.CheckoutRequest{
			CartID: "cart-1", Caller: alice, Address: springfield,
			Payment: domain.PayPal{PayerEmail: "a@example.com", TransactionID: "pp-1"},
		})
	require.NoError(t, err)

	cache := newMapViewCache()
	projector := orders.NewProjector(store, cache, discardLogger())
	decisions := orders.NewDecisions(store.decisionStore(), nil, projector, discardLogger())

	view, err := projector.View(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.ItemCounts[domain.VendorStatusPending])
	assert.False(t, view.Settled)
	require.NotNil(t, view.Payment)
	assert.Equal(t, domain.PaymentMethodPayPal, view.Payment.Method)
	assert.Equal(t, domain.PaymentStatusPaid, view.Payment.Status)
	assert.Contains(t, cache.views, order.ID)

	for _, item := range order.Items {
		_, err := decisions.Decide(context.Background(), item.ID, "vendor-user", "rejected")
		require.NoError(t, err)
	}
	assert.NotContains(t, cache.views, order.ID, "decisions invalidate the cached view")

	view, err = projector.View(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.ItemCounts[domain.VendorStatusRejected])
	assert.Equal(t, 2, view.TotalItems)
	assert.True(t, view.Settled)
	assert.Equal(t, domain.OrderStatusPending, view.Status, "order status is not derived from item decisions")
}

func TestProjector_DecisionDuringLoadIsNotOverwritten(t *testing.T) {
	store := newMemStore()
	store.addVendor("vendor-user", "vendor-1")
	store.addProduct("p", "vendor-1", "10.00", 5)
	alice := domain.RegisteredOwner("alice")
	store.addCart("cart-1", alice, domain.CartItem{ProductID: "p", Quantity: 1})

	order, err := orders.NewCheckout(store.checkoutStore(), nil, discardLogger()).
		Place(context.Background(), orders.CheckoutRequest{
			CartID: "cart-1", Caller: alice, Address: springfield,
			Payment: domain.PayPal{PayerEmail: "a@example.com", TransactionID: "pp-1"},
		})
	require.NoError(t, err)

	cache := newMapViewCache()
	source := &interleavedSource{ViewSource: store}
	projector := orders.NewProjector(source, cache, discardLogger())
	decisions := orders.NewDecisions(store.decisionStore(), nil, projector, discardLogger())

	source.afterLoad = func() {
		_, err := decisions.Decide(context.Background(), order.Items[0].ID, "vendor-user", "accepted")
		require.NoError(t, err)
	}

	view, err := projector.View(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.ItemCounts[domain.VendorStatusPending], "the in-flight read still sees its snapshot")
	assert.NotContains(t, cache.views, order.ID, "a view loaded before invalidation must not be cached")

	view, err = projector.View(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.ItemCounts[domain.VendorStatusPending])
	assert.Equal(t, 1, view.ItemCounts[domain.VendorStatusAccepted])
	assert.True(t, view.Settled)
	assert.Contains(t, cache.views, order.ID)
}

func TestProjector_CacheFailureFallsBackToSource(t *testing.T) {
	store := newMemStore()
	cache := newMapViewCache()
	cache.getErr = errors.New("redis down")
	projector := orders.NewProjector(store, cache, discardLogger())

	_, err := projector.View(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestProjector_WithoutCache(t *testing.T) {
	projector := orders.NewProjector(newMemStore(), nil, discardLogger())
	assert.NoError(t, projector.Invalidate(context.Background(), "any"))
}
