package orders_test

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
	"github.com/ThekraQaqish/Quikko-sub000/internal/orders"
)

// memState is one snapshot of every table. A transaction works on a clone
// and replaces the committed snapshot only when it succeeds.
type memState struct {
	carts    map[string]domain.Cart
	products map[string]domain.Product
	orders   map[string]domain.Order
	items    map[string]domain.OrderItem
	payments map[string]domain.Payment
}

func (s *memState) clone() *memState {
	out := &memState{
		carts:    make(map[string]domain.Cart, len(s.carts)),
		products: make(map[string]domain.Product, len(s.products)),
		orders:   make(map[string]domain.Order, len(s.orders)),
		items:    make(map[string]domain.OrderItem, len(s.items)),
		payments: make(map[string]domain.Payment, len(s.payments)),
	}
	for k, v := range s.carts {
		out.carts[k] = v
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	for k, v := range s.orders {
		out.orders[k] = v
	}
	for k, v := range s.items {
		out.items[k] = v
	}
	for k, v := range s.payments {
		out.payments[k] = v
	}
	return out
}

// memStore serializes transactions with a mutex, which stands in for the
// row locks PostgreSQL would take.
type memStore struct {
	mu      sync.Mutex
	state   *memState
	vendors map[string]string

	failInsertPayment error
	failLockItem      error
}

func newMemStore() *memStore {
	return &memStore{
		state: &memState{
			carts:    map[string]domain.Cart{},
			products: map[string]domain.Product{},
			orders:   map[string]domain.Order{},
			items:    map[string]domain.OrderItem{},
			payments: map[string]domain.Payment{},
		},
		vendors: map[string]string{},
	}
}

func (m *memStore) run(fn func(st *memState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.state.clone()
	if err := fn(staged); err != nil {
		return err
	}
	m.state = staged
	return nil
}

func (m *memStore) read() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) addVendor(userID, vendorID string) {
	m.vendors[userID] = vendorID
}

func (m *memStore) addProduct(id, vendorID, price string, stock int) {
	m.state.products[id] = domain.Product{
		ID:            id,
		VendorID:      vendorID,
		Name:          "product " + id,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
}

func (m *memStore) addCart(id string, owner domain.Owner, items ...domain.CartItem) {
	for i := range items {
		items[i].CartID = id
		if items[i].ID == "" {
			items[i].ID = id + "-line-" + items[i].ProductID
		}
	}
	m.state.carts[id] = domain.Cart{ID: id, Owner: owner, Items: items}
}

func (m *memStore) stock(productID string) int {
	return m.read().products[productID].StockQuantity
}

func (m *memStore) item(id string) domain.OrderItem {
	return m.read().items[id]
}

func (m *memStore) checkoutStore() orders.CheckoutStore {
	return memCheckoutStore{m}
}

func (m *memStore) decisionStore() orders.DecisionStore {
	return memDecisionStore{m}
}

type memCheckoutStore struct{ m *memStore }

func (s memCheckoutStore) InTx(_ context.Context, fn func(tx orders.CheckoutTx) error) error {
	return s.m.run(func(st *memState) error {
		return fn(&memCheckoutTx{st: st, m: s.m})
	})
}

type memCheckoutTx struct {
	st *memState
	m  *memStore
}

func (t *memCheckoutTx) GetCart(_ context.Context, cartID string) (*domain.Cart, error) {
	cart, ok := t.st.carts[cartID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	cart.Items = append([]domain.CartItem(nil), cart.Items...)
	return &cart, nil
}

func (t *memCheckoutTx) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	p, ok := t.st.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (t *memCheckoutTx) InsertOrder(_ context.Context, order *domain.Order) error {
	for _, existing := range t.st.orders {
		if existing.CartID == order.CartID {
			return domain.ErrCartCheckedOut
		}
	}
	stored := *order
	stored.Items = nil
	stored.Payment = nil
	t.st.orders[order.ID] = stored
	return nil
}

func (t *memCheckoutTx) InsertOrderItem(_ context.Context, item *domain.OrderItem) error {
	t.st.items[item.ID] = *item
	return nil
}

func (t *memCheckoutTx) InsertPayment(_ context.Context, payment *domain.Payment) error {
	if t.m.failInsertPayment != nil {
		return t.m.failInsertPayment
	}
	t.st.payments[payment.OrderID] = *payment
	return nil
}

type memDecisionStore struct{ m *memStore }

func (s memDecisionStore) VendorIDForUser(_ context.Context, userID string) (string, bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	vendorID, ok := s.m.vendors[userID]
	return vendorID, ok, nil
}

func (s memDecisionStore) InTx(_ context.Context, fn func(tx orders.DecisionTx) error) error {
	return s.m.run(func(st *memState) error {
		return fn(&memDecisionTx{st: st, m: s.m})
	})
}

type memDecisionTx struct {
	st *memState
	m  *memStore
}

func (t *memDecisionTx) LockItem(_ context.Context, orderItemID, vendorID string) (*orders.LockedItem, error) {
	if t.m.failLockItem != nil {
		return nil, t.m.failLockItem
	}
	item, ok := t.st.items[orderItemID]
	if !ok || item.VendorID != vendorID {
		return nil, domain.ErrOrderItemNotFound
	}
	return &orders.LockedItem{Item: item, Stock: t.st.products[item.ProductID].StockQuantity}, nil
}

func (t *memDecisionTx) WriteLockedStock(_ context.Context, productID string, stock int) error {
	if stock < 0 {
		return domain.ErrInsufficientStock
	}
	p, ok := t.st.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.StockQuantity = stock
	t.st.products[productID] = p
	return nil
}

func (t *memDecisionTx) SetVendorStatus(_ context.Context, orderItemID string, status domain.VendorStatus, decidedAt time.Time) error {
	item := t.st.items[orderItemID]
	if item.VendorStatus != domain.VendorStatusPending {
		return domain.ErrAlreadyDecided
	}
	item.VendorStatus = status
	item.DecidedAt = &decidedAt
	t.st.items[orderItemID] = item
	return nil
}

// LoadStatusView lets the projector read straight from the committed state.
func (m *memStore) LoadStatusView(_ context.Context, orderID string) (*orders.OrderStatusView, error) {
	st := m.read()
	order, ok := st.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}

	view := &orders.OrderStatusView{
		OrderID:       orderID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		ItemCounts:    map[domain.VendorStatus]int{},
	}
	if p, ok := st.payments[orderID]; ok {
		view.Payment = &orders.PaymentView{Method: p.Method, Status: p.Status}
	}
	for _, item := range st.items {
		if item.OrderID == orderID {
			view.ItemCounts[item.VendorStatus]++
			view.TotalItems++
		}
	}
	view.Settled = view.ItemCounts[domain.VendorStatusPending] == 0
	return view, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []any
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.events = append(p.events, event)
	return p.err
}
