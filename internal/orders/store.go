package orders

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ThekraQaqish/Quikko-sub000/internal/carts"
	"github.com/ThekraQaqish/Quikko-sub000/internal/database"
	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
	"github.com/ThekraQaqish/Quikko-sub000/internal/inventory"
)

// CheckoutStore runs fn in a single transaction. The transaction commits
// only when fn returns nil.
type CheckoutStore interface {
	InTx(ctx context.Context, fn func(tx CheckoutTx) error) error
}

type CheckoutTx interface {
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	InsertOrder(ctx context.Context, order *domain.Order) error
	InsertOrderItem(ctx context.Context, item *domain.OrderItem) error
	InsertPayment(ctx context.Context, payment *domain.Payment) error
}

type DecisionStore interface {
	VendorIDForUser(ctx context.Context, userID string) (vendorID string, ok bool, err error)
	InTx(ctx context.Context, fn func(tx DecisionTx) error) error
}

type DecisionTx interface {
	LockItem(ctx context.Context, orderItemID, vendorID string) (*LockedItem, error)
	WriteLockedStock(ctx context.Context, productID string, stock int) error
	SetVendorStatus(ctx context.Context, orderItemID string, status domain.VendorStatus, decidedAt time.Time) error
}

// LockedItem is an order item read under FOR UPDATE together with the
// stock of its product.
type LockedItem struct {
	Item  domain.OrderItem
	Stock int
}

type PostgresCheckoutStore struct {
	db *sql.DB
}

func NewPostgresCheckoutStore(db *sql.DB) *PostgresCheckoutStore {
	return &PostgresCheckoutStore{db: db}
}

func (s *PostgresCheckoutStore) InTx(ctx context.Context, fn func(tx CheckoutTx) error) error {
	return database.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		return fn(&pgCheckoutTx{
			carts:    carts.NewCartRepository(tx),
			products: inventory.NewProductRepository(tx),
			orders:   NewOrderRepository(tx),
		})
	})
}

type pgCheckoutTx struct {
	carts    *carts.CartRepository
	products *inventory.ProductRepository
	orders   *OrderRepository
}

func (t *pgCheckoutTx) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	return t.carts.GetLocked(ctx, cartID)
}

func (t *pgCheckoutTx) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return t.products.Get(ctx, productID)
}

func (t *pgCheckoutTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	return t.orders.InsertOrder(ctx, order)
}

func (t *pgCheckoutTx) InsertOrderItem(ctx context.Context, item *domain.OrderItem) error {
	return t.orders.InsertItem(ctx, item)
}

func (t *pgCheckoutTx) InsertPayment(ctx context.Context, payment *domain.Payment) error {
	return t.orders.InsertPayment(ctx, payment)
}

type PostgresDecisionStore struct {
	db          *sql.DB
	vendors     *inventory.VendorRepository
	lockTimeout time.Duration
}

// NewPostgresDecisionStore bounds every row lock wait by lockTimeout. Zero
// leaves the server default in place.
func NewPostgresDecisionStore(db *sql.DB, lockTimeout time.Duration) *PostgresDecisionStore {
	return &PostgresDecisionStore{
		db:          db,
		vendors:     inventory.NewVendorRepository(db),
		lockTimeout: lockTimeout,
	}
}

func (s *PostgresDecisionStore) VendorIDForUser(ctx context.Context, userID string) (string, bool, error) {
	return s.vendors.VendorIDForUser(ctx, userID)
}

func (s *PostgresDecisionStore) InTx(ctx context.Context, fn func(tx DecisionTx) error) error {
	return database.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if s.lockTimeout > 0 {
			timeout := fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())
			if _, err := tx.ExecContext(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
				return database.Classify("set lock timeout", err)
			}
		}
		return fn(&pgDecisionTx{
			products: inventory.NewProductRepository(tx),
			orders:   NewOrderRepository(tx),
		})
	})
}

type pgDecisionTx struct {
	products *inventory.ProductRepository
	orders   *OrderRepository
}

func (t *pgDecisionTx) LockItem(ctx context.Context, orderItemID, vendorID string) (*LockedItem, error) {
	return t.orders.LockItem(ctx, orderItemID, vendorID)
}

func (t *pgDecisionTx) WriteLockedStock(ctx context.Context, productID string, stock int) error {
	return t.products.WriteLockedStock(ctx, productID, stock)
}

func (t *pgDecisionTx) SetVendorStatus(ctx context.Context, orderItemID string, status domain.VendorStatus, decidedAt time.Time) error {
	return t.orders.SetVendorStatus(ctx, orderItemID, status, decidedAt)
}
