package orders

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ThekraQaqish/Quikko-sub000/internal/database"
	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
)

type OrderRepository struct {
	db database.DBTX
}

func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `
	id, user_id, guest_token, cart_id,
	shipping_line1, shipping_line2, shipping_city, shipping_state, shipping_postal_code, shipping_country,
	status, payment_status, total_amount, created_at, updated_at`

// InsertOrder stores the order row. A second order for the same cart
// fails with ErrCartCheckedOut.
func (r *OrderRepository) InsertOrder(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	userID, guestToken := order.Customer.Columns()
	a := order.ShippingAddress

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
	`, order.ID, userID, guestToken, order.CartID,
		a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country,
		order.Status, order.PaymentStatus, order.TotalAmount, order.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "orders_cart_id_key") {
			return domain.ErrCartCheckedOut
		}
		return database.Classify("insert order", err)
	}

	order.UpdatedAt = order.CreatedAt
	return nil
}

func (r *OrderRepository) InsertItem(ctx context.Context, item *domain.OrderItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, vendor_id, quantity, unit_price, variant, vendor_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.OrderID, item.ProductID, item.VendorID, item.Quantity, item.UnitPrice, item.Variant, item.VendorStatus)
	return database.Classify("insert order item", err)
}

func (r *OrderRepository) InsertPayment(ctx context.Context, p *domain.Payment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	userID, guestToken := p.Customer.Columns()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (
			id, order_id, user_id, guest_token, method, amount, status,
			transaction_id, card_last4, card_brand, card_expiry_month, card_expiry_year,
			payer_email, payer_name, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, p.ID, p.OrderID, userID, guestToken, p.Method, p.Amount, p.Status,
		p.TransactionID, p.CardLast4, p.CardBrand, p.CardExpiryMonth, p.CardExpiryYear,
		p.PayerEmail, p.PayerName, p.CreatedAt)
	return database.Classify("insert payment", err)
}

// GetByID loads an order with its items and payment record.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrOrderNotFound
	}

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, database.Classify("get order", err)
	}

	if err := r.attachItems(ctx, map[string]*domain.Order{order.ID: order}, []string{order.ID}); err != nil {
		return nil, err
	}

	order.Payment, err = r.GetPayment(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	return order, nil
}

// ListByCustomer returns the customer's orders, newest first, with items.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customer domain.Owner) ([]domain.Order, error) {
	column, value := "user_id", ""
	if userID, ok := customer.UserID(); ok {
		value = userID
	} else if token, ok := customer.GuestToken(); ok {
		column, value = "guest_token", token
	} else {
		return nil, domain.ErrMissingOwner
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE `+column+` = $1
		ORDER BY created_at DESC, id
	`, value)
	if err != nil {
		return nil, database.Classify("list orders", err)
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, database.Classify("scan order", err)
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, database.Classify("list orders", err)
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	if err := r.attachItems(ctx, orderMap, orderIDs); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// attachItems loads the items of every listed order in one query.
func (r *OrderRepository) attachItems(ctx context.Context, orderMap map[string]*domain.Order, orderIDs []string) error {
	for _, id := range orderIDs {
		orderMap[id].Items = []domain.OrderItem{}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, vendor_id, quantity, unit_price, variant, vendor_status, decided_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at, id
	`, pq.Array(orderIDs))
	if err != nil {
		return database.Classify("list order items", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.VendorID, &item.Quantity,
			&item.UnitPrice, &item.Variant, &item.VendorStatus, &item.DecidedAt); err != nil {
			return database.Classify("scan order item", err)
		}
		order := orderMap[item.OrderID]
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return database.Classify("list order items", err)
	}

	return nil
}

// GetPayment returns nil when the order has no payment record.
func (r *OrderRepository) GetPayment(ctx context.Context, orderID string) (*domain.Payment, error) {
	p := &domain.Payment{}
	var userID, guestToken *string
	var month, year sql.NullInt32

	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, user_id, guest_token, method, amount, status,
		       transaction_id, card_last4, card_brand, card_expiry_month, card_expiry_year,
		       payer_email, payer_name, created_at
		FROM payments
		WHERE order_id = $1
	`, orderID).Scan(&p.ID, &p.OrderID, &userID, &guestToken, &p.Method, &p.Amount, &p.Status,
		&p.TransactionID, &p.CardLast4, &p.CardBrand, &month, &year,
		&p.PayerEmail, &p.PayerName, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, database.Classify("get payment", err)
	}

	p.Customer, err = domain.OwnerFromColumns(userID, guestToken)
	if err != nil {
		return nil, database.Classify("get payment", err)
	}
	p.CardExpiryMonth = nullInt(month)
	p.CardExpiryYear = nullInt(year)

	return p, nil
}

// UpdateStatus moves an order along the delivery transition table. The
// check and the write happen in one statement, so concurrent updates
// cannot both pass the check.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrOrderNotFound
	}

	from := make([]string, 0, 2)
	for _, s := range status.Predecessors() {
		from = append(from, string(s))
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`, id, status, pq.Array(from))
	if err != nil {
		return nil, database.Classify("update order status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, database.Classify("update order status", err)
	}

	if rowsAffected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)
		`, id).Scan(&exists); err != nil {
			return nil, database.Classify("update order status", err)
		}
		if !exists {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.ErrInvalidTransition
	}

	return r.GetByID(ctx, id)
}

// LockItem locks an order item together with its product row. Items of
// other vendors are reported as not found.
func (r *OrderRepository) LockItem(ctx context.Context, orderItemID, vendorID string) (*LockedItem, error) {
	if _, err := uuid.Parse(orderItemID); err != nil {
		return nil, domain.ErrOrderItemNotFound
	}

	locked := &LockedItem{}
	item := &locked.Item
	err := r.db.QueryRowContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.vendor_id, oi.quantity, oi.unit_price,
		       oi.variant, oi.vendor_status, oi.decided_at, p.stock_quantity
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.id = $1 AND oi.vendor_id = $2
		FOR UPDATE OF oi, p
	`, orderItemID, vendorID).Scan(&item.ID, &item.OrderID, &item.ProductID, &item.VendorID, &item.Quantity,
		&item.UnitPrice, &item.Variant, &item.VendorStatus, &item.DecidedAt, &locked.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderItemNotFound
		}
		return nil, database.Classify("lock order item", err)
	}

	return locked, nil
}

// SetVendorStatus records a decision on a line that is still pending.
func (r *OrderRepository) SetVendorStatus(ctx context.Context, orderItemID string, status domain.VendorStatus, decidedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE order_items SET vendor_status = $2, decided_at = $3
		WHERE id = $1 AND vendor_status = 'pending'
	`, orderItemID, status, decidedAt)
	if err != nil {
		return database.Classify("set vendor status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return database.Classify("set vendor status", err)
	}

	if rowsAffected == 0 {
		return domain.ErrAlreadyDecided
	}

	return nil
}

// LoadStatusView reads everything the status projector reports for one
// order in a single round trip.
func (r *OrderRepository) LoadStatusView(ctx context.Context, orderID string) (*OrderStatusView, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, domain.ErrOrderNotFound
	}

	view := &OrderStatusView{OrderID: orderID}
	var method, paymentStatus sql.NullString
	var pending, accepted, rejected int

	err := r.db.QueryRowContext(ctx, `
		SELECT o.status, o.payment_status, pay.method, pay.status,
		       COUNT(oi.id) FILTER (WHERE oi.vendor_status = 'pending'),
		       COUNT(oi.id) FILTER (WHERE oi.vendor_status = 'accepted'),
		       COUNT(oi.id) FILTER (WHERE oi.vendor_status = 'rejected')
		FROM orders o
		LEFT JOIN payments pay ON pay.order_id = o.id
		LEFT JOIN order_items oi ON oi.order_id = o.id
		WHERE o.id = $1
		GROUP BY o.id, pay.id
	`, orderID).Scan(&view.Status, &view.PaymentStatus, &method, &paymentStatus, &pending, &accepted, &rejected)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, database.Classify("load status view", err)
	}

	if method.Valid {
		view.Payment = &PaymentView{
			Method: domain.PaymentMethod(method.String),
			Status: domain.PaymentStatus(paymentStatus.String),
		}
	}
	view.setCounts(pending, accepted, rejected)

	return view, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{}
	var userID, guestToken *string
	a := &o.ShippingAddress

	if err := row.Scan(&o.ID, &userID, &guestToken, &o.CartID,
		&a.Line1, &a.Line2, &a.City, &a.State, &a.PostalCode, &a.Country,
		&o.Status, &o.PaymentStatus, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}

	customer, err := domain.OwnerFromColumns(userID, guestToken)
	if err != nil {
		return nil, err
	}
	o.Customer = customer

	return o, nil
}

func nullInt(n sql.NullInt32) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int32)
	return &v
}
