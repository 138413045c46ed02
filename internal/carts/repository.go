package carts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ThekraQaqish/Quikko-sub000/internal/database"
	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
)

type CartRepository struct {
	db database.DBTX
}

func NewCartRepository(db database.DBTX) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Create(ctx context.Context, owner domain.Owner) (*domain.Cart, error) {
	if owner.IsZero() {
		return nil, domain.ErrMissingOwner
	}

	now := time.Now().UTC()
	cart := &domain.Cart{
		ID:        uuid.New().String(),
		Owner:     owner,
		Items:     []domain.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	userID, guestToken := owner.Columns()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, guest_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, cart.ID, userID, guestToken, now)
	if err != nil {
		return nil, database.Classify("create cart", err)
	}

	return cart, nil
}

// Get loads a cart with its items.
func (r *CartRepository) Get(ctx context.Context, cartID string) (*domain.Cart, error) {
	return r.get(ctx, cartID, false)
}

// GetLocked loads a cart and holds its row lock until the surrounding
// transaction ends, so item changes cannot interleave with checkout.
func (r *CartRepository) GetLocked(ctx context.Context, cartID string) (*domain.Cart, error) {
	return r.get(ctx, cartID, true)
}

func (r *CartRepository) get(ctx context.Context, cartID string, lock bool) (*domain.Cart, error) {
	if _, err := uuid.Parse(cartID); err != nil {
		return nil, domain.ErrCartNotFound
	}

	query := `
		SELECT id, user_id, guest_token, created_at, updated_at
		FROM carts
		WHERE id = $1
	`
	if lock {
		query += " FOR UPDATE"
	}

	cart := &domain.Cart{}
	var userID, guestToken *string
	err := r.db.QueryRowContext(ctx, query, cartID).
		Scan(&cart.ID, &userID, &guestToken, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCartNotFound
		}
		return nil, database.Classify("get cart", err)
	}

	cart.Owner, err = domain.OwnerFromColumns(userID, guestToken)
	if err != nil {
		return nil, database.Classify("get cart", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, cart_id, product_id, quantity, variant, added_at
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY added_at, id
	`, cartID)
	if err != nil {
		return nil, database.Classify("list cart items", err)
	}
	defer func() { _ = rows.Close() }()

	cart.Items = []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.Variant, &item.AddedAt); err != nil {
			return nil, database.Classify("scan cart item", err)
		}
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, database.Classify("list cart items", err)
	}

	return cart, nil
}

// AddItem adds a line to the cart. Adding a product with the same variant
// again increases the existing line's quantity, up to MaxLineQuantity.
func (r *CartRepository) AddItem(ctx context.Context, cartID, productID string, quantity int, variant domain.Variant) (*domain.CartItem, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	if quantity > domain.MaxLineQuantity {
		return nil, domain.ErrQuantityTooLarge
	}
	if _, err := uuid.Parse(productID); err != nil {
		return nil, domain.ErrProductNotFound
	}
	if variant == nil {
		variant = domain.Variant{}
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)
	`, productID).Scan(&exists); err != nil {
		return nil, database.Classify("check product", err)
	}
	if !exists {
		return nil, domain.ErrProductNotFound
	}

	item := &domain.CartItem{}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, variant, added_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT ON CONSTRAINT cart_items_line_key
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, cart_id, product_id, quantity, variant, added_at
	`, uuid.New().String(), cartID, productID, quantity, variant).
		Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.Variant, &item.AddedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err, "") {
			return nil, domain.ErrCartNotFound
		}
		if database.IsCheckViolation(err, "cart_items_quantity_max") {
			return nil, domain.ErrQuantityTooLarge
		}
		return nil, database.Classify("add cart item", err)
	}

	return item, r.touch(ctx, cartID)
}

// UpdateItemQuantity sets a line's quantity. A quantity below one removes
// the line, in which case the returned item is nil.
func (r *CartRepository) UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) (*domain.CartItem, error) {
	if quantity < 1 {
		return nil, r.RemoveItem(ctx, cartID, itemID)
	}
	if quantity > domain.MaxLineQuantity {
		return nil, domain.ErrQuantityTooLarge
	}
	if _, err := uuid.Parse(itemID); err != nil {
		return nil, domain.ErrCartItemNotFound
	}

	item := &domain.CartItem{}
	err := r.db.QueryRowContext(ctx, `
		UPDATE cart_items SET quantity = $3
		WHERE id = $2 AND cart_id = $1
		RETURNING id, cart_id, product_id, quantity, variant, added_at
	`, cartID, itemID, quantity).
		Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.Variant, &item.AddedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCartItemNotFound
		}
		return nil, database.Classify("update cart item", err)
	}

	return item, r.touch(ctx, cartID)
}

func (r *CartRepository) RemoveItem(ctx context.Context, cartID, itemID string) error {
	if _, err := uuid.Parse(itemID); err != nil {
		return domain.ErrCartItemNotFound
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE id = $2 AND cart_id = $1
	`, cartID, itemID)
	if err != nil {
		return database.Classify("remove cart item", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return database.Classify("remove cart item", err)
	}
	if rowsAffected == 0 {
		return domain.ErrCartItemNotFound
	}

	return r.touch(ctx, cartID)
}

func (r *CartRepository) Delete(ctx context.Context, cartID string) error {
	if _, err := uuid.Parse(cartID); err != nil {
		return domain.ErrCartNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return database.Classify("delete cart", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return database.Classify("delete cart", err)
	}
	if rowsAffected == 0 {
		return domain.ErrCartNotFound
	}

	return nil
}

// DeleteCheckedOut removes a cart only if an order was created from it.
// deleted is false when the cart is already gone or was never checked out.
func (r *CartRepository) DeleteCheckedOut(ctx context.Context, cartID string) (deleted bool, err error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM carts c
		WHERE c.id = $1
		  AND EXISTS (SELECT 1 FROM orders o WHERE o.cart_id = c.id)
	`, cartID)
	if err != nil {
		return false, database.Classify("delete checked out cart", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, database.Classify("delete checked out cart", err)
	}

	return rowsAffected > 0, nil
}

func (r *CartRepository) touch(ctx context.Context, cartID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID)
	return database.Classify("touch cart", err)
}
