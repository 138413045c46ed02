package inventory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/ThekraQaqish/Quikko-sub000/internal/database"
	"github.com/ThekraQaqish/Quikko-sub000/internal/domain"
)

// ProductRepository reads products and owns the stock column. Stock is only
// written through WriteLockedStock by the order item decision transaction.
type ProductRepository struct {
	db database.DBTX
}

func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, vendor_id, name, price, stock_quantity, updated_at
		FROM products
		ORDER BY name, id
	`)
	if err != nil {
		return nil, database.Classify("list products", err)
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.VendorID, &p.Name, &p.Price, &p.StockQuantity, &p.UpdatedAt); err != nil {
			return nil, database.Classify("scan product", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, database.Classify("list products", err)
	}

	return products, nil
}

// Get returns ErrProductNotFound when no product has the given id.
func (r *ProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrProductNotFound
	}

	p := &domain.Product{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, vendor_id, name, price, stock_quantity, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.VendorID, &p.Name, &p.Price, &p.StockQuantity, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, database.Classify("get product", err)
	}

	return p, nil
}

// WriteLockedStock stores a new stock level. The caller must hold the row
// lock on the product in the same transaction and must have checked that
// stock is not negative; the CHECK constraint is the last line of defense.
func (r *ProductRepository) WriteLockedStock(ctx context.Context, productID string, stock int) error {
	if stock < 0 {
		return domain.ErrInsufficientStock
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = $2, updated_at = NOW()
		WHERE id = $1
	`, productID, stock)
	if err != nil {
		if database.IsCheckViolation(err, "products_stock_non_negative") {
			return domain.ErrInsufficientStock
		}
		return database.Classify("write stock", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return database.Classify("write stock", err)
	}

	if rowsAffected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

type VendorRepository struct {
	db database.DBTX
}

func NewVendorRepository(db database.DBTX) *VendorRepository {
	return &VendorRepository{db: db}
}

// VendorIDForUser resolves the vendor owned by a user account. ok is false
// when the user is not a vendor.
func (r *VendorRepository) VendorIDForUser(ctx context.Context, userID string) (vendorID string, ok bool, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT id FROM vendors WHERE user_id = $1
	`, userID).Scan(&vendorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, database.Classify("resolve vendor", err)
	}
	return vendorID, true, nil
}
