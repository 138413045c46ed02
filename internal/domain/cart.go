package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Variant is the free-form descriptor of a cart line, e.g. size or color.
// It is stored as JSONB and copied verbatim into the order item.
type Variant map[string]string

func (v Variant) Value() (driver.Value, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func (v *Variant) Scan(src any) error {
	var data []byte
	switch s := src.(type) {
	case nil:
		*v = Variant{}
		return nil
	case []byte:
		data = s
	case string:
		data = []byte(s)
	default:
		return fmt.Errorf("scan variant: unsupported type %T", src)
	}
	out := Variant{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("scan variant: %w", err)
	}
	*v = out
	return nil
}

type Cart struct {
	ID        string     `json:"id"`
	Owner     Owner      `json:"owner"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// MaxLineQuantity bounds a single cart or order line.
const MaxLineQuantity = 10000

type CartItem struct {
	ID        string    `json:"id"`
	CartID    string    `json:"cart_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Variant   Variant   `json:"variant"`
	AddedAt   time.Time `json:"added_at"`
}
