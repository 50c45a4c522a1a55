// Package cart holds the cart domain model: line items, the product input
// shape, validation rules, and discount-aware pricing arithmetic.
package cart

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GuestUserID identifies the cart used when no authenticated user is present
// or the provided user identifier is invalid.
const GuestUserID = "guest"

// Field constraints shared by the client and the reference server.
const (
	MaxUserIDLen = 50
	MaxNameLen   = 100
	MinQuantity  = 1
	MaxQuantity  = 99
)

// MaxPrice is the upper bound for unit prices and original prices.
var MaxPrice = decimal.NewFromInt(999999)

// Item is a single cart line. A cart holds at most one Item per product ID.
type Item struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	OriginalPrice decimal.Decimal
	Discount      decimal.Decimal // percentage, 0-100
	ImageURL      string
	Quantity      int
	AddedAt       time.Time
	UpdatedAt     time.Time
}

// Product is the input shape for adding an item to a cart. OriginalPrice
// defaults to Price and Discount defaults to zero when left unset.
type Product struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	OriginalPrice decimal.Decimal
	Discount      decimal.Decimal
	ImageURL      string
}

// ValidationError reports the first violated input rule. It never reaches
// either storage backend.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError indicates an operation targeted a cart line that does not
// exist for the user.
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %s not found in cart", e.ProductID)
}

// NewItem builds a cart line from a validated product and quantity.
// OriginalPrice falls back to Price when unset.
func NewItem(p Product, quantity int, now time.Time) Item {
	original := p.OriginalPrice
	if original.IsZero() {
		original = p.Price
	}
	return Item{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		OriginalPrice: original,
		Discount:      p.Discount,
		ImageURL:      p.ImageURL,
		Quantity:      quantity,
		AddedAt:       now,
		UpdatedAt:     now,
	}
}
