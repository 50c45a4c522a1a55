package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/cartbridge/internal/domain/cart"
)

const (
	getCartSQL = `SELECT product_id, name, price, original_price, discount, image_url, quantity, added_at, updated_at
		FROM cart_items WHERE user_id = $1 ORDER BY added_at, product_id`

	upsertItemSQL = `INSERT INTO cart_items (user_id, product_id, name, price, original_price, discount, image_url, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
		RETURNING quantity`

	removeItemSQL = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`

	setQuantitySQL = `UPDATE cart_items SET quantity = $3, updated_at = now()
		WHERE user_id = $1 AND product_id = $2`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`

	countSQL = `SELECT COALESCE(SUM(quantity), 0) FROM cart_items WHERE user_id = $1`
)

// CartRepository persists carts in PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns all lines of the user's cart in insertion order.
func (r *CartRepository) Get(ctx context.Context, userID string) ([]cart.Item, error) {
	rows, err := r.pool.Query(ctx, getCartSQL, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "get cart for %q", userID)
	}
	return pgx.CollectRows(rows, scanItem)
}

// Upsert inserts a line for the product or, when one exists, accumulates its
// quantity. It returns the resulting line quantity.
func (r *CartRepository) Upsert(ctx context.Context, userID string, p cart.Product, quantity int) (int, error) {
	original := p.OriginalPrice
	if original.IsZero() {
		original = p.Price
	}

	var newQuantity int
	err := r.pool.QueryRow(ctx, upsertItemSQL,
		userID, p.ID, p.Name, p.Price, original, p.Discount, p.ImageURL, quantity,
	).Scan(&newQuantity)
	if err != nil {
		return 0, errors.Wrapf(err, "upsert item %q for %q", p.ID, userID)
	}
	return newQuantity, nil
}

// Remove deletes the line for productID. It returns cart.NotFoundError when
// the line does not exist.
func (r *CartRepository) Remove(ctx context.Context, userID, productID string) error {
	tag, err := r.pool.Exec(ctx, removeItemSQL, userID, productID)
	if err != nil {
		return errors.Wrapf(err, "remove item %q for %q", productID, userID)
	}
	if tag.RowsAffected() == 0 {
		return &cart.NotFoundError{ProductID: productID}
	}
	return nil
}

// SetQuantity sets the absolute quantity of an existing line. It returns
// cart.NotFoundError when the line does not exist.
func (r *CartRepository) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	tag, err := r.pool.Exec(ctx, setQuantitySQL, userID, productID, quantity)
	if err != nil {
		return errors.Wrapf(err, "set quantity of %q for %q", productID, userID)
	}
	if tag.RowsAffected() == 0 {
		return &cart.NotFoundError{ProductID: productID}
	}
	return nil
}

// Clear deletes every line of the user's cart. Clearing an empty cart is a
// no-op.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, clearCartSQL, userID); err != nil {
		return errors.Wrapf(err, "clear cart for %q", userID)
	}
	return nil
}

// Count returns the total quantity across all lines of the user's cart.
func (r *CartRepository) Count(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, countSQL, userID).Scan(&count); err != nil {
		return 0, errors.Wrapf(err, "count cart for %q", userID)
	}
	return count, nil
}

func scanItem(row pgx.CollectableRow) (cart.Item, error) {
	var (
		it       cart.Item
		price    decimal.Decimal
		original decimal.Decimal
		discount decimal.Decimal
	)
	err := row.Scan(
		&it.ID, &it.Name, &price, &original, &discount,
		&it.ImageURL, &it.Quantity, &it.AddedAt, &it.UpdatedAt,
	)
	it.Price = price
	it.OriginalPrice = original
	it.Discount = discount
	return it, err
}
