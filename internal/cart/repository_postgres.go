package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/pet-shop-storefront/internal/owner"
)

// PostgresRepository relies on the partial unique indexes carts_open_user
// and carts_open_anon: at most one non-consumed cart per owner.
type PostgresRepository struct {
	db *sql.DB
}

const (
	findOpenByUserQuery = `
		SELECT id, created_at FROM carts
		WHERE user_id = $1 AND NOT consumed
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	findOpenByAnonQuery = `
		SELECT id, created_at FROM carts
		WHERE anon_id = $1 AND NOT consumed
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	insertCartQuery = `
		INSERT INTO carts (user_id, anon_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	listItemsQuery = `
		SELECT product_id, quantity, unit_price FROM cart_items
		WHERE cart_id = $1
		ORDER BY added_at, product_id
	`
	upsertItemQuery = `
		WITH open_cart AS (
			SELECT id FROM carts WHERE id = $1 AND NOT consumed FOR SHARE
		)
		INSERT INTO cart_items (cart_id, product_id, quantity, unit_price)
		SELECT id, $2::int, $3::int, $4::numeric FROM open_cart
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`
	setQuantityQuery = `UPDATE cart_items SET quantity = $3 WHERE cart_id = $1 AND product_id = $2`
	deleteItemQuery  = `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindOpen(ctx context.Context, o owner.Key) (*Cart, error) {
	c, err := r.findOpen(ctx, o)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	items, err := r.listItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Items = items
	return &c, nil
}

func (r *PostgresRepository) OpenOrCreate(ctx context.Context, o owner.Key) (Cart, error) {
	c, err := r.findOpen(ctx, o)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Cart{}, err
	}

	userID, anonID := ownerArgs(o)
	// a racing insert for the same owner is swallowed by the partial index
	if _, err := r.db.ExecContext(ctx, insertCartQuery, userID, anonID); err != nil {
		return Cart{}, fmt.Errorf("insert cart: %w", err)
	}
	c, err = r.findOpen(ctx, o)
	if err != nil {
		return Cart{}, fmt.Errorf("reload cart: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) UpsertItem(ctx context.Context, cartID int64, productID, qty int, unitPrice decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx, upsertItemQuery, cartID, productID, qty, unitPrice)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	// no row means the cart was checked out after it was resolved
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrAlreadyConsumed
	}
	return nil
}

func (r *PostgresRepository) SetQuantity(ctx context.Context, cartID int64, productID, qty int) error {
	res, err := r.db.ExecContext(ctx, setQuantityQuery, cartID, productID, qty)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	return requireOneRow(res)
}

func (r *PostgresRepository) DeleteItem(ctx context.Context, cartID int64, productID int) error {
	res, err := r.db.ExecContext(ctx, deleteItemQuery, cartID, productID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return requireOneRow(res)
}

func (r *PostgresRepository) findOpen(ctx context.Context, o owner.Key) (Cart, error) {
	query, arg := findOpenByAnonQuery, any(o.AnonID)
	if o.UserID > 0 {
		query, arg = findOpenByUserQuery, o.UserID
	}
	c := Cart{Owner: o}
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.CreatedAt); err != nil {
		return Cart{}, err
	}
	return c, nil
}

func (r *PostgresRepository) listItems(ctx context.Context, cartID int64) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, listItemsQuery, cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func ownerArgs(o owner.Key) (sql.NullInt64, sql.NullString) {
	if o.UserID > 0 {
		return sql.NullInt64{Int64: int64(o.UserID), Valid: true}, sql.NullString{}
	}
	return sql.NullInt64{}, sql.NullString{String: o.AnonID, Valid: true}
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
