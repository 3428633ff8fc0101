package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/wichananm65/pet-shop-storefront/internal/owner"
)

type PostgresRepository struct {
	db *sql.DB
}

const orderColumns = `id, cart_id, user_id, anon_id, name, phone, email, address, note,
	ordered_at, total_amount, order_status, payment_method, payment_status, paid_at, gateway_txn_ref`

const (
	insertOrderQuery = `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`
	insertOrderItemQuery = `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
	`
	consumeCartQuery = `UPDATE carts SET consumed = true WHERE id = $1 AND NOT consumed`

	selectOrderQuery    = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	lockOrderQuery      = selectOrderQuery + ` FOR UPDATE`
	listOrdersQuery     = `SELECT ` + orderColumns + ` FROM orders ORDER BY ordered_at DESC, id DESC`
	listUserOrdersQuery = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY ordered_at DESC, id DESC`
	listAnonOrdersQuery = `SELECT ` + orderColumns + ` FROM orders WHERE anon_id = $1 ORDER BY ordered_at DESC, id DESC`

	listItemsQuery = `
		SELECT order_id, product_id, quantity, unit_price FROM order_items
		WHERE order_id = ANY($1::text[])
		ORDER BY order_id, product_id
	`
	updateOrderQuery = `
		UPDATE orders SET order_status = $2, payment_status = $3, paid_at = $4, gateway_txn_ref = $5
		WHERE id = $1
	`
)

const uniqueViolation = "23505"

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *PostgresRepository) Create(ctx context.Context, ord Order, consumeCart bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	userID, anonID := ownerArgs(ord.Owner)
	_, err = tx.ExecContext(ctx, insertOrderQuery,
		ord.ID, ord.CartID, userID, anonID, ord.Name, ord.Phone, ord.Email, ord.Address, ord.Note,
		ord.OrderedAt, ord.TotalAmount, ord.OrderStatus, ord.PaymentMethod, ord.PaymentStatus,
		nullTime(ord), nullString(ord.GatewayTxnRef))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateID
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range ord.Items {
		if _, err := tx.ExecContext(ctx, insertOrderItemQuery, ord.ID, it.ProductID, it.Quantity, it.UnitPrice); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if consumeCart {
		if err := consume(ctx, tx, ord.CartID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Order, error) {
	return r.get(ctx, r.db, selectOrderQuery, id)
}

func (r *PostgresRepository) List(ctx context.Context) ([]Order, error) {
	return r.list(ctx, listOrdersQuery)
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, o owner.Key) ([]Order, error) {
	if o.UserID > 0 {
		return r.list(ctx, listUserOrdersQuery, o.UserID)
	}
	return r.list(ctx, listAnonOrdersQuery, o.AnonID)
}

func (r *PostgresRepository) Update(ctx context.Context, id string, fn Mutation) (Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	cur, err := r.get(ctx, tx, lockOrderQuery, id)
	if err != nil {
		return Order{}, err
	}
	next := clone(cur)
	change, err := fn(&next)
	if err != nil {
		return cur, err
	}
	if change.ConsumeCart {
		if err := consume(ctx, tx, next.CartID); err != nil {
			return cur, err
		}
	}
	if change.Dirty {
		if _, err := tx.ExecContext(ctx, updateOrderQuery, id, next.OrderStatus, next.PaymentStatus,
			nullTime(next), nullString(next.GatewayTxnRef)); err != nil {
			return cur, fmt.Errorf("update order: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return cur, fmt.Errorf("commit: %w", err)
	}
	if change.Dirty {
		return next, nil
	}
	return cur, nil
}

func (r *PostgresRepository) get(ctx context.Context, q queryer, query, id string) (Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("load order: %w", err)
	}
	items, err := loadItems(ctx, q, []string{o.ID})
	if err != nil {
		return Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	ids := make([]string, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := loadItems(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func loadItems(ctx context.Context, q queryer, ids []string) (map[string][]Item, error) {
	rows, err := q.QueryContext(ctx, listItemsQuery, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]Item, len(ids))
	for rows.Next() {
		var orderID string
		var it Item
		if err := rows.Scan(&orderID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

func consume(ctx context.Context, tx *sql.Tx, cartID int64) error {
	res, err := tx.ExecContext(ctx, consumeCartQuery, cartID)
	if err != nil {
		return fmt.Errorf("consume cart: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCartConsumed
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var (
		o      Order
		userID sql.NullInt64
		anonID sql.NullString
		paidAt sql.NullTime
		txnRef sql.NullString
	)
	err := row.Scan(&o.ID, &o.CartID, &userID, &anonID, &o.Name, &o.Phone, &o.Email, &o.Address, &o.Note,
		&o.OrderedAt, &o.TotalAmount, &o.OrderStatus, &o.PaymentMethod, &o.PaymentStatus, &paidAt, &txnRef)
	if err != nil {
		return Order{}, err
	}
	if userID.Valid {
		o.Owner = owner.Key{UserID: int(userID.Int64)}
	} else {
		o.Owner = owner.Key{AnonID: anonID.String}
	}
	if paidAt.Valid {
		t := paidAt.Time.UTC()
		o.PaidAt = &t
	}
	if txnRef.Valid {
		o.GatewayTxnRef = &txnRef.String
	}
	return o, nil
}

func ownerArgs(o owner.Key) (sql.NullInt64, sql.NullString) {
	if o.UserID > 0 {
		return sql.NullInt64{Int64: int64(o.UserID), Valid: true}, sql.NullString{}
	}
	return sql.NullInt64{}, sql.NullString{String: o.AnonID, Valid: true}
}

func nullTime(o Order) sql.NullTime {
	if o.PaidAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *o.PaidAt, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
