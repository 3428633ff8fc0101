// Package database opens the Postgres pool and brings the schema up to date.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects through the pgx database/sql driver and pings once.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		"userId" SERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		"firstName" TEXT NOT NULL,
		"lastName" TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'customer',
		"createdAt" TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS product (
		product_id SERIAL PRIMARY KEY,
		product_name TEXT NOT NULL,
		product_name_en TEXT,
		category TEXT,
		product_price NUMERIC(14,2) NOT NULL CHECK (product_price >= 0),
		product_pic TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		id BIGSERIAL PRIMARY KEY,
		user_id INT REFERENCES users("userId"),
		anon_id TEXT,
		consumed BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK ((user_id IS NULL) <> (anon_id IS NULL))
	)`,
	// at most one open cart per owner
	`CREATE UNIQUE INDEX IF NOT EXISTS carts_open_user ON carts (user_id) WHERE NOT consumed AND user_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS carts_open_anon ON carts (anon_id) WHERE NOT consumed AND anon_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		cart_id BIGINT NOT NULL REFERENCES carts(id),
		product_id INT NOT NULL REFERENCES product(product_id),
		quantity INT NOT NULL CHECK (quantity >= 0),
		unit_price NUMERIC(14,2) NOT NULL,
		added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (cart_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		cart_id BIGINT NOT NULL REFERENCES carts(id),
		user_id INT REFERENCES users("userId"),
		anon_id TEXT,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		ordered_at TIMESTAMPTZ NOT NULL,
		total_amount NUMERIC(14,2) NOT NULL,
		order_status TEXT NOT NULL,
		payment_method TEXT NOT NULL CHECK (payment_method IN ('cod', 'vnp')),
		payment_status TEXT NOT NULL,
		paid_at TIMESTAMPTZ,
		gateway_txn_ref TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS orders_user_id ON orders (user_id, ordered_at DESC)`,
	`CREATE INDEX IF NOT EXISTS orders_anon_id ON orders (anon_id, ordered_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id TEXT NOT NULL REFERENCES orders(id),
		product_id INT NOT NULL,
		quantity INT NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC(14,2) NOT NULL,
		PRIMARY KEY (order_id, product_id)
	)`,
}

// Migrate is idempotent and runs in one transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}
