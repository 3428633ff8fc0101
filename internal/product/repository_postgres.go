package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	listProductsQuery = `
		SELECT product_id, product_name, product_name_en, category, product_price, product_pic
		FROM product
		ORDER BY product_id
	`
	getProductByIDQuery = `
		SELECT product_id, product_name, product_name_en, category, product_price, product_pic
		FROM product
		WHERE product_id = $1
	`
	listProductsByIDsQuery = `
		SELECT product_id, product_name, product_name_en, category, product_price, product_pic
		FROM product
		WHERE product_id = ANY($1::int[])
		ORDER BY array_position($1::int[], product_id)
	`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, listProductsQuery)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return collect(rows)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, getProductByIDQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// ListByIDs keeps the order of ids; unknown ids are skipped.
func (r *PostgresRepository) ListByIDs(ctx context.Context, ids []int) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}
	rows, err := r.db.QueryContext(ctx, listProductsByIDsQuery, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list products by ids: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]Product, error) {
	defer rows.Close()
	out := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProduct(row rowScanner) (Product, error) {
	var (
		p        Product
		name     sql.NullString
		nameEn   sql.NullString
		category sql.NullString
		pic      sql.NullString
	)
	if err := row.Scan(&p.ID, &name, &nameEn, &category, &p.Price, &pic); err != nil {
		return Product{}, err
	}
	p.Name = name.String
	if nameEn.Valid {
		p.NameEn = &nameEn.String
	}
	if category.Valid {
		p.Category = &category.String
	}
	if pic.Valid {
		p.Pic = &pic.String
	}
	return p, nil
}
