package cart

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/pet-shop-storefront/internal/owner"
)

func TestOpenOrCreate_InsertsThenReloads(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)
	now := time.Now()

	mock.ExpectQuery("WHERE user_id = \\$1 AND NOT consumed").WithArgs(5).WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO carts").
		WithArgs(sql.NullInt64{Int64: 5, Valid: true}, sql.NullString{}).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("WHERE user_id = \\$1 AND NOT consumed").WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(31, now))

	c, err := repo.OpenOrCreate(context.Background(), owner.Key{UserID: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != 31 {
		t.Fatalf("expected cart 31 created by the racing writer, got %d", c.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestFindOpen_AnonWithItems(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("WHERE anon_id = \\$1 AND NOT consumed").WithArgs("anon-9").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(4, time.Now()))
	mock.ExpectQuery("FROM cart_items").WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity", "unit_price"}).
			AddRow(1, 2, "100000").
			AddRow(2, 1, "50000"))

	c, err := repo.FindOpen(context.Background(), owner.Key{AnonID: "anon-9"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil || len(c.Items) != 2 {
		t.Fatalf("expected cart with two lines, got %+v", c)
	}
	if !c.Sum().Equal(decimal.NewFromInt(250000)) {
		t.Fatalf("expected total 250000, got %s", c.Sum())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestFindOpen_None(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectQuery("FROM carts").WithArgs(2).WillReturnError(sql.ErrNoRows)
	c, err := repo.FindOpen(context.Background(), owner.Key{UserID: 2})
	if err != nil || c != nil {
		t.Fatalf("expected nil cart and nil error, got %+v %v", c, err)
	}
}

func TestSetQuantity_MissingLine(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock error: %v", err)
	}
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectExec("UPDATE cart_items SET quantity").WithArgs(int64(4), 9, 3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.SetQuantity(context.Background(), 4, 9, 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mock.ExpectExec("ON CONFLICT \\(cart_id, product_id\\)").
		WithArgs(int64(4), 9, 1, decimal.NewFromInt(15000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.UpsertItem(context.Background(), 4, 9, 1, decimal.NewFromInt(15000)); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}

	mock.ExpectExec("WHERE id = \\$1 AND NOT consumed FOR SHARE").
		WithArgs(int64(4), 9, 1, decimal.NewFromInt(15000)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.UpsertItem(context.Background(), 4, 9, 1, decimal.NewFromInt(15000)); !errors.Is(err, ErrAlreadyConsumed) {
		t.Fatalf("expected ErrAlreadyConsumed, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
