package order

import (
	"context"
	"errors"
	"testing"
	"time"
	"unsafe"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/pet-shop-storefront/internal/owner"
)

type stubCarts struct {
	consumed map[int64]bool
}

func (s *stubCarts) ConsumeCart(_ context.Context, id int64) error {
	if s.consumed[id] {
		return errors.New("already consumed")
	}
	s.consumed[id] = true
	return nil
}

func seedOrder(t *testing.T, repo *InMemoryRepository, id string, method PaymentMethod, st Status, pay PaymentStatus) {
	t.Helper()
	err := repo.Create(context.Background(), Order{
		ID:            id,
		CartID:        1,
		Owner:         owner.Key{UserID: 1},
		Contact:       Contact{Name: "A", Phone: "1", Address: "x"},
		OrderedAt:     time.Now(),
		TotalAmount:   decimal.NewFromInt(1000),
		OrderStatus:   st,
		PaymentMethod: method,
		PaymentStatus: pay,
	}, false)
	require.NoError(t, err)
}

func TestGuard_UpdateOrderStatus(t *testing.T) {
	repo := NewInMemoryRepository(&stubCarts{consumed: map[int64]bool{}})
	g := NewGuard(repo)
	ctx := context.Background()
	seedOrder(t, repo, "o1", MethodCOD, StatusPending, PaymentPending)

	require.ErrorIs(t, g.UpdateOrderStatus(ctx, "o1", "Teleported"), ErrInvalidStatus)
	require.ErrorIs(t, g.UpdateOrderStatus(ctx, "missing", "Processing"), ErrNotFound)
	require.ErrorIs(t, g.UpdateOrderStatus(ctx, "o1", "Success"), ErrInvalidTransition)

	require.NoError(t, g.UpdateOrderStatus(ctx, "o1", "Processing"))
	require.NoError(t, g.UpdateOrderStatus(ctx, "o1", "Processing"))

	o, err := repo.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, o.OrderStatus)
}

func TestGuard_UpdatePaymentStatus_COD(t *testing.T) {
	repo := NewInMemoryRepository(nil)
	g := NewGuard(repo)
	fixed := time.Date(2026, 5, 5, 8, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }
	ctx := context.Background()
	seedOrder(t, repo, "cod", MethodCOD, StatusPending, PaymentPending)

	require.NoError(t, g.UpdatePaymentStatus(ctx, "cod", "Paid"))
	o, _ := repo.Get(ctx, "cod")
	require.NotNil(t, o.PaidAt)
	assert.Equal(t, fixed, *o.PaidAt)

	require.ErrorIs(t, g.UpdatePaymentStatus(ctx, "cod", "Pending"), ErrInvalidTransition)
	require.NoError(t, g.UpdatePaymentStatus(ctx, "cod", "Refunded"))

	o, _ = repo.Get(ctx, "cod")
	assert.Equal(t, PaymentRefunded, o.PaymentStatus)
	assert.Equal(t, fixed, *o.PaidAt)
}

func TestGuard_GatewayPaymentIsReserved(t *testing.T) {
	repo := NewInMemoryRepository(nil)
	g := NewGuard(repo)
	ctx := context.Background()
	seedOrder(t, repo, "vnp", MethodVNPay, StatusAwaitingPayment, PaymentPending)

	require.ErrorIs(t, g.UpdatePaymentStatus(ctx, "vnp", "Paid"), ErrGatewayManaged)
	require.ErrorIs(t, g.UpdatePaymentStatus(ctx, "vnp", "Failed"), ErrGatewayManaged)
	require.NoError(t, g.UpdatePaymentStatus(ctx, "vnp", "Processing"))

	o, _ := repo.Get(ctx, "vnp")
	assert.Equal(t, PaymentProcessing, o.PaymentStatus)
	assert.Nil(t, o.PaidAt)
	assert.Equal(t, StatusAwaitingPayment, o.OrderStatus)
}

func TestGuard_OnlyPaymentReleasesAwaitingOrder(t *testing.T) {
	repo := NewInMemoryRepository(nil)
	g := NewGuard(repo)
	ctx := context.Background()
	seedOrder(t, repo, "vnp", MethodVNPay, StatusAwaitingPayment, PaymentPending)
	seedOrder(t, repo, "vnp-cancel", MethodVNPay, StatusAwaitingPayment, PaymentPending)

	require.ErrorIs(t, g.UpdateOrderStatus(ctx, "vnp", "Pending"), ErrGatewayManaged)
	require.ErrorIs(t, g.UpdateOrderStatus(ctx, "vnp", "Processing"), ErrInvalidTransition)

	o, err := repo.Get(ctx, "vnp")
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingPayment, o.OrderStatus)
	assert.Equal(t, PaymentPending, o.PaymentStatus)

	require.NoError(t, g.UpdateOrderStatus(ctx, "vnp-cancel", "Cancel"))
	require.NoError(t, g.UpdateOrderStatus(ctx, "vnp", "Error"))
}

func TestInMemoryRepository_CreateConsumesCartOnce(t *testing.T) {
	carts := &stubCarts{consumed: map[int64]bool{}}
	repo := NewInMemoryRepository(carts)
	ctx := context.Background()

	base := Order{ID: "a", CartID: 9, Owner: owner.Key{AnonID: "x"}}
	require.NoError(t, repo.Create(ctx, base, true))

	base.ID = "b"
	require.ErrorIs(t, repo.Create(ctx, base, true), ErrCartConsumed)
	_, err := repo.Get(ctx, "b")
	require.ErrorIs(t, err, ErrNotFound, "failed create must not leave an order behind")

	base.ID = "a"
	require.ErrorIs(t, repo.Create(ctx, base, false), ErrDuplicateID)

	mine, err := repo.ListByOwner(ctx, owner.Key{AnonID: "x"})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestInMemoryRepository_UpdateKeepsKeyWhenCallerBufferIsReused(t *testing.T) {
	repo := NewInMemoryRepository(nil)
	g := NewGuard(repo)
	ctx := context.Background()
	seedOrder(t, repo, "ord-1", MethodCOD, StatusPending, PaymentPending)

	// fasthttp hands out path params backed by its request buffer
	buf := []byte("ord-1")
	id := unsafe.String(&buf[0], len(buf))
	require.NoError(t, g.UpdateOrderStatus(ctx, id, "Processing"))
	copy(buf, "zzz-9")

	o, err := repo.Get(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, o.OrderStatus)
	_, err = repo.Get(ctx, "zzz-9")
	require.ErrorIs(t, err, ErrNotFound)
}
