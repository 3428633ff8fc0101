package order

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/wichananm65/pet-shop-storefront/internal/owner"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrDuplicateID       = errors.New("duplicate order id")
	ErrCartConsumed      = errors.New("cart already consumed")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrGatewayManaged    = errors.New("payment status is managed by the gateway")
)

// Change tells Update what to persist after a mutation ran.
type Change struct {
	Dirty       bool
	ConsumeCart bool
}

// Mutation edits a locked copy of the order. Returning an error aborts the
// update without writing anything.
type Mutation func(o *Order) (Change, error)

// Repository is the order ledger.
type Repository interface {
	// Create inserts the order with its items. With consumeCart the source
	// cart is consumed in the same transaction; a cart that is already
	// consumed fails the whole write with ErrCartConsumed.
	Create(ctx context.Context, ord Order, consumeCart bool) error
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByOwner(ctx context.Context, o owner.Key) ([]Order, error)
	// Update serializes concurrent updates of the same order.
	Update(ctx context.Context, id string, fn Mutation) (Order, error)
}

// CartConsumer flips a cart's consumed flag once and errors afterwards.
type CartConsumer interface {
	ConsumeCart(ctx context.Context, cartID int64) error
}

type InMemoryRepository struct {
	mu     sync.Mutex
	orders map[string]Order
	seq    []string
	carts  CartConsumer
}

func NewInMemoryRepository(carts CartConsumer) *InMemoryRepository {
	return &InMemoryRepository{orders: make(map[string]Order), carts: carts}
}

func (r *InMemoryRepository) Create(ctx context.Context, ord Order, consumeCart bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[ord.ID]; exists {
		return ErrDuplicateID
	}
	if consumeCart {
		if err := r.consume(ctx, ord.CartID); err != nil {
			return err
		}
	}
	r.orders[ord.ID] = clone(ord)
	r.seq = append(r.seq, ord.ID)
	return nil
}

func (r *InMemoryRepository) Get(_ context.Context, id string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return clone(o), nil
}

func (r *InMemoryRepository) List(_ context.Context) ([]Order, error) {
	return r.filter(func(Order) bool { return true }), nil
}

func (r *InMemoryRepository) ListByOwner(_ context.Context, o owner.Key) ([]Order, error) {
	return r.filter(func(ord Order) bool { return ord.Owner == o }), nil
}

func (r *InMemoryRepository) Update(ctx context.Context, id string, fn Mutation) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	next := clone(cur)
	change, err := fn(&next)
	if err != nil {
		return cur, err
	}
	if change.ConsumeCart {
		if err := r.consume(ctx, next.CartID); err != nil {
			return cur, err
		}
	}
	if change.Dirty {
		r.orders[cur.ID] = next
		return clone(next), nil
	}
	return clone(cur), nil
}

func (r *InMemoryRepository) consume(ctx context.Context, cartID int64) error {
	if r.carts == nil {
		return fmt.Errorf("%w: no cart store", ErrCartConsumed)
	}
	if err := r.carts.ConsumeCart(ctx, cartID); err != nil {
		return fmt.Errorf("%w: %v", ErrCartConsumed, err)
	}
	return nil
}

// filter returns matches newest first.
func (r *InMemoryRepository) filter(keep func(Order) bool) []Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0)
	for _, id := range slices.Backward(r.seq) {
		if o := r.orders[id]; keep(o) {
			out = append(out, clone(o))
		}
	}
	return out
}

func clone(o Order) Order {
	o.Items = slices.Clone(o.Items)
	if o.PaidAt != nil {
		t := *o.PaidAt
		o.PaidAt = &t
	}
	if o.GatewayTxnRef != nil {
		s := *o.GatewayTxnRef
		o.GatewayTxnRef = &s
	}
	return o
}
