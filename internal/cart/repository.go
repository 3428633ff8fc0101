package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/pet-shop-storefront/internal/owner"
)

var (
	ErrNotFound        = errors.New("cart item not found")
	ErrAlreadyConsumed = errors.New("cart already consumed")
)

// Repository persists carts and their lines.
type Repository interface {
	// FindOpen returns the newest non-consumed cart with its items, or nil.
	FindOpen(ctx context.Context, o owner.Key) (*Cart, error)
	// OpenOrCreate returns the owner's open cart, creating it when absent.
	// Concurrent callers for the same owner converge on one cart.
	OpenOrCreate(ctx context.Context, o owner.Key) (Cart, error)
	// UpsertItem inserts a line or increments an existing one. The unit price
	// of an existing line is left untouched. A consumed cart yields
	// ErrAlreadyConsumed.
	UpsertItem(ctx context.Context, cartID int64, productID, qty int, unitPrice decimal.Decimal) error
	SetQuantity(ctx context.Context, cartID int64, productID, qty int) error
	DeleteItem(ctx context.Context, cartID int64, productID int) error
}

type memCart struct {
	cart  Cart
	items []Item
}

// InMemoryRepository is used by tests and local runs without Postgres.
type InMemoryRepository struct {
	mu     sync.Mutex
	carts  map[int64]*memCart
	nextID int64
	now    func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{carts: make(map[int64]*memCart), nextID: 1, now: time.Now}
}

func (r *InMemoryRepository) findOpenLocked(o owner.Key) *memCart {
	var newest *memCart
	for _, mc := range r.carts {
		if mc.cart.Consumed || mc.cart.Owner != o {
			continue
		}
		if newest == nil || mc.cart.ID > newest.cart.ID {
			newest = mc
		}
	}
	return newest
}

func (r *InMemoryRepository) FindOpen(_ context.Context, o owner.Key) (*Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mc := r.findOpenLocked(o)
	if mc == nil {
		return nil, nil
	}
	c := mc.snapshot()
	return &c, nil
}

func (r *InMemoryRepository) OpenOrCreate(_ context.Context, o owner.Key) (Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mc := r.findOpenLocked(o); mc != nil {
		return mc.snapshot(), nil
	}
	mc := &memCart{cart: Cart{ID: r.nextID, Owner: o, CreatedAt: r.now().UTC()}}
	r.nextID++
	r.carts[mc.cart.ID] = mc
	return mc.snapshot(), nil
}

func (r *InMemoryRepository) UpsertItem(_ context.Context, cartID int64, productID, qty int, unitPrice decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mc, ok := r.carts[cartID]
	if !ok {
		return ErrNotFound
	}
	if mc.cart.Consumed {
		return ErrAlreadyConsumed
	}
	for i := range mc.items {
		if mc.items[i].ProductID == productID {
			mc.items[i].Quantity += qty
			return nil
		}
	}
	mc.items = append(mc.items, Item{ProductID: productID, Quantity: qty, UnitPrice: unitPrice})
	return nil
}

func (r *InMemoryRepository) SetQuantity(_ context.Context, cartID int64, productID, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mc, ok := r.carts[cartID]
	if !ok {
		return ErrNotFound
	}
	for i := range mc.items {
		if mc.items[i].ProductID == productID {
			mc.items[i].Quantity = qty
			return nil
		}
	}
	return ErrNotFound
}

func (r *InMemoryRepository) DeleteItem(_ context.Context, cartID int64, productID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mc, ok := r.carts[cartID]
	if !ok {
		return ErrNotFound
	}
	for i := range mc.items {
		if mc.items[i].ProductID == productID {
			mc.items = append(mc.items[:i], mc.items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// ConsumeCart flips the consumed flag exactly once. It lets the in-memory
// order ledger consume carts the way the Postgres ledger does in SQL.
func (r *InMemoryRepository) ConsumeCart(_ context.Context, cartID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mc, ok := r.carts[cartID]
	if !ok {
		return ErrNotFound
	}
	if mc.cart.Consumed {
		return ErrAlreadyConsumed
	}
	mc.cart.Consumed = true
	return nil
}

// Get returns a cart by id regardless of its consumed state.
func (r *InMemoryRepository) Get(_ context.Context, cartID int64) (Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mc, ok := r.carts[cartID]
	if !ok {
		return Cart{}, ErrNotFound
	}
	return mc.snapshot(), nil
}

func (mc *memCart) snapshot() Cart {
	c := mc.cart
	c.Items = make([]Item, len(mc.items))
	copy(c.Items, mc.items)
	return c
}
