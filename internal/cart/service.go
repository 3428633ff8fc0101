package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/pet-shop-storefront/internal/owner"
	"github.com/wichananm65/pet-shop-storefront/internal/product"
)

// Catalog is the read-only product source used for price snapshots and
// display names.
type Catalog interface {
	GetByID(ctx context.Context, id int) (product.Product, error)
	ListByIDs(ctx context.Context, ids []int) ([]product.Product, error)
}

type Service struct {
	repo    Repository
	catalog Catalog
}

func NewService(repo Repository, catalog Catalog) *Service {
	return &Service{repo: repo, catalog: catalog}
}

// ResolveOpenCart returns the owner's open cart, or nil when there is none.
func (s *Service) ResolveOpenCart(ctx context.Context, o owner.Key) (*Cart, error) {
	if err := o.Valid(); err != nil {
		return nil, err
	}
	return s.repo.FindOpen(ctx, o)
}

// GetCart never creates a cart; owners without one get an empty view.
func (s *Service) GetCart(ctx context.Context, o owner.Key) (Cart, error) {
	if err := o.Valid(); err != nil {
		return Cart{}, err
	}
	return s.view(ctx, o)
}

func (s *Service) AddItem(ctx context.Context, o owner.Key, productID, qty int) (Cart, error) {
	if err := o.Valid(); err != nil {
		return Cart{}, err
	}
	p, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		return Cart{}, fmt.Errorf("add item: %w", err)
	}
	qty = max(1, qty)
	// a checkout may consume the cart between resolving and writing; the
	// second attempt lands in the owner's fresh cart
	for attempt := 0; ; attempt++ {
		c, err := s.repo.OpenOrCreate(ctx, o)
		if err != nil {
			return Cart{}, err
		}
		err = s.repo.UpsertItem(ctx, c.ID, productID, qty, p.Price)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrAlreadyConsumed) || attempt == 1 {
			return Cart{}, err
		}
	}
	return s.view(ctx, o)
}

// UpdateItem deletes the line for a negative quantity and otherwise sets it.
// Zero is stored as-is; checkout skips zero-quantity lines.
func (s *Service) UpdateItem(ctx context.Context, o owner.Key, productID, qty int) (Cart, error) {
	c, err := s.openCart(ctx, o)
	if err != nil {
		return Cart{}, err
	}
	if qty < 0 {
		err = s.repo.DeleteItem(ctx, c.ID, productID)
	} else {
		err = s.repo.SetQuantity(ctx, c.ID, productID, qty)
	}
	if err != nil {
		return Cart{}, err
	}
	return s.view(ctx, o)
}

func (s *Service) RemoveItem(ctx context.Context, o owner.Key, productID int) (Cart, error) {
	c, err := s.openCart(ctx, o)
	if err != nil {
		return Cart{}, err
	}
	if err := s.repo.DeleteItem(ctx, c.ID, productID); err != nil {
		return Cart{}, err
	}
	return s.view(ctx, o)
}

func (s *Service) openCart(ctx context.Context, o owner.Key) (*Cart, error) {
	c, err := s.ResolveOpenCart(ctx, o)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *Service) view(ctx context.Context, o owner.Key) (Cart, error) {
	c, err := s.repo.FindOpen(ctx, o)
	if err != nil {
		return Cart{}, err
	}
	if c == nil {
		return Cart{Owner: o, Items: []Item{}, Total: decimal.Zero}, nil
	}

	ids := make([]int, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.ProductID)
	}
	// names are cosmetic; a catalog failure must not hide the cart
	if products, err := s.catalog.ListByIDs(ctx, ids); err == nil {
		names := make(map[int]string, len(products))
		for _, p := range products {
			names[p.ID] = p.Name
		}
		for i := range c.Items {
			c.Items[i].ProductName = names[c.Items[i].ProductID]
		}
	}
	c.Total = c.Sum()
	return *c, nil
}
