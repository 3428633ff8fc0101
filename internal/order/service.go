package order

import (
	"context"

	"github.com/wichananm65/pet-shop-storefront/internal/owner"
)

// Service is the read side of the ledger.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetForCaller hides orders that belong to someone else behind ErrNotFound
// unless the caller is staff.
func (s *Service) GetForCaller(ctx context.Context, id string, caller owner.Key, staff bool) (Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !staff && !o.OwnedBy(caller) {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (s *Service) ListMine(ctx context.Context, caller owner.Key) ([]Order, error) {
	if err := caller.Valid(); err != nil {
		return nil, err
	}
	return s.repo.ListByOwner(ctx, caller)
}

func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	return s.repo.List(ctx)
}
