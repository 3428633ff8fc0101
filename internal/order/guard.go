package order

import (
	"context"
	"time"
)

// Guard applies staff status changes through the transition tables.
type Guard struct {
	repo Repository
	now  func() time.Time
}

func NewGuard(repo Repository) *Guard {
	return &Guard{repo: repo, now: time.Now}
}

// UpdatePaymentStatus validates target before touching the ledger. Paid and
// Failed on a gateway order are reserved for callback reconciliation.
func (g *Guard) UpdatePaymentStatus(ctx context.Context, id, target string) error {
	status, err := ParsePaymentStatus(target)
	if err != nil {
		return err
	}
	_, err = g.repo.Update(ctx, id, func(o *Order) (Change, error) {
		if o.PaymentMethod == MethodVNPay && o.PaymentStatus != status &&
			(status == PaymentPaid || status == PaymentFailed) {
			return Change{}, ErrGatewayManaged
		}
		changed, err := ApplyPaymentStatus(o, status, g.now())
		return Change{Dirty: changed}, err
	})
	return err
}

// UpdateOrderStatus validates target before touching the ledger. Only a
// recorded payment releases an order from AwaitingPayment; staff may still
// cancel it or flag it as an error.
func (g *Guard) UpdateOrderStatus(ctx context.Context, id, target string) error {
	status, err := ParseStatus(target)
	if err != nil {
		return err
	}
	_, err = g.repo.Update(ctx, id, func(o *Order) (Change, error) {
		if o.OrderStatus == StatusAwaitingPayment && status == StatusPending {
			return Change{}, ErrGatewayManaged
		}
		changed, err := ApplyOrderStatus(o, status)
		return Change{Dirty: changed}, err
	})
	return err
}
