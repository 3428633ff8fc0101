// Package checkout turns an open cart into an order and reconciles VNPay
// callbacks against the orders they pay for.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/pet-shop-storefront/internal/cart"
	"github.com/wichananm65/pet-shop-storefront/internal/notify"
	"github.com/wichananm65/pet-shop-storefront/internal/order"
	"github.com/wichananm65/pet-shop-storefront/internal/owner"
	"github.com/wichananm65/pet-shop-storefront/internal/payment/vnpay"
)

var (
	ErrCartEmpty            = errors.New("cart is empty or missing")
	ErrInvalidContact       = errors.New("name, phone and address are required")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	ErrGatewayDisabled      = errors.New("online payment is not configured")
)

const (
	idRetries     = 3
	notifyTimeout = 10 * time.Second
)

// Carts is the slice of the cart store checkout reads from.
type Carts interface {
	ResolveOpenCart(ctx context.Context, o owner.Key) (*cart.Cart, error)
}

type Gateway interface {
	PaymentURL(req vnpay.PaymentRequest) (string, error)
	VerifyCallback(q url.Values) (vnpay.Callback, error)
}

// Result classifies what a callback did to its order.
type Result string

const (
	ResultPaid     Result = "paid"
	ResultFailed   Result = "failed"
	ResultIgnored  Result = "ignored"
	ResultRejected Result = "rejected"
)

type Outcome struct {
	OrderID       string
	Result        Result
	PaymentStatus order.PaymentStatus
}

// GatewayOptions carries the per-request inputs VNPay needs.
type GatewayOptions struct {
	ClientIP string
	BankCode string
	Locale   string
}

type Service struct {
	carts    Carts
	orders   order.Repository
	gateway  Gateway
	notifier notify.Notifier
	log      *slog.Logger

	newID func() string
	now   func() time.Time
	wg    sync.WaitGroup
}

// NewService accepts a nil gateway when VNPay is not configured and a nil
// notifier when nobody listens for new orders.
func NewService(carts Carts, orders order.Repository, gateway Gateway, notifier notify.Notifier, log *slog.Logger) *Service {
	return &Service{
		carts:    carts,
		orders:   orders,
		gateway:  gateway,
		notifier: notifier,
		log:      log,
		newID:    func() string { return ulid.Make().String() },
		now:      time.Now,
	}
}

func (s *Service) GatewayEnabled() bool { return s.gateway != nil }

// PlaceCashOnDelivery writes the order and consumes the cart in one
// transaction, then dispatches the order-placed notification.
func (s *Service) PlaceCashOnDelivery(ctx context.Context, o owner.Key, contact order.Contact) (order.Order, error) {
	ord, err := s.prepare(ctx, o, contact, order.MethodCOD)
	if err != nil {
		return order.Order{}, err
	}
	ord.OrderStatus = order.StatusPending
	ord.PaymentStatus = order.PaymentPending

	ord, err = s.insert(ctx, ord, true)
	if err != nil {
		return order.Order{}, err
	}
	s.log.InfoContext(ctx, "order placed", "order_id", ord.ID, "method", ord.PaymentMethod, "total", ord.TotalAmount.String())
	s.dispatch(ord)
	return ord, nil
}

// PlaceGatewayPayment writes an order awaiting payment and returns the
// signed VNPay URL. The cart stays open until a verified callback.
func (s *Service) PlaceGatewayPayment(ctx context.Context, o owner.Key, contact order.Contact, opts GatewayOptions) (order.Order, string, error) {
	if s.gateway == nil {
		return order.Order{}, "", ErrGatewayDisabled
	}
	ord, err := s.prepare(ctx, o, contact, order.MethodVNPay)
	if err != nil {
		return order.Order{}, "", err
	}
	ord.OrderStatus = order.StatusAwaitingPayment
	ord.PaymentStatus = order.PaymentPending

	ord, err = s.insert(ctx, ord, false)
	if err != nil {
		return order.Order{}, "", err
	}

	payURL, err := s.gateway.PaymentURL(vnpay.PaymentRequest{
		OrderID:   ord.ID,
		Amount:    ord.TotalAmount,
		OrderInfo: "Thanh toan don hang " + ord.ID,
		ClientIP:  opts.ClientIP,
		BankCode:  opts.BankCode,
		Locale:    opts.Locale,
	})
	if err != nil {
		return ord, "", fmt.Errorf("build payment url: %w", err)
	}
	s.log.InfoContext(ctx, "gateway order created", "order_id", ord.ID, "total", ord.TotalAmount.String())
	return ord, payURL, nil
}

// ReconcileGatewayCallback applies a VNPay return or IPN query. Replays and
// callbacks for orders that are no longer awaiting payment are no-ops.
func (s *Service) ReconcileGatewayCallback(ctx context.Context, q url.Values) (Outcome, error) {
	if s.gateway == nil {
		return Outcome{Result: ResultRejected}, ErrGatewayDisabled
	}
	cb, err := s.gateway.VerifyCallback(q)
	if err != nil {
		s.log.WarnContext(ctx, "vnpay callback rejected", "txn_ref", q.Get("vnp_TxnRef"), "err", err)
		return Outcome{OrderID: q.Get("vnp_TxnRef"), Result: ResultRejected}, err
	}

	result := ResultIgnored
	updated, err := s.orders.Update(ctx, cb.OrderID, s.reconcile(ctx, cb, true, &result))
	if errors.Is(err, order.ErrCartConsumed) {
		// the buyer checked the same cart out another way while paying
		s.log.WarnContext(ctx, "cart already consumed, recording payment only", "order_id", cb.OrderID)
		result = ResultIgnored
		updated, err = s.orders.Update(ctx, cb.OrderID, s.reconcile(ctx, cb, false, &result))
	}
	if errors.Is(err, order.ErrNotFound) {
		s.log.WarnContext(ctx, "vnpay callback for unknown order", "order_id", cb.OrderID)
		return Outcome{OrderID: cb.OrderID, Result: ResultIgnored}, nil
	}
	if err != nil {
		return Outcome{OrderID: cb.OrderID}, fmt.Errorf("reconcile %s: %w", cb.OrderID, err)
	}

	s.log.InfoContext(ctx, "vnpay callback reconciled",
		"order_id", cb.OrderID, "result", result, "response_code", cb.ResponseCode, "txn_no", cb.TransactionNo)
	if result == ResultPaid {
		s.dispatch(updated)
	}
	return Outcome{OrderID: cb.OrderID, Result: result, PaymentStatus: updated.PaymentStatus}, nil
}

// Drain blocks until every in-flight notification has finished.
func (s *Service) Drain() {
	s.wg.Wait()
}

func (s *Service) reconcile(ctx context.Context, cb vnpay.Callback, consumeCart bool, result *Result) order.Mutation {
	return func(o *order.Order) (order.Change, error) {
		if o.PaymentMethod != order.MethodVNPay ||
			o.OrderStatus != order.StatusAwaitingPayment ||
			(o.PaymentStatus != order.PaymentPending && o.PaymentStatus != order.PaymentProcessing) {
			*result = ResultIgnored
			return order.Change{}, nil
		}
		if cb.TransactionNo != "" {
			ref := cb.TransactionNo
			o.GatewayTxnRef = &ref
		}

		amountOK := cb.AmountMinor == vnpay.MinorUnits(o.TotalAmount)
		if cb.Success() && amountOK {
			if _, err := order.ApplyPaymentStatus(o, order.PaymentPaid, s.now()); err != nil {
				return order.Change{}, err
			}
			*result = ResultPaid
			return order.Change{Dirty: true, ConsumeCart: consumeCart}, nil
		}
		if cb.Success() {
			s.log.WarnContext(ctx, "vnpay amount mismatch", "order_id", o.ID,
				"expected", vnpay.MinorUnits(o.TotalAmount), "got", cb.AmountMinor)
		}

		if _, err := order.ApplyPaymentStatus(o, order.PaymentFailed, s.now()); err != nil {
			return order.Change{}, err
		}
		if _, err := order.ApplyOrderStatus(o, order.StatusCancel); err != nil {
			return order.Change{}, err
		}
		*result = ResultFailed
		return order.Change{Dirty: true}, nil
	}
}

// prepare snapshots the open cart into an unsaved order.
func (s *Service) prepare(ctx context.Context, o owner.Key, contact order.Contact, method order.PaymentMethod) (order.Order, error) {
	c, err := s.carts.ResolveOpenCart(ctx, o)
	if err != nil {
		return order.Order{}, err
	}
	if c == nil {
		return order.Order{}, ErrCartEmpty
	}

	items := make([]order.Item, 0, len(c.Items))
	total := decimal.Zero
	for _, it := range c.Items {
		if it.Quantity <= 0 {
			continue
		}
		line := order.Item{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
		items = append(items, line)
		total = total.Add(line.LineTotal())
	}
	if len(items) == 0 {
		return order.Order{}, ErrCartEmpty
	}

	contact, err = normalizeContact(contact)
	if err != nil {
		return order.Order{}, err
	}

	return order.Order{
		CartID:        c.ID,
		Owner:         o,
		Contact:       contact,
		OrderedAt:     s.now().UTC(),
		TotalAmount:   total,
		PaymentMethod: method,
		Items:         items,
	}, nil
}

// insert assigns a fresh id, regenerating it on a primary key collision.
func (s *Service) insert(ctx context.Context, ord order.Order, consumeCart bool) (order.Order, error) {
	var err error
	for attempt := 0; attempt <= idRetries; attempt++ {
		ord.ID = s.newID()
		err = s.orders.Create(ctx, ord, consumeCart)
		if !errors.Is(err, order.ErrDuplicateID) {
			break
		}
		s.log.WarnContext(ctx, "order id collision, regenerating", "order_id", ord.ID, "attempt", attempt+1)
	}
	if err != nil {
		return order.Order{}, err
	}
	return ord, nil
}

func (s *Service) dispatch(ord order.Order) {
	if s.notifier == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.OrderPlaced(ctx, ord); err != nil {
			s.log.Error("order notification failed", "order_id", ord.ID, "err", err)
		}
	}()
}

func normalizeContact(c order.Contact) (order.Contact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.TrimSpace(c.Email)
	c.Address = strings.TrimSpace(c.Address)
	c.Note = strings.TrimSpace(c.Note)
	if c.Name == "" || c.Phone == "" || c.Address == "" {
		return order.Contact{}, ErrInvalidContact
	}
	return c, nil
}
