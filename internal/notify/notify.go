// Package notify tells the outside world that an order was placed.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/pet-shop-storefront/internal/order"
)

// Notifier is called after the order write has committed. Failures never
// roll the order back.
type Notifier interface {
	OrderPlaced(ctx context.Context, o order.Order) error
}

type OrderPlacedEvent struct {
	OrderID       string          `json:"order_id"`
	UserID        int             `json:"user_id,omitempty"`
	AnonID        string          `json:"anon_id,omitempty"`
	CustomerName  string          `json:"customer_name"`
	Phone         string          `json:"phone"`
	Email         string          `json:"email,omitempty"`
	PaymentMethod string          `json:"payment_method"`
	PaymentStatus string          `json:"payment_status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	ItemCount     int             `json:"item_count"`
	OrderedAt     string          `json:"ordered_at"`
}

func NewOrderPlacedEvent(o order.Order) OrderPlacedEvent {
	count := 0
	for _, it := range o.Items {
		count += it.Quantity
	}
	return OrderPlacedEvent{
		OrderID:       o.ID,
		UserID:        o.Owner.UserID,
		AnonID:        o.Owner.AnonID,
		CustomerName:  o.Name,
		Phone:         o.Phone,
		Email:         o.Email,
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		TotalAmount:   o.TotalAmount,
		ItemCount:     count,
		OrderedAt:     o.OrderedAt.UTC().Format(time.RFC3339),
	}
}

// LogNotifier is used when no broker is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) OrderPlaced(ctx context.Context, o order.Order) error {
	ev := NewOrderPlacedEvent(o)
	n.log.InfoContext(ctx, "order placed",
		"order_id", ev.OrderID,
		"payment_method", ev.PaymentMethod,
		"total_amount", ev.TotalAmount.String(),
		"items", ev.ItemCount,
	)
	return nil
}
