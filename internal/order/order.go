package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/pet-shop-storefront/internal/owner"
)

type Status string

const (
	StatusAwaitingPayment Status = "AwaitingPayment"
	StatusPending         Status = "Pending"
	StatusProcessing      Status = "Processing"
	StatusShipped         Status = "Shipped"
	StatusSuccess         Status = "Success"
	StatusCancel          Status = "Cancel"
	StatusError           Status = "Error"
)

var statuses = []Status{
	StatusAwaitingPayment, StatusPending, StatusProcessing, StatusShipped,
	StatusSuccess, StatusCancel, StatusError,
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "Pending"
	PaymentProcessing PaymentStatus = "Processing"
	PaymentPaid       PaymentStatus = "Paid"
	PaymentFailed     PaymentStatus = "Failed"
	PaymentRefunded   PaymentStatus = "Refunded"
)

var paymentStatuses = []PaymentStatus{
	PaymentPending, PaymentProcessing, PaymentPaid, PaymentFailed, PaymentRefunded,
}

type PaymentMethod string

const (
	MethodCOD   PaymentMethod = "cod"
	MethodVNPay PaymentMethod = "vnp"
)

// ParseStatus matches case-insensitively against the order status set.
func ParseStatus(s string) (Status, error) {
	for _, st := range statuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	for _, st := range paymentStatuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

// Contact is the buyer-supplied delivery information.
type Contact struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address"`
	Note    string `json:"note,omitempty"`
}

// Item is an immutable copy of a cart line taken at checkout.
type Item struct {
	ProductID int             `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a placed purchase. Only the status and payment fields change
// after creation.
type Order struct {
	ID     string    `json:"orderId"`
	CartID int64     `json:"-"`
	Owner  owner.Key `json:"-"`
	Contact
	OrderedAt     time.Time       `json:"orderedAt"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	OrderStatus   Status          `json:"orderStatus"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	GatewayTxnRef *string         `json:"gatewayTxnRef,omitempty"`
	Items         []Item          `json:"items"`
}

// Sum recomputes the total from the item snapshot.
func (o Order) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (o Order) OwnedBy(k owner.Key) bool {
	return !k.IsZero() && o.Owner == k
}
