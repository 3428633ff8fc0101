package cart

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/pet-shop-storefront/internal/owner"
)

// Item is one cart line. UnitPrice is the catalog price at the moment the
// product was first added and is never refreshed afterwards.
type Item struct {
	ProductID   int             `json:"productId"`
	ProductName string          `json:"productName,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the mutable pre-purchase basket. At most one non-consumed cart
// exists per owner.
type Cart struct {
	ID        int64           `json:"cartId"`
	Owner     owner.Key       `json:"-"`
	CreatedAt time.Time       `json:"createdAt"`
	Consumed  bool            `json:"consumed"`
	Items     []Item          `json:"items"`
	Total     decimal.Decimal `json:"total"`
}

// Sum recomputes the cart total from the snapshotted line prices.
func (c Cart) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}
