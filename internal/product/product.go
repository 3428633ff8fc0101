package product

import "github.com/shopspring/decimal"

// Product is the catalog view the storefront needs: identity, display name
// and the current selling price. Catalog maintenance lives elsewhere.
type Product struct {
	ID       int             `json:"productId"`
	Name     string          `json:"productName"`
	NameEn   *string         `json:"productNameEn,omitempty"`
	Category *string         `json:"category,omitempty"`
	Price    decimal.Decimal `json:"productPrice"`
	Pic      *string         `json:"productPic,omitempty"`
}
