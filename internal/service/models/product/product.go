package product

import "github.com/shopspring/decimal"

// Product is the catalog view a cart line snapshots at add time.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"imageUrl"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}
