package inventory

import "time"

// Record is the stock counter of one product.
type Record struct {
	ProductID    int64     `json:"productId"`
	Available    int       `json:"available"`
	MinThreshold int       `json:"minThreshold"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BelowThreshold reports whether stock fell under the restock threshold.
func (r Record) BelowThreshold() bool {
	return r.Available < r.MinThreshold
}

// Line is one product quantity to reserve or release.
type Line struct {
	ProductID int64
	Quantity  int
}
