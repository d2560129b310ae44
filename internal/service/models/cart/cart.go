package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a cart.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusConverted Status = "CONVERTED"
)

// Cart is a user's in-progress selection of products.
type Cart struct {
	ID          uuid.UUID       `json:"id"`
	UserID      string          `json:"userId"`
	Status      Status          `json:"status"`
	Items       []Item          `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ItemCount   int             `json:"itemCount"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Item is a cart line holding the product snapshot taken when it was added.
type Item struct {
	ID           uuid.UUID       `json:"id"`
	CartID       uuid.UUID       `json:"cartId"`
	ProductID    int64           `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductImage string          `json:"productImage"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Quantity     int             `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// New returns an empty active cart for userID.
func New(userID string, now time.Time) *Cart {
	return &Cart{
		ID:          uuid.New(),
		UserID:      userID,
		Status:      StatusActive,
		Items:       []Item{},
		TotalAmount: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemIndex returns the index of the line with id, or -1.
func (c *Cart) ItemIndex(id uuid.UUID) int {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return i
		}
	}

	return -1
}

// ProductIndex returns the index of the line holding productID, or -1.
func (c *Cart) ProductIndex(productID int64) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}

	return -1
}

// RemoveAt drops the line at index i.
func (c *Cart) RemoveAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

// Recalculate refreshes line subtotals, the cart total and the item count.
func (c *Cart) Recalculate(now time.Time) {
	total := decimal.Zero
	count := 0
	for i := range c.Items {
		c.Items[i].Subtotal = c.Items[i].UnitPrice.Mul(decimal.NewFromInt(int64(c.Items[i].Quantity))).Round(2)
		total = total.Add(c.Items[i].Subtotal)
		count += c.Items[i].Quantity
	}
	c.TotalAmount = total
	c.ItemCount = count
	c.UpdatedAt = now
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = append([]Item(nil), c.Items...)

	return &cp
}
