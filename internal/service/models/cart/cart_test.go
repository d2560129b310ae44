package cart

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCart_Recalculate(t *testing.T) {
	now := time.Now()
	c := New("user-1", now)
	c.Items = append(c.Items,
		Item{ID: uuid.New(), ProductID: 1, UnitPrice: decimal.RequireFromString("10.00"), Quantity: 2},
		Item{ID: uuid.New(), ProductID: 2, UnitPrice: decimal.RequireFromString("0.35"), Quantity: 3},
	)

	c.Recalculate(now)

	assert.Equal(t, "20.00", c.Items[0].Subtotal.StringFixed(2))
	assert.Equal(t, "1.05", c.Items[1].Subtotal.StringFixed(2))
	assert.Equal(t, "21.05", c.TotalAmount.StringFixed(2))
	assert.Equal(t, 5, c.ItemCount)
}

func TestCart_RemoveAtAndIndexes(t *testing.T) {
	c := New("user-1", time.Now())
	first, second := uuid.New(), uuid.New()
	c.Items = []Item{{ID: first, ProductID: 1}, {ID: second, ProductID: 2}}

	assert.Equal(t, 1, c.ItemIndex(second))
	assert.Equal(t, 0, c.ProductIndex(1))
	assert.Equal(t, -1, c.ProductIndex(9))

	c.RemoveAt(0)
	assert.Len(t, c.Items, 1)
	assert.Equal(t, -1, c.ItemIndex(first))
}

func TestCart_CloneIsIndependent(t *testing.T) {
	c := New("user-1", time.Now())
	c.Items = []Item{{ID: uuid.New(), Quantity: 1}}

	cp := c.Clone()
	cp.Items[0].Quantity = 5

	assert.Equal(t, 1, c.Items[0].Quantity)
}
