package ordersvc

import (
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/currency"
	"github.com/shopspring/decimal"
)

// Pricing turns a cart subtotal into order totals.
type Pricing struct {
	TaxRate      decimal.Decimal
	FlatShipping decimal.Decimal
	// FreeShippingThreshold waives shipping when the subtotal reaches it. Zero disables it.
	FreeShippingThreshold decimal.Decimal
	Currency              currency.Currency
}

func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:               decimal.RequireFromString("0.10"),
		FlatShipping:          decimal.RequireFromString("15.00"),
		FreeShippingThreshold: decimal.Zero,
		Currency:              currency.CurrencyUSD,
	}
}

// Quote holds the monetary parts of an order.
type Quote struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

func (p Pricing) Quote(subtotal decimal.Decimal) Quote {
	tax := subtotal.Mul(p.TaxRate).Round(2)

	shipping := p.FlatShipping
	if p.FreeShippingThreshold.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Quote{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}

// ReconcilePolicy bounds how long an order may wait for its payment verification.
type ReconcilePolicy struct {
	PendingTimeout time.Duration
	MaxAttempts    int
	BatchSize      int
}

func DefaultReconcilePolicy() ReconcilePolicy {
	return ReconcilePolicy{
		PendingTimeout: 15 * time.Minute,
		MaxAttempts:    3,
		BatchSize:      100,
	}
}
