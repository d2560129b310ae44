// Package currency holds the ISO 4217 codes orders may be priced in.
package currency

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyRUB Currency = "RUB"
)

var supported = map[Currency]struct{}{
	CurrencyUSD: {},
	CurrencyEUR: {},
	CurrencyGBP: {},
	CurrencyRUB: {},
}

var ErrInvalidCurrency = errors.New("invalid currency")

func (c Currency) String() string {
	return string(c)
}

func (c Currency) Value() (driver.Value, error) {
	return c.String(), nil
}

// Scan reads a currency column, rejecting codes the service does not price in.
func (c *Currency) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return c.set(v)
	case []byte:
		return c.set(string(v))
	default:
		return fmt.Errorf("currency: cannot scan %T", src)
	}
}

func (c *Currency) UnmarshalText(text []byte) error {
	return c.set(string(text))
}

func (c *Currency) set(s string) error {
	parsed, err := ParseCurrency(s)
	if err != nil {
		return err
	}
	*c = parsed

	return nil
}

// ParseCurrency accepts codes in any case and surrounding whitespace.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := supported[c]; !ok {
		return "", errs.Wrap(errs.KindValidation, "currency.Parse", fmt.Errorf("%w %q", ErrInvalidCurrency, s))
	}

	return c, nil
}
