package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Cents is a monetary amount in integer minor units. All amounts inside
// the ordering core are carried as Cents; decimal dollars exist only at
// the display and parsing boundary.
type Cents int64

// ParseCents converts a decimal amount string such as "4.50" into minor
// units. Amounts with sub-cent precision are rejected.
func ParseCents(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return CentsFromDecimal(d)
}

// CentsFromDecimal converts a decimal dollar amount into minor units.
func CentsFromDecimal(d decimal.Decimal) (Cents, error) {
	minor := d.Mul(decimal.NewFromInt(100))
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %s has sub-cent precision", d.String())
	}
	return Cents(minor.IntPart()), nil
}

// Decimal returns the amount as decimal dollars.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// Times multiplies a unit price by a quantity.
func (c Cents) Times(quantity int) Cents {
	return c * Cents(quantity)
}

// String renders the amount as decimal dollars, e.g. "9.00".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}
