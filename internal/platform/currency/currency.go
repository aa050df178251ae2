// Package currency converts between stored minor-unit amounts and the decimal major-unit
// amounts operators type and read.
package currency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/Flora-Ebah/kairos-backend/internal/domain"
)

var (
	ErrUnknownCurrency = errors.New("unknown currency code")
	ErrTooPrecise      = errors.New("amount has more decimal places than the currency allows")
	ErrNotANumber      = errors.New("amount is not a decimal number")
)

// Converter is bound to one ISO 4217 currency.
type Converter struct {
	code     string
	currency *money.Currency
}

func New(code string) (Converter, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	cur := money.GetCurrency(code)
	if cur == nil {
		return Converter{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return Converter{code: code, currency: cur}, nil
}

// MustNew is New for codes known at compile time.
func MustNew(code string) Converter {
	c, err := New(code)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Converter) Code() string { return c.code }

// Fraction is the number of minor-unit digits (0 for XOF, 2 for EUR).
func (c Converter) Fraction() int { return c.currency.Fraction }

// ParseMajor turns "1500" or "12.50" into minor units.
func (c Converter) ParseMajor(s string) (domain.Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, s)
	}
	return c.FromDecimal(d)
}

func (c Converter) FromDecimal(d decimal.Decimal) (domain.Amount, error) {
	minor := d.Shift(int32(c.currency.Fraction))
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: %s %s", ErrTooPrecise, d.String(), c.code)
	}
	return domain.Amount(minor.IntPart()), nil
}

// ToMajor returns a in major units.
func (c Converter) ToMajor(a domain.Amount) decimal.Decimal {
	return decimal.New(int64(a), -int32(c.currency.Fraction))
}

// MajorString renders a as a plain decimal with the currency's fixed precision, e.g. "12.50".
func (c Converter) MajorString(a domain.Amount) string {
	return c.ToMajor(a).StringFixed(int32(c.currency.Fraction))
}

// Format renders a for display with the currency's symbol and separators.
func (c Converter) Format(a domain.Amount) string {
	return c.currency.Formatter().Format(int64(a))
}
