/*
Package generic provides the domain-agnostic primitives of the billing engine.

KEY CONCEPTS:
  - TimePoint: a calendar day (time.go)
  - Window:    a closed range of days (period.go)
  - Amount:    a decimal quantity tagged with a currency (this file)
  - ParseDate / ParseAmount: tolerant parsing of spreadsheet input (parse.go)

DESIGN PRINCIPLES:
  1. Precision: money uses decimal.Decimal, never float64
  2. Whole days: billing never needs hours or time zones
  3. No state: every function here is pure

USAGE:
  due := generic.NewTimePoint(2024, time.January, 31).AddMonths(1) // 2024-02-29
  premium := generic.NewAmountFromString("1500.50", generic.CurrencyLocal)
*/
package generic

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENCY
// =============================================================================

// Currency tags the denomination of an amount.
type Currency string

const (
	CurrencyLocal   Currency = "MXN" // pesos
	CurrencyIndexed Currency = "UDI" // inflation-indexed units
	CurrencyForeign Currency = "USD" // dollars
)

// ParseCurrency maps the labels used in policy forms to a Currency.
// Unknown or empty labels default to CurrencyLocal.
func ParseCurrency(s string) Currency {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UDI", "UDIS", "INDEXED":
		return CurrencyIndexed
	case "USD", "DOLARES", "DÓLARES", "DLLS", "FOREIGN":
		return CurrencyForeign
	default:
		return CurrencyLocal
	}
}

// =============================================================================
// AMOUNT - Money with currency
// =============================================================================

type Amount struct {
	Value    decimal.Decimal
	Currency Currency
}

func NewAmount(value decimal.Decimal, currency Currency) Amount {
	return Amount{Value: value, Currency: currency}
}

func NewAmountFromInt(value int64, currency Currency) Amount {
	return Amount{Value: decimal.NewFromInt(value), Currency: currency}
}

// NewAmountFromString parses value with ParseAmount; unparseable input is zero.
func NewAmountFromString(value string, currency Currency) Amount {
	return Amount{Value: ParseAmount(value), Currency: currency}
}

func (a Amount) Zero() Amount              { return Amount{Value: decimal.Zero, Currency: a.Currency} }
func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency} }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) Equal(b Amount) bool       { return a.Currency == b.Currency && a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }

// String renders two decimals followed by the currency, e.g. "1000.00 MXN".
func (a Amount) String() string {
	return a.Value.StringFixed(2) + " " + string(a.Currency)
}
