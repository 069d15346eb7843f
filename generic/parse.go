package generic

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DATE PARSING
// =============================================================================

const (
	LayoutDisplay = "02/01/2006"
	LayoutISO     = "2006-01-02"
)

// dateLayouts are tried in order. Day-first forms come before month-first
// because policy forms are filled in dd/mm/yyyy.
var dateLayouts = []string{
	"2/1/2006",
	"2006-1-2",
	"2-1-2006",
	"2006/1/2",
	"2006-01-02 15:04:05",
	"2/1/2006 15:04:05",
	time.RFC3339,
}

// ParseDate accepts dd/mm/yyyy, yyyy-mm-dd and the common spreadsheet
// variants of both. Blank or invalid input returns ok=false.
func ParseDate(s string) (TimePoint, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TimePoint{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return FromTime(t), true
		}
	}
	return TimePoint{}, false
}

// MustParseDate is ParseDate for fixtures; it panics on bad input.
func MustParseDate(s string) TimePoint {
	tp, ok := ParseDate(s)
	if !ok {
		panic("generic: invalid date " + s)
	}
	return tp
}

// =============================================================================
// AMOUNT PARSING
// =============================================================================

// ParseAmount strips currency symbols, codes and thousands separators.
// Both "1,234.56" and "1.234,56" yield 1234.56. A minus anywhere before the
// first digit ("-500", "$ -500", "MXN -1,000") or surrounding parentheses
// make the result negative. Empty or unparseable input yields zero,
// including letters between digits ("12abc34", "1e3").
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")

	var b strings.Builder
	seenDigit, trailing := false, false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			if trailing {
				return decimal.Zero
			}
			seenDigit = true
			b.WriteRune(r)
		case r == '.' || r == ',':
			b.WriteRune(r)
		case r == '-' && !seenDigit:
			negative = true
		case unicode.IsLetter(r) && seenDigit:
			// "500 USD" is fine, "5e3" is not
			trailing = true
		}
	}
	clean := normalizeSeparators(b.String())
	if clean == "" {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		return d.Neg()
	}
	return d
}

func normalizeSeparators(s string) string {
	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")

	switch {
	case comma < 0 && strings.Count(s, ".") > 1:
		// 1.234.567
		return strings.ReplaceAll(s, ".", "")
	case comma < 0:
		return s
	case dot > comma:
		// 1,234.56
		return strings.ReplaceAll(s, ",", "")
	case dot >= 0:
		// 1.234,56
		s = strings.ReplaceAll(s, ".", "")
		return strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ",") == 1 && len(s)-comma-1 != 3:
		// 12,5
		return strings.Replace(s, ",", ".", 1)
	default:
		// 1,234 or 1,234,567
		return strings.ReplaceAll(s, ",", "")
	}
}
