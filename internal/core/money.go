// Package core provides the canonical data model shared by the ingest,
// rule-matching, classification and reporting stages.
//
// This file contains amount parsing and currency formatting. Amounts are
// fixed-point decimals, expense-positive, rounded to display precision the
// moment they are parsed so every later sum of rounded values stays exact.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DecimalSeparator selects how an amount string is interpreted.
type DecimalSeparator string

const (
	// SeparatorDot is the US convention: 1,234.56
	SeparatorDot DecimalSeparator = "."
	// SeparatorComma is the European convention: 1.234,56
	SeparatorComma DecimalSeparator = ","
)

// DisplayPlaces is the rounding precision used for every displayed amount.
const DisplayPlaces = 2

// ParseAmount parses a bank-export amount string into a display-rounded
// decimal. It strips currency symbols, honors the source's decimal separator
// for thousand-separator removal, and treats parenthesized values as
// negative ("(100.00)" -> -100.00).
//
// Examples:
//
//	ParseAmount("1,234.56", SeparatorDot)   -> 1234.56
//	ParseAmount("1.234,56", SeparatorComma) -> 1234.56
//	ParseAmount("($15.99)", SeparatorDot)   -> -15.99
func ParseAmount(s string, sep DecimalSeparator) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	// Currency symbols may appear before or after the digits.
	for _, sym := range []string{"$", "€", "£", "¥", "zł"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)

	if sep == SeparatorComma {
		// European format: strip thousand separators, then turn the
		// decimal comma into a dot.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, " ", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if negative {
		d = d.Neg()
	}
	return d.Round(DisplayPlaces), nil
}

// FormatCurrency renders an amount using a "{amount}" template, without
// decimal places ("$1,234" style, for summary totals).
func FormatCurrency(amount decimal.Decimal, format string) string {
	return applyCurrencyFormat(groupThousands(amount.Round(0).StringFixed(0)), format)
}

// FormatCurrencyDecimal renders an amount with display precision
// ("$1,234.56" style).
func FormatCurrencyDecimal(amount decimal.Decimal, format string) string {
	s := amount.Round(DisplayPlaces).StringFixed(DisplayPlaces)
	intPart, fracPart, _ := strings.Cut(s, ".")
	return applyCurrencyFormat(groupThousands(intPart)+"."+fracPart, format)
}

func applyCurrencyFormat(num, format string) string {
	if format == "" {
		format = "${amount}"
	}
	return strings.ReplaceAll(format, "{amount}", num)
}

func groupThousands(intPart string) string {
	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	if len(intPart) > 3 {
		var groups []string
		for len(intPart) > 3 {
			groups = append([]string{intPart[len(intPart)-3:]}, groups...)
			intPart = intPart[:len(intPart)-3]
		}
		intPart = intPart + "," + strings.Join(groups, ",")
	}
	if neg {
		intPart = "-" + intPart
	}
	return intPart
}
