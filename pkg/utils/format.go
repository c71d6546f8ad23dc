// Package utils provides shared utility functions.
package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCurrency formats an amount as dollars with thousands separators and
// two decimal places.
func FormatCurrency(amount decimal.Decimal) string {
	negative := amount.IsNegative()
	str := amount.Abs().StringFixed(2)
	parts := strings.SplitN(str, ".", 2)

	result := "$" + groupThousands(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

// groupThousands inserts a comma every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	lead := n % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatSigned formats a cash delta with an explicit sign.
func FormatSigned(amount decimal.Decimal) string {
	formatted := FormatCurrency(amount)
	if amount.IsPositive() {
		return "+" + formatted
	}
	return formatted
}

// FormatPrice formats a per-unit price, or "-" when absent.
func FormatPrice(price decimal.NullDecimal) string {
	if !price.Valid {
		return "-"
	}
	return price.Decimal.StringFixed(2)
}

// FormatQuantity formats a signed quantity with thousands separators.
func FormatQuantity(qty int64) string {
	if qty < 0 {
		return "-" + groupThousands(decimal.NewFromInt(-qty).String())
	}
	return groupThousands(decimal.NewFromInt(qty).String())
}
