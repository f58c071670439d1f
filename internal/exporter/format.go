package exporter

import (
	"strconv"

	"github.com/shopspring/decimal"
)

func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatAmount formats a currency amount with exactly 2 decimal places
func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
