package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Published figures use thousands separators (spaces, non-breaking
// spaces or commas) and an optional currency prefix.
var amountCleaner = strings.NewReplacer(
	"R", "",
	"r", "",
	",", "",
	" ", "",
	" ", "",
	" ", "",
)

func parseAmount(s string) (decimal.Decimal, bool) {
	cleaned := amountCleaner.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func parseLimit(s string) (int64, bool) {
	cleaned := amountCleaner.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var percentPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*%`)

// parseRate extracts "26%" style percentages as a 0-1 fraction.
func parseRate(s string) (decimal.Decimal, bool) {
	m := percentPattern.FindStringSubmatch(s)
	if m == nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "."))
	if err != nil {
		return decimal.Zero, false
	}
	return d.Div(decimal.NewFromInt(100)), true
}
