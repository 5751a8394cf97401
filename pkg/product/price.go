package product

import (
	"regexp"
	"strconv"
	"strings"
)

// currencySymbols maps price-string symbols to ISO 4217 codes. Multi-rune
// symbols are checked before their single-rune prefixes.
var currencySymbols = []struct {
	Symbol string
	Code   string
}{
	{"A$", "AUD"},
	{"C$", "CAD"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
	{"₽", "RUB"},
	{"₩", "KRW"},
}

var priceNumberRe = regexp.MustCompile(`\d+(?:[.,]\d+)*`)

// ParsePrice extracts a numeric amount and an ISO currency code from a raw
// price string such as "€1.299,00" or "$9.99". An unparseable amount yields
// 0; a missing symbol yields an empty currency.
func ParsePrice(raw string) Price {
	s := strings.ReplaceAll(raw, " ", " ")
	s = strings.TrimSpace(s)

	var currency string
	for _, cs := range currencySymbols {
		if strings.Contains(s, cs.Symbol) {
			currency = cs.Code
			s = strings.Replace(s, cs.Symbol, "", 1)
			break
		}
	}

	match := priceNumberRe.FindString(s)
	if match == "" {
		return Price{Currency: currency}
	}

	return Price{
		CurrentPrice: parseAmount(match),
		Currency:     currency,
	}
}

// parseAmount resolves decimal vs thousands separators and parses the
// remaining digits.
func parseAmount(s string) float64 {
	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	switch {
	case hasComma && hasDot:
		// The right-most separator is the decimal point; the other one
		// groups thousands.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		// A comma followed by exactly two digits is a decimal comma;
		// anything else is a thousands separator.
		idx := strings.LastIndex(s, ",")
		if len(s)-idx-1 == 2 {
			s = strings.ReplaceAll(s[:idx], ",", "") + "." + s[idx+1:]
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}
