package product

import "testing"

func TestParsePrice_CurrencySymbols(t *testing.T) {
	tests := []struct {
		input    string
		currency string
		amount   float64
	}{
		{"$9.99", "USD", 9.99},
		{"€19,90", "EUR", 19.90},
		{"£1,299.00", "GBP", 1299.00},
		{"¥1500", "JPY", 1500},
		{"₹2,499", "INR", 2499},
		{"₽ 999,50", "RUB", 999.50},
		{"₩12,000", "KRW", 12000},
		{"A$49.95", "AUD", 49.95},
		{"C$29.99", "CAD", 29.99},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParsePrice(tt.input)
			if got.Currency != tt.currency {
				t.Errorf("currency = %q, want %q", got.Currency, tt.currency)
			}
			if got.CurrentPrice != tt.amount {
				t.Errorf("amount = %v, want %v", got.CurrentPrice, tt.amount)
			}
		})
	}
}

func TestParsePrice_SeparatorDisambiguation(t *testing.T) {
	tests := []struct {
		input  string
		amount float64
	}{
		{"1.299,00", 1299.00}, // dot groups thousands, comma is decimal
		{"1,299.00", 1299.00}, // comma groups thousands, dot is decimal
		{"19,90", 19.90},      // two digits after comma: decimal
		{"12,000", 12000},     // three digits after comma: thousands
		{"9.99", 9.99},
		{"1500", 1500},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParsePrice(tt.input)
			if got.CurrentPrice != tt.amount {
				t.Errorf("amount = %v, want %v", got.CurrentPrice, tt.amount)
			}
		})
	}
}

func TestParsePrice_Malformed(t *testing.T) {
	for _, input := range []string{"", "free", "$", "call for price"} {
		got := ParsePrice(input)
		if got.CurrentPrice != 0 {
			t.Errorf("ParsePrice(%q).CurrentPrice = %v, want 0", input, got.CurrentPrice)
		}
	}
}

func TestParsePrice_NonBreakingSpace(t *testing.T) {
	got := ParsePrice("€ 19,90")
	if got.Currency != "EUR" || got.CurrentPrice != 19.90 {
		t.Errorf("got %+v, want EUR 19.90", got)
	}
}
