package match

import "testing"

func TestExtractPriceFromText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want float64
	}{
		{"prefixed symbol", "Price: ₹299.00 only", 299},
		{"rs abbreviation", "Current price: Rs 150", 150},
		{"inr suffix context", "INR 1,299 onwards", 1299},
		{"thousands separator", "Deal price: ₹1,299", 1299},
		{"lowest of several", "₹89 + ₹40 delivery", 40},
		{"from onwards", "From ₹99 onwards", 99},
		{"empty", "", 0},
		{"no price", "Great product, fast shipping", 0},
		{"below sane bound", "₹5", 0},
		{"above sane bound", "₹99,999,999", 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ExtractPriceFromText(c.in); got != c.want {
				t.Errorf("ExtractPriceFromText(%q) = %v, want %v", c.in, got, c.want)
			}
		})
	}
}

func TestExtractPriceIgnoresNoisePatterns(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want float64
	}{
		{"star rating", "4 out of 5 stars ₹499", 499},
		{"discount percent", "50% off ₹999", 999},
		{"mrp struck through", "MRP ₹1,999 now ₹1,499", 1499},
		{"savings callout", "Save ₹500 today, price ₹2,499", 2499},
		{"was price", "was ₹399 ₹299", 299},
		{"only noise", "Save ₹500 free delivery", 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ExtractPriceFromText(c.in); got != c.want {
				t.Errorf("ExtractPriceFromText(%q) = %v, want %v", c.in, got, c.want)
			}
		})
	}
}

func TestExtractPriceSymbolPlacement(t *testing.T) {
	// The same amount must come out regardless of symbol placement or
	// separators.
	for _, in := range []string{"₹11,990", "Rs. 11990", "Rs 11,990", "INR 11990"} {
		if got := ExtractPriceFromText(in); got != 11990 {
			t.Errorf("ExtractPriceFromText(%q) = %v, want 11990", in, got)
		}
	}
}

func TestCountPriceTokens(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"₹499", 1},
		{"₹499 was ₹999", 2},
		{"Rs. 150 and INR 200 and ₹300", 3},
		{"no prices here", 0},
	}
	for _, c := range cases {
		if got := countPriceTokens(c.in); got != c.want {
			t.Errorf("countPriceTokens(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
