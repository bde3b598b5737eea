package extract

import (
	"fmt"
	"strconv"
	"strings"
)

// CleanPrice parses a scraped price string into a number. It strips currency
// symbols, thousands separators and any other non-digit, non-decimal-point
// characters, so "₹11,990.00", "Rs. 11990" and "11990.00 INR" all yield the
// same value. Unparseable or non-positive text is rejected.
func CleanPrice(s string) (float64, error) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		return 0, fmt.Errorf("extract: no digits in price text %q", s)
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("extract: parse price %q: %w", s, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("extract: non-positive price %v in %q", v, s)
	}
	return v, nil
}
