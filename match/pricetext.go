package match

import (
	"regexp"
	"strconv"
	"strings"
)

// Price sanity bounds for Indian marketplace listings. Values outside this
// range are treated as noise (star ratings, discount percentages, EMI
// figures) rather than a product price.
const (
	minSanePrice = 10
	maxSanePrice = 10_000_000
)

// ignorePatterns match price-like substrings that are never the selling
// price: struck-through MRPs, savings callouts, delivery notes, ratings.
// They are blanked out before the price patterns run.
var ignorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)offer from ₹\d+`),
	regexp.MustCompile(`(?i)\d+ out of \d+ stars`),
	regexp.MustCompile(`(?i)courier partners`),
	regexp.MustCompile(`(?i)delivery by`),
	regexp.MustCompile(`(?i)sold by`),
	regexp.MustCompile(`(?i)order processed by`),
	regexp.MustCompile(`(?i)free delivery`),
	regexp.MustCompile(`(?i)only \d+ left`),
	regexp.MustCompile(`(?i)\d+% off`),
	regexp.MustCompile(`(?i)save ₹\d+`),
	regexp.MustCompile(`(?i)₹\d+\s*saved`),
	regexp.MustCompile(`(?i)was ₹\d+`),
	regexp.MustCompile(`(?i)mrp ₹\d+`),
	regexp.MustCompile(`(?i)list price ₹\d+`),
}

// pricePatterns are tried in priority order: prices anchored to selling-
// price context first, bare currency amounts last. Each has exactly one
// capture group for the numeric part.
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:current\s*price|selling\s*price|deal\s*price|special\s*price|offer\s*price|now)\s*:?\s*(?:₹|Rs\.?|INR)\s*([\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)(?:price|cost)\s*:?\s*(?:₹|Rs\.?|INR)\s*([\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)(?:₹|Rs\.?|INR)\s*([\d,]+(?:\.\d{2})?)\s*(?:was|instead\s*of|original)`),
	regexp.MustCompile(`(?i)(?:was|originally)\s*(?:₹|Rs\.?|INR)\s*[\d,]+\s*(?:now|today)?\s*(?:₹|Rs\.?|INR)\s*([\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)(?:only|just|from)\s*(?:₹|Rs\.?|INR)\s*([\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)(?:₹|Rs\.?|INR)\s*([\d,]+(?:\.\d{2})?)\s*(?:only|onwards|upwards)`),
	regexp.MustCompile(`₹\s*([\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)Rs\.?\s*([\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)INR\s*([\d,]+(?:\.\d{2})?)`),
}

// priceToken matches any currency-prefixed amount, used to count how many
// distinct price-looking substrings a snippet carries.
var priceToken = regexp.MustCompile(`(?i)(?:₹|Rs\.?|INR)\s*[\d,]+`)

// ExtractPriceFromText pulls a selling price out of free text. Known
// non-price patterns are stripped first, then prioritized price patterns
// run over the remainder. When several prices survive, the lowest wins
// since listings quote the discounted price below the MRP. Returns 0 when
// nothing sane is found.
func ExtractPriceFromText(text string) float64 {
	if text == "" {
		return 0
	}

	clean := strings.NewReplacer("\n", " ", "\t", " ").Replace(text)
	for _, p := range ignorePatterns {
		clean = p.ReplaceAllString(clean, "")
	}

	var found []float64
	for _, p := range pricePatterns {
		for _, m := range p.FindAllStringSubmatch(clean, -1) {
			v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
			if err != nil {
				continue
			}
			if v >= minSanePrice && v <= maxSanePrice {
				found = append(found, v)
			}
		}
	}

	if len(found) == 0 {
		return 0
	}
	min := found[0]
	for _, v := range found[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// countPriceTokens counts currency-prefixed amounts in text. A snippet
// price is only trusted when exactly one is present; two or more usually
// means an MRP-plus-discount pair where picking either is a guess.
func countPriceTokens(text string) int {
	return len(priceToken.FindAllString(text, -1))
}

// sanePrice reports whether v is inside the sanity bounds.
func sanePrice(v float64) bool {
	return v >= minSanePrice && v <= maxSanePrice
}
