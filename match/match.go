// Package match finds listings of a tracked product on competing
// marketplaces. Given a product title it derives search keywords, fans a
// few query variants out to a web search provider, filters and scores the
// candidates, and selects up to three entries with at most one per
// platform. Results are cached with a freshness window.
package match

import (
	"strings"
	"time"
)

// Supported marketplaces in selection priority order. A candidate from any
// other host is discarded.
var Platforms = []string{"Amazon", "Flipkart", "Meesho"}

// platformSites maps a platform to the site: filter used for targeted
// queries.
var platformSites = map[string]string{
	"Amazon":   "amazon.in",
	"Flipkart": "flipkart.com",
	"Meesho":   "meesho.com",
}

// PlatformFromURL classifies a result URL, returning "" for unknown hosts.
func PlatformFromURL(url string) string {
	u := strings.ToLower(url)
	switch {
	case strings.Contains(u, "amazon.in"), strings.Contains(u, "amazon.com"):
		return "Amazon"
	case strings.Contains(u, "flipkart.com"):
		return "Flipkart"
	case strings.Contains(u, "meesho.com"), strings.Contains(u, "meesho.in"):
		return "Meesho"
	default:
		return ""
	}
}

// Result is one raw hit from the search provider.
type Result struct {
	Title   string
	URL     string
	Snippet string
	Image   string
	// PriceText is the provider's price string, set for shopping results.
	PriceText string
	// Source is "organic" or "shopping".
	Source string
}

// Candidate is a search result that survived platform classification,
// carrying its resolved price and relevance score through the pipeline.
type Candidate struct {
	Platform string
	Title    string
	URL      string
	Snippet  string
	Image    string
	Price    float64
	Source   string
	Score    float64
}

// hasRealImage reports whether the candidate carries a product image rather
// than the platform-logo placeholder.
func (c Candidate) hasRealImage() bool {
	return c.Image != "" && !strings.HasPrefix(c.Image, "/logos/")
}

// Entry is one listing in a persisted comparison.
type Entry struct {
	ID       string  `json:"id"`
	Platform string  `json:"platform"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Image    string  `json:"image"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// Comparison is the cached cross-platform result for one tracked item. It
// is replaced wholesale on refresh, never mutated in place.
type Comparison struct {
	ItemID      string    `json:"itemId"`
	SearchTitle string    `json:"searchTitle"`
	GeneratedAt time.Time `json:"generatedAt"`
	Entries     []Entry   `json:"entries"`
}

// Fresh reports whether a cached comparison can be served without
// regeneration: enough entries and younger than the window.
func (c *Comparison) Fresh(now time.Time, window time.Duration, minEntries int) bool {
	if c == nil || len(c.Entries) < minEntries {
		return false
	}
	return now.Sub(c.GeneratedAt) < window
}
