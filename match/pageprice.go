package match

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"

	"github.com/hazyhaar/pricewatch/htmlx"
)

// PagePricer resolves a price by fetching the candidate's own page. Used
// when the search snippet carries no trustworthy price.
type PagePricer interface {
	PriceFor(ctx context.Context, pageURL string) (float64, error)
}

// PageFetcher is the HTTP PagePricer: one GET, then platform selectors,
// then JSON-LD structured data, then a text-pattern sweep over the page
// flattened to markdown.
type PageFetcher struct {
	client *http.Client
	ua     string
}

// NewPageFetcher creates a PageFetcher.
func NewPageFetcher(timeout time.Duration) *PageFetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &PageFetcher{
		client: &http.Client{Timeout: timeout},
		ua: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// Price-bearing selectors per platform, tried in order. These cover
// several markup generations per marketplace.
var pagePriceSelectors = map[string][]string{
	"Amazon": {
		"span.a-price-whole",
		"span.a-offscreen",
		"span#priceblock_ourprice",
		"span#priceblock_dealprice",
		"span.apexPriceToPay",
	},
	"Flipkart": {
		"div.Nx9bqj",
		"div._30jeq3",
		"div._16Jk6d",
		"div._25b18c",
	},
	"Meesho": {
		"h4.sc-eDvSVe",
		"span.FinalPrice",
		"span.SellingPrice",
	},
}

// PriceFor fetches the page and runs the three-stage price resolution.
// Returns 0 with nil error when the page loads but no sane price is found.
func (f *PageFetcher) PriceFor(ctx context.Context, pageURL string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return 0, fmt.Errorf("match: page request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,hi;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("match: fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("match: fetch page %s: HTTP %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return 0, fmt.Errorf("match: read page: %w", err)
	}

	return PriceFromHTML(body, pageURL), nil
}

// PriceFromHTML resolves a price from raw page HTML.
func PriceFromHTML(body []byte, pageURL string) float64 {
	doc, err := htmlx.Parse(body)
	if err != nil {
		return 0
	}

	for _, sel := range pagePriceSelectors[PlatformFromURL(pageURL)] {
		for _, n := range htmlx.QueryAll(doc, sel) {
			if p := ExtractPriceFromText(htmlx.Text(n)); p > 0 {
				return p
			}
		}
	}

	if p := priceFromJSONLD(doc); p > 0 {
		return p
	}

	// Flatten the page to markdown so hidden markup noise drops out and the
	// text patterns see roughly what a reader sees.
	if md, err := htmltomarkdown.ConvertString(string(body)); err == nil {
		if p := ExtractPriceFromText(md); p > 0 {
			return p
		}
	}
	return 0
}

// priceFromJSONLD walks application/ld+json blocks looking for an offer
// price.
func priceFromJSONLD(doc *html.Node) float64 {
	for _, script := range htmlx.QueryAll(doc, "script[type=application/ld+json]") {
		raw := htmlx.RawText(script)
		if raw == "" {
			continue
		}

		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			continue
		}
		if list, ok := data.([]any); ok && len(list) > 0 {
			data = list[0]
		}
		obj, ok := data.(map[string]any)
		if !ok {
			continue
		}

		offers := obj["offers"]
		if list, ok := offers.([]any); ok && len(list) > 0 {
			offers = list[0]
		}
		offer, ok := offers.(map[string]any)
		if !ok {
			continue
		}

		for _, key := range []string{"price", "lowPrice"} {
			if p := numericValue(offer[key]); p > 0 {
				return p
			}
		}
		if ps, ok := offer["priceSpecification"].(map[string]any); ok {
			if p := numericValue(ps["price"]); p > 0 {
				return p
			}
		}
	}
	return 0
}

func numericValue(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(x, ",", ""), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
