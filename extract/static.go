package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hazyhaar/pricewatch/htmlx"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// StaticFetcher is the lightweight strategy: one HTTP GET plus a static
// parse of the raw HTML. No scripts run, so client-rendered fields stay
// empty — it is the fallback, not the primary path.
type StaticFetcher struct {
	client *http.Client
	ua     string
}

// StaticOption configures a StaticFetcher.
type StaticOption func(*StaticFetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) StaticOption {
	return func(f *StaticFetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) StaticOption {
	return func(f *StaticFetcher) { f.ua = ua }
}

// NewStaticFetcher creates a StaticFetcher with production defaults.
func NewStaticFetcher(opts ...StaticOption) *StaticFetcher {
	f := &StaticFetcher{
		client: &http.Client{Timeout: 15 * time.Second},
		ua:     defaultUserAgent,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Extract GETs the URL and walks the platform selector table over the
// parsed document.
func (f *StaticFetcher) Extract(ctx context.Context, url string) (Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Record{}, fmt.Errorf("extract: static request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("extract: static fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Record{}, fmt.Errorf("extract: static fetch %s: HTTP %d", url, resp.StatusCode)
	}

	// Cap the read to keep a hostile page from exhausting memory.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return Record{}, fmt.Errorf("extract: read body: %w", err)
	}

	return ParseRecord(body, url)
}

// ParseRecord extracts a Record from raw HTML using the URL's platform
// selector table.
func ParseRecord(body []byte, url string) (Record, error) {
	doc, err := htmlx.Parse(body)
	if err != nil {
		return Record{}, fmt.Errorf("extract: parse html: %w", err)
	}

	rs := RulesFor(url)
	rec := Record{URL: url}

	for _, rule := range rulesByField(rs, FieldName) {
		n := htmlx.Query(doc, rule.Selector)
		var v string
		if rule.Attr != "" {
			v = htmlx.Attr(n, rule.Attr)
		} else {
			v = htmlx.Text(n)
		}
		if v != "" {
			rec.Name = v
			break
		}
	}

	for _, rule := range rulesByField(rs, FieldPrice) {
		n := htmlx.Query(doc, rule.Selector)
		var v string
		if rule.Attr != "" {
			v = htmlx.Attr(n, rule.Attr)
		} else {
			v = htmlx.Text(n)
		}
		if v == "" {
			continue
		}
		if p, err := CleanPrice(v); err == nil {
			rec.Price = p
			break
		}
		// Unparseable price text is treated as absence; try the next rule.
	}

	for _, rule := range rulesByField(rs, FieldImage) {
		n := htmlx.Query(doc, rule.Selector)
		var v string
		if rule.Attr != "" {
			v = htmlx.Attr(n, rule.Attr)
		} else {
			v = htmlx.Text(n)
		}
		if v != "" {
			rec.Image = v
			break
		}
	}

	return rec, nil
}
