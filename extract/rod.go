package extract

import (
	"context"
	"time"

	"github.com/hazyhaar/pricewatch/extract/browser"
)

// BrowserRenderer reads fields from the live DOM of a rendered page. It
// satisfies Renderer.
type BrowserRenderer struct {
	mgr         *browser.Manager
	navTimeout  time.Duration
	waitTimeout time.Duration
}

// NewBrowserRenderer wraps a browser manager. navTimeout bounds navigation
// and load; the wait-selector gate gets a fixed fraction of it.
func NewBrowserRenderer(mgr *browser.Manager, navTimeout time.Duration) *BrowserRenderer {
	if navTimeout <= 0 {
		navTimeout = 20 * time.Second
	}
	return &BrowserRenderer{
		mgr:         mgr,
		navTimeout:  navTimeout,
		waitTimeout: navTimeout / 2,
	}
}

// Render opens a tab, waits for the platform's gate selectors, then reads
// each field through the ordered selector table. Missing fields stay empty;
// the Extractor decides whether the round counts as complete.
func (r *BrowserRenderer) Render(ctx context.Context, url string) (Record, error) {
	tab, err := browser.OpenTab(ctx, r.mgr, url, r.navTimeout)
	if err != nil {
		return Record{}, err
	}
	defer tab.Close()

	rs := RulesFor(url)
	if rs.WaitSelector != "" {
		// A timeout here is not fatal; a partially rendered page can still
		// carry some fields.
		_ = tab.WaitAny(ctx, rs.WaitSelector, r.waitTimeout)
	}

	rec := Record{URL: url}

	for _, rule := range rulesByField(rs, FieldName) {
		v, err := readRule(ctx, tab, rule)
		if err != nil {
			return Record{}, err
		}
		if v != "" {
			rec.Name = v
			break
		}
	}

	for _, rule := range rulesByField(rs, FieldPrice) {
		v, err := readRule(ctx, tab, rule)
		if err != nil {
			return Record{}, err
		}
		if v == "" {
			continue
		}
		if p, perr := CleanPrice(v); perr == nil {
			rec.Price = p
			break
		}
	}

	for _, rule := range rulesByField(rs, FieldImage) {
		v, err := readRule(ctx, tab, rule)
		if err != nil {
			return Record{}, err
		}
		if v != "" {
			rec.Image = v
			break
		}
	}

	return rec, nil
}

func readRule(ctx context.Context, tab *browser.Tab, rule Rule) (string, error) {
	if rule.Attr != "" {
		return tab.FieldAttr(ctx, rule.Selector, rule.Attr)
	}
	return tab.FieldText(ctx, rule.Selector)
}
