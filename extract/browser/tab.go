package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab wraps a rod page opened for one extraction attempt.
type Tab struct {
	Page    *rod.Page
	PageURL string
}

// OpenTab creates a stealth tab, navigates to the URL and waits for the
// initial load. navTimeout bounds navigation plus load; a timeout is a
// transient failure for the caller's retry logic, never a hang.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string, navTimeout time.Duration) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if len(mgr.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, mgr.cfg.ResourceBlocking); err != nil {
			mgr.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, navTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Tab{Page: page, PageURL: pageURL}, nil
}

// WaitAny blocks until any element matching the comma-separated selector
// list exists, or the timeout passes.
func (t *Tab) WaitAny(ctx context.Context, selectors string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := t.Page.Context(waitCtx).Element(selectors)
	if err != nil {
		return fmt.Errorf("browser: wait for %q: %w", selectors, err)
	}
	return nil
}

// FieldText returns the visible text of the first element matching the
// selector, or "" when nothing matches.
func (t *Tab) FieldText(ctx context.Context, selector string) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`(sel) => {
		const el = document.querySelector(sel);
		if (!el) return "";
		return (el.innerText || el.textContent || "").trim();
	}`, selector)
	if err != nil {
		return "", fmt.Errorf("browser: eval text %q: %w", selector, err)
	}
	return res.Value.Str(), nil
}

// FieldAttr returns an attribute of the first element matching the selector,
// or "" when nothing matches.
func (t *Tab) FieldAttr(ctx context.Context, selector, attr string) (string, error) {
	res, err := t.Page.Context(ctx).Eval(`(sel, attr) => {
		const el = document.querySelector(sel);
		if (!el) return "";
		return el.getAttribute(attr) || "";
	}`, selector, attr)
	if err != nil {
		return "", fmt.Errorf("browser: eval attr %q: %w", selector, err)
	}
	return res.Value.Str(), nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}

// applyResourceBlocking intercepts requests for the listed resource types.
func applyResourceBlocking(page *rod.Page, types []string) error {
	blocked := make(map[proto.NetworkResourceType]bool, len(types))
	for _, t := range types {
		switch t {
		case "images":
			blocked[proto.NetworkResourceTypeImage] = true
		case "fonts":
			blocked[proto.NetworkResourceTypeFont] = true
		case "media":
			blocked[proto.NetworkResourceTypeMedia] = true
		case "stylesheets":
			blocked[proto.NetworkResourceTypeStylesheet] = true
		}
	}

	router := page.HijackRequests()
	err := router.Add("*", "", func(h *rod.Hijack) {
		if blocked[h.Request.Type()] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return err
	}
	go router.Run()
	return nil
}
