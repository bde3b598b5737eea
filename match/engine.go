package match

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hazyhaar/pricewatch/idgen"
)

// Cache persists comparison results between refreshes.
type Cache interface {
	// GetComparison returns the cached comparison for an item, or nil when
	// none exists.
	GetComparison(ctx context.Context, itemID string) (*Comparison, error)
	// PutComparison replaces the cached comparison wholesale.
	PutComparison(ctx context.Context, cmp *Comparison) error
}

// Config tunes the matching pipeline.
type Config struct {
	// FreshnessWindow is the maximum cached-result age. Default: 6h.
	FreshnessWindow time.Duration
	// MaxResults caps the selected entries. Default: 3.
	MaxResults int
	// RawTarget stops the variant fan-out once this many raw results have
	// accumulated. Default: 10.
	RawTarget int
	// MinCandidates triggers the per-platform supplementary pass when the
	// fan-out collects fewer raw results than this. Default: 3.
	MinCandidates int
}

func (c *Config) defaults() {
	if c.FreshnessWindow <= 0 {
		c.FreshnessWindow = 6 * time.Hour
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 3
	}
	if c.RawTarget <= 0 {
		c.RawTarget = 10
	}
	if c.MinCandidates <= 0 {
		c.MinCandidates = 3
	}
}

// Engine runs the cross-platform matching pipeline.
type Engine struct {
	cfg      Config
	provider Provider
	cache    Cache
	keywords Keyworder
	pricer   PagePricer
	newID    idgen.Generator
	log      *slog.Logger
	now      func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithKeyworder sets the external keyword extraction collaborator.
func WithKeyworder(k Keyworder) EngineOption {
	return func(e *Engine) { e.keywords = k }
}

// WithPagePricer sets the direct page price resolver.
func WithPagePricer(p PagePricer) EngineOption {
	return func(e *Engine) { e.pricer = p }
}

// WithIDGenerator sets the entry ID generator.
func WithIDGenerator(g idgen.Generator) EngineOption {
	return func(e *Engine) { e.newID = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine. provider and cache are required; the
// keyworder and page pricer are optional collaborators with local
// fallbacks.
func NewEngine(cfg Config, provider Provider, cache Cache, opts ...EngineOption) *Engine {
	cfg.defaults()
	e := &Engine{
		cfg:      cfg,
		provider: provider,
		cache:    cache,
		newID:    idgen.NewEntry,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// FindSimilar returns the comparison for an item, serving the cached copy
// while it is fresh and holds enough entries, otherwise regenerating.
func (e *Engine) FindSimilar(ctx context.Context, itemID, title string) (*Comparison, error) {
	cached, err := e.cache.GetComparison(ctx, itemID)
	if err != nil {
		e.log.Warn("match: cache read failed", "item", itemID, "error", err)
	} else if cached.Fresh(e.now(), e.cfg.FreshnessWindow, e.cfg.MaxResults) {
		return cached, nil
	}

	return e.Refresh(ctx, itemID, title)
}

// Refresh regenerates the comparison unconditionally and overwrites the
// cache, even when the pipeline produces fewer entries than MaxResults.
// Partial results are cached too so repeated expensive searches are not
// re-run for sparse products.
func (e *Engine) Refresh(ctx context.Context, itemID, title string) (*Comparison, error) {
	keywords := deriveKeywords(ctx, e.keywords, e.log, title)
	e.log.Info("match: refreshing comparison", "item", itemID, "keywords", keywords)

	raw := e.collect(ctx, keywords)
	candidates := e.filterDedup(raw)
	candidates = e.resolvePrices(ctx, candidates)
	e.score(candidates, title)
	selected := e.selectDiverse(candidates)

	cmp := &Comparison{
		ItemID:      itemID,
		SearchTitle: keywords,
		GeneratedAt: e.now(),
		Entries:     make([]Entry, 0, len(selected)),
	}
	for _, c := range selected {
		cmp.Entries = append(cmp.Entries, Entry{
			ID:       e.newID(),
			Platform: c.Platform,
			Title:    c.Title,
			URL:      c.URL,
			Image:    c.Image,
			Price:    c.Price,
			Currency: "INR",
		})
	}

	if err := e.cache.PutComparison(ctx, cmp); err != nil {
		return nil, fmt.Errorf("match: persist comparison for %s: %w", itemID, err)
	}

	e.log.Info("match: comparison refreshed",
		"item", itemID, "raw", len(raw), "selected", len(cmp.Entries))
	return cmp, nil
}

// collect fans the query variants out sequentially, stopping early once
// RawTarget raw results have accumulated. A failed variant is logged and
// skipped. When the fan-out stays under MinCandidates, one targeted query
// per platform runs as a supplementary pass.
func (e *Engine) collect(ctx context.Context, keywords string) []Result {
	var raw []Result

	for _, variant := range SearchVariants(keywords) {
		if len(raw) >= e.cfg.RawTarget {
			break
		}
		results, err := e.provider.Search(ctx, variant)
		if err != nil {
			e.log.Warn("match: search variant failed", "query", variant, "error", err)
			continue
		}
		raw = append(raw, results...)
	}

	if len(raw) < e.cfg.MinCandidates {
		for _, platform := range Platforms {
			query := keywords + " site:" + platformSites[platform]
			results, err := e.provider.Search(ctx, query)
			if err != nil {
				e.log.Warn("match: platform search failed", "platform", platform, "error", err)
				continue
			}
			raw = append(raw, results...)
		}
	}

	return raw
}

// skipPatterns mark URLs that are never product pages: help centers,
// policy pages, storefront hubs.
var skipPatterns = []string{
	"/gp/help", "/help/", "/customer-service", "/about/", "/careers/",
	"/contact", "/support", "/policy", "/terms", "/privacy",
	"/live/", "/vdp/", "/stores/", "/refurbished/",
}

func skippableURL(url string) bool {
	u := strings.ToLower(url)
	for _, p := range skipPatterns {
		if strings.Contains(u, p) {
			return true
		}
	}
	return false
}

var currencyMarkers = []string{"₹", "rs.", "rs ", "inr"}

func hasCurrencyMarker(s string) bool {
	low := strings.ToLower(s)
	for _, m := range currencyMarkers {
		if strings.Contains(low, m) {
			return true
		}
	}
	return false
}

// normalizeTitle collapses case and whitespace so near-identical listings
// dedup against each other.
func normalizeTitle(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// filterDedup turns raw results into platform-classified candidates,
// dropping empty fields, unknown platforms, non-product URLs, duplicate
// URLs, duplicate normalized titles, very short titles, and priceless
// results with no currency hint in the snippet.
func (e *Engine) filterDedup(raw []Result) []Candidate {
	seenURL := make(map[string]bool)
	seenTitle := make(map[string]bool)
	var out []Candidate

	for _, r := range raw {
		title := strings.TrimSpace(r.Title)
		url := strings.TrimSpace(r.URL)
		if title == "" || url == "" {
			continue
		}
		if skippableURL(url) {
			continue
		}

		platform := PlatformFromURL(url)
		if platform == "" {
			continue
		}

		urlKey := strings.ToLower(url)
		if seenURL[urlKey] {
			continue
		}
		titleKey := normalizeTitle(title)
		if seenTitle[titleKey] {
			continue
		}
		if len(title) < 10 {
			continue
		}

		rawPrice := ExtractPriceFromText(r.PriceText)
		if rawPrice <= 0 && !hasCurrencyMarker(r.Snippet) && !hasCurrencyMarker(r.PriceText) {
			continue
		}

		image := r.Image
		if image == "" {
			image = "/logos/" + strings.ToLower(platform) + ".png"
		}

		seenURL[urlKey] = true
		seenTitle[titleKey] = true
		out = append(out, Candidate{
			Platform: platform,
			Title:    title,
			URL:      url,
			Snippet:  strings.TrimSpace(r.Snippet),
			Image:    image,
			Price:    rawPrice,
			Source:   r.Source,
		})
	}
	return out
}

// resolvePrices fills in each candidate's price: the snippet price when it
// is the only price token present and inside the sanity bounds, otherwise
// a direct fetch of the candidate's page. Candidates that end up priceless
// are discarded.
func (e *Engine) resolvePrices(ctx context.Context, candidates []Candidate) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if c.Price > 0 && sanePrice(c.Price) {
			out = append(out, c)
			continue
		}

		text := c.Title + " " + c.Snippet
		if p := ExtractPriceFromText(text); sanePrice(p) && countPriceTokens(text) == 1 {
			c.Price = p
			out = append(out, c)
			continue
		}

		if e.pricer != nil {
			p, err := e.pricer.PriceFor(ctx, c.URL)
			if err != nil {
				e.log.Debug("match: page price fetch failed", "url", c.URL, "error", err)
			} else if sanePrice(p) {
				c.Price = p
				out = append(out, c)
				continue
			}
		}

		e.log.Debug("match: discarding priceless candidate", "url", c.URL)
	}
	return out
}

// score computes each candidate's relevance score against the original
// title: word-overlap ratio scaled to 100, plus quality bonuses for a
// resolved price, a real product image, shopping-feed provenance and a
// descriptive title, minus a penalty for a terse one.
func (e *Engine) score(candidates []Candidate, originalTitle string) {
	origWords := titleWords(originalTitle)

	for i := range candidates {
		c := &candidates[i]

		score := overlapRatio(titleWords(c.Title), origWords) * 100
		if c.Price > 0 {
			score += 20
		}
		if c.hasRealImage() {
			score += 10
		}
		if c.Source == "shopping" {
			score += 15
		}
		if len(c.Title) > 30 {
			score += 5
		}
		if len(c.Title) < 20 {
			score -= 10
		}
		c.Score = score
	}
}

func titleWords(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(nonWord.ReplaceAllString(s, " "))) {
		if len(w) > 2 {
			words[w] = true
		}
	}
	return words
}

// overlapRatio is |candidate ∩ original| / |original|.
func overlapRatio(candidate, original map[string]bool) float64 {
	if len(original) == 0 {
		return 0
	}
	n := 0
	for w := range original {
		if candidate[w] {
			n++
		}
	}
	return float64(n) / float64(len(original))
}

// selectDiverse picks up to MaxResults candidates. The first pass takes the
// top-scored candidate of each platform in priority order; when fewer than
// MaxResults platforms yield anything, a second pass pools the remaining
// candidates across platforms and fills the open slots by score, skipping
// already-selected URLs.
func (e *Engine) selectDiverse(candidates []Candidate) []Candidate {
	byPlatform := make(map[string][]Candidate)
	for _, c := range candidates {
		byPlatform[c.Platform] = append(byPlatform[c.Platform], c)
	}
	for _, list := range byPlatform {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Score != list[j].Score {
				return list[i].Score > list[j].Score
			}
			return list[i].Price < list[j].Price
		})
	}

	var selected []Candidate
	picked := make(map[string]bool)

	for _, platform := range Platforms {
		if len(selected) >= e.cfg.MaxResults {
			break
		}
		list := byPlatform[platform]
		if len(list) == 0 {
			continue
		}
		best := list[0]
		if picked[strings.ToLower(best.URL)] {
			continue
		}
		selected = append(selected, best)
		picked[strings.ToLower(best.URL)] = true
	}

	if len(selected) < e.cfg.MaxResults {
		var pool []Candidate
		for _, platform := range Platforms {
			for _, c := range byPlatform[platform] {
				if !picked[strings.ToLower(c.URL)] {
					pool = append(pool, c)
				}
			}
		}
		sort.SliceStable(pool, func(i, j int) bool {
			if pool[i].Score != pool[j].Score {
				return pool[i].Score > pool[j].Score
			}
			return pool[i].Price < pool[j].Price
		})
		for _, c := range pool {
			if len(selected) >= e.cfg.MaxResults {
				break
			}
			selected = append(selected, c)
			picked[strings.ToLower(c.URL)] = true
		}
	}

	return selected
}
