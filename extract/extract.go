package extract

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// Renderer is the heavyweight strategy: load the page in a real browser
// and read fields from the live DOM.
type Renderer interface {
	Render(ctx context.Context, url string) (Record, error)
}

// Extractor runs the two-strategy extraction pipeline.
type Extractor struct {
	renderer    Renderer
	static      *StaticFetcher
	maxAttempts int
	backoffMin  time.Duration
	backoffMax  time.Duration
	log         *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRenderer sets the rendering strategy. Without one the Extractor
// goes straight to the static fallback.
func WithRenderer(r Renderer) Option {
	return func(e *Extractor) { e.renderer = r }
}

// WithStaticFetcher replaces the default static fallback.
func WithStaticFetcher(f *StaticFetcher) Option {
	return func(e *Extractor) { e.static = f }
}

// WithMaxAttempts sets the number of rendering rounds.
func WithMaxAttempts(n int) Option {
	return func(e *Extractor) { e.maxAttempts = n }
}

// WithBackoff sets the bounds for the randomized pause between rounds.
func WithBackoff(min, max time.Duration) Option {
	return func(e *Extractor) { e.backoffMin, e.backoffMax = min, max }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.log = l }
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		static:      NewStaticFetcher(),
		maxAttempts: 3,
		backoffMin:  time.Second,
		backoffMax:  4 * time.Second,
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.maxAttempts < 1 {
		e.maxAttempts = 1
	}
	if e.backoffMax < e.backoffMin {
		e.backoffMax = e.backoffMin
	}
	return e
}

// Extract runs up to maxAttempts rendering rounds, then one static fetch
// if no round produced a complete record. Partial results from different
// strategies are merged field-wise. A record with neither name nor price
// comes back as a failure record so the caller can still log the URL.
func (e *Extractor) Extract(ctx context.Context, url string) Record {
	best := Record{URL: url}

	if e.renderer != nil {
		for attempt := 1; attempt <= e.maxAttempts; attempt++ {
			rec, err := e.renderer.Render(ctx, url)
			if err != nil {
				e.log.Warn("extract: render attempt failed",
					"url", url, "attempt", attempt, "error", err)
			} else {
				best = merge(best, rec)
				if best.Complete() {
					return best
				}
				e.log.Debug("extract: render attempt incomplete",
					"url", url, "attempt", attempt,
					"name", rec.Name != "", "price", rec.Price > 0)
			}

			if attempt < e.maxAttempts {
				if err := e.pause(ctx); err != nil {
					return failure(url, err)
				}
			}
		}
	}

	rec, err := e.static.Extract(ctx, url)
	if err != nil {
		e.log.Warn("extract: static fallback failed", "url", url, "error", err)
	} else {
		best = merge(best, rec)
	}

	if best.Name == "" && best.Price <= 0 {
		return failure(url, errAllStrategiesFailed)
	}
	return best
}

// pause sleeps a random duration in [backoffMin, backoffMax], honoring
// cancellation.
func (e *Extractor) pause(ctx context.Context) error {
	d := e.backoffMin
	if span := e.backoffMax - e.backoffMin; span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// merge fills empty fields of a with values from b.
func merge(a, b Record) Record {
	if a.Name == "" {
		a.Name = b.Name
	}
	if a.Price <= 0 && b.Price > 0 {
		a.Price = b.Price
	}
	if a.Image == "" {
		a.Image = b.Image
	}
	return a
}
