// Package api exposes the pricewatch HTTP surface: one-shot scrape preview,
// track registration, price history, product lookup, cross-platform
// comparisons and alert removal.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/pricewatch/alerts"
	"github.com/hazyhaar/pricewatch/extract"
	"github.com/hazyhaar/pricewatch/ledger"
	"github.com/hazyhaar/pricewatch/match"
)

// Store is the persistence surface the handlers need.
type Store interface {
	GetItem(ctx context.Context, id string) (*ledger.TrackedItem, error)
	PutItem(ctx context.Context, item *ledger.TrackedItem) error
	AddTracker(ctx context.Context, itemID, userID string) error
	CreateSubscription(ctx context.Context, sub *alerts.Subscription) error
	ListSubscriptionsByUser(ctx context.Context, userID string) ([]alerts.Subscription, error)
	DeactivateSubscription(ctx context.Context, id string) error
}

// Extractor produces a fresh reading for a product URL.
type Extractor interface {
	Extract(ctx context.Context, url string) extract.Record
}

// Matcher serves cross-platform comparisons.
type Matcher interface {
	FindSimilar(ctx context.Context, itemID, title string) (*match.Comparison, error)
	Refresh(ctx context.Context, itemID, title string) (*match.Comparison, error)
}

// Service wires the handlers to their collaborators.
type Service struct {
	store      Store
	extractor  Extractor
	matcher    Matcher
	newSubID   func() string
	historyCap int
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithSubscriptionIDs sets the subscription ID generator.
func WithSubscriptionIDs(gen func() string) Option {
	return func(s *Service) { s.newSubID = gen }
}

// WithHistoryCap sets the price-history retention cap used on track.
func WithHistoryCap(n int) Option {
	return func(s *Service) { s.historyCap = n }
}

// NewService creates the API service.
func NewService(store Store, extractor Extractor, matcher Matcher, opts ...Option) *Service {
	s := &Service{
		store:      store,
		extractor:  extractor,
		matcher:    matcher,
		historyCap: 30,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the chi router with the full endpoint surface.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/preview", s.handlePreview)
	r.Post("/track", s.handleTrack)
	r.Get("/prices", s.handlePrices)
	r.Get("/product", s.handleProduct)
	r.Get("/comparisons", s.handleComparisons)
	r.Post("/comparisons/refresh", s.handleComparisonsRefresh)
	r.Get("/alerts", s.handleListAlerts)
	r.Delete("/alerts/{id}", s.handleDeleteAlert)

	return r
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("api: write response", "error", err)
	}
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Service) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorResponse{Detail: detail})
}
