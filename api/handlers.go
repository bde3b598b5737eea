package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/pricewatch/alerts"
	"github.com/hazyhaar/pricewatch/idgen"
	"github.com/hazyhaar/pricewatch/ledger"
	"github.com/hazyhaar/pricewatch/store"
)

// PreviewRequest is the body for POST /preview.
type PreviewRequest struct {
	URL string `json:"url"`
}

// PreviewResponse carries a one-shot scrape without persisting anything.
type PreviewResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
}

func (s *Service) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validProductURL(req.URL) {
		s.writeError(w, http.StatusBadRequest, "url required")
		return
	}

	rec := s.extractor.Extract(r.Context(), req.URL)
	if rec.Failed() {
		s.writeError(w, http.StatusBadRequest, "could not extract product data")
		return
	}

	s.writeJSON(w, http.StatusOK, PreviewResponse{
		ProductID: idgen.ProductID(req.URL),
		Name:      rec.Name,
		Price:     rec.Price,
		Image:     rec.Image,
	})
}

// TrackRequest is the body for POST /track. TargetPrice and Email together
// create an alert subscription alongside the tracked item.
type TrackRequest struct {
	URL         string   `json:"url"`
	UserID      string   `json:"userId"`
	TargetPrice *float64 `json:"targetPrice,omitempty"`
	Email       string   `json:"email,omitempty"`
}

// TrackResponse is the body for a successful POST /track.
type TrackResponse struct {
	Status         string `json:"status"`
	ProductID      string `json:"productId"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
}

func (s *Service) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validProductURL(req.URL) || req.UserID == "" {
		s.writeError(w, http.StatusBadRequest, "url and userId required")
		return
	}

	ctx := r.Context()
	rec := s.extractor.Extract(ctx, req.URL)
	if rec.Failed() || rec.Price <= 0 {
		s.writeError(w, http.StatusBadRequest, "could not extract product data")
		return
	}

	productID := idgen.ProductID(req.URL)

	prev, err := s.store.GetItem(ctx, productID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("api: load item", "item", productID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	next := ledger.ApplyUpdate(prev, productID, ledger.Reading{
		URL:   req.URL,
		Name:  rec.Name,
		Image: rec.Image,
		Price: rec.Price,
	}, time.Now(), s.historyCap)

	if err := s.store.PutItem(ctx, &next); err != nil {
		s.logger.Error("api: persist item", "item", productID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := s.store.AddTracker(ctx, productID, req.UserID); err != nil {
		s.logger.Error("api: add tracker", "item", productID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := TrackResponse{Status: "success", ProductID: productID}

	if req.TargetPrice != nil && req.Email != "" {
		gen := s.newSubID
		if gen == nil {
			gen = idgen.NewSubscription
		}
		sub := &alerts.Subscription{
			ID:          gen(),
			ItemID:      productID,
			UserID:      req.UserID,
			Email:       req.Email,
			TargetPrice: *req.TargetPrice,
			Active:      true,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.store.CreateSubscription(ctx, sub); err != nil {
			s.logger.Error("api: create subscription", "item", productID, "error", err)
			s.writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		resp.SubscriptionID = sub.ID
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// PricesResponse is the body for GET /prices.
type PricesResponse struct {
	PriceHistory []ledger.PricePoint `json:"priceHistory"`
}

func (s *Service) handlePrices(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("productId")
	if productID == "" {
		s.writeError(w, http.StatusBadRequest, "productId required")
		return
	}

	item, err := s.store.GetItem(r.Context(), productID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		s.logger.Error("api: load item", "item", productID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, PricesResponse{PriceHistory: item.History})
}

func (s *Service) handleProduct(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("productId")
	if productID == "" {
		s.writeError(w, http.StatusBadRequest, "productId required")
		return
	}

	item, err := s.store.GetItem(r.Context(), productID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		s.logger.Error("api: load item", "item", productID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, item)
}

func (s *Service) handleComparisons(w http.ResponseWriter, r *http.Request) {
	s.serveComparison(w, r, r.URL.Query().Get("productId"), false)
}

// RefreshRequest is the body for POST /comparisons/refresh.
type RefreshRequest struct {
	ProductID string `json:"productId"`
}

func (s *Service) handleComparisonsRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.serveComparison(w, r, req.ProductID, true)
}

func (s *Service) serveComparison(w http.ResponseWriter, r *http.Request, productID string, force bool) {
	if productID == "" {
		s.writeError(w, http.StatusBadRequest, "productId required")
		return
	}

	ctx := r.Context()
	item, err := s.store.GetItem(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		s.logger.Error("api: load item", "item", productID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var cmp any
	if force {
		cmp, err = s.matcher.Refresh(ctx, productID, item.Name)
	} else {
		cmp, err = s.matcher.FindSimilar(ctx, productID, item.Name)
	}
	if err != nil {
		s.logger.Error("api: comparison lookup", "item", productID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "comparison failed")
		return
	}

	s.writeJSON(w, http.StatusOK, cmp)
}

// AlertsResponse is the body for GET /alerts.
type AlertsResponse struct {
	Alerts []alerts.Subscription `json:"alerts"`
}

func (s *Service) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "userId required")
		return
	}

	subs, err := s.store.ListSubscriptionsByUser(r.Context(), userID)
	if err != nil {
		s.logger.Error("api: list subscriptions", "user", userID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if subs == nil {
		subs = []alerts.Subscription{}
	}

	s.writeJSON(w, http.StatusOK, AlertsResponse{Alerts: subs})
}

func (s *Service) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "alert id required")
		return
	}

	err := s.store.DeactivateSubscription(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	if err != nil {
		s.logger.Error("api: deactivate subscription", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func validProductURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
