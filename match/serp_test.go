package match

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestSerpClientSearch(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"organic_results": [
				{"title": "Samsung Galaxy M14 5G", "link": "https://www.amazon.in/dp/B0C9X",
				 "snippet": "Price: ₹11,990", "thumbnail": "https://img/a.jpg"}
			],
			"shopping_results": [
				{"title": "Galaxy M14", "link": "https://www.flipkart.com/p/x",
				 "price": "₹11,499", "thumbnail": "https://img/b.jpg"}
			]
		}`))
	}))
	defer srv.Close()

	c := NewSerpClient(srv.URL, "key123", time.Second)
	results, err := c.Search(context.Background(), "samsung galaxy m14")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Source != "organic" || results[0].URL != "https://www.amazon.in/dp/B0C9X" {
		t.Errorf("first result = %+v", results[0])
	}
	if results[1].Source != "shopping" || results[1].PriceText != "₹11,499" {
		t.Errorf("second result = %+v", results[1])
	}

	q := gotQuery.Load().(url.Values)
	for key, want := range map[string]string{
		"engine": "google", "q": "samsung galaxy m14", "api_key": "key123",
		"num": "20", "location": "India", "gl": "in", "hl": "en",
	} {
		if got := q.Get(key); got != want {
			t.Errorf("query %s = %q, want %q", key, got, want)
		}
	}
}

func TestSerpClientRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"organic_results": [{"title": "t", "link": "https://www.meesho.com/p/1"}]}`))
	}))
	defer srv.Close()

	c := NewSerpClient(srv.URL, "k", time.Second)
	results, err := c.Search(context.Background(), "q")
	if err != nil {
		t.Fatalf("Search after retry: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("results = %d, want 1", len(results))
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestSerpClientProviderErrorIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"error": "Google hasn't returned any results for this query."}`))
	}))
	defer srv.Close()

	c := NewSerpClient(srv.URL, "k", time.Second)
	_, err := c.Search(context.Background(), "q")
	if err == nil || !strings.Contains(err.Error(), "hasn't returned") {
		t.Fatalf("err = %v, want provider error", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on provider errors)", calls.Load())
	}
}
