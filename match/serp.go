package match

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Provider runs one web search query. A provider error fails only the
// current query variant, never the whole pipeline.
type Provider interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// SerpClient queries a SerpAPI-compatible endpoint with region parameters
// pinned to the Indian marketplace.
type SerpClient struct {
	endpoint string
	apiKey   string
	location string
	country  string
	language string
	num      int
	client   *http.Client
}

// SerpOption configures a SerpClient.
type SerpOption func(*SerpClient)

// WithSerpHTTPClient sets a custom HTTP client.
func WithSerpHTTPClient(c *http.Client) SerpOption {
	return func(s *SerpClient) { s.client = c }
}

// WithSerpRegion overrides the location, country and language parameters.
func WithSerpRegion(location, country, language string) SerpOption {
	return func(s *SerpClient) {
		s.location, s.country, s.language = location, country, language
	}
}

// NewSerpClient creates a search client. endpoint is the full search URL,
// e.g. "https://serpapi.com/search".
func NewSerpClient(endpoint, apiKey string, timeout time.Duration, opts ...SerpOption) *SerpClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	s := &SerpClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		location: "India",
		country:  "in",
		language: "en",
		num:      20,
		client:   &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// serpResponse mirrors the provider's JSON envelope. Only the fields the
// pipeline consumes are declared.
type serpResponse struct {
	Error   string `json:"error"`
	Organic []struct {
		Title     string `json:"title"`
		Link      string `json:"link"`
		Snippet   string `json:"snippet"`
		Thumbnail string `json:"thumbnail"`
	} `json:"organic_results"`
	Shopping []struct {
		Title     string `json:"title"`
		Link      string `json:"link"`
		Snippet   string `json:"snippet"`
		Price     string `json:"price"`
		Thumbnail string `json:"thumbnail"`
	} `json:"shopping_results"`
}

// Search issues one query and returns organic results followed by shopping
// results. A 5xx response is retried once; 4xx and provider-level errors
// are terminal for this query.
func (s *SerpClient) Search(ctx context.Context, query string) ([]Result, error) {
	q := url.Values{}
	q.Set("engine", "google")
	q.Set("q", query)
	q.Set("api_key", s.apiKey)
	q.Set("num", fmt.Sprint(s.num))
	q.Set("location", s.location)
	q.Set("gl", s.country)
	q.Set("hl", s.language)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(500 * time.Millisecond)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		results, retryable, err := s.searchOnce(ctx, q.Encode())
		if err == nil {
			return results, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, lastErr
}

func (s *SerpClient) searchOnce(ctx context.Context, rawQuery string) ([]Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+rawQuery, nil)
	if err != nil {
		return nil, false, fmt.Errorf("match: search request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("match: search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, true, fmt.Errorf("match: search: HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("match: search: HTTP %d", resp.StatusCode)
	}

	var body serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, fmt.Errorf("match: decode search response: %w", err)
	}
	if body.Error != "" {
		return nil, false, fmt.Errorf("match: search provider: %s", body.Error)
	}

	results := make([]Result, 0, len(body.Organic)+len(body.Shopping))
	for _, r := range body.Organic {
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.Link,
			Snippet: r.Snippet,
			Image:   r.Thumbnail,
			Source:  "organic",
		})
	}
	for _, r := range body.Shopping {
		results = append(results, Result{
			Title:     r.Title,
			URL:       r.Link,
			Snippet:   r.Snippet,
			Image:     r.Thumbnail,
			PriceText: r.Price,
			Source:    "shopping",
		})
	}
	return results, false, nil
}
