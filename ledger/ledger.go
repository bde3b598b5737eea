// Package ledger maintains the per-product price record: the current price,
// the change relative to the previous reading, and a bounded history of
// sampled prices.
//
// The history is a sampled time series, not a change log: every successful
// reading appends a point even when the price is unchanged, so callers can
// plot a continuous curve.
package ledger

import "time"

// Direction classifies a price movement.
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// PriceChange describes the delta between two consecutive readings.
type PriceChange struct {
	Amount    float64   `json:"amount"`
	Percent   float64   `json:"percent"`
	Direction Direction `json:"direction"`
}

// PricePoint is one sampled reading.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// TrackedItem is the persisted product document.
type TrackedItem struct {
	ID           string       `json:"id"`
	URL          string       `json:"url"`
	Name         string       `json:"name"`
	Image        string       `json:"image"`
	CurrentPrice float64      `json:"currentPrice"`
	Currency     string       `json:"currency"`
	Change       PriceChange  `json:"priceChange"`
	UpdatedAt    time.Time    `json:"lastUpdated"`
	History      []PricePoint `json:"priceHistory"`
	Trackers     []string     `json:"trackers"`
}

// Reading is a fresh extraction result to fold into the ledger.
type Reading struct {
	URL   string
	Name  string
	Image string
	Price float64
}

// ApplyUpdate folds a fresh reading into the previous item state and returns
// the next state. prev may be nil (first observation). historyCap bounds the
// retained history; oldest points are evicted first.
func ApplyUpdate(prev *TrackedItem, id string, r Reading, now time.Time, historyCap int) TrackedItem {
	if historyCap <= 0 {
		historyCap = 30
	}

	next := TrackedItem{
		ID:       id,
		URL:      r.URL,
		Name:     r.Name,
		Image:    r.Image,
		Currency: "INR",
	}

	if prev != nil {
		next.Trackers = prev.Trackers
		next.Currency = prev.Currency
		if next.Currency == "" {
			next.Currency = "INR"
		}
		// A reading can come back with partial metadata; keep the known values.
		if next.Name == "" {
			next.Name = prev.Name
		}
		if next.Image == "" {
			next.Image = prev.Image
		}
		if next.URL == "" {
			next.URL = prev.URL
		}
		next.History = append(next.History, prev.History...)
	}

	next.Change = computeChange(prev, r.Price)
	next.CurrentPrice = r.Price
	next.UpdatedAt = now

	next.History = append(next.History, PricePoint{Timestamp: now, Price: r.Price})
	if len(next.History) > historyCap {
		next.History = next.History[len(next.History)-historyCap:]
	}

	return next
}

// computeChange returns the delta against the previous reading. With no
// previous record, or a previous record that never held a price, the change
// is {0, 0, stable}.
func computeChange(prev *TrackedItem, fresh float64) PriceChange {
	if prev == nil || len(prev.History) == 0 {
		return PriceChange{Direction: DirectionStable}
	}

	amount := fresh - prev.CurrentPrice
	var percent float64
	if prev.CurrentPrice != 0 {
		percent = amount / prev.CurrentPrice * 100
	}

	dir := DirectionStable
	switch {
	case amount > 0:
		dir = DirectionUp
	case amount < 0:
		dir = DirectionDown
	}

	return PriceChange{Amount: amount, Percent: percent, Direction: dir}
}
