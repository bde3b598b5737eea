package ledger

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestApplyUpdate_FirstObservation(t *testing.T) {
	item := ApplyUpdate(nil, "AMZ-B0C9J2XW5L", Reading{
		URL:   "https://www.amazon.in/dp/B0C9J2XW5L",
		Name:  "Samsung Galaxy M14 5G",
		Image: "https://cdn.example.com/m14.jpg",
		Price: 11990,
	}, t0, 30)

	if item.Change.Amount != 0 || item.Change.Percent != 0 || item.Change.Direction != DirectionStable {
		t.Errorf("first observation change = %+v, want zero/stable", item.Change)
	}
	if len(item.History) != 1 {
		t.Fatalf("history length = %d, want 1", len(item.History))
	}
	if item.CurrentPrice != 11990 || item.History[0].Price != 11990 {
		t.Error("current price must equal last history entry")
	}
	if item.Currency != "INR" {
		t.Errorf("currency = %q, want INR", item.Currency)
	}
}

func TestApplyUpdate_PriceDrop(t *testing.T) {
	prev := ApplyUpdate(nil, "p1", Reading{Price: 100}, t0, 30)
	next := ApplyUpdate(&prev, "p1", Reading{Price: 80}, t0.Add(time.Hour), 30)

	if next.Change.Amount != -20 {
		t.Errorf("amount = %v, want -20", next.Change.Amount)
	}
	if next.Change.Percent != -20.0 {
		t.Errorf("percent = %v, want -20.0", next.Change.Percent)
	}
	if next.Change.Direction != DirectionDown {
		t.Errorf("direction = %v, want down", next.Change.Direction)
	}
}

func TestApplyUpdate_Unchanged(t *testing.T) {
	prev := ApplyUpdate(nil, "p1", Reading{Price: 80}, t0, 30)
	next := ApplyUpdate(&prev, "p1", Reading{Price: 80}, t0.Add(time.Hour), 30)

	if next.Change.Amount != 0 || next.Change.Percent != 0 || next.Change.Direction != DirectionStable {
		t.Errorf("change = %+v, want zero/stable", next.Change)
	}
	// Unchanged price still appends a sample.
	if len(next.History) != 2 {
		t.Errorf("history length = %d, want 2", len(next.History))
	}
}

func TestApplyUpdate_ZeroPreviousPrice(t *testing.T) {
	prev := ApplyUpdate(nil, "p1", Reading{Price: 0}, t0, 30)
	next := ApplyUpdate(&prev, "p1", Reading{Price: 50}, t0.Add(time.Hour), 30)

	if next.Change.Amount != 50 {
		t.Errorf("amount = %v, want 50", next.Change.Amount)
	}
	if next.Change.Percent != 0 {
		t.Errorf("percent = %v, want 0 when previous price was 0", next.Change.Percent)
	}
	if next.Change.Direction != DirectionUp {
		t.Errorf("direction = %v, want up", next.Change.Direction)
	}
}

func TestApplyUpdate_HistoryCapFIFO(t *testing.T) {
	const capN = 5
	var item TrackedItem
	var prev *TrackedItem

	for i := 0; i < 12; i++ {
		item = ApplyUpdate(prev, "p1", Reading{Price: float64(100 + i)}, t0.Add(time.Duration(i)*time.Hour), capN)
		prev = &item
	}

	if len(item.History) != capN {
		t.Fatalf("history length = %d, want %d", len(item.History), capN)
	}
	// Oldest entries evicted first: the retained window is readings 7..11.
	if item.History[0].Price != 107 {
		t.Errorf("oldest retained price = %v, want 107", item.History[0].Price)
	}
	if item.History[capN-1].Price != 111 {
		t.Errorf("newest price = %v, want 111", item.History[capN-1].Price)
	}
	if item.CurrentPrice != item.History[capN-1].Price {
		t.Error("current price must equal last history entry")
	}
}

func TestApplyUpdate_TimestampsMonotonic(t *testing.T) {
	var prev *TrackedItem
	var item TrackedItem
	for i := 0; i < 6; i++ {
		item = ApplyUpdate(prev, "p1", Reading{Price: 10}, t0.Add(time.Duration(i)*time.Minute), 30)
		prev = &item
	}
	for i := 1; i < len(item.History); i++ {
		if item.History[i].Timestamp.Before(item.History[i-1].Timestamp) {
			t.Fatalf("history timestamps not monotonic at %d", i)
		}
	}
}

func TestApplyUpdate_KeepsKnownMetadata(t *testing.T) {
	prev := ApplyUpdate(nil, "p1", Reading{Name: "Widget", Image: "img.jpg", URL: "https://x", Price: 10}, t0, 30)
	next := ApplyUpdate(&prev, "p1", Reading{Price: 9}, t0.Add(time.Hour), 30)

	if next.Name != "Widget" || next.Image != "img.jpg" || next.URL != "https://x" {
		t.Errorf("metadata lost on partial reading: %+v", next)
	}
}
