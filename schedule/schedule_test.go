package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pricewatch/alerts"
	"github.com/hazyhaar/pricewatch/dbopen"
	"github.com/hazyhaar/pricewatch/extract"
	"github.com/hazyhaar/pricewatch/ledger"
	"github.com/hazyhaar/pricewatch/runlog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	mu      sync.Mutex
	items   []*ledger.TrackedItem
	puts    map[string]*ledger.TrackedItem
	listErr error
}

func newFakeStore(items ...*ledger.TrackedItem) *fakeStore {
	return &fakeStore{items: items, puts: make(map[string]*ledger.TrackedItem)}
}

func (f *fakeStore) ListItems(ctx context.Context) ([]*ledger.TrackedItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.items, nil
}

func (f *fakeStore) PutItem(ctx context.Context, item *ledger.TrackedItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts[item.ID] = item
	return nil
}

type fakeExtractor struct {
	mu      sync.Mutex
	records map[string]extract.Record
	calls   int
}

func (f *fakeExtractor) Extract(ctx context.Context, url string) extract.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if rec, ok := f.records[url]; ok {
		return rec
	}
	return extract.Record{URL: url, Err: errors.New("unknown url")}
}

type fakeAlerter struct {
	mu    sync.Mutex
	calls []alerts.Item
}

func (f *fakeAlerter) Evaluate(ctx context.Context, item alerts.Item, currentPrice float64) []alerts.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, item)
	return nil
}

func item(id, url string, price float64) *ledger.TrackedItem {
	return &ledger.TrackedItem{
		ID:           id,
		URL:          url,
		Name:         "thing " + id,
		CurrentPrice: price,
		Currency:     "INR",
		History:      []ledger.PricePoint{{Timestamp: time.Now().Add(-time.Hour), Price: price}},
	}
}

func TestRunBatchUpdatesEachItem(t *testing.T) {
	st := newFakeStore(
		item("a", "https://example.com/a", 100),
		item("b", "https://example.com/b", 200),
	)
	ex := &fakeExtractor{records: map[string]extract.Record{
		"https://example.com/a": {Name: "thing a", Price: 90, Image: "i", URL: "https://example.com/a"},
		"https://example.com/b": {Name: "thing b", Price: 210, Image: "i", URL: "https://example.com/b"},
	}}
	al := &fakeAlerter{}

	r := NewRunner(Config{}, st, ex, al, WithLogger(testLogger()))
	r.RunBatch(context.Background())

	if len(st.puts) != 2 {
		t.Fatalf("persisted %d items, want 2", len(st.puts))
	}
	if got := st.puts["a"].CurrentPrice; got != 90 {
		t.Errorf("item a price = %v, want 90", got)
	}
	if got := st.puts["a"].Change.Direction; got != ledger.DirectionDown {
		t.Errorf("item a direction = %s, want down", got)
	}
	if len(al.calls) != 2 {
		t.Errorf("alert evaluations = %d, want 2", len(al.calls))
	}
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	st := newFakeStore(
		item("bad", "https://example.com/bad", 100),
		item("good", "https://example.com/good", 200),
	)
	ex := &fakeExtractor{records: map[string]extract.Record{
		// "bad" is absent, so extraction yields a failure record.
		"https://example.com/good": {Name: "thing good", Price: 180, Image: "i", URL: "https://example.com/good"},
	}}
	al := &fakeAlerter{}

	r := NewRunner(Config{}, st, ex, al, WithLogger(testLogger()))
	r.RunBatch(context.Background())

	if _, ok := st.puts["bad"]; ok {
		t.Error("failed item was persisted")
	}
	if _, ok := st.puts["good"]; !ok {
		t.Error("sibling item was not updated despite the other failing")
	}
	if len(al.calls) != 1 || al.calls[0].ID != "good" {
		t.Errorf("alert calls = %+v, want only the good item", al.calls)
	}
}

func TestRunBatchSkipsPricelessRecords(t *testing.T) {
	st := newFakeStore(item("a", "https://example.com/a", 100))
	ex := &fakeExtractor{records: map[string]extract.Record{
		"https://example.com/a": {Name: "thing a", Image: "i", URL: "https://example.com/a"},
	}}
	al := &fakeAlerter{}

	r := NewRunner(Config{}, st, ex, al, WithLogger(testLogger()))
	r.RunBatch(context.Background())

	if len(st.puts) != 0 {
		t.Error("priceless record must not overwrite the ledger")
	}
	if len(al.calls) != 0 {
		t.Error("alerts must not run without a price update")
	}
}

func TestRunBatchSurvivesPanic(t *testing.T) {
	st := newFakeStore(
		item("panics", "panic://x", 100),
		item("fine", "https://example.com/fine", 200),
	)
	ex := &panickyExtractor{inner: &fakeExtractor{records: map[string]extract.Record{
		"https://example.com/fine": {Name: "fine", Price: 150, Image: "i", URL: "https://example.com/fine"},
	}}}
	al := &fakeAlerter{}

	r := NewRunner(Config{MaxConcurrent: 1}, st, ex, al, WithLogger(testLogger()))
	r.RunBatch(context.Background())

	if _, ok := st.puts["fine"]; !ok {
		t.Error("panic in one item aborted its sibling")
	}
}

type panickyExtractor struct {
	inner *fakeExtractor
}

func (p *panickyExtractor) Extract(ctx context.Context, url string) extract.Record {
	if url == "panic://x" {
		panic("selector table corrupted")
	}
	return p.inner.Extract(ctx, url)
}

func TestRunFirstBatchImmediate(t *testing.T) {
	st := newFakeStore(item("a", "https://example.com/a", 100))
	ex := &fakeExtractor{records: map[string]extract.Record{
		"https://example.com/a": {Name: "a", Price: 90, Image: "i", URL: "https://example.com/a"},
	}}
	al := &fakeAlerter{}

	r := NewRunner(Config{Interval: time.Hour}, st, ex, al, WithLogger(testLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		st.mu.Lock()
		n := len(st.puts)
		st.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first batch did not run immediately")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}

func TestRunBatchRecordsEvents(t *testing.T) {
	st := newFakeStore(
		item("a", "https://example.com/a", 100),
		item("bad", "https://example.com/bad", 200),
	)
	ex := &fakeExtractor{records: map[string]extract.Record{
		"https://example.com/a": {Name: "thing a", Price: 90, Image: "i", URL: "https://example.com/a"},
	}}

	events, err := runlog.New(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatalf("runlog.New: %v", err)
	}
	r := NewRunner(Config{}, st, ex, &fakeAlerter{},
		WithLogger(testLogger()), WithRunLog(events))
	r.RunBatch(context.Background())

	recorded, err := events.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	types := make(map[string]int)
	for _, e := range recorded {
		types[e.Type]++
	}
	if types[runlog.EventBatchStart] != 1 || types[runlog.EventBatchComplete] != 1 {
		t.Errorf("batch events = %v", types)
	}
	if types[runlog.EventItemUpdated] != 1 || types[runlog.EventItemFailed] != 1 {
		t.Errorf("item events = %v", types)
	}
}

func TestOverlapGuardSkipsTick(t *testing.T) {
	r := NewRunner(Config{}, newFakeStore(), &fakeExtractor{}, &fakeAlerter{}, WithLogger(testLogger()))

	// Simulate a still-running batch; the guarded entry point must bail out
	// without touching the store.
	r.running.Store(true)
	st := newFakeStore(item("a", "https://example.com/a", 100))
	r.store = st
	r.tryRunBatch(context.Background())

	if len(st.puts) != 0 {
		t.Error("tick ran despite previous batch still in flight")
	}
	if !r.running.Load() {
		t.Error("overlap guard flag was cleared by the skipped tick")
	}
}
