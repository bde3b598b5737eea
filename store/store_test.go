package store

import (
	"context"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pricewatch/alerts"
	"github.com/hazyhaar/pricewatch/ledger"
	"github.com/hazyhaar/pricewatch/match"
)

func testItem(id string) *ledger.TrackedItem {
	now := time.Now().UTC().Truncate(time.Second)
	return &ledger.TrackedItem{
		ID:           id,
		URL:          "https://www.amazon.in/dp/" + id,
		Name:         "Samsung Galaxy M14 5G",
		Image:        "https://img.example.com/m14.jpg",
		CurrentPrice: 11990,
		Currency:     "INR",
		Change:       ledger.PriceChange{Amount: -500, Percent: -4, Direction: ledger.DirectionDown},
		UpdatedAt:    now,
		History: []ledger.PricePoint{
			{Timestamp: now.Add(-time.Hour), Price: 12490},
			{Timestamp: now, Price: 11990},
		},
		Trackers: []string{"user1"},
	}
}

func TestPutGetItem(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	want := testItem("B0C9AAAAAA")
	if err := s.PutItem(ctx, want); err != nil {
		t.Fatalf("PutItem: %v", err)
	}

	got, err := s.GetItem(ctx, want.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Name != want.Name || got.CurrentPrice != want.CurrentPrice {
		t.Errorf("got %+v", got)
	}
	if got.Change.Direction != ledger.DirectionDown {
		t.Errorf("direction = %s", got.Change.Direction)
	}
	if len(got.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(got.History))
	}
	if !got.History[1].Timestamp.Equal(want.History[1].Timestamp) {
		t.Errorf("history timestamp round trip: %v != %v",
			got.History[1].Timestamp, want.History[1].Timestamp)
	}
	if len(got.Trackers) != 1 || got.Trackers[0] != "user1" {
		t.Errorf("trackers = %v", got.Trackers)
	}
}

func TestGetItemNotFound(t *testing.T) {
	s := OpenMemory(t)
	_, err := s.GetItem(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPutItemUpsert(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	item := testItem("B0C9AAAAAA")
	if err := s.PutItem(ctx, item); err != nil {
		t.Fatalf("PutItem: %v", err)
	}

	item.CurrentPrice = 11490
	if err := s.PutItem(ctx, item); err != nil {
		t.Fatalf("PutItem (update): %v", err)
	}

	got, err := s.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.CurrentPrice != 11490 {
		t.Errorf("CurrentPrice = %v, want 11490", got.CurrentPrice)
	}

	items, err := s.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("items = %d, want 1 after upsert", len(items))
	}
}

func TestAddTrackerIdempotent(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	item := testItem("B0C9AAAAAA")
	if err := s.PutItem(ctx, item); err != nil {
		t.Fatalf("PutItem: %v", err)
	}

	if err := s.AddTracker(ctx, item.ID, "user2"); err != nil {
		t.Fatalf("AddTracker: %v", err)
	}
	if err := s.AddTracker(ctx, item.ID, "user2"); err != nil {
		t.Fatalf("AddTracker (repeat): %v", err)
	}

	got, err := s.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if len(got.Trackers) != 2 {
		t.Errorf("trackers = %v, want [user1 user2]", got.Trackers)
	}

	if err := s.AddTracker(ctx, "missing", "user2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddTracker on missing item err = %v, want ErrNotFound", err)
	}
}

func newSub(id, itemID, userID string, target float64) *alerts.Subscription {
	return &alerts.Subscription{
		ID:          id,
		ItemID:      itemID,
		UserID:      userID,
		Email:       userID + "@example.com",
		TargetPrice: target,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestCreateSubscriptionReplacesActivePair(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	item := testItem("B0C9AAAAAA")
	if err := s.PutItem(ctx, item); err != nil {
		t.Fatalf("PutItem: %v", err)
	}

	if err := s.CreateSubscription(ctx, newSub("sub_1", item.ID, "user1", 11000)); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	// Re-setting the target deactivates the first subscription instead of
	// violating the one-active-per-pair index.
	if err := s.CreateSubscription(ctx, newSub("sub_2", item.ID, "user1", 10500)); err != nil {
		t.Fatalf("CreateSubscription (replace): %v", err)
	}

	first, err := s.GetSubscription(ctx, "sub_1")
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if first.Active {
		t.Error("replaced subscription still active")
	}

	second, err := s.GetSubscription(ctx, "sub_2")
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if !second.Active || second.TargetPrice != 10500 {
		t.Errorf("got %+v", second)
	}
}

func TestEligibleSubscriptions(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	item := testItem("B0C9AAAAAA")
	if err := s.PutItem(ctx, item); err != nil {
		t.Fatalf("PutItem: %v", err)
	}

	// Eligible: target at current price.
	if err := s.CreateSubscription(ctx, newSub("sub_at", item.ID, "user1", 11990)); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	// Eligible: target above current price.
	if err := s.CreateSubscription(ctx, newSub("sub_above", item.ID, "user2", 12500)); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	// Not eligible: target below current price.
	if err := s.CreateSubscription(ctx, newSub("sub_below", item.ID, "user3", 11000)); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	subs, err := s.EligibleSubscriptions(ctx, item.ID, 11990)
	if err != nil {
		t.Fatalf("EligibleSubscriptions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("eligible = %d, want 2", len(subs))
	}

	// Triggered subscriptions drop out.
	if err := s.MarkTriggered(ctx, "sub_at", time.Now()); err != nil {
		t.Fatalf("MarkTriggered: %v", err)
	}
	subs, err = s.EligibleSubscriptions(ctx, item.ID, 11990)
	if err != nil {
		t.Fatalf("EligibleSubscriptions: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != "sub_above" {
		t.Errorf("eligible after trigger = %+v", subs)
	}
}

func TestMarkTriggeredStampsTime(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	item := testItem("B0C9AAAAAA")
	if err := s.PutItem(ctx, item); err != nil {
		t.Fatalf("PutItem: %v", err)
	}
	if err := s.CreateSubscription(ctx, newSub("sub_1", item.ID, "user1", 12000)); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	at := time.Now().UTC().Truncate(time.Second)
	if err := s.MarkTriggered(ctx, "sub_1", at); err != nil {
		t.Fatalf("MarkTriggered: %v", err)
	}

	sub, err := s.GetSubscription(ctx, "sub_1")
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if sub.Active {
		t.Error("triggered subscription still active")
	}
	if sub.TriggeredAt == nil || !sub.TriggeredAt.Equal(at) {
		t.Errorf("TriggeredAt = %v, want %v", sub.TriggeredAt, at)
	}

	// Already inactive: second trigger is NotFound.
	if err := s.MarkTriggered(ctx, "sub_1", at); !errors.Is(err, ErrNotFound) {
		t.Errorf("repeat MarkTriggered err = %v, want ErrNotFound", err)
	}
}

func TestDeactivateSubscription(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	item := testItem("B0C9AAAAAA")
	if err := s.PutItem(ctx, item); err != nil {
		t.Fatalf("PutItem: %v", err)
	}
	if err := s.CreateSubscription(ctx, newSub("sub_1", item.ID, "user1", 12000)); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	if err := s.DeactivateSubscription(ctx, "sub_1"); err != nil {
		t.Fatalf("DeactivateSubscription: %v", err)
	}

	sub, err := s.GetSubscription(ctx, "sub_1")
	if err != nil {
		t.Fatalf("GetSubscription: %v", err)
	}
	if sub.Active {
		t.Error("subscription still active after deactivate")
	}
	if sub.TriggeredAt != nil {
		t.Error("explicit removal must not stamp a trigger time")
	}
}

func TestListSubscriptionsByUser(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	itemA := testItem("B0C9AAAAAA")
	itemB := testItem("B0C9BBBBBB")
	for _, item := range []*ledger.TrackedItem{itemA, itemB} {
		if err := s.PutItem(ctx, item); err != nil {
			t.Fatalf("PutItem: %v", err)
		}
	}

	older := newSub("sub_old", itemA.ID, "user1", 11000)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	if err := s.CreateSubscription(ctx, older); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if err := s.CreateSubscription(ctx, newSub("sub_new", itemB.ID, "user1", 9000)); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if err := s.CreateSubscription(ctx, newSub("sub_other", itemA.ID, "user2", 10000)); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	subs, err := s.ListSubscriptionsByUser(ctx, "user1")
	if err != nil {
		t.Fatalf("ListSubscriptionsByUser: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("subscriptions = %d, want 2", len(subs))
	}
	if subs[0].ID != "sub_new" || subs[1].ID != "sub_old" {
		t.Errorf("order = [%s %s], want newest first", subs[0].ID, subs[1].ID)
	}

	subs, err = s.ListSubscriptionsByUser(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListSubscriptionsByUser: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("subscriptions = %d, want 0", len(subs))
	}
}

func TestComparisonRoundTrip(t *testing.T) {
	s := OpenMemory(t)
	ctx := context.Background()

	item := testItem("B0C9AAAAAA")
	if err := s.PutItem(ctx, item); err != nil {
		t.Fatalf("PutItem: %v", err)
	}

	got, err := s.GetComparison(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetComparison (empty): %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing comparison, got %+v", got)
	}

	cmp := &match.Comparison{
		ItemID:      item.ID,
		SearchTitle: "samsung galaxy m14",
		GeneratedAt: time.Now().UTC().Truncate(time.Second),
		Entries: []match.Entry{
			{ID: "cmp_1", Platform: "Flipkart", Title: "Samsung Galaxy M14 5G",
				URL: "https://www.flipkart.com/p/1", Price: 11499, Currency: "INR"},
		},
	}
	if err := s.PutComparison(ctx, cmp); err != nil {
		t.Fatalf("PutComparison: %v", err)
	}

	got, err = s.GetComparison(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetComparison: %v", err)
	}
	if got.SearchTitle != cmp.SearchTitle || len(got.Entries) != 1 {
		t.Errorf("got %+v", got)
	}
	if got.Entries[0].Platform != "Flipkart" || got.Entries[0].Price != 11499 {
		t.Errorf("entry = %+v", got.Entries[0])
	}

	// Refresh replaces wholesale.
	cmp.Entries = append(cmp.Entries, match.Entry{
		ID: "cmp_2", Platform: "Amazon", URL: "https://www.amazon.in/dp/x", Price: 11990, Currency: "INR",
	})
	if err := s.PutComparison(ctx, cmp); err != nil {
		t.Fatalf("PutComparison (replace): %v", err)
	}
	got, err = s.GetComparison(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetComparison: %v", err)
	}
	if len(got.Entries) != 2 {
		t.Errorf("entries = %d, want 2 after replace", len(got.Entries))
	}
}
