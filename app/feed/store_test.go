package feed

import (
	"context"
	"strings"
	"testing"
	"time"

	"newsroom/app/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(storage.NewLocal(t.TempDir()), 14)
}

func TestItemIDDeterminism(t *testing.T) {
	a := ItemID("http://example.com/article-1")
	b := ItemID("http://example.com/article-1")
	c := ItemID("http://example.com/article-2")

	if a != b {
		t.Error("Same link must always produce the same id")
	}
	if a == c {
		t.Error("Different links must produce different ids")
	}
	if len(a) != 64 {
		t.Errorf("Expected sha256 hex id, got length %d", len(a))
	}
}

func TestMergeInsertsNewItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	batch := []Incoming{
		{Title: "First", Link: "http://a.example/1", Content: "<p>hello world</p>", PubDate: time.Now()},
		{Title: "Second", Link: "http://a.example/2", Content: "<p>more text</p>", PubDate: time.Now()},
	}

	result, err := store.Merge(ctx, "src", batch)
	if err != nil {
		t.Fatal(err)
	}

	if result.Added != 2 || result.Updated != 0 || result.Total != 2 {
		t.Errorf("Unexpected merge result: %+v", result)
	}

	items, err := store.Items(ctx, "src")
	if err != nil {
		t.Fatal(err)
	}
	for _, item := range items {
		if item.Status != StatusNew {
			t.Errorf("First sighting must be status new, got %s", item.Status)
		}
		if item.SyncedAt.IsZero() {
			t.Error("SyncedAt must be stamped on merge")
		}
		if item.WordCount == 0 {
			t.Error("WordCount must be derived from content when absent")
		}
	}
}

func TestMergeIdempotence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	batch := []Incoming{
		{Title: "First", Link: "http://a.example/1", PubDate: time.Now()},
		{Title: "Second", Link: "http://a.example/2", PubDate: time.Now()},
	}

	if _, err := store.Merge(ctx, "src", batch); err != nil {
		t.Fatal(err)
	}

	result, err := store.Merge(ctx, "src", batch)
	if err != nil {
		t.Fatal(err)
	}

	if result.Added != 0 {
		t.Errorf("Second merge of the same batch must add nothing, added %d", result.Added)
	}
	if result.Updated != len(batch) {
		t.Errorf("Second merge must update the full batch, updated %d", result.Updated)
	}
	if result.Total != len(batch) {
		t.Errorf("No duplicate identities allowed, total %d", result.Total)
	}
}

func TestMergeStatusStickiness(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	batch := []Incoming{{Title: "Old Title", Link: "http://a.example/1", Content: "v1", PubDate: time.Now()}}
	if _, err := store.Merge(ctx, "src", batch); err != nil {
		t.Fatal(err)
	}

	id := ItemID("http://a.example/1")
	results := store.UpdateStatus(ctx, []ItemRef{{SourceID: "src", ItemID: id}}, StatusQueued)
	if !results[0].OK {
		t.Fatalf("Expected transition to queued to succeed: %+v", results[0])
	}

	before, err := store.Get(ctx, "src", id)
	if err != nil {
		t.Fatal(err)
	}

	refetch := []Incoming{{Title: "New Title", Link: "http://a.example/1", Content: "v2", PubDate: time.Now()}}
	if _, err := store.Merge(ctx, "src", refetch); err != nil {
		t.Fatal(err)
	}

	after, err := store.Get(ctx, "src", id)
	if err != nil {
		t.Fatal(err)
	}

	if after.Status != StatusQueued {
		t.Errorf("Re-merge must never reset editorial progress, got status %s", after.Status)
	}
	if after.Title != "New Title" || after.Content != "v2" {
		t.Error("Re-merge must refresh content fields")
	}
	if !after.SyncedAt.After(before.SyncedAt) && !after.SyncedAt.Equal(before.SyncedAt) {
		t.Error("Re-merge must refresh SyncedAt")
	}
}

func TestMergeRetentionPruning(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	seed := []Item{
		{ID: ItemID("http://a.example/old"), Link: "http://a.example/old", Status: StatusArchived, SyncedAt: now.Add(-15 * 24 * time.Hour)},
		{ID: ItemID("http://a.example/recent"), Link: "http://a.example/recent", Status: StatusArchived, SyncedAt: now.Add(-10 * 24 * time.Hour)},
		{ID: ItemID("http://a.example/pending"), Link: "http://a.example/pending", Status: StatusPending, SyncedAt: now.Add(-40 * 24 * time.Hour)},
	}
	if err := store.save(ctx, "src", seed); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Merge(ctx, "src", nil); err != nil {
		t.Fatal(err)
	}

	items, err := store.Items(ctx, "src")
	if err != nil {
		t.Fatal(err)
	}

	remaining := make(map[string]bool)
	for _, item := range items {
		remaining[item.Link] = true
	}

	if remaining["http://a.example/old"] {
		t.Error("Archived item past the retention window must be pruned")
	}
	if !remaining["http://a.example/recent"] {
		t.Error("Archived item inside the retention window must be kept")
	}
	if !remaining["http://a.example/pending"] {
		t.Error("Only archived items are subject to retention pruning")
	}
}

func TestMergeSortsByPubDateDescending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	batch := []Incoming{
		{Title: "Oldest", Link: "http://a.example/1", PubDate: now.Add(-2 * time.Hour)},
		{Title: "Newest", Link: "http://a.example/2", PubDate: now},
		{Title: "Middle", Link: "http://a.example/3", PubDate: now.Add(-time.Hour)},
	}
	if _, err := store.Merge(ctx, "src", batch); err != nil {
		t.Fatal(err)
	}

	items, err := store.Items(ctx, "src")
	if err != nil {
		t.Fatal(err)
	}

	if items[0].Title != "Newest" || items[2].Title != "Oldest" {
		t.Errorf("Expected newest first, got %s / %s / %s", items[0].Title, items[1].Title, items[2].Title)
	}
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Merge(ctx, "src", []Incoming{{Title: "T", Link: "http://a.example/1", PubDate: time.Now()}}); err != nil {
		t.Fatal(err)
	}

	id := ItemID("http://a.example/1")
	results := store.UpdateStatus(ctx, []ItemRef{{SourceID: "src", ItemID: id}}, StatusPublished)

	if results[0].OK {
		t.Fatal("Direct new -> published must be rejected")
	}
	if !strings.Contains(results[0].Error, ErrIllegalTransition.Error()) {
		t.Errorf("Expected illegal transition error, got %q", results[0].Error)
	}

	item, err := store.Get(ctx, "src", id)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != StatusNew {
		t.Errorf("Rejected transition must not change status, got %s", item.Status)
	}
}

func TestUpdateStatusPublishStampsPublishedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Merge(ctx, "src", []Incoming{{Title: "T", Link: "http://a.example/1", PubDate: time.Now()}}); err != nil {
		t.Fatal(err)
	}

	id := ItemID("http://a.example/1")
	ref := []ItemRef{{SourceID: "src", ItemID: id}}

	for _, target := range []Status{StatusQueued, StatusPublished} {
		results := store.UpdateStatus(ctx, ref, target)
		if !results[0].OK {
			t.Fatalf("Transition to %s failed: %+v", target, results[0])
		}
	}

	item, err := store.Get(ctx, "src", id)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != StatusPublished {
		t.Errorf("Expected published, got %s", item.Status)
	}
	if item.PublishedAt == nil {
		t.Error("Publishing must stamp PublishedAt")
	}
}

func TestUpdateStatusSpansSourcesWithPartialFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Merge(ctx, "a", []Incoming{{Title: "A1", Link: "http://a.example/1", PubDate: time.Now()}}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Merge(ctx, "b", []Incoming{{Title: "B1", Link: "http://b.example/1", PubDate: time.Now()}}); err != nil {
		t.Fatal(err)
	}

	refs := []ItemRef{
		{SourceID: "a", ItemID: ItemID("http://a.example/1")},
		{SourceID: "b", ItemID: ItemID("http://b.example/1")},
		{SourceID: "b", ItemID: "deadbeef"},
	}

	results := store.UpdateStatus(ctx, refs, StatusQueued)
	if len(results) != 3 {
		t.Fatalf("Expected 3 per-item results, got %d", len(results))
	}

	okCount := 0
	notFound := 0
	for _, res := range results {
		if res.OK {
			okCount++
		} else if strings.Contains(res.Error, ErrNotFound.Error()) {
			notFound++
		}
	}

	if okCount != 2 || notFound != 1 {
		t.Errorf("Expected 2 successes and 1 not-found, got %+v", results)
	}
}

func TestMarkAllPendingIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Merge(ctx, "src", []Incoming{
		{Title: "T1", Link: "http://a.example/1", PubDate: time.Now()},
		{Title: "T2", Link: "http://a.example/2", PubDate: time.Now()},
	}); err != nil {
		t.Fatal(err)
	}

	converted, err := store.MarkAllPending(ctx, []string{"src"})
	if err != nil {
		t.Fatal(err)
	}
	if converted != 2 {
		t.Errorf("Expected 2 conversions, got %d", converted)
	}

	converted, err = store.MarkAllPending(ctx, []string{"src"})
	if err != nil {
		t.Fatal(err)
	}
	if converted != 0 {
		t.Errorf("Second run must be a no-op, converted %d", converted)
	}

	items, err := store.Items(ctx, "src")
	if err != nil {
		t.Fatal(err)
	}
	for _, item := range items {
		if item.Status != StatusPending {
			t.Errorf("Expected pending, got %s", item.Status)
		}
	}
}

func TestCanTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusNew, StatusPending, true},
		{StatusNew, StatusQueued, true},
		{StatusNew, StatusArchived, true},
		{StatusNew, StatusPublished, false},
		{StatusPending, StatusQueued, true},
		{StatusPending, StatusPublished, false},
		{StatusQueued, StatusPending, true},
		{StatusQueued, StatusPublished, true},
		{StatusArchived, StatusPending, true},
		{StatusArchived, StatusPublished, false},
		{StatusPublished, StatusArchived, false},
		{StatusPublished, StatusPending, false},
		{StatusQueued, StatusQueued, true},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
