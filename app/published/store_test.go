package published

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"newsroom/app/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(storage.NewLocal(t.TempDir()))
}

func TestUpsertCreatesThenAppends(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := []Item{{ID: "id1", Title: "First", EditorNote: "note"}}
	record, err := store.Upsert(ctx, "src", "2026-08-30", "zh", first)
	if err != nil {
		t.Fatal(err)
	}
	if len(record.Items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(record.Items))
	}
	if record.PublishedAt.IsZero() || record.LastModified.IsZero() {
		t.Error("Timestamps must be stamped on create")
	}

	firstPublishedAt := record.PublishedAt

	second := []Item{{ID: "id2", Title: "Second"}}
	record, err = store.Upsert(ctx, "src", "2026-08-30", "zh", second)
	if err != nil {
		t.Fatal(err)
	}

	if len(record.Items) != 2 {
		t.Fatalf("Upsert must append, never overwrite; got %d items", len(record.Items))
	}
	if record.Items[0].ID != "id1" || record.Items[1].ID != "id2" {
		t.Errorf("Prior items must be preserved in order, got %+v", record.Items)
	}
	if record.PublishedAt.Before(firstPublishedAt) {
		t.Error("Upsert must refresh PublishedAt")
	}
}

func TestGetMissingRecord(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "src", "2026-08-30", "en")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateItemRegenerates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	items := []Item{
		{ID: "id1", Title: "First", EditorNote: "old note", KeyPoints: []string{"a"}},
		{ID: "id2", Title: "Second"},
	}
	if _, err := store.Upsert(ctx, "src", "2026-08-30", "zh", items); err != nil {
		t.Fatal(err)
	}

	updated, err := store.UpdateItem(ctx, "src", "2026-08-30", "zh", "id1", ItemUpdate{
		EditorNote:   "new note",
		KeyPoints:    []string{"x", "y"},
		ReadOriginal: ReadOriginal{Score: 8, Reason: "depth", WhoShouldRead: "engineers"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if updated.EditorNote != "new note" {
		t.Errorf("Expected regenerated note, got %q", updated.EditorNote)
	}
	if updated.RegeneratedAt == nil {
		t.Error("UpdateItem must stamp RegeneratedAt")
	}

	record, err := store.Get(ctx, "src", "2026-08-30", "zh")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(record.Items[0].KeyPoints, []string{"x", "y"}) {
		t.Errorf("Regenerated fields must persist, got %v", record.Items[0].KeyPoints)
	}
	if record.Items[1].RegeneratedAt != nil {
		t.Error("Sibling items must be untouched")
	}
}

func TestUpdateItemNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.UpdateItem(ctx, "src", "2026-08-30", "zh", "id1", ItemUpdate{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing record, got %v", err)
	}

	if _, err := store.Upsert(ctx, "src", "2026-08-30", "zh", []Item{{ID: "id1"}}); err != nil {
		t.Fatal(err)
	}

	if _, err := store.UpdateItem(ctx, "src", "2026-08-30", "zh", "missing", ItemUpdate{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing item, got %v", err)
	}
}

func TestDeleteItem(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	items := []Item{{ID: "id1"}, {ID: "id2"}}
	if _, err := store.Upsert(ctx, "src", "2026-08-30", "en", items); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteItem(ctx, "src", "2026-08-30", "en", "id1"); err != nil {
		t.Fatal(err)
	}

	record, err := store.Get(ctx, "src", "2026-08-30", "en")
	if err != nil {
		t.Fatal(err)
	}
	if len(record.Items) != 1 || record.Items[0].ID != "id2" {
		t.Errorf("Expected only id2 to remain, got %+v", record.Items)
	}

	if err := store.DeleteItem(ctx, "src", "2026-08-30", "en", "id1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Deleting an already-removed item must be ErrNotFound, got %v", err)
	}
}

func TestDatesScansKeysNewestFirst(t *testing.T) {
	blobs := storage.NewLocal(t.TempDir())
	store := NewStore(blobs)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, "src", "2026-08-28", "zh", []Item{{ID: "a"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Upsert(ctx, "src", "2026-08-30", "zh", []Item{{ID: "b"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Upsert(ctx, "src", "2026-08-30", "en", []Item{{ID: "b"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Upsert(ctx, "src", "2026-08-29", "en", []Item{{ID: "c"}}); err != nil {
		t.Fatal(err)
	}

	// The working collection must not confuse the key scan
	if err := blobs.Write(ctx, "feeds/src/items.json", []byte("[]")); err != nil {
		t.Fatal(err)
	}

	dates, err := store.Dates(ctx, "src")
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"2026-08-30", "2026-08-29", "2026-08-28"}
	if !reflect.DeepEqual(dates, want) {
		t.Errorf("Expected %v, got %v", want, dates)
	}
}
