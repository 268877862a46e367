package published

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"time"

	"newsroom/app/storage"
)

// recordName matches {date}-{lang}.json, the naming convention that doubles
// as the date index.
var recordName = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})-(zh|en)\.json$`)

// Store persists published records under feeds/{sourceId}/{date}-{lang}.json.
type Store struct {
	store storage.Storage
	mu    sync.Mutex
}

func NewStore(store storage.Storage) *Store {
	return &Store{store: store}
}

func (s *Store) Get(ctx context.Context, sourceID, date, lang string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, sourceID, date, lang)
}

// Upsert creates the record if absent, otherwise appends the new items and
// refreshes PublishedAt. Prior items are never overwritten.
func (s *Store) Upsert(ctx context.Context, sourceID, date, lang string, items []Item) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	record, err := s.load(ctx, sourceID, date, lang)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if record == nil {
		record = &Record{}
	}

	record.Items = append(record.Items, items...)
	record.PublishedAt = now
	record.LastModified = now

	if err := s.save(ctx, sourceID, date, lang, record); err != nil {
		return nil, err
	}

	slog.Info("Published record upserted", "source", sourceID, "date", date,
		"language", lang, "appended", len(items), "total", len(record.Items))

	return record, nil
}

// UpdateItem replaces the generated fields of one published item in place
// and stamps RegeneratedAt.
func (s *Store) UpdateItem(ctx context.Context, sourceID, date, lang, itemID string, upd ItemUpdate) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load(ctx, sourceID, date, lang)
	if err != nil {
		return nil, err
	}

	for i := range record.Items {
		if record.Items[i].ID != itemID {
			continue
		}

		now := time.Now().UTC()
		record.Items[i].EditorNote = upd.EditorNote
		record.Items[i].KeyPoints = upd.KeyPoints
		record.Items[i].ReadOriginal = upd.ReadOriginal
		record.Items[i].RegeneratedAt = &now
		record.LastModified = now

		if err := s.save(ctx, sourceID, date, lang, record); err != nil {
			return nil, err
		}

		return &record.Items[i], nil
	}

	return nil, fmt.Errorf("%w: item %s in %s/%s-%s", ErrNotFound, itemID, sourceID, date, lang)
}

// DeleteItem filters one item out of the record's items array. The working
// item collection is unaffected.
func (s *Store) DeleteItem(ctx context.Context, sourceID, date, lang, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.load(ctx, sourceID, date, lang)
	if err != nil {
		return err
	}

	kept := record.Items[:0]
	for _, item := range record.Items {
		if item.ID != itemID {
			kept = append(kept, item)
		}
	}

	if len(kept) == len(record.Items) {
		return fmt.Errorf("%w: item %s in %s/%s-%s", ErrNotFound, itemID, sourceID, date, lang)
	}

	record.Items = kept
	record.LastModified = time.Now().UTC()

	return s.save(ctx, sourceID, date, lang, record)
}

// Dates enumerates the distinct publish dates available for a source by
// scanning stored keys, newest first. There is no separate date index.
func (s *Store) Dates(ctx context.Context, sourceID string) ([]string, error) {
	names, err := s.store.List(ctx, "feeds/"+sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list published records for %s: %w", sourceID, err)
	}

	seen := make(map[string]bool)
	var dates []string
	for _, name := range names {
		m := recordName.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		if !seen[m[1]] {
			seen[m[1]] = true
			dates = append(dates, m[1])
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	return dates, nil
}

func (s *Store) load(ctx context.Context, sourceID, date, lang string) (*Record, error) {
	data, err := s.store.Read(ctx, recordKey(sourceID, date, lang))
	if err != nil {
		return nil, fmt.Errorf("failed to read published record: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s/%s-%s", ErrNotFound, sourceID, date, lang)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse published record: %w", err)
	}

	return &record, nil
}

func (s *Store) save(ctx context.Context, sourceID, date, lang string, record *Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode published record: %w", err)
	}

	if err := s.store.Write(ctx, recordKey(sourceID, date, lang), data); err != nil {
		return fmt.Errorf("failed to write published record: %w", err)
	}

	return nil
}

func recordKey(sourceID, date, lang string) string {
	return fmt.Sprintf("feeds/%s/%s-%s.json", sourceID, date, lang)
}
