package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"newsroom/app/storage"
)

// Store is the durable per-source item collection, keyed by content-derived
// identity. Each source's items.json is its own unit of mutual exclusion;
// merges against different sources run in parallel, merges against the same
// source serialize on the per-source lock.
type Store struct {
	store     storage.Storage
	retention time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(store storage.Storage, retentionDays int) *Store {
	return &Store{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		locks:     make(map[string]*sync.Mutex),
	}
}

// MergeResult reports the outcome of reconciling a fetched batch.
type MergeResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

// ItemRef names one item across the whole system.
type ItemRef struct {
	SourceID string `json:"sourceId"`
	ItemID   string `json:"itemId"`
}

// StatusResult is the per-item outcome of a bulk status update.
type StatusResult struct {
	Ref   ItemRef `json:"ref"`
	From  Status  `json:"from,omitempty"`
	OK    bool    `json:"ok"`
	Error string  `json:"error,omitempty"`
}

func (s *Store) Items(ctx context.Context, sourceID string) ([]Item, error) {
	lock := s.sourceLock(sourceID)
	lock.Lock()
	defer lock.Unlock()
	return s.load(ctx, sourceID)
}

func (s *Store) Get(ctx context.Context, sourceID, itemID string) (*Item, error) {
	items, err := s.Items(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	for i := range items {
		if items[i].ID == itemID {
			return &items[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, sourceID, itemID)
}

// Merge reconciles a fetched batch into the source's collection. New
// identities are inserted with status "new"; existing ones get their content
// fields replaced while status sticks, so a refetch never resets editorial
// progress. Archived items past the retention window are pruned afterwards.
func (s *Store) Merge(ctx context.Context, sourceID string, batch []Incoming) (*MergeResult, error) {
	lock := s.sourceLock(sourceID)
	lock.Lock()
	defer lock.Unlock()

	items, err := s.load(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]int, len(items))
	for i, item := range items {
		byID[item.ID] = i
	}

	now := time.Now().UTC()
	result := &MergeResult{}

	for _, in := range batch {
		if in.Link == "" {
			continue
		}

		wordCount := in.WordCount
		if wordCount == 0 {
			wordCount = CountWords(in.Content)
		}

		id := ItemID(in.Link)
		if idx, ok := byID[id]; ok {
			existing := &items[idx]
			existing.Title = in.Title
			existing.Link = in.Link
			existing.Content = in.Content
			existing.PubDate = in.PubDate
			existing.WordCount = wordCount
			existing.SyncedAt = now
			result.Updated++
			continue
		}

		items = append(items, Item{
			ID:        id,
			Title:     in.Title,
			Link:      in.Link,
			Content:   in.Content,
			PubDate:   in.PubDate,
			WordCount: wordCount,
			Status:    StatusNew,
			SyncedAt:  now,
		})
		byID[id] = len(items) - 1
		result.Added++
	}

	items = s.prune(items, now)

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PubDate.After(items[j].PubDate)
	})

	if err := s.save(ctx, sourceID, items); err != nil {
		return nil, err
	}

	result.Total = len(items)

	slog.Info("Merge completed", "source", sourceID,
		"batch", len(batch), "added", result.Added, "updated", result.Updated, "total", result.Total)

	return result, nil
}

// UpdateStatus applies one target status to a set of items that may span
// multiple sources. Illegal transitions and unknown items are reported per
// item, siblings proceed. Transitioning to published stamps PublishedAt.
func (s *Store) UpdateStatus(ctx context.Context, refs []ItemRef, target Status) []StatusResult {
	results := make([]StatusResult, 0, len(refs))

	bySource := make(map[string][]string)
	for _, ref := range refs {
		bySource[ref.SourceID] = append(bySource[ref.SourceID], ref.ItemID)
	}

	for sourceID, itemIDs := range bySource {
		results = append(results, s.updateSourceStatus(ctx, sourceID, itemIDs, target)...)
	}

	return results
}

func (s *Store) updateSourceStatus(ctx context.Context, sourceID string, itemIDs []string, target Status) []StatusResult {
	lock := s.sourceLock(sourceID)
	lock.Lock()
	defer lock.Unlock()

	results := make([]StatusResult, 0, len(itemIDs))

	items, err := s.load(ctx, sourceID)
	if err != nil {
		for _, itemID := range itemIDs {
			results = append(results, StatusResult{
				Ref:   ItemRef{SourceID: sourceID, ItemID: itemID},
				Error: err.Error(),
			})
		}
		return results
	}

	byID := make(map[string]int, len(items))
	for i, item := range items {
		byID[item.ID] = i
	}

	now := time.Now().UTC()
	changed := false

	for _, itemID := range itemIDs {
		ref := ItemRef{SourceID: sourceID, ItemID: itemID}

		idx, ok := byID[itemID]
		if !ok {
			results = append(results, StatusResult{Ref: ref, Error: ErrNotFound.Error()})
			continue
		}

		item := &items[idx]
		if !CanTransition(item.Status, target) {
			results = append(results, StatusResult{
				Ref:   ref,
				From:  item.Status,
				Error: fmt.Sprintf("%s: %s -> %s", ErrIllegalTransition.Error(), item.Status, target),
			})
			continue
		}

		from := item.Status
		if from != target {
			item.Status = target
			if target == StatusPublished {
				stamp := now
				item.PublishedAt = &stamp
			}
			changed = true
		}
		results = append(results, StatusResult{Ref: ref, From: from, OK: true})
	}

	if changed {
		if err := s.save(ctx, sourceID, items); err != nil {
			for i := range results {
				if results[i].OK {
					results[i].OK = false
					results[i].Error = err.Error()
				}
			}
		}
	}

	return results
}

// MarkAllPending converts every "new" item to "pending" across the given
// sources. Runs before each fetch cycle so "new" always means discovered
// since the last sync. Idempotent.
func (s *Store) MarkAllPending(ctx context.Context, sourceIDs []string) (int, error) {
	converted := 0

	for _, sourceID := range sourceIDs {
		n, err := s.markSourcePending(ctx, sourceID)
		if err != nil {
			return converted, fmt.Errorf("source %s: %w", sourceID, err)
		}
		converted += n
	}

	return converted, nil
}

func (s *Store) markSourcePending(ctx context.Context, sourceID string) (int, error) {
	lock := s.sourceLock(sourceID)
	lock.Lock()
	defer lock.Unlock()

	items, err := s.load(ctx, sourceID)
	if err != nil {
		return 0, err
	}

	converted := 0
	for i := range items {
		if items[i].Status == StatusNew {
			items[i].Status = StatusPending
			converted++
		}
	}

	if converted == 0 {
		return 0, nil
	}

	if err := s.save(ctx, sourceID, items); err != nil {
		return 0, err
	}

	return converted, nil
}

// RunQualityFilter evaluates every item of a source. In apply mode flagged
// items that are not yet published are forced to archived; the only
// automatic transition in the system, and a no-op on re-runs.
func (s *Store) RunQualityFilter(ctx context.Context, sourceID string, filter *Filter, apply bool) (*QualityReport, error) {
	lock := s.sourceLock(sourceID)
	lock.Lock()
	defer lock.Unlock()

	items, err := s.load(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	report := &QualityReport{
		SourceID:     sourceID,
		Total:        len(items),
		ReasonCounts: make(map[string]int),
	}

	changed := false
	for i := range items {
		flags := filter.Evaluate(items[i])

		if apply {
			items[i].Quality = &flags
			changed = true
		}

		if !flags.SkipSummary {
			continue
		}

		report.Flagged = append(report.Flagged, items[i].ID)
		for _, reason := range flags.Reasons {
			report.ReasonCounts[reason]++
		}

		if apply && items[i].Status != StatusPublished && items[i].Status != StatusArchived {
			items[i].Status = StatusArchived
			report.Archived++
		}
	}

	if apply && changed {
		if err := s.save(ctx, sourceID, items); err != nil {
			return nil, err
		}
	}

	slog.Info("Quality filter completed", "source", sourceID, "apply", apply,
		"total", report.Total, "flagged", len(report.Flagged), "archived", report.Archived)

	return report, nil
}

func (s *Store) prune(items []Item, now time.Time) []Item {
	kept := items[:0]
	for _, item := range items {
		if item.Status == StatusArchived {
			age := item.SyncedAt
			if age.IsZero() {
				age = item.PubDate
			}
			if !age.IsZero() && now.Sub(age) > s.retention {
				continue
			}
		}
		kept = append(kept, item)
	}
	return kept
}

func (s *Store) load(ctx context.Context, sourceID string) ([]Item, error) {
	data, err := s.store.Read(ctx, itemsKey(sourceID))
	if err != nil {
		return nil, fmt.Errorf("failed to read items for %s: %w", sourceID, err)
	}
	if data == nil {
		return nil, nil
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse items for %s: %w", sourceID, err)
	}

	return items, nil
}

func (s *Store) save(ctx context.Context, sourceID string, items []Item) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode items for %s: %w", sourceID, err)
	}

	if err := s.store.Write(ctx, itemsKey(sourceID), data); err != nil {
		return fmt.Errorf("failed to write items for %s: %w", sourceID, err)
	}

	return nil
}

func (s *Store) sourceLock(sourceID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[sourceID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sourceID] = lock
	}
	return lock
}

func itemsKey(sourceID string) string {
	return "feeds/" + sourceID + "/items.json"
}
