package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"newsroom/app/storage"
)

const sourcesKey = "sources.json"

// Registry is the single source of truth for which sources exist. It holds
// no fetched content. The registry file is its own unit of mutual exclusion,
// independent of any per-source item collection.
type Registry struct {
	store storage.Storage
	mu    sync.Mutex
}

func NewRegistry(store storage.Storage) *Registry {
	return &Registry{store: store}
}

func (r *Registry) List(ctx context.Context) ([]Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

func (r *Registry) Get(ctx context.Context, id string) (*Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sources, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	for i := range sources {
		if sources[i].ID == id {
			return &sources[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (r *Registry) Add(ctx context.Context, req NewSource) (*Source, error) {
	if req.Name == "" || req.URL == "" {
		return nil, fmt.Errorf("source name and url are required")
	}
	if req.Language != "zh" && req.Language != "en" {
		return nil, fmt.Errorf("unsupported language: %q", req.Language)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sources, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	for _, s := range sources {
		if s.URL == req.URL {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSource, req.URL)
		}
	}

	src := Source{
		ID:       r.uniqueID(sources, slugify(req.Name)),
		Name:     req.Name,
		URL:      req.URL,
		Language: req.Language,
		Category: req.Category,
		Enabled:  true,
		AddedAt:  time.Now().UTC(),
	}

	sources = append(sources, src)
	if err := r.save(ctx, sources); err != nil {
		return nil, err
	}

	slog.Info("Source registered", "id", src.ID, "url", src.URL, "language", src.Language)

	return &src, nil
}

func (r *Registry) Update(ctx context.Context, id string, upd Update) (*Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sources, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	idx := indexOf(sources, id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	src := &sources[idx]
	if upd.Name != nil {
		src.Name = *upd.Name
	}
	if upd.URL != nil {
		for i, other := range sources {
			if i != idx && other.URL == *upd.URL {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateSource, *upd.URL)
			}
		}
		src.URL = *upd.URL
	}
	if upd.Language != nil {
		if *upd.Language != "zh" && *upd.Language != "en" {
			return nil, fmt.Errorf("unsupported language: %q", *upd.Language)
		}
		src.Language = *upd.Language
	}
	if upd.Category != nil {
		src.Category = *upd.Category
	}
	if upd.Enabled != nil {
		src.Enabled = *upd.Enabled
	}

	if err := r.save(ctx, sources); err != nil {
		return nil, err
	}

	return src, nil
}

func (r *Registry) Toggle(ctx context.Context, id string) (*Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sources, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	idx := indexOf(sources, id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	sources[idx].Enabled = !sources[idx].Enabled
	if err := r.save(ctx, sources); err != nil {
		return nil, err
	}

	return &sources[idx], nil
}

// Delete removes the source record. With purge set, the source's entire
// feeds/{id}/ subtree goes with it. Irreversible.
func (r *Registry) Delete(ctx context.Context, id string, purge bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sources, err := r.load(ctx)
	if err != nil {
		return err
	}

	idx := indexOf(sources, id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	sources = append(sources[:idx], sources[idx+1:]...)
	if err := r.save(ctx, sources); err != nil {
		return err
	}

	if purge {
		if err := r.store.DeleteTree(ctx, "feeds/"+id); err != nil {
			return fmt.Errorf("failed to purge source data: %w", err)
		}
	}

	slog.Info("Source deleted", "id", id, "purge", purge)

	return nil
}

func (r *Registry) load(ctx context.Context) ([]Source, error) {
	data, err := r.store.Read(ctx, sourcesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read source registry: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var sources []Source
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("failed to parse source registry: %w", err)
	}

	return sources, nil
}

func (r *Registry) save(ctx context.Context, sources []Source) error {
	data, err := json.MarshalIndent(sources, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode source registry: %w", err)
	}

	if err := r.store.Write(ctx, sourcesKey, data); err != nil {
		return fmt.Errorf("failed to write source registry: %w", err)
	}

	return nil
}

// uniqueID resolves slug collisions with a numeric suffix: slug, slug-2, ...
func (r *Registry) uniqueID(sources []Source, slug string) string {
	taken := make(map[string]bool, len(sources))
	for _, s := range sources {
		taken[s.ID] = true
	}

	if !taken[slug] {
		return slug
	}

	for i := 2; ; i++ {
		candidate := slug + "-" + strconv.Itoa(i)
		if !taken[candidate] {
			return candidate
		}
	}
}

func indexOf(sources []Source, id string) int {
	for i := range sources {
		if sources[i].ID == id {
			return i
		}
	}
	return -1
}
