package ingest

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"newsroom/app/delivery"
	"newsroom/app/feed"
	"newsroom/app/fetch"
	"newsroom/app/metrics"
	"newsroom/app/published"
	"newsroom/app/source"
	"newsroom/app/summarizer"
)

// Engine coordinates the fetch, quality and publish cycles across the
// registry, the item store and the external collaborators.
type Engine struct {
	registry    *source.Registry
	items       *feed.Store
	records     *published.Store
	fetcher     fetch.Client
	summaries   summarizer.Service
	dispatcher  delivery.Service
	filter      *feed.Filter
	fetchWindow time.Duration
	workerCount int
}

func NewEngine(registry *source.Registry, items *feed.Store, records *published.Store,
	fetcher fetch.Client, summaries summarizer.Service, dispatcher delivery.Service,
	filter *feed.Filter, fetchWindow time.Duration, workerCount int) *Engine {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Engine{
		registry:    registry,
		items:       items,
		records:     records,
		fetcher:     fetcher,
		summaries:   summaries,
		dispatcher:  dispatcher,
		filter:      filter,
		fetchWindow: fetchWindow,
		workerCount: workerCount,
	}
}

func (e *Engine) Filter() *feed.Filter {
	return e.filter
}

// SourceResult is the per-source outcome of a fetch cycle.
type SourceResult struct {
	SourceID string `json:"sourceId"`
	Added    int    `json:"added"`
	Updated  int    `json:"updated"`
	Total    int    `json:"total"`
	Error    string `json:"error,omitempty"`
}

// FetchAll runs one fetch cycle over every enabled source: the global
// new→pending conversion first, then fan-out bounded by the worker count.
// A failing source never aborts its siblings.
func (e *Engine) FetchAll(ctx context.Context) ([]SourceResult, error) {
	sources, err := e.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	var enabled []source.Source
	for _, src := range sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}

	results := make([]SourceResult, len(enabled))

	// The new→pending conversion degrades per source: a collection that
	// cannot be loaded is reported and skipped, siblings proceed.
	converted := 0
	skipped := make([]bool, len(enabled))
	for i, src := range enabled {
		n, err := e.items.MarkAllPending(ctx, []string{src.ID})
		if err != nil {
			slog.Warn("Failed to mark items pending", "source", src.ID, "error", err)
			results[i] = SourceResult{SourceID: src.ID, Error: err.Error()}
			skipped[i] = true
			continue
		}
		converted += n
	}
	if converted > 0 {
		slog.Debug("Converted new items to pending before fetch cycle", "count", converted)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.workerCount)
	for i, src := range enabled {
		if skipped[i] {
			continue
		}
		wg.Add(1)
		go func(i int, src source.Source) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = e.fetchSource(ctx, src)
		}(i, src)
	}
	wg.Wait()

	return results, nil
}

// FetchOne fetches and merges a single source.
func (e *Engine) FetchOne(ctx context.Context, sourceID string) (*feed.MergeResult, error) {
	src, err := e.registry.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	if _, err := e.items.MarkAllPending(ctx, []string{src.ID}); err != nil {
		return nil, err
	}

	batch, err := e.fetcher.Fetch(ctx, *src, e.cutoff())
	if err != nil {
		metrics.FetchFailures.WithLabelValues(src.ID).Inc()
		return nil, fmt.Errorf("fetch failed for %s: %w", src.ID, err)
	}

	result, err := e.items.Merge(ctx, src.ID, batch)
	if err != nil {
		return nil, err
	}

	metrics.ItemsMerged.WithLabelValues(src.ID, "added").Add(float64(result.Added))
	metrics.ItemsMerged.WithLabelValues(src.ID, "updated").Add(float64(result.Updated))

	return result, nil
}

func (e *Engine) fetchSource(ctx context.Context, src source.Source) SourceResult {
	result := SourceResult{SourceID: src.ID}

	batch, err := e.fetcher.Fetch(ctx, src, e.cutoff())
	if err != nil {
		metrics.FetchFailures.WithLabelValues(src.ID).Inc()
		slog.Warn("Source fetch failed", "source", src.ID, "error", err)
		result.Error = err.Error()
		return result
	}

	merged, err := e.items.Merge(ctx, src.ID, batch)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	metrics.ItemsMerged.WithLabelValues(src.ID, "added").Add(float64(merged.Added))
	metrics.ItemsMerged.WithLabelValues(src.ID, "updated").Add(float64(merged.Updated))

	result.Added = merged.Added
	result.Updated = merged.Updated
	result.Total = merged.Total
	return result
}

// RunQualityFilter evaluates one source, or every registered source when
// sourceID is empty.
func (e *Engine) RunQualityFilter(ctx context.Context, sourceID string, apply bool) ([]*feed.QualityReport, error) {
	var sourceIDs []string
	if sourceID != "" {
		if _, err := e.registry.Get(ctx, sourceID); err != nil {
			return nil, err
		}
		sourceIDs = []string{sourceID}
	} else {
		sources, err := e.registry.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, src := range sources {
			sourceIDs = append(sourceIDs, src.ID)
		}
	}

	reports := make([]*feed.QualityReport, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		report, err := e.items.RunQualityFilter(ctx, id, e.filter, apply)
		if err != nil {
			slog.Warn("Quality filter failed", "source", id, "error", err)
			reports = append(reports, &feed.QualityReport{SourceID: id, Error: err.Error()})
			continue
		}
		for reason, count := range report.ReasonCounts {
			metrics.ItemsFlagged.WithLabelValues(id, reason).Add(float64(count))
		}
		reports = append(reports, report)
	}

	return reports, nil
}

// PublishItem names one queued item and its target language: "zh", "en" or
// "both".
type PublishItem struct {
	SourceID string `json:"sourceId"`
	ItemID   string `json:"itemId"`
	Language string `json:"language"`
}

// PublishResult is the per-item outcome of a publish call.
type PublishResult struct {
	SourceID  string   `json:"sourceId"`
	ItemID    string   `json:"itemId"`
	Languages []string `json:"languages,omitempty"`
	OK        bool     `json:"ok"`
	Error     string   `json:"error,omitempty"`
}

// Publish summarizes each queued item per target language, materializes it
// into the published store under today's date, then transitions the item to
// published. Collaborator failures are per-item and never abort siblings.
func (e *Engine) Publish(ctx context.Context, reqs []PublishItem) []PublishResult {
	results := make([]PublishResult, 0, len(reqs))
	date := time.Now().UTC().Format("2006-01-02")

	for _, req := range reqs {
		results = append(results, e.publishOne(ctx, req, date))
	}

	return results
}

func (e *Engine) publishOne(ctx context.Context, req PublishItem, date string) PublishResult {
	result := PublishResult{SourceID: req.SourceID, ItemID: req.ItemID}

	langs, err := expandLanguages(req.Language)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	src, err := e.registry.Get(ctx, req.SourceID)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	item, err := e.items.Get(ctx, req.SourceID, req.ItemID)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	if !feed.CanTransition(item.Status, feed.StatusPublished) {
		result.Error = fmt.Sprintf("%s: %s -> %s", feed.ErrIllegalTransition.Error(), item.Status, feed.StatusPublished)
		return result
	}

	plainText := fetch.PlainText(item.Content, item.Link)
	sumReq := summarizer.Request{Title: item.Title, PlainText: plainText, SourceName: src.Name}

	var errs []string
	for _, lang := range langs {
		summary, err := e.summaries.Summarize(ctx, sumReq, lang)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", lang, err))
			continue
		}

		entry := published.Item{
			ID:         item.ID,
			Title:      item.Title,
			Link:       item.Link,
			EditorNote: summary.EditorNote,
			KeyPoints:  summary.KeyPoints,
			ReadOriginal: published.ReadOriginal{
				Score:         summary.ReadOriginal.Score,
				Reason:        summary.ReadOriginal.Reason,
				WhoShouldRead: summary.ReadOriginal.WhoShouldRead,
			},
		}

		if _, err := e.records.Upsert(ctx, req.SourceID, date, lang, []published.Item{entry}); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", lang, err))
			continue
		}

		metrics.ItemsPublished.WithLabelValues(req.SourceID, lang).Inc()
		result.Languages = append(result.Languages, lang)
	}

	if len(result.Languages) == 0 {
		result.Error = strings.Join(errs, "; ")
		return result
	}

	statusResults := e.items.UpdateStatus(ctx,
		[]feed.ItemRef{{SourceID: req.SourceID, ItemID: req.ItemID}}, feed.StatusPublished)
	if !statusResults[0].OK {
		result.Error = statusResults[0].Error
		return result
	}

	result.OK = true
	if len(errs) > 0 {
		result.Error = strings.Join(errs, "; ")
	}
	return result
}

// Deliver renders one published record as a digest and hands it to the
// delivery service. Returns the dispatch identifier.
func (e *Engine) Deliver(ctx context.Context, sourceID, date, lang string) (string, error) {
	src, err := e.registry.Get(ctx, sourceID)
	if err != nil {
		return "", err
	}

	record, err := e.records.Get(ctx, sourceID, date, lang)
	if err != nil {
		return "", err
	}

	subject := fmt.Sprintf("%s / %s", src.Name, date)
	body := renderDigest(src.Name, record)

	id, err := e.dispatcher.Send(ctx, subject, body, lang)
	if err != nil {
		return "", fmt.Errorf("delivery failed: %w", err)
	}

	slog.Info("Digest dispatched", "source", sourceID, "date", date, "language", lang, "dispatch_id", id)

	return id, nil
}

func (e *Engine) cutoff() time.Time {
	if e.fetchWindow <= 0 {
		return time.Time{}
	}
	return time.Now().UTC().Add(-e.fetchWindow)
}

func expandLanguages(lang string) ([]string, error) {
	switch lang {
	case "zh", "en":
		return []string{lang}, nil
	case "both":
		return []string{"zh", "en"}, nil
	}
	return nil, fmt.Errorf("unsupported target language: %q", lang)
}

func renderDigest(sourceName string, record *published.Record) string {
	var b strings.Builder
	b.WriteString("<h1>" + html.EscapeString(sourceName) + "</h1>\n")

	for _, item := range record.Items {
		b.WriteString("<h2><a href=\"" + html.EscapeString(item.Link) + "\">" + html.EscapeString(item.Title) + "</a></h2>\n")
		if item.EditorNote != "" {
			b.WriteString("<p>" + html.EscapeString(item.EditorNote) + "</p>\n")
		}
		if len(item.KeyPoints) > 0 {
			b.WriteString("<ul>\n")
			for _, point := range item.KeyPoints {
				b.WriteString("<li>" + html.EscapeString(point) + "</li>\n")
			}
			b.WriteString("</ul>\n")
		}
	}

	return b.String()
}
