package feed

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"newsroom/app/storage"
)

func testFilter() *Filter {
	return NewFilter(RuleConfig{
		MinWordCount:        80,
		VideoMinWordCount:   150,
		AggregationPatterns: []string{`weekly\s+roundup`, "daily digest", "[invalid(regex"},
		VideoPatterns:       []string{"<iframe", "youtube.com/embed"},
	})
}

func TestFilterLengthRule(t *testing.T) {
	filter := testFilter()

	flags := filter.Evaluate(Item{Title: "Short piece", WordCount: 50})
	if !flags.SkipSummary {
		t.Fatal("Item below min word count must be flagged")
	}
	if len(flags.Reasons) != 1 || flags.Reasons[0] != ReasonTooShort {
		t.Errorf("Expected [%s], got %v", ReasonTooShort, flags.Reasons)
	}

	flags = filter.Evaluate(Item{Title: "Long read", WordCount: 500})
	if flags.SkipSummary {
		t.Errorf("Item above min word count must pass, got %v", flags.Reasons)
	}
}

func TestFilterAggregationRule(t *testing.T) {
	filter := testFilter()

	flags := filter.Evaluate(Item{Title: "Weekly   Roundup: Best Links", WordCount: 400})
	if !flags.SkipSummary || flags.Reasons[0] != ReasonAggregation {
		t.Errorf("Regex pattern should match case-insensitively across whitespace, got %v", flags.Reasons)
	}

	// The invalid regex degrades to a substring match
	flags = filter.Evaluate(Item{Title: "about [invalid(regex in titles", WordCount: 400})
	if !flags.SkipSummary || flags.Reasons[0] != ReasonAggregation {
		t.Errorf("Invalid regex must fall back to substring matching, got %v", flags.Reasons)
	}
}

func TestFilterVideoRuleRequiresLowTextVolume(t *testing.T) {
	filter := testFilter()

	content := `<p>intro</p><iframe src="https://youtube.com/embed/x"></iframe>`

	flags := filter.Evaluate(Item{Title: "Talk", Content: content, WordCount: 100})
	found := false
	for _, reason := range flags.Reasons {
		if reason == ReasonVideoPrimary {
			found = true
		}
	}
	if !found {
		t.Errorf("Video embed with low text volume must be flagged, got %v", flags.Reasons)
	}

	flags = filter.Evaluate(Item{Title: "Talk writeup", Content: content, WordCount: 800})
	for _, reason := range flags.Reasons {
		if reason == ReasonVideoPrimary {
			t.Error("Video presence alone is not disqualifying")
		}
	}
}

func TestFilterReasonsCoOccur(t *testing.T) {
	filter := testFilter()

	flags := filter.Evaluate(Item{
		Title:     "Daily Digest",
		Content:   `<iframe src="x"></iframe>`,
		WordCount: 10,
	})

	want := []string{ReasonTooShort, ReasonAggregation, ReasonVideoPrimary}
	if !reflect.DeepEqual(flags.Reasons, want) {
		t.Errorf("Expected all three reasons %v, got %v", want, flags.Reasons)
	}
}

func TestFilterMissingWordCountTriggersLengthRule(t *testing.T) {
	filter := testFilter()

	// Absent wordCount degrades to 0 rather than failing the batch
	flags := filter.Evaluate(Item{Title: "No count"})
	if !flags.SkipSummary {
		t.Error("Zero word count must trip the length rule")
	}
}

func TestFilterDeterminism(t *testing.T) {
	filter := testFilter()
	item := Item{Title: "Daily Digest", WordCount: 10}

	first := filter.Evaluate(item)
	second := filter.Evaluate(item)

	if first.SkipSummary != second.SkipSummary || !reflect.DeepEqual(first.Reasons, second.Reasons) {
		t.Error("Evaluation must be deterministic for an unchanged item")
	}
}

func TestRunQualityFilterApplyArchivesAndIsIdempotent(t *testing.T) {
	store := NewStore(storage.NewLocal(t.TempDir()), 14)
	filter := testFilter()
	ctx := context.Background()

	batch := []Incoming{
		{Title: "T1", Link: "http://a", Content: "short", WordCount: 50, PubDate: time.Now()},
		{Title: "Solid analysis", Link: "http://b", WordCount: 900, PubDate: time.Now()},
	}
	if _, err := store.Merge(ctx, "s", batch); err != nil {
		t.Fatal(err)
	}

	report, err := store.RunQualityFilter(ctx, "s", filter, true)
	if err != nil {
		t.Fatal(err)
	}

	if report.Archived != 1 {
		t.Errorf("Expected 1 forced archive, got %d", report.Archived)
	}
	if report.ReasonCounts[ReasonTooShort] != 1 {
		t.Errorf("Expected 1 %s, got %v", ReasonTooShort, report.ReasonCounts)
	}

	flagged, err := store.Get(ctx, "s", ItemID("http://a"))
	if err != nil {
		t.Fatal(err)
	}
	if flagged.Status != StatusArchived {
		t.Errorf("Flagged item must be archived, got %s", flagged.Status)
	}
	if flagged.Quality == nil || !flagged.Quality.SkipSummary {
		t.Error("Quality flags must be attached in apply mode")
	}

	clean, err := store.Get(ctx, "s", ItemID("http://b"))
	if err != nil {
		t.Fatal(err)
	}
	if clean.Status != StatusNew {
		t.Errorf("Unflagged item must keep its status, got %s", clean.Status)
	}

	// Second apply over the unchanged collection makes zero transitions
	report, err = store.RunQualityFilter(ctx, "s", filter, true)
	if err != nil {
		t.Fatal(err)
	}
	if report.Archived != 0 {
		t.Errorf("Re-running apply must be a no-op, archived %d", report.Archived)
	}
}

func TestRunQualityFilterDryRunDoesNotPersist(t *testing.T) {
	store := NewStore(storage.NewLocal(t.TempDir()), 14)
	filter := testFilter()
	ctx := context.Background()

	if _, err := store.Merge(ctx, "s", []Incoming{
		{Title: "T1", Link: "http://a", WordCount: 50, PubDate: time.Now()},
	}); err != nil {
		t.Fatal(err)
	}

	report, err := store.RunQualityFilter(ctx, "s", filter, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Flagged) != 1 {
		t.Errorf("Dry run must still report the flagged subset, got %v", report.Flagged)
	}

	item, err := store.Get(ctx, "s", ItemID("http://a"))
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != StatusNew || item.Quality != nil {
		t.Error("Dry run must not change status or persist flags")
	}
}

// End-to-end: merge, quality apply, re-merge keeps archived status.
func TestQualityLifecycleScenario(t *testing.T) {
	store := NewStore(storage.NewLocal(t.TempDir()), 14)
	filter := NewFilter(RuleConfig{MinWordCount: 80, VideoMinWordCount: 150})
	ctx := context.Background()

	batch := []Incoming{{Title: "T1", Link: "http://a", WordCount: 50, PubDate: time.Now()}}
	if _, err := store.Merge(ctx, "s", batch); err != nil {
		t.Fatal(err)
	}

	item, err := store.Get(ctx, "s", ItemID("http://a"))
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != StatusNew {
		t.Fatalf("Expected new after merge, got %s", item.Status)
	}

	if _, err := store.RunQualityFilter(ctx, "s", filter, true); err != nil {
		t.Fatal(err)
	}

	item, err = store.Get(ctx, "s", ItemID("http://a"))
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != StatusArchived {
		t.Fatalf("Expected archived after apply, got %s", item.Status)
	}
	if !reflect.DeepEqual(item.Quality.Reasons, []string{ReasonTooShort}) {
		t.Errorf("Expected reasons [content_too_short], got %v", item.Quality.Reasons)
	}

	before := item.SyncedAt
	time.Sleep(10 * time.Millisecond)

	if _, err := store.Merge(ctx, "s", batch); err != nil {
		t.Fatal(err)
	}

	item, err = store.Get(ctx, "s", ItemID("http://a"))
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != StatusArchived {
		t.Errorf("Re-merge must keep archived status, got %s", item.Status)
	}
	if !item.SyncedAt.After(before) {
		t.Error("Re-merge must refresh SyncedAt")
	}
}

func TestLoadRuleConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quality.yml")

	content := `
min_word_count: 120
video_min_word_count: 200
aggregation_patterns:
  - "top \\d+"
video_patterns:
  - "<iframe"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadRuleConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if config.MinWordCount != 120 || config.VideoMinWordCount != 200 {
		t.Errorf("Unexpected thresholds: %+v", config)
	}
	if len(config.AggregationPatterns) != 1 {
		t.Errorf("Expected 1 aggregation pattern, got %v", config.AggregationPatterns)
	}

	// Missing file falls back to defaults
	config, err = LoadRuleConfig(filepath.Join(dir, "missing.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if config.MinWordCount != DefaultRuleConfig().MinWordCount {
		t.Error("Missing rules file must fall back to defaults")
	}
}

func TestCountWords(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    int
	}{
		{"plain english", "<p>three short words</p>", 3},
		{"strips markup", `<div><script>var x=1;</script><p>hello world</p></div>`, 2},
		{"cjk per rune", "<p>科技日报</p>", 4},
		{"empty", "", 0},
	}

	for _, tc := range cases {
		if got := CountWords(tc.content); got != tc.want {
			t.Errorf("%s: CountWords = %d, want %d", tc.name, got, tc.want)
		}
	}
}
