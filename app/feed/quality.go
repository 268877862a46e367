package feed

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Reason codes attached to flagged items.
const (
	ReasonTooShort     = "content_too_short"
	ReasonAggregation  = "aggregation_content"
	ReasonVideoPrimary = "video_primary"
)

// RuleConfig is the quality filter configuration as loaded from YAML.
type RuleConfig struct {
	MinWordCount        int      `yaml:"min_word_count"`
	VideoMinWordCount   int      `yaml:"video_min_word_count"`
	AggregationPatterns []string `yaml:"aggregation_patterns"`
	VideoPatterns       []string `yaml:"video_patterns"`
}

// DefaultRuleConfig returns the rules used when no rules file is configured.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		MinWordCount:      80,
		VideoMinWordCount: 150,
		AggregationPatterns: []string{
			`weekly\s+(digest|roundup)`,
			"daily digest",
			"link roundup",
			"top \\d+ ",
			"newsletter",
		},
		VideoPatterns: []string{
			"<iframe",
			"youtube.com/embed",
			"player.vimeo.com",
			"<video",
		},
	}
}

// LoadRuleConfig reads the rules file; a missing file falls back to the
// defaults, a malformed one is an error.
func LoadRuleConfig(path string) (RuleConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultRuleConfig(), nil
	}
	if err != nil {
		return RuleConfig{}, fmt.Errorf("failed to read quality rules: %w", err)
	}

	config := DefaultRuleConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return RuleConfig{}, fmt.Errorf("failed to parse quality rules: %w", err)
	}

	return config, nil
}

// pattern is a tagged regex-or-substring matcher, resolved once at
// configuration load instead of per evaluation.
type pattern struct {
	re     *regexp.Regexp
	substr string
}

func compilePattern(raw string) pattern {
	if re, err := regexp.Compile("(?i)" + raw); err == nil {
		return pattern{re: re}
	}
	return pattern{substr: strings.ToLower(raw)}
}

func (p pattern) match(value string) bool {
	if p.re != nil {
		return p.re.MatchString(value)
	}
	return strings.Contains(strings.ToLower(value), p.substr)
}

// Filter flags items unsuitable for summarization. Evaluate is a pure
// function; it never fails on a malformed item, missing fields degrade to
// safe defaults.
type Filter struct {
	minWordCount      int
	videoMinWordCount int
	aggregation       []pattern
	video             []pattern
}

func NewFilter(config RuleConfig) *Filter {
	f := &Filter{
		minWordCount:      config.MinWordCount,
		videoMinWordCount: config.VideoMinWordCount,
	}
	for _, raw := range config.AggregationPatterns {
		f.aggregation = append(f.aggregation, compilePattern(raw))
	}
	for _, raw := range config.VideoPatterns {
		f.video = append(f.video, compilePattern(raw))
	}
	return f
}

func (f *Filter) Evaluate(item Item) QualityFlags {
	var reasons []string

	if item.WordCount < f.minWordCount {
		reasons = append(reasons, ReasonTooShort)
	}

	for _, p := range f.aggregation {
		if p.match(item.Title) {
			reasons = append(reasons, ReasonAggregation)
			break
		}
	}

	// Video presence alone is not disqualifying, it must co-occur with low
	// text volume.
	if item.WordCount < f.videoMinWordCount {
		for _, p := range f.video {
			if p.match(item.Content) {
				reasons = append(reasons, ReasonVideoPrimary)
				break
			}
		}
	}

	return QualityFlags{
		SkipSummary: len(reasons) > 0,
		Reasons:     reasons,
		CheckedAt:   time.Now().UTC(),
	}
}

// QualityReport is the batch outcome over one source's collection. A
// non-empty Error means the source could not be evaluated at all.
type QualityReport struct {
	SourceID     string         `json:"sourceId"`
	Total        int            `json:"total"`
	Flagged      []string       `json:"flagged,omitempty"`
	ReasonCounts map[string]int `json:"reasonCounts,omitempty"`
	Archived     int            `json:"archived"`
	Error        string         `json:"error,omitempty"`
}
