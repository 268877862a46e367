package fetch

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"newsroom/app/feed"
	"newsroom/app/source"
)

// Client is the external fetch collaborator contract. Results are not
// assumed sorted or deduplicated; errors are per-source and non-fatal to a
// batch.
type Client interface {
	Fetch(ctx context.Context, src source.Source, cutoff time.Time) ([]feed.Incoming, error)
}

var _ Client = (*RSSClient)(nil)

// RSSClient fetches a source's feed over HTTP and normalizes it with gofeed.
type RSSClient struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	userAgent  string
	timeout    time.Duration
}

func NewRSSClient(timeout time.Duration, userAgent string) *RSSClient {
	return &RSSClient{
		httpClient: &http.Client{},
		parser:     gofeed.NewParser(),
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

func (c *RSSClient) Fetch(ctx context.Context, src source.Source, cutoff time.Time) ([]feed.Incoming, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	parsed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]feed.Incoming, 0, len(parsed.Items))
	for _, raw := range parsed.Items {
		if raw == nil || raw.Link == "" {
			continue
		}

		var pubDate time.Time
		if raw.PublishedParsed != nil {
			pubDate = raw.PublishedParsed.UTC()
		} else if raw.UpdatedParsed != nil {
			pubDate = raw.UpdatedParsed.UTC()
		}

		if !cutoff.IsZero() && !pubDate.IsZero() && pubDate.Before(cutoff) {
			continue
		}

		content := cmp.Or(raw.Content, raw.Description)
		items = append(items, feed.Incoming{
			Title:     raw.Title,
			Link:      raw.Link,
			Content:   content,
			PubDate:   pubDate,
			WordCount: feed.CountWords(content),
		})
	}

	return items, nil
}

// PlainText reduces raw item HTML to readable text for summarization
// payloads. Falls back to the raw string when extraction fails.
func PlainText(content, link string) string {
	pageURL, err := url.Parse(link)
	if err != nil {
		pageURL = nil
	}

	article, err := readability.FromReader(strings.NewReader(content), pageURL)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return content
	}

	return strings.TrimSpace(article.TextContent)
}
