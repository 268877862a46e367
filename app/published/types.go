package published

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("published record not found")

// ReadOriginal is the generated recommendation for reading the full article.
type ReadOriginal struct {
	Score         int    `json:"score"`
	Reason        string `json:"reason"`
	WhoShouldRead string `json:"whoShouldRead"`
}

// Item is one published entry: the original item's identity plus the
// generated editorial fields.
type Item struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Link          string       `json:"link"`
	EditorNote    string       `json:"editorNote"`
	KeyPoints     []string     `json:"keyPoints"`
	ReadOriginal  ReadOriginal `json:"readOriginal"`
	RegeneratedAt *time.Time   `json:"regeneratedAt,omitempty"`
}

// ItemUpdate carries the regenerated fields for one published item.
type ItemUpdate struct {
	EditorNote   string       `json:"editorNote"`
	KeyPoints    []string     `json:"keyPoints"`
	ReadOriginal ReadOriginal `json:"readOriginal"`
}

// Record is the per-source, per-date, per-language published output,
// decoupled from the working item collection.
type Record struct {
	Items        []Item    `json:"items"`
	PublishedAt  time.Time `json:"publishedAt"`
	LastModified time.Time `json:"lastModified"`
}
