package source

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("source not found")
	ErrDuplicateSource = errors.New("source with this URL already exists")
)

// Source is a configured origin of content items.
type Source struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	URL      string    `json:"url"`
	Language string    `json:"language"` // "zh" or "en"
	Category string    `json:"category"`
	Enabled  bool      `json:"enabled"`
	AddedAt  time.Time `json:"addedAt"`
}

// NewSource carries the fields accepted when registering a source.
type NewSource struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Language string `json:"language"`
	Category string `json:"category"`
}

// Update carries the mutable fields of a source; nil means "leave as is".
// Anything outside this allow-list is ignored at the API boundary.
type Update struct {
	Name     *string `json:"name"`
	URL      *string `json:"url"`
	Language *string `json:"language"`
	Category *string `json:"category"`
	Enabled  *bool   `json:"enabled"`
}
