package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("item not found")
	ErrIllegalTransition = errors.New("illegal status transition")
)

// Status is the editorial lifecycle stage of an item.
type Status string

const (
	StatusNew       Status = "new"
	StatusPending   Status = "pending"
	StatusQueued    Status = "queued"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusPending, StatusQueued, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// transitions holds the legal outbound edges of the lifecycle state machine.
// published is terminal; queued is the only state that can reach it.
var transitions = map[Status][]Status{
	StatusNew:       {StatusPending, StatusQueued, StatusArchived},
	StatusPending:   {StatusQueued, StatusArchived},
	StatusQueued:    {StatusPending, StatusPublished},
	StatusArchived:  {StatusPending},
	StatusPublished: {},
}

// CanTransition reports whether from → to is a legal editorial move.
// A transition to the current status is a no-op and always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Item is a single content unit ingested from a source.
type Item struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Link        string        `json:"link"`
	Content     string        `json:"content"` // raw HTML
	PubDate     time.Time     `json:"pubDate"`
	WordCount   int           `json:"wordCount"`
	Status      Status        `json:"status"`
	SyncedAt    time.Time     `json:"syncedAt"`
	Quality     *QualityFlags `json:"qualityFlags,omitempty"`
	PublishedAt *time.Time    `json:"publishedAt,omitempty"`
}

// QualityFlags is derived data recomputed by the quality filter; it is not
// authoritative state, but a true SkipSummary drives the forced archive.
type QualityFlags struct {
	SkipSummary bool      `json:"skipSummary"`
	Reasons     []string  `json:"reasons"`
	CheckedAt   time.Time `json:"checkedAt"`
}

// Incoming is a freshly fetched item before it has an identity or a status.
// WordCount of zero means the fetcher did not compute one; the merge derives
// it from Content.
type Incoming struct {
	Title     string
	Link      string
	Content   string
	PubDate   time.Time
	WordCount int
}

// ItemID derives the content-addressed identity of an item from its link,
// so the same article maps to the same identity across repeated fetches.
func ItemID(link string) string {
	hash := sha256.Sum256([]byte(link))
	return hex.EncodeToString(hash[:])
}
