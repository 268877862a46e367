package storage

import (
	"context"
)

// Storage provides uniform access to named byte-blobs. Keys are POSIX-style
// relative paths (e.g. "feeds/hacker-news/items.json").
//
// Read returns (nil, nil) when the key does not exist; a missing blob is
// never an error. Write failures propagate to the caller, the storage layer
// does not retry.
type Storage interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	DeleteTree(ctx context.Context, prefix string) error
}
