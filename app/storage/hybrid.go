package storage

import (
	"context"
	"sort"
)

var _ Storage = (*Hybrid)(nil)

// Hybrid fronts a remote backend with the local one underneath it. Hybrid
// deployments accumulate historical data in both places, so reads fall back
// to local on a remote miss and List/Exists return the union of both
// backends. Writes and deletes target the remote backend only.
type Hybrid struct {
	remote Storage
	local  Storage
}

func NewHybrid(remote, local Storage) *Hybrid {
	return &Hybrid{remote: remote, local: local}
}

func (h *Hybrid) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := h.remote.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	if data != nil {
		return data, nil
	}
	return h.local.Read(ctx, key)
}

func (h *Hybrid) Write(ctx context.Context, key string, data []byte) error {
	return h.remote.Write(ctx, key, data)
}

func (h *Hybrid) Delete(ctx context.Context, key string) error {
	return h.remote.Delete(ctx, key)
}

func (h *Hybrid) List(ctx context.Context, prefix string) ([]string, error) {
	remoteNames, err := h.remote.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	localNames, err := h.local.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(remoteNames)+len(localNames))
	merged := make([]string, 0, len(remoteNames)+len(localNames))
	for _, name := range append(remoteNames, localNames...) {
		if seen[name] {
			continue
		}
		seen[name] = true
		merged = append(merged, name)
	}
	sort.Strings(merged)

	return merged, nil
}

func (h *Hybrid) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := h.remote.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return h.local.Exists(ctx, key)
}

func (h *Hybrid) DeleteTree(ctx context.Context, prefix string) error {
	return h.remote.DeleteTree(ctx, prefix)
}
