package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"newsroom/app/ingest"
)

type FetchSourceTask struct {
	Task
	engine *ingest.Engine
}

func NewFetchSourceTask(sourceID string, engine *ingest.Engine) *FetchSourceTask {
	return &FetchSourceTask{
		Task:   NewTask(TaskTypeFetchSource, sourceID),
		engine: engine,
	}
}

func (t *FetchSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.engine.FetchOne(ctx, t.SourceID)
	if err != nil {
		return fmt.Errorf("failed to fetch source: %w", err)
	}

	slog.Info("Task completed",
		"type", "FetchSource",
		"source", t.SourceID,
		"duration", t.GetDuration(),
		"total", result.Total,
		"added", result.Added,
		"updated", result.Updated)

	return nil
}
