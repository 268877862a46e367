package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"newsroom/app/ingest"
)

type QualityCheckTask struct {
	Task
	engine *ingest.Engine
}

func NewQualityCheckTask(sourceID string, engine *ingest.Engine) *QualityCheckTask {
	return &QualityCheckTask{
		Task:   NewTask(TaskTypeQualityCheck, sourceID),
		engine: engine,
	}
}

func (t *QualityCheckTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	reports, err := t.engine.RunQualityFilter(ctx, t.SourceID, true)
	if err != nil {
		return fmt.Errorf("failed to run quality filter: %w", err)
	}

	flagged := 0
	archived := 0
	for _, report := range reports {
		if report.Error != "" {
			return fmt.Errorf("failed to run quality filter for %s: %s", report.SourceID, report.Error)
		}
		flagged += len(report.Flagged)
		archived += report.Archived
	}

	slog.Info("Task completed",
		"type", "QualityCheck",
		"source", t.SourceID,
		"duration", t.GetDuration(),
		"flagged", flagged,
		"archived", archived)

	return nil
}
