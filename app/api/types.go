package api

import (
	"newsroom/app/feed"
	"newsroom/app/ingest"
	"newsroom/app/published"
	"newsroom/app/source"
	"newsroom/app/tasks"
)

type Handler struct {
	registry  *source.Registry
	items     *feed.Store
	records   *published.Store
	engine    *ingest.Engine
	scheduler tasks.TaskSchedulerInterface
}
