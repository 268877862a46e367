package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"newsroom/app/feed"
	"newsroom/app/ingest"
	"newsroom/app/published"
	"newsroom/app/source"
	"newsroom/app/tasks"
)

func NewHandler(registry *source.Registry, items *feed.Store, records *published.Store,
	engine *ingest.Engine, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		registry:  registry,
		items:     items,
		records:   records,
		engine:    engine,
		scheduler: scheduler,
	}
}

// respondError maps domain errors onto HTTP status codes. Unknown errors are
// never echoed to the client.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, source.ErrNotFound), errors.Is(err, feed.ErrNotFound), errors.Is(err, published.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, source.ErrDuplicateSource):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, feed.ErrIllegalTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		slog.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if sources, err := h.registry.List(c.Request.Context()); err == nil {
		enabled := 0
		for _, src := range sources {
			if src.Enabled {
				enabled++
			}
		}
		health["sources"] = len(sources)
		health["enabled_sources"] = enabled
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListSources(c *gin.Context) {
	sources, err := h.registry.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"total":   len(sources),
	})
}

func (h *Handler) APIAddSource(c *gin.Context) {
	var req source.NewSource
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	src, err := h.registry.Add(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, src)
}

func (h *Handler) APIGetSource(c *gin.Context) {
	src, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, src)
}

func (h *Handler) APIUpdateSource(c *gin.Context) {
	var upd source.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	src, err := h.registry.Update(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, src)
}

func (h *Handler) APIToggleSource(c *gin.Context) {
	src, err := h.registry.Toggle(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, src)
}

func (h *Handler) APIDeleteSource(c *gin.Context) {
	purge := c.Query("purge") == "true"

	if err := h.registry.Delete(c.Request.Context(), c.Param("id"), purge); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id"), "purged": purge})
}

func (h *Handler) APIListItems(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.registry.Get(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	items, err := h.items.Items(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	if status := c.Query("status"); status != "" {
		want := feed.Status(status)
		if !want.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status: " + status})
			return
		}
		filtered := make([]feed.Item, 0, len(items))
		for _, item := range items {
			if item.Status == want {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"source": id,
		"items":  items,
		"total":  len(items),
	})
}

type statusUpdateRequest struct {
	Items  []feed.ItemRef `json:"items"`
	Status feed.Status    `json:"status"`
}

func (h *Handler) APIUpdateItemStatus(c *gin.Context) {
	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if !req.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status: " + string(req.Status)})
		return
	}
	if len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No items given"})
		return
	}

	results := h.items.UpdateStatus(c.Request.Context(), req.Items, req.Status)

	succeeded := 0
	for _, res := range results {
		if res.OK {
			succeeded++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"results":   results,
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
	})
}

func (h *Handler) APIFetchAll(c *gin.Context) {
	results, err := h.engine.FetchAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": results,
		"total":   len(results),
	})
}

func (h *Handler) APIFetchSource(c *gin.Context) {
	result, err := h.engine.FetchOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// APIRefreshSource enqueues a background fetch and quality check for one
// source instead of running them synchronously on the request goroutine.
func (h *Handler) APIRefreshSource(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.registry.Get(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	fetchTask := tasks.NewFetchSourceTask(id, h.engine)
	if err := h.scheduler.EnqueueTask(fetchTask); err != nil {
		slog.Error("Error enqueueing fetch task", "source", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue fetch task",
			"details": err.Error(),
		})
		return
	}

	qualityTask := tasks.NewQualityCheckTask(id, h.engine)
	if err := h.scheduler.EnqueueTask(qualityTask); err != nil {
		slog.Error("Error enqueueing quality task", "source", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue quality task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"source": id,
		"tasks": []gin.H{
			{"id": fetchTask.ID, "type": fetchTask.Type},
			{"id": qualityTask.ID, "type": qualityTask.Type},
		},
	})
}

func (h *Handler) APIRunQualityFilter(c *gin.Context) {
	apply := c.Query("apply") == "true"
	sourceID := c.Query("source")

	reports, err := h.engine.RunQualityFilter(c.Request.Context(), sourceID, apply)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"apply":   apply,
		"reports": reports,
	})
}

func (h *Handler) APIPublish(c *gin.Context) {
	var req struct {
		Items []ingest.PublishItem `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No items given"})
		return
	}

	results := h.engine.Publish(c.Request.Context(), req.Items)

	succeeded := 0
	for _, res := range results {
		if res.OK {
			succeeded++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"results":   results,
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
	})
}

func (h *Handler) APIDeliver(c *gin.Context) {
	var req struct {
		Date     string `json:"date"`
		Language string `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.Date == "" || req.Language == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date and language are required"})
		return
	}

	dispatchID, err := h.engine.Deliver(c.Request.Context(), c.Param("id"), req.Date, req.Language)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source":     c.Param("id"),
		"date":       req.Date,
		"language":   req.Language,
		"dispatchId": dispatchID,
	})
}

func (h *Handler) APIPublishedDates(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.registry.Get(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	dates, err := h.records.Dates(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source": id,
		"dates":  dates,
	})
}

func (h *Handler) APIGetPublished(c *gin.Context) {
	record, err := h.records.Get(c.Request.Context(), c.Param("id"), c.Param("date"), c.Param("lang"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *Handler) APIRegenerateItem(c *gin.Context) {
	var upd published.ItemUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	item, err := h.records.UpdateItem(c.Request.Context(),
		c.Param("id"), c.Param("date"), c.Param("lang"), c.Param("itemId"), upd)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

func (h *Handler) APIDeletePublishedItem(c *gin.Context) {
	err := h.records.DeleteItem(c.Request.Context(),
		c.Param("id"), c.Param("date"), c.Param("lang"), c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("itemId")})
}
