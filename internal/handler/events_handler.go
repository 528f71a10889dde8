package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/busca-ativa-api/internal/models"
	appErrors "github.com/noah-isme/busca-ativa-api/pkg/errors"
	"github.com/noah-isme/busca-ativa-api/pkg/response"
)

type eventSubscriber interface {
	Subscribe(types ...models.RecordType) (<-chan models.RecordEvent, func())
}

// EventsHandler streams record change notifications as server-sent events.
type EventsHandler struct {
	events    eventSubscriber
	heartbeat time.Duration
}

// NewEventsHandler builds the handler. heartbeat defaults to 25s.
func NewEventsHandler(events eventSubscriber, heartbeat time.Duration) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &EventsHandler{events: events, heartbeat: heartbeat}
}

// Stream godoc
// @Summary Subscribe to record changes
// @Description Each event names the collection that changed; clients refetch it.
// @Tags Events
// @Produce text/event-stream
// @Param types query string false "Comma separated record types (absence_action, occurrence)"
// @Success 200 {string} string "event stream"
// @Router /events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	var types []models.RecordType
	for _, raw := range queryList(c, "types") {
		t := models.RecordType(raw)
		if t != models.RecordAbsenceAction && t != models.RecordOccurrence {
			response.Error(c, appErrors.WithDetails(
				appErrors.Clone(appErrors.ErrValidation, "unknown record type "+raw),
				map[string]interface{}{"fields": map[string]string{"types": "oneof"}},
			))
			return
		}
		types = append(types, t)
	}

	events, release := h.events.Subscribe(types...)
	defer release()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(event.RecordType), event)
			return true
		case now := <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"at": now.UTC()})
			return true
		}
	})
}
