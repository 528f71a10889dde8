package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/busca-ativa-api/internal/models"
)

// streamRecorder satisfies http.CloseNotifier, which gin's Stream requires.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool {
	return r.closed
}

type subscriberStub struct {
	events   []models.RecordEvent
	types    []models.RecordType
	released bool
}

func (s *subscriberStub) Subscribe(types ...models.RecordType) (<-chan models.RecordEvent, func()) {
	s.types = types
	ch := make(chan models.RecordEvent, len(s.events))
	for _, event := range s.events {
		ch <- event
	}
	close(ch)
	return ch, func() { s.released = true }
}

func TestEventsHandlerStreamsUntilChannelCloses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &subscriberStub{events: []models.RecordEvent{
		{ID: "e1", RecordType: models.RecordAbsenceAction, Change: models.ChangeCreated, RecordIDs: []string{"a1"}},
		{ID: "e2", RecordType: models.RecordOccurrence, Change: models.ChangeDeleted, RecordIDs: []string{"o1"}},
	}}
	handler := NewEventsHandler(stub, time.Hour)

	w := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/events?types=absence_action,occurrence", nil)

	handler.Stream(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, []models.RecordType{models.RecordAbsenceAction, models.RecordOccurrence}, stub.types)
	body := w.Body.String()
	assert.Contains(t, body, "event:absence_action")
	assert.Contains(t, body, `"record_ids":["a1"]`)
	assert.Contains(t, body, "event:occurrence")
	assert.True(t, stub.released)
}

func TestEventsHandlerRejectsUnknownType(t *testing.T) {
	stub := &subscriberStub{}
	handler := NewEventsHandler(stub, 0)

	c, w := newTestContext(http.MethodGet, "/events?types=grades", nil)
	handler.Stream(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, stub.released)
}
