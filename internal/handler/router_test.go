package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	absences := &absenceServiceMock{}
	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), Handlers{
		Students:    NewStudentHandler(&studentServiceMock{}, &processServiceMock{}, summaryServiceMock{}),
		Absences:    NewAbsenceHandler(absences, &reportServiceMock{}),
		Occurrences: NewOccurrenceHandler(&occurrenceServiceMock{}),
		Events:      NewEventsHandler(&subscriberStub{}, 0),
		Metrics:     NewMetricsHandler(nil, nil),
	})

	routes := make(map[string]bool)
	for _, route := range router.Routes() {
		routes[route.Method+" "+route.Path] = true
	}
	for _, want := range []string{
		"GET /api/v1/students/:id/absence-process",
		"GET /api/v1/absence-actions/requirements",
		"PATCH /api/v1/absence-actions/:id",
		"DELETE /api/v1/occurrences/:id",
		"GET /api/v1/events",
		"GET /api/v1/ready",
	} {
		assert.True(t, routes[want], want)
	}

	// the static segment wins over :id
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/absence-actions/requirements?action_type=visita", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"action_type":"visita"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/absence-actions/a1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
