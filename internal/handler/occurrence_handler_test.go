package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/busca-ativa-api/internal/models"
	"github.com/noah-isme/busca-ativa-api/internal/service"
	appErrors "github.com/noah-isme/busca-ativa-api/pkg/errors"
)

type occurrenceServiceMock struct {
	lastList   service.OccurrenceListRequest
	lastReq    service.OccurrenceRequest
	lastID     string
	deleteErr  error
	listCalled bool
}

func (m *occurrenceServiceMock) List(ctx context.Context, req service.OccurrenceListRequest) ([]models.Occurrence, *models.Pagination, error) {
	m.listCalled = true
	m.lastList = req
	return []models.Occurrence{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (m *occurrenceServiceMock) Get(ctx context.Context, id string) (*models.Occurrence, error) {
	return &models.Occurrence{ID: id}, nil
}

func (m *occurrenceServiceMock) Create(ctx context.Context, req service.OccurrenceRequest) (*models.Occurrence, error) {
	m.lastReq = req
	return &models.Occurrence{ID: "o1", StudentID: req.StudentID}, nil
}

func (m *occurrenceServiceMock) Update(ctx context.Context, id string, req service.OccurrenceRequest) (*models.Occurrence, error) {
	m.lastID = id
	m.lastReq = req
	return &models.Occurrence{ID: id}, nil
}

func (m *occurrenceServiceMock) Delete(ctx context.Context, id string) error {
	m.lastID = id
	return m.deleteErr
}

func TestOccurrenceHandlerListParsesDates(t *testing.T) {
	mockSvc := &occurrenceServiceMock{}
	handler := NewOccurrenceHandler(mockSvc)

	c, w := newTestContext(http.MethodGet, "/occurrences?student_id=s1&date_from=2024-03-01&date_to=2024-03-31T23:59:59Z&severity=grave,leve", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastList.DateFrom)
	assert.Equal(t, 1, mockSvc.lastList.DateFrom.Day())
	require.NotNil(t, mockSvc.lastList.DateTo)
	assert.Equal(t, 23, mockSvc.lastList.DateTo.Hour())
	assert.Equal(t, []string{"grave", "leve"}, mockSvc.lastList.Severities)
}

func TestOccurrenceHandlerListRejectsBadDate(t *testing.T) {
	mockSvc := &occurrenceServiceMock{}
	handler := NewOccurrenceHandler(mockSvc)

	c, w := newTestContext(http.MethodGet, "/occurrences?date_from=03/01/2024", nil)
	handler.List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.listCalled)
	details, _ := decodeError(t, w)["details"].(map[string]interface{})
	assert.Contains(t, details["fields"], "date_from")
}

func TestOccurrenceHandlerCreate(t *testing.T) {
	mockSvc := &occurrenceServiceMock{}
	handler := NewOccurrenceHandler(mockSvc)

	body := []byte(`{"student_id":"s1","occurred_at":"2024-03-05T10:00:00Z","category":"conduta","severity":"leve","description":"Conversa em sala"}`)
	c, w := newTestContext(http.MethodPost, "/occurrences", body)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "leve", mockSvc.lastReq.Severity)
	assert.Equal(t, 5, mockSvc.lastReq.OccurredAt.Day())
}

func TestOccurrenceHandlerUpdateAndDelete(t *testing.T) {
	mockSvc := &occurrenceServiceMock{}
	handler := NewOccurrenceHandler(mockSvc)

	c, w := newTestContext(http.MethodPut, "/occurrences/o1", []byte(`{"student_id":"s1","severity":"grave"}`))
	c.Params = gin.Params{{Key: "id", Value: "o1"}}
	handler.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "o1", mockSvc.lastID)

	c, w = newTestContext(http.MethodDelete, "/occurrences/o1", nil)
	c.Params = gin.Params{{Key: "id", Value: "o1"}}
	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)

	mockSvc.deleteErr = appErrors.Clone(appErrors.ErrNotFound, "occurrence not found")
	c, w = newTestContext(http.MethodDelete, "/occurrences/o9", nil)
	c.Params = gin.Params{{Key: "id", Value: "o9"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
