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

type studentServiceMock struct {
	lastFilter models.StudentFilter
}

func (m *studentServiceMock) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.Student{{ID: "s1"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (m *studentServiceMock) Get(ctx context.Context, id string) (*models.Student, error) {
	if id != "s1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return &models.Student{ID: id, FullName: "Ana Souza"}, nil
}

type processServiceMock struct {
	processCalls int
}

func (m *processServiceMock) ProcessInfo(ctx context.Context, studentID string) (*service.ProcessOverview, error) {
	return &service.ProcessOverview{StudentID: studentID, ProcessID: "p1", NextAction: models.ActionAttempt2}, nil
}

func (m *processServiceMock) Processes(ctx context.Context, studentID string) ([]service.ProcessView, error) {
	m.processCalls++
	return []service.ProcessView{{ProcessID: "p0", Concluded: true}, {ProcessID: "p1"}}, nil
}

type summaryServiceMock struct{}

func (summaryServiceMock) Summary(ctx context.Context, studentID string) (*models.OccurrenceSummary, error) {
	return &models.OccurrenceSummary{StudentID: studentID, Total: 2, MinorCount: 2}, nil
}

func TestStudentHandlerListFilters(t *testing.T) {
	students := &studentServiceMock{}
	handler := NewStudentHandler(students, &processServiceMock{}, summaryServiceMock{})

	c, w := newTestContext(http.MethodGet, "/students?search=%20ana%20&class_name=7A&active=false&limit=5&sort=enrollment&order=desc", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ana", students.lastFilter.Search)
	assert.Equal(t, "7A", students.lastFilter.ClassName)
	require.NotNil(t, students.lastFilter.Active)
	assert.False(t, *students.lastFilter.Active)
	assert.Equal(t, 1, students.lastFilter.Page)
	assert.Equal(t, 5, students.lastFilter.PageSize)
	assert.Equal(t, "enrollment", students.lastFilter.SortBy)
}

func TestStudentHandlerAbsenceProcess(t *testing.T) {
	handler := NewStudentHandler(&studentServiceMock{}, &processServiceMock{}, summaryServiceMock{})

	c, w := newTestContext(http.MethodGet, "/students/s1/absence-process", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.AbsenceProcess(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"next_action":"tentativa_2"`)
}

func TestStudentHandlerAbsenceProcessesUnknownStudent(t *testing.T) {
	processes := &processServiceMock{}
	handler := NewStudentHandler(&studentServiceMock{}, processes, summaryServiceMock{})

	c, w := newTestContext(http.MethodGet, "/students/ghost/absence-processes", nil)
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}
	handler.AbsenceProcesses(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, processes.processCalls)

	c, w = newTestContext(http.MethodGet, "/students/s1/absence-processes", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.AbsenceProcesses(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"meta":{"total":2}`)
}

func TestStudentHandlerOccurrenceSummary(t *testing.T) {
	handler := NewStudentHandler(&studentServiceMock{}, &processServiceMock{}, summaryServiceMock{})

	c, w := newTestContext(http.MethodGet, "/students/s1/occurrences/summary", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.OccurrenceSummary(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"minor_count":2`)
}
