package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/busca-ativa-api/internal/models"
	"github.com/noah-isme/busca-ativa-api/internal/service"
	"github.com/noah-isme/busca-ativa-api/pkg/response"
)

type studentService interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Student, error)
}

type studentProcessService interface {
	ProcessInfo(ctx context.Context, studentID string) (*service.ProcessOverview, error)
	Processes(ctx context.Context, studentID string) ([]service.ProcessView, error)
}

type occurrenceSummaryService interface {
	Summary(ctx context.Context, studentID string) (*models.OccurrenceSummary, error)
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students    studentService
	absences    studentProcessService
	occurrences occurrenceSummaryService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService, absences studentProcessService, occurrences occurrenceSummaryService) *StudentHandler {
	return &StudentHandler{students: students, absences: absences, occurrences: occurrences}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name or enrollment"
// @Param class_name query string false "Filter by class"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "full_name, enrollment, class_name or created_at"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var filter models.StudentFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.ClassName = c.Query("class_name")
	switch c.Query("active") {
	case "true":
		v := true
		filter.Active = &v
	case "false":
		v := false
		filter.Active = &v
	}
	var err error
	if filter.Page, err = queryInt(c, "page", 1); err != nil {
		response.Error(c, err)
		return
	}
	if filter.PageSize, err = queryInt(c, "limit", 20); err != nil {
		response.Error(c, err)
		return
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// AbsenceProcess godoc
// @Summary Current absence follow-up cycle of a student
// @Description Returns the open cycle, the next expected step and whether the last step is pending.
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/absence-process [get]
func (h *StudentHandler) AbsenceProcess(c *gin.Context) {
	overview, err := h.absences.ProcessInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// AbsenceProcesses godoc
// @Summary All absence follow-up cycles of a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/absence-processes [get]
func (h *StudentHandler) AbsenceProcesses(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.students.Get(ctx, id); err != nil {
		response.Error(c, err)
		return
	}
	views, err := h.absences.Processes(ctx, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil, map[string]interface{}{"total": len(views)})
}

// OccurrenceSummary godoc
// @Summary Occurrence counters of a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/occurrences/summary [get]
func (h *StudentHandler) OccurrenceSummary(c *gin.Context) {
	summary, err := h.occurrences.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
