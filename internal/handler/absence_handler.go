package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/busca-ativa-api/internal/models"
	"github.com/noah-isme/busca-ativa-api/internal/process"
	"github.com/noah-isme/busca-ativa-api/internal/service"
	appErrors "github.com/noah-isme/busca-ativa-api/pkg/errors"
	"github.com/noah-isme/busca-ativa-api/pkg/response"
)

type absenceService interface {
	List(ctx context.Context, req service.AbsenceActionListRequest) ([]models.AbsenceAction, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.AbsenceAction, error)
	Create(ctx context.Context, input models.AbsenceAction) (*models.AbsenceAction, error)
	Update(ctx context.Context, id string, patch service.Patch) (*models.AbsenceAction, error)
	Delete(ctx context.Context, id string) (*process.DeletionPlan, error)
	Requirements(t models.AbsenceActionType, firstInCycle bool) service.RequirementsView
	EvaluateRequirements(ctx context.Context, form models.AbsenceAction) (*service.RequirementsEvaluation, error)
}

type absenceReportService interface {
	AbsenceReport(ctx context.Context, filter models.AbsenceReportFilter, format models.ExportFormat) (*service.ExportFile, error)
}

// AbsenceHandler exposes the absence follow-up endpoints.
type AbsenceHandler struct {
	service absenceService
	reports absenceReportService
}

// NewAbsenceHandler builds a new handler.
func NewAbsenceHandler(svc absenceService, reports absenceReportService) *AbsenceHandler {
	return &AbsenceHandler{service: svc, reports: reports}
}

// List godoc
// @Summary List absence actions
// @Tags AbsenceActions
// @Produce json
// @Param student_id query string false "Student ID"
// @Param process_id query string false "Process ID"
// @Param action_type query string false "Comma separated step types"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /absence-actions [get]
func (h *AbsenceHandler) List(c *gin.Context) {
	req := service.AbsenceActionListRequest{
		StudentID:   c.Query("student_id"),
		ProcessID:   c.Query("process_id"),
		ActionTypes: queryList(c, "action_type"),
	}
	var err error
	if req.Page, err = queryInt(c, "page", 1); err != nil {
		response.Error(c, err)
		return
	}
	if req.PageSize, err = queryInt(c, "limit", 50); err != nil {
		response.Error(c, err)
		return
	}
	actions, pagination, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, actions, pagination)
}

// Get godoc
// @Summary Get absence action
// @Tags AbsenceActions
// @Produce json
// @Param id path string true "Action ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /absence-actions/{id} [get]
func (h *AbsenceHandler) Get(c *gin.Context) {
	action, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, action, nil)
}

// Create godoc
// @Summary Register the next step of a student's absence process
// @Description process_id is optional. Naming a concluded cycle returns PROCESS_CONCLUDED.
// @Tags AbsenceActions
// @Accept json
// @Produce json
// @Param payload body models.AbsenceAction true "Absence action"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /absence-actions [post]
func (h *AbsenceHandler) Create(c *gin.Context) {
	var input models.AbsenceAction
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid absence action payload"))
		return
	}
	action, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, action)
}

// Update godoc
// @Summary Patch an absence action
// @Description JSON merge patch. A null value clears the field.
// @Tags AbsenceActions
// @Accept json
// @Produce json
// @Param id path string true "Action ID"
// @Param payload body object true "Merge patch"
// @Success 200 {object} response.Envelope
// @Router /absence-actions/{id} [patch]
func (h *AbsenceHandler) Update(c *gin.Context) {
	var patch service.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid merge patch"))
		return
	}
	action, err := h.service.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, action, nil)
}

// Delete godoc
// @Summary Delete an absence action
// @Description Deleting an encaminhamento_ct also deletes the analise of its process.
// @Tags AbsenceActions
// @Produce json
// @Param id path string true "Action ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /absence-actions/{id} [delete]
func (h *AbsenceHandler) Delete(c *gin.Context) {
	plan, err := h.service.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted_ids": plan.IDs()}, nil)
}

// Requirements godoc
// @Summary Field requirements of a step type
// @Tags AbsenceActions
// @Produce json
// @Param action_type query string true "Step type"
// @Param first_in_cycle query bool false "Whether the step opens a cycle"
// @Success 200 {object} response.Envelope
// @Router /absence-actions/requirements [get]
func (h *AbsenceHandler) Requirements(c *gin.Context) {
	actionType := models.AbsenceActionType(c.Query("action_type"))
	if !actionType.Valid() {
		response.Error(c, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "invalid action type"),
			map[string]interface{}{"fields": map[string]string{"action_type": "action_type"}},
		))
		return
	}
	first := false
	if raw := c.Query("first_in_cycle"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, invalidQuery(err, "first_in_cycle"))
			return
		}
		first = parsed
	}
	response.JSON(c, http.StatusOK, h.service.Requirements(actionType, first), nil)
}

// EvaluateRequirements godoc
// @Summary Evaluate a form being filled in
// @Description Returns active and missing fields for the submitted state, with deactivated sub-fields blanked.
// @Tags AbsenceActions
// @Accept json
// @Produce json
// @Param payload body models.AbsenceAction true "Form state"
// @Success 200 {object} response.Envelope
// @Router /absence-actions/requirements [post]
func (h *AbsenceHandler) EvaluateRequirements(c *gin.Context) {
	var form models.AbsenceAction
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form payload"))
		return
	}
	evaluation, err := h.service.EvaluateRequirements(c.Request.Context(), form)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evaluation, nil)
}

// Export godoc
// @Summary Export the absence process report
// @Tags AbsenceActions
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param student_id query string false "Student ID"
// @Param class_name query string false "Class"
// @Param status query string false "open, pending or concluded"
// @Success 200 {file} file
// @Router /absence-actions/export [get]
func (h *AbsenceHandler) Export(c *gin.Context) {
	var filter models.AbsenceReportFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report filter"))
		return
	}
	format := models.ExportFormat(c.DefaultQuery("format", string(models.ExportFormatCSV)))
	file, err := h.reports.AbsenceReport(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
