package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/busca-ativa-api/internal/models"
	"github.com/noah-isme/busca-ativa-api/internal/service"
	appErrors "github.com/noah-isme/busca-ativa-api/pkg/errors"
	"github.com/noah-isme/busca-ativa-api/pkg/response"
)

type occurrenceService interface {
	List(ctx context.Context, req service.OccurrenceListRequest) ([]models.Occurrence, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Occurrence, error)
	Create(ctx context.Context, req service.OccurrenceRequest) (*models.Occurrence, error)
	Update(ctx context.Context, id string, req service.OccurrenceRequest) (*models.Occurrence, error)
	Delete(ctx context.Context, id string) error
}

// OccurrenceHandler exposes disciplinary occurrence endpoints.
type OccurrenceHandler struct {
	service occurrenceService
}

// NewOccurrenceHandler builds a new handler.
func NewOccurrenceHandler(svc occurrenceService) *OccurrenceHandler {
	return &OccurrenceHandler{service: svc}
}

// List godoc
// @Summary List occurrences
// @Tags Occurrences
// @Produce json
// @Param student_id query string false "Student ID"
// @Param date_from query string false "Start date (YYYY-MM-DD or RFC3339)"
// @Param date_to query string false "End date (YYYY-MM-DD or RFC3339)"
// @Param severity query string false "Comma separated severities"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /occurrences [get]
func (h *OccurrenceHandler) List(c *gin.Context) {
	req := service.OccurrenceListRequest{
		StudentID:  c.Query("student_id"),
		Severities: queryList(c, "severity"),
	}
	var err error
	if req.DateFrom, err = queryDate(c, "date_from"); err != nil {
		response.Error(c, err)
		return
	}
	if req.DateTo, err = queryDate(c, "date_to"); err != nil {
		response.Error(c, err)
		return
	}
	if req.Page, err = queryInt(c, "page", 1); err != nil {
		response.Error(c, err)
		return
	}
	if req.PageSize, err = queryInt(c, "limit", 20); err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get occurrence
// @Tags Occurrences
// @Produce json
// @Param id path string true "Occurrence ID"
// @Success 200 {object} response.Envelope
// @Router /occurrences/{id} [get]
func (h *OccurrenceHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Register an occurrence
// @Tags Occurrences
// @Accept json
// @Produce json
// @Param payload body service.OccurrenceRequest true "Occurrence payload"
// @Success 201 {object} response.Envelope
// @Router /occurrences [post]
func (h *OccurrenceHandler) Create(c *gin.Context) {
	var req service.OccurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid occurrence payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Replace an occurrence
// @Tags Occurrences
// @Accept json
// @Produce json
// @Param id path string true "Occurrence ID"
// @Param payload body service.OccurrenceRequest true "Occurrence payload"
// @Success 200 {object} response.Envelope
// @Router /occurrences/{id} [put]
func (h *OccurrenceHandler) Update(c *gin.Context) {
	var req service.OccurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid occurrence payload"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete an occurrence
// @Tags Occurrences
// @Param id path string true "Occurrence ID"
// @Success 204
// @Router /occurrences/{id} [delete]
func (h *OccurrenceHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
