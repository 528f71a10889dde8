package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/busca-ativa-api/internal/models"
	appErrors "github.com/noah-isme/busca-ativa-api/pkg/errors"
)

type occurrenceRepository interface {
	List(ctx context.Context, filter models.OccurrenceFilter) ([]models.Occurrence, int, error)
	FindByID(ctx context.Context, id string) (*models.Occurrence, error)
	Create(ctx context.Context, item *models.Occurrence) error
	Update(ctx context.Context, item *models.Occurrence) error
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context, studentID string) (*models.OccurrenceSummary, error)
}

// OccurrenceService handles disciplinary occurrences.
type OccurrenceService struct {
	repo      occurrenceRepository
	students  studentLookup
	events    eventPublisher
	validator *validator.Validate
	sanitizer textSanitizer
	logger    *zap.Logger
}

// NewOccurrenceService constructs the service.
func NewOccurrenceService(repo occurrenceRepository, students studentLookup, events eventPublisher, validate *validator.Validate, logger *zap.Logger) *OccurrenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	registerDomainValidations(validate)
	return &OccurrenceService{
		repo:      repo,
		students:  students,
		events:    events,
		validator: validate,
		sanitizer: newTextSanitizer(),
		logger:    logger,
	}
}

// OccurrenceListRequest describes filters for listing occurrences.
type OccurrenceListRequest struct {
	StudentID  string     `json:"student_id"`
	DateFrom   *time.Time `json:"date_from"`
	DateTo     *time.Time `json:"date_to"`
	Severities []string   `json:"severities" validate:"dive,severity"`
	Page       int        `json:"page" validate:"gte=0"`
	PageSize   int        `json:"page_size" validate:"gte=0,lte=200"`
}

// OccurrenceRequest is the create and update payload.
type OccurrenceRequest struct {
	StudentID        string    `json:"student_id" validate:"required"`
	OccurredAt       time.Time `json:"occurred_at" validate:"required"`
	Category         string    `json:"category" validate:"required,max=80"`
	Severity         string    `json:"severity" validate:"required,severity"`
	Description      string    `json:"description" validate:"required,max=4000"`
	MeasuresTaken    string    `json:"measures_taken" validate:"max=4000"`
	GuardianNotified string    `json:"guardian_notified" validate:"answer"`
	CreatedBy        string    `json:"created_by" validate:"max=120"`
}

// List returns occurrences with pagination.
func (s *OccurrenceService) List(ctx context.Context, req OccurrenceListRequest) ([]models.Occurrence, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, validationError(err, "invalid filter")
	}
	if req.DateFrom != nil && req.DateTo != nil && req.DateTo.Before(*req.DateFrom) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "date_to must not precede date_from")
	}
	filter := models.OccurrenceFilter{
		StudentID: req.StudentID,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	for _, sev := range req.Severities {
		filter.Severities = append(filter.Severities, models.OccurrenceSeverity(sev))
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list occurrences")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one occurrence.
func (s *OccurrenceService) Get(ctx context.Context, id string) (*models.Occurrence, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "occurrence not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occurrence")
	}
	return item, nil
}

// Create records an occurrence.
func (s *OccurrenceService) Create(ctx context.Context, req OccurrenceRequest) (*models.Occurrence, error) {
	item, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	item.CreatedBy = s.sanitizer.clean(req.CreatedBy)
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create occurrence")
	}
	s.publish(ctx, models.ChangeCreated, item)
	return item, nil
}

// Update replaces an occurrence. created_by is kept from the stored record.
func (s *OccurrenceService) Update(ctx context.Context, id string, req OccurrenceRequest) (*models.Occurrence, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	item, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	item.ID = current.ID
	item.CreatedBy = current.CreatedBy
	item.CreatedAt = current.CreatedAt
	if err := s.repo.Update(ctx, item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "occurrence not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update occurrence")
	}
	s.publish(ctx, models.ChangeUpdated, item)
	return item, nil
}

// Delete removes an occurrence.
func (s *OccurrenceService) Delete(ctx context.Context, id string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "occurrence not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete occurrence")
	}
	s.publish(ctx, models.ChangeDeleted, current)
	return nil
}

// Summary returns per-severity counts for a student.
func (s *OccurrenceService) Summary(ctx context.Context, studentID string) (*models.OccurrenceSummary, error) {
	if _, err := s.students.Get(ctx, studentID); err != nil {
		return nil, err
	}
	summary, err := s.repo.Summary(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.OccurrenceSummary{StudentID: studentID}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise occurrences")
	}
	return summary, nil
}

func (s *OccurrenceService) build(ctx context.Context, req OccurrenceRequest) (*models.Occurrence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payload")
	}
	if _, err := s.students.Get(ctx, req.StudentID); err != nil {
		return nil, err
	}
	notified, _ := models.ParseAnswer(req.GuardianNotified)
	item := &models.Occurrence{
		StudentID:        req.StudentID,
		OccurredAt:       req.OccurredAt,
		Category:         s.sanitizer.clean(req.Category),
		Severity:         models.OccurrenceSeverity(req.Severity),
		Description:      s.sanitizer.clean(req.Description),
		MeasuresTaken:    s.sanitizer.clean(req.MeasuresTaken),
		GuardianNotified: notified,
	}
	if item.Description == "" {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "description is empty after sanitization"),
			map[string]interface{}{"fields": map[string]string{"description": "required"}})
	}
	return item, nil
}

func (s *OccurrenceService) publish(ctx context.Context, change models.ChangeKind, item *models.Occurrence) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, models.RecordEvent{
		RecordType: models.RecordOccurrence,
		Change:     change,
		RecordIDs:  []string{item.ID},
		StudentID:  item.StudentID,
	})
}
