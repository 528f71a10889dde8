package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/busca-ativa-api/internal/models"
	"github.com/noah-isme/busca-ativa-api/internal/process"
	"github.com/noah-isme/busca-ativa-api/internal/repository"
	appErrors "github.com/noah-isme/busca-ativa-api/pkg/errors"
)

type absenceActionRepository interface {
	List(ctx context.Context, filter models.AbsenceActionFilter) ([]models.AbsenceAction, int, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.AbsenceAction, error)
	ListByProcess(ctx context.Context, processID string) ([]models.AbsenceAction, error)
	FindByID(ctx context.Context, id string) (*models.AbsenceAction, error)
	CreateForStudent(ctx context.Context, studentID string, build func([]models.AbsenceAction) (*models.AbsenceAction, error)) (*models.AbsenceAction, error)
	Update(ctx context.Context, action *models.AbsenceAction) error
	Delete(ctx context.Context, id string) error
	DeleteBatch(ctx context.Context, ids []string) error
}

type studentLookup interface {
	Get(ctx context.Context, id string) (*models.Student, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, event models.RecordEvent)
}

// AbsenceService runs the absence follow-up workflow. Every call reloads the
// student's actions from the repository before applying the process rules.
type AbsenceService struct {
	repo      absenceActionRepository
	students  studentLookup
	events    eventPublisher
	tracker   *process.Tracker
	metrics   *MetricsService
	validator *validator.Validate
	sanitizer textSanitizer
	logger    *zap.Logger
}

// NewAbsenceService constructs the service. events and metrics may be nil.
func NewAbsenceService(repo absenceActionRepository, students studentLookup, events eventPublisher, tracker *process.Tracker, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AbsenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracker == nil {
		tracker = process.NewTracker(nil)
	}
	registerDomainValidations(validate)
	return &AbsenceService{
		repo:      repo,
		students:  students,
		events:    events,
		tracker:   tracker,
		metrics:   metrics,
		validator: validate,
		sanitizer: newTextSanitizer(),
		logger:    logger,
	}
}

// AbsenceActionListRequest describes list filters.
type AbsenceActionListRequest struct {
	StudentID   string   `json:"student_id"`
	ProcessID   string   `json:"process_id"`
	ActionTypes []string `json:"action_types" validate:"dive,action_type"`
	Page        int      `json:"page" validate:"gte=0"`
	PageSize    int      `json:"page_size" validate:"gte=0,lte=200"`
}

// ProcessOverview is the state of a student's current cycle as the form needs it.
// Concluded is set when the student's latest cycle reached analise; ProcessID
// then names the cycle that opens with the next step.
type ProcessOverview struct {
	StudentID        string                   `json:"student_id"`
	ProcessID        string                   `json:"process_id"`
	NewProcess       bool                     `json:"new_process"`
	Concluded        bool                     `json:"concluded"`
	Actions          []models.AbsenceAction   `json:"actions"`
	NextAction       models.AbsenceActionType `json:"next_action"`
	NextActionLabel  string                   `json:"next_action_label"`
	Pending          process.PendingStatus    `json:"pending"`
	NextRequirements RequirementsView         `json:"next_requirements"`
}

// ProcessView is one grouped cycle.
type ProcessView struct {
	ProcessID    string                 `json:"process_id"`
	Concluded    bool                   `json:"concluded"`
	LastActivity time.Time              `json:"last_activity"`
	Actions      []models.AbsenceAction `json:"actions"`
}

// RequirementsView lists the static and conditional fields of a step.
type RequirementsView struct {
	ActionType  models.AbsenceActionType  `json:"action_type"`
	Label       string                    `json:"label"`
	Required    []process.Field           `json:"required"`
	Conditional []process.ConditionalRule `json:"conditional"`
}

// RequirementsEvaluation reflects the current form state of a step.
type RequirementsEvaluation struct {
	ActionType   models.AbsenceActionType `json:"action_type"`
	FirstInCycle bool                     `json:"first_in_cycle"`
	Active       []process.Field          `json:"active"`
	Missing      []process.Field          `json:"missing"`
	// Form is the submitted state with deactivated sub-fields blanked.
	Form models.AbsenceAction `json:"form"`
}

// Snapshot loads every action of a student.
func (s *AbsenceService) Snapshot(ctx context.Context, studentID string) (process.Snapshot, error) {
	actions, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absence actions")
	}
	return process.NewSnapshot(actions), nil
}

// ProcessInfo returns the open cycle of a student, the step expected next and
// whether the last step still blocks progression.
func (s *AbsenceService) ProcessInfo(ctx context.Context, studentID string) (*ProcessOverview, error) {
	if _, err := s.students.Get(ctx, studentID); err != nil {
		return nil, err
	}
	snapshot, err := s.Snapshot(ctx, studentID)
	if err != nil {
		return nil, err
	}
	info := s.tracker.StudentProcessInfo(studentID, snapshot)
	if err := s.checkConsistent(info); err != nil {
		return nil, err
	}
	next, err := process.NextActionInProcess(info.Actions)
	if err != nil {
		return nil, s.processError(err)
	}

	overview := &ProcessOverview{
		StudentID:        studentID,
		ProcessID:        info.ProcessID,
		NewProcess:       info.NewProcess,
		Actions:          info.Actions,
		NextAction:       next,
		NextActionLabel:  next.Label(),
		Pending:          process.LastActionPending(info.Actions),
		NextRequirements: s.Requirements(next, len(info.Actions) == 0),
	}
	if info.NewProcess {
		processes := process.GroupProcesses(studentID, snapshot)
		overview.Concluded = len(processes) > 0 && processes[len(processes)-1].Concluded()
	}
	return overview, nil
}

// Processes returns every cycle of a student, oldest first.
func (s *AbsenceService) Processes(ctx context.Context, studentID string) ([]ProcessView, error) {
	snapshot, err := s.Snapshot(ctx, studentID)
	if err != nil {
		return nil, err
	}
	grouped := process.GroupProcesses(studentID, snapshot)
	views := make([]ProcessView, len(grouped))
	for i, p := range grouped {
		views[i] = ProcessView{
			ProcessID:    p.ID,
			Concluded:    p.Concluded(),
			LastActivity: p.LastActivity(),
			Actions:      p.Actions,
		}
		if err := p.Consistent(); err != nil {
			s.logger.Warn("inconsistent absence process", zap.String("process_id", p.ID), zap.Error(err))
		}
	}
	return views, nil
}

// List returns actions matching req with pagination.
func (s *AbsenceService) List(ctx context.Context, req AbsenceActionListRequest) ([]models.AbsenceAction, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, validationError(err, "invalid filter")
	}
	filter := models.AbsenceActionFilter{
		StudentID: req.StudentID,
		ProcessID: req.ProcessID,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	for _, t := range req.ActionTypes {
		filter.ActionTypes = append(filter.ActionTypes, models.AbsenceActionType(t))
	}
	actions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list absence actions")
	}
	return actions, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one action.
func (s *AbsenceService) Get(ctx context.Context, id string) (*models.AbsenceAction, error) {
	action, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "absence action not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absence action")
	}
	return action, nil
}

// Create registers the next step of the student's open cycle. The step is
// refused while the previous one is pending or when it is not the expected
// successor. input.ProcessID is optional: naming an earlier, concluded cycle
// is refused, and an id the student does not have is ignored. The checks and
// the insert run under a lock on the student, so concurrent submissions cannot
// open two cycles.
func (s *AbsenceService) Create(ctx context.Context, input models.AbsenceAction) (*models.AbsenceAction, error) {
	if err := s.validateForm(input); err != nil {
		return nil, err
	}
	if _, err := s.students.Get(ctx, input.StudentID); err != nil {
		return nil, err
	}

	var newProcess bool
	created, err := s.repo.CreateForStudent(ctx, input.StudentID, func(existing []models.AbsenceAction) (*models.AbsenceAction, error) {
		snapshot := process.NewSnapshot(existing)
		info := s.tracker.StudentProcessInfo(input.StudentID, snapshot)
		if err := s.checkConsistent(info); err != nil {
			return nil, err
		}
		if err := s.checkRequestedProcess(input, info, snapshot); err != nil {
			return nil, err
		}
		if err := process.LastActionPending(info.Actions).Err(); err != nil {
			return nil, s.processError(err)
		}
		if err := process.ValidateTransition(info.Actions, input.ActionType); err != nil {
			return nil, s.processError(err)
		}

		action := process.ClearInactiveFields(input)
		action.ID = ""
		action.ProcessID = info.ProcessID
		action.CreatedAt = time.Time{}
		s.sanitize(&action)
		if missing := process.MissingFields(action, len(info.Actions) == 0); len(missing) > 0 {
			s.metrics.RecordRejection(appErrors.ErrValidation.Code)
			return nil, missingFieldsError(missing)
		}
		newProcess = info.NewProcess
		return &action, nil
	})
	if err != nil {
		var appErr *appErrors.Error
		switch {
		case errors.As(err, &appErr):
			return nil, err
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		case errors.Is(err, repository.ErrDuplicateStep):
			s.metrics.RecordRejection(appErrors.ErrConflict.Code)
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "step already registered for this process")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create absence action")
	}

	s.metrics.RecordActionCreated(created.ActionType)
	s.logger.Info("absence action registered",
		zap.String("student_id", created.StudentID),
		zap.String("process_id", created.ProcessID),
		zap.String("action_type", string(created.ActionType)),
		zap.Bool("new_process", newProcess),
	)
	s.publish(ctx, models.ChangeCreated, *created, created.ID)
	return created, nil
}

// checkRequestedProcess refuses a create aimed at a cycle other than the open one.
func (s *AbsenceService) checkRequestedProcess(input models.AbsenceAction, info process.ProcessInfo, snapshot process.Snapshot) error {
	if input.ProcessID == "" || input.ProcessID == info.ProcessID {
		return nil
	}
	for _, p := range process.GroupProcesses(input.StudentID, snapshot) {
		if p.ID != input.ProcessID {
			continue
		}
		if _, err := process.NextActionInProcess(p.Actions); err != nil {
			return s.processError(err)
		}
		s.metrics.RecordRejection(appErrors.ErrConflict.Code)
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrConflict, "process is not the student's current cycle"),
			map[string]interface{}{"process_id": input.ProcessID, "current_process_id": info.ProcessID})
	}
	return nil
}

// checkConsistent refuses to act on a cycle whose stored steps break the
// sequence rules.
func (s *AbsenceService) checkConsistent(info process.ProcessInfo) error {
	p := process.Process{ID: info.ProcessID, StudentID: info.StudentID, Actions: info.Actions}
	if err := p.Consistent(); err != nil {
		s.logger.Error("inconsistent absence process",
			zap.String("student_id", info.StudentID),
			zap.String("process_id", info.ProcessID),
			zap.Error(err),
		)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "absence process is inconsistent")
	}
	return nil
}

// Update applies a JSON merge patch to a stored action. id, student_id,
// process_id and action_type cannot change.
func (s *AbsenceService) Update(ctx context.Context, id string, patch Patch) (*models.AbsenceAction, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	merged, err := mergeAbsencePatch(*current, patch)
	if err != nil {
		return nil, err
	}
	if err := s.validateForm(merged); err != nil {
		return nil, err
	}
	siblings, err := s.repo.ListByProcess(ctx, current.ProcessID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absence process")
	}

	merged = process.ClearInactiveFields(merged)
	s.sanitize(&merged)
	if missing := process.MissingFields(merged, process.IsFirstInCycle(merged, siblings)); len(missing) > 0 {
		return nil, missingFieldsError(missing)
	}
	if err := s.repo.Update(ctx, &merged); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "absence action not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update absence action")
	}
	s.publish(ctx, models.ChangeUpdated, merged, merged.ID)
	return &merged, nil
}

// Delete removes an action. A step with later steps in its process is kept;
// an encaminhamento_ct takes its analise with it in one transaction.
func (s *AbsenceService) Delete(ctx context.Context, id string) (*process.DeletionPlan, error) {
	target, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	siblings, err := s.repo.ListByProcess(ctx, target.ProcessID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absence process")
	}
	decision := process.CanDelete(*target, siblings)
	if !decision.Allowed() {
		return nil, s.processError(decision.Err())
	}

	plan := process.PlanDeletion(*target, siblings)
	if plan.Atomic() {
		err = s.repo.DeleteBatch(ctx, plan.IDs())
	} else {
		err = s.repo.Delete(ctx, plan.PrimaryID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete absence action")
	}
	s.metrics.RecordDeletion(plan.Atomic())
	s.publish(ctx, models.ChangeDeleted, *target, plan.IDs()...)
	return &plan, nil
}

// Requirements describes the fields of a step type.
func (s *AbsenceService) Requirements(t models.AbsenceActionType, firstInCycle bool) RequirementsView {
	return RequirementsView{
		ActionType:  t,
		Label:       t.Label(),
		Required:    process.RequiredFields(t, firstInCycle),
		Conditional: process.ConditionalRules(t),
	}
}

// EvaluateRequirements recomputes active and missing fields for a form being
// filled in. A form with an id is treated as an edit of that stored step.
func (s *AbsenceService) EvaluateRequirements(ctx context.Context, form models.AbsenceAction) (*RequirementsEvaluation, error) {
	if !form.ActionType.Valid() {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "invalid action type"),
			map[string]interface{}{"fields": map[string]string{"action_type": "action_type"}},
		)
	}
	var first bool
	switch {
	case form.ID != "":
		stored, err := s.Get(ctx, form.ID)
		if err != nil {
			return nil, err
		}
		form.ProcessID = stored.ProcessID
		siblings, err := s.repo.ListByProcess(ctx, stored.ProcessID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absence process")
		}
		first = process.IsFirstInCycle(form, siblings)
	case form.StudentID != "":
		snapshot, err := s.Snapshot(ctx, form.StudentID)
		if err != nil {
			return nil, err
		}
		first = len(s.tracker.StudentProcessInfo(form.StudentID, snapshot).Actions) == 0
	default:
		first = form.ActionType == models.ActionAttempt1
	}

	cleared := process.ClearInactiveFields(form)
	return &RequirementsEvaluation{
		ActionType:   form.ActionType,
		FirstInCycle: first,
		Active:       process.ActiveRequirements(cleared, first),
		Missing:      process.MissingFields(cleared, first),
		Form:         cleared,
	}, nil
}

func (s *AbsenceService) validateForm(action models.AbsenceAction) error {
	if err := s.validator.Struct(absenceFormRules{
		StudentID:        action.StudentID,
		ActionType:       string(action.ActionType),
		MeetingTime:      action.MeetingTime,
		AbsenceCount:     action.AbsenceCount,
		ContactSucceeded: string(action.ContactSucceeded),
		ContactReturned:  string(action.ContactReturned),
		VisitSucceeded:   string(action.VisitSucceeded),
		VisitReturned:    string(action.VisitReturned),
		CTReturned:       string(action.CTReturned),
		CreatedBy:        action.CreatedBy,
	}); err != nil {
		return validationError(err, "invalid absence action")
	}
	if action.PeriodStart != nil && action.PeriodEnd != nil && action.PeriodEnd.Before(*action.PeriodStart) {
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "period_end must not precede period_start"),
			map[string]interface{}{"fields": map[string]string{"period_end": "gtefield"}},
		)
	}
	return nil
}

// absenceFormRules holds the scalar checks of an absence action payload.
type absenceFormRules struct {
	StudentID        string `json:"student_id" validate:"required"`
	ActionType       string `json:"action_type" validate:"required,action_type"`
	MeetingTime      string `json:"meeting_time" validate:"omitempty,datetime=15:04"`
	AbsenceCount     *int   `json:"absence_count" validate:"omitempty,gte=0"`
	ContactSucceeded string `json:"contact_succeeded" validate:"answer"`
	ContactReturned  string `json:"contact_returned" validate:"answer"`
	VisitSucceeded   string `json:"visit_succeeded" validate:"answer"`
	VisitReturned    string `json:"visit_returned" validate:"answer"`
	CTReturned       string `json:"ct_returned" validate:"answer"`
	CreatedBy        string `json:"created_by" validate:"max=120"`
}

func (s *AbsenceService) sanitize(action *models.AbsenceAction) {
	action.MeetingTime = s.sanitizer.clean(action.MeetingTime)
	action.ContactPerson = s.sanitizer.clean(action.ContactPerson)
	action.ContactReason = s.sanitizer.clean(action.ContactReason)
	action.VisitAgent = s.sanitizer.clean(action.VisitAgent)
	action.VisitContactPerson = s.sanitizer.clean(action.VisitContactPerson)
	action.VisitReason = s.sanitizer.clean(action.VisitReason)
	action.CTFeedback = s.sanitizer.clean(action.CTFeedback)
	action.AnalysisNotes = s.sanitizer.clean(action.AnalysisNotes)
	action.CreatedBy = s.sanitizer.clean(action.CreatedBy)
}

func (s *AbsenceService) publish(ctx context.Context, change models.ChangeKind, action models.AbsenceAction, ids ...string) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, models.RecordEvent{
		RecordType: models.RecordAbsenceAction,
		Change:     change,
		RecordIDs:  ids,
		StudentID:  action.StudentID,
		ProcessID:  action.ProcessID,
	})
}

// processError maps process rule violations onto API errors.
func (s *AbsenceService) processError(err error) error {
	var (
		pending    *process.PendingStepError
		transition *process.TransitionError
		blocked    *process.DeletionBlockedError
		mapped     *appErrors.Error
	)
	switch {
	case errors.As(err, &pending):
		missing := make([]string, len(pending.Status.Missing))
		for i, f := range pending.Status.Missing {
			missing[i] = string(f)
		}
		mapped = appErrors.WithDetails(appErrors.Clone(appErrors.ErrStepPending, pending.Error()), map[string]interface{}{
			"action_id":      pending.Status.ActionID,
			"action_type":    pending.Status.ActionType,
			"missing_fields": missing,
		})
	case errors.As(err, &transition):
		mapped = appErrors.WithDetails(appErrors.Clone(appErrors.ErrInvalidTransition, transition.Error()), map[string]interface{}{
			"requested": transition.Requested,
			"expected":  transition.Expected,
		})
	case errors.As(err, &blocked):
		mapped = appErrors.WithDetails(appErrors.Clone(appErrors.ErrDeletionBlocked, blocked.Error()), map[string]interface{}{
			"blocked_by": blocked.BlockedBy,
		})
	case errors.Is(err, process.ErrProcessConcluded):
		mapped = appErrors.Clone(appErrors.ErrProcessConcluded, "")
	default:
		s.logger.Error("absence process rules failed", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate absence process")
	}
	s.metrics.RecordRejection(mapped.Code)
	return mapped
}
