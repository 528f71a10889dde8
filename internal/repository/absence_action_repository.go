package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/busca-ativa-api/internal/models"
)

const absenceActionColumns = `id, student_id, process_id, action_type, period_start, period_end, absence_count,
meeting_date, meeting_time, contact_succeeded, contact_person, contact_date, contact_reason, contact_returned,
visit_agent, visit_date, visit_succeeded, visit_contact_person, visit_reason, visit_returned,
ct_sent_date, ct_feedback, ct_returned, analysis_notes, created_by, created_at, updated_at`

// ErrDuplicateStep is returned when a process already holds a step of the same type.
var ErrDuplicateStep = errors.New("absence step already registered in process")

const pqUniqueViolation = "23505"

// AbsenceActionRepository persists absence follow-up steps.
type AbsenceActionRepository struct {
	db *sqlx.DB
}

// NewAbsenceActionRepository constructs the repository.
func NewAbsenceActionRepository(db *sqlx.DB) *AbsenceActionRepository {
	return &AbsenceActionRepository{db: db}
}

// List returns actions per filter ordered by creation.
func (r *AbsenceActionRepository) List(ctx context.Context, filter models.AbsenceActionFilter) ([]models.AbsenceAction, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ProcessID != "" {
		where = append(where, fmt.Sprintf("process_id = $%d", len(args)+1))
		args = append(args, filter.ProcessID)
	}
	if len(filter.ActionTypes) > 0 {
		values := make([]string, len(filter.ActionTypes))
		for i, t := range filter.ActionTypes {
			values[i] = string(t)
		}
		where = append(where, fmt.Sprintf("action_type = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(values))
	}
	whereClause := strings.Join(where, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size
	query := fmt.Sprintf(`SELECT %s FROM absence_actions WHERE %s ORDER BY created_at ASC, id ASC LIMIT %d OFFSET %d`, absenceActionColumns, whereClause, size, offset)
	var actions []models.AbsenceAction
	if err := r.db.SelectContext(ctx, &actions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list absence actions: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM absence_actions WHERE %s", whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count absence actions: %w", err)
	}
	return actions, total, nil
}

// ListByStudent returns every action of a student. It is the snapshot the
// process rules run against.
func (r *AbsenceActionRepository) ListByStudent(ctx context.Context, studentID string) ([]models.AbsenceAction, error) {
	query := fmt.Sprintf(`SELECT %s FROM absence_actions WHERE student_id = $1 ORDER BY created_at ASC`, absenceActionColumns)
	var actions []models.AbsenceAction
	if err := r.db.SelectContext(ctx, &actions, query, studentID); err != nil {
		return nil, fmt.Errorf("list absence actions by student: %w", err)
	}
	return actions, nil
}

// ListByProcess returns the actions sharing a process id.
func (r *AbsenceActionRepository) ListByProcess(ctx context.Context, processID string) ([]models.AbsenceAction, error) {
	query := fmt.Sprintf(`SELECT %s FROM absence_actions WHERE process_id = $1 ORDER BY created_at ASC`, absenceActionColumns)
	var actions []models.AbsenceAction
	if err := r.db.SelectContext(ctx, &actions, query, processID); err != nil {
		return nil, fmt.Errorf("list absence actions by process: %w", err)
	}
	return actions, nil
}

// ListAll returns the full collection, used for reports.
func (r *AbsenceActionRepository) ListAll(ctx context.Context) ([]models.AbsenceAction, error) {
	query := fmt.Sprintf(`SELECT %s FROM absence_actions ORDER BY student_id, created_at ASC`, absenceActionColumns)
	var actions []models.AbsenceAction
	if err := r.db.SelectContext(ctx, &actions, query); err != nil {
		return nil, fmt.Errorf("list all absence actions: %w", err)
	}
	return actions, nil
}

// FindByID fetches a single action. sql.ErrNoRows is returned unwrapped.
func (r *AbsenceActionRepository) FindByID(ctx context.Context, id string) (*models.AbsenceAction, error) {
	query := fmt.Sprintf(`SELECT %s FROM absence_actions WHERE id = $1`, absenceActionColumns)
	var action models.AbsenceAction
	if err := r.db.GetContext(ctx, &action, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find absence action: %w", err)
	}
	return &action, nil
}

const insertAbsenceAction = `INSERT INTO absence_actions (` + absenceActionColumns + `)
VALUES (:id, :student_id, :process_id, :action_type, :period_start, :period_end, :absence_count,
:meeting_date, :meeting_time, :contact_succeeded, :contact_person, :contact_date, :contact_reason, :contact_returned,
:visit_agent, :visit_date, :visit_succeeded, :visit_contact_person, :visit_reason, :visit_returned,
:ct_sent_date, :ct_feedback, :ct_returned, :analysis_notes, :created_by, :created_at, :updated_at)`

// Create inserts a new action, assigning id and timestamps.
func (r *AbsenceActionRepository) Create(ctx context.Context, action *models.AbsenceAction) error {
	return insertAction(ctx, r.db, action)
}

// CreateForStudent locks the student row, hands the student's actions to build
// and inserts the action it returns, all in one transaction. Concurrent creates
// for the same student are serialised, so build always sees the latest steps.
// Errors from build are returned as they are; a missing student yields
// sql.ErrNoRows.
func (r *AbsenceActionRepository) CreateForStudent(ctx context.Context, studentID string, build func([]models.AbsenceAction) (*models.AbsenceAction, error)) (action *models.AbsenceAction, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin absence action create: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked string
	if err = tx.GetContext(ctx, &locked, `SELECT id FROM students WHERE id = $1 FOR UPDATE`, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock student: %w", err)
	}

	var existing []models.AbsenceAction
	query := fmt.Sprintf(`SELECT %s FROM absence_actions WHERE student_id = $1 ORDER BY created_at ASC`, absenceActionColumns)
	if err = tx.SelectContext(ctx, &existing, query, studentID); err != nil {
		return nil, fmt.Errorf("list absence actions by student: %w", err)
	}

	action, err = build(existing)
	if err != nil {
		return nil, err
	}
	if err = insertAction(ctx, tx, action); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit absence action create: %w", err)
	}
	return action, nil
}

func insertAction(ctx context.Context, exec sqlx.ExtContext, action *models.AbsenceAction) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if action.CreatedAt.IsZero() {
		action.CreatedAt = now
	}
	action.UpdatedAt = now
	if _, err := sqlx.NamedExecContext(ctx, exec, insertAbsenceAction, action); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return fmt.Errorf("create absence action: %w", ErrDuplicateStep)
		}
		return fmt.Errorf("create absence action: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of an action.
func (r *AbsenceActionRepository) Update(ctx context.Context, action *models.AbsenceAction) error {
	action.UpdatedAt = time.Now().UTC()
	query := `UPDATE absence_actions SET period_start = :period_start, period_end = :period_end, absence_count = :absence_count,
meeting_date = :meeting_date, meeting_time = :meeting_time, contact_succeeded = :contact_succeeded, contact_person = :contact_person,
contact_date = :contact_date, contact_reason = :contact_reason, contact_returned = :contact_returned,
visit_agent = :visit_agent, visit_date = :visit_date, visit_succeeded = :visit_succeeded, visit_contact_person = :visit_contact_person,
visit_reason = :visit_reason, visit_returned = :visit_returned, ct_sent_date = :ct_sent_date, ct_feedback = :ct_feedback,
ct_returned = :ct_returned, analysis_notes = :analysis_notes, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, action)
	if err != nil {
		return fmt.Errorf("update absence action: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a single action.
func (r *AbsenceActionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM absence_actions WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete absence action: %w", err)
	}
	return nil
}

// DeleteBatch removes every id in one transaction. Either all rows go or none do.
func (r *AbsenceActionRepository) DeleteBatch(ctx context.Context, ids []string) (err error) {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin absence batch delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, "DELETE FROM absence_actions WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return fmt.Errorf("batch delete absence actions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("batch delete absence actions: %w", err)
	}
	if affected != int64(len(ids)) {
		err = fmt.Errorf("batch delete absence actions: expected %d rows, removed %d", len(ids), affected)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit absence batch delete: %w", err)
	}
	return nil
}
