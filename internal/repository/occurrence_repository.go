package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/busca-ativa-api/internal/models"
)

// OccurrenceRepository manages persistence for disciplinary occurrences.
type OccurrenceRepository struct {
	db *sqlx.DB
}

// NewOccurrenceRepository constructs a new repository.
func NewOccurrenceRepository(db *sqlx.DB) *OccurrenceRepository {
	return &OccurrenceRepository{db: db}
}

// List returns occurrences per provided filter.
func (r *OccurrenceRepository) List(ctx context.Context, filter models.OccurrenceFilter) ([]models.Occurrence, int, error) {
	base := "FROM occurrences"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("occurred_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("occurred_at <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if len(filter.Severities) > 0 {
		placeholder := fmt.Sprintf("$%d", len(args)+1)
		values := make([]string, len(filter.Severities))
		for i, s := range filter.Severities {
			values[i] = string(s)
		}
		args = append(args, pq.Array(values))
		where = append(where, fmt.Sprintf("severity = ANY(%s)", placeholder))
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
	query := fmt.Sprintf(`SELECT id, student_id, occurred_at, category, severity, description, measures_taken, guardian_notified, created_by, created_at, updated_at
%s WHERE %s ORDER BY occurred_at DESC, created_at DESC LIMIT %d OFFSET %d`, base, whereClause, size, offset)
	var items []models.Occurrence
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list occurrences: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count occurrences: %w", err)
	}
	return items, total, nil
}

// FindByID fetches one occurrence. sql.ErrNoRows is returned unwrapped.
func (r *OccurrenceRepository) FindByID(ctx context.Context, id string) (*models.Occurrence, error) {
	const query = `SELECT id, student_id, occurred_at, category, severity, description, measures_taken, guardian_notified, created_by, created_at, updated_at
FROM occurrences WHERE id = $1`
	var item models.Occurrence
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find occurrence: %w", err)
	}
	return &item, nil
}

// Create inserts a new occurrence.
func (r *OccurrenceRepository) Create(ctx context.Context, item *models.Occurrence) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	query := `INSERT INTO occurrences (id, student_id, occurred_at, category, severity, description, measures_taken, guardian_notified, created_by, created_at, updated_at)
VALUES (:id, :student_id, :occurred_at, :category, :severity, :description, :measures_taken, :guardian_notified, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create occurrence: %w", err)
	}
	return nil
}

// Update modifies an existing occurrence.
func (r *OccurrenceRepository) Update(ctx context.Context, item *models.Occurrence) error {
	item.UpdatedAt = time.Now().UTC()
	query := `UPDATE occurrences SET student_id = :student_id, occurred_at = :occurred_at, category = :category, severity = :severity,
description = :description, measures_taken = :measures_taken, guardian_notified = :guardian_notified, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("update occurrence: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an occurrence.
func (r *OccurrenceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM occurrences WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete occurrence: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Summary aggregates occurrence counts for a student.
func (r *OccurrenceRepository) Summary(ctx context.Context, studentID string) (*models.OccurrenceSummary, error) {
	query := `SELECT COUNT(*) AS total,
        COALESCE(SUM(CASE WHEN severity = 'leve' THEN 1 ELSE 0 END),0) AS minor_count,
        COALESCE(SUM(CASE WHEN severity = 'moderada' THEN 1 ELSE 0 END),0) AS moderate_count,
        COALESCE(SUM(CASE WHEN severity = 'grave' THEN 1 ELSE 0 END),0) AS serious_count,
        MAX(occurred_at) AS last_occurred_at
FROM occurrences
WHERE student_id = $1`
	summary := models.OccurrenceSummary{StudentID: studentID}
	var last sql.NullTime
	if err := r.db.QueryRowxContext(ctx, query, studentID).Scan(&summary.Total, &summary.MinorCount, &summary.ModerateCount, &summary.SeriousCount, &last); err != nil {
		return nil, fmt.Errorf("occurrence summary: %w", err)
	}
	if last.Valid {
		summary.LastOccurredAt = &last.Time
	}
	return &summary, nil
}
