package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/busca-ativa-api/internal/models"
)

func newOccurrenceMock(t *testing.T) (*OccurrenceRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewOccurrenceRepository(sqlx.NewDb(db, "postgres")), mock, func() { _ = db.Close() }
}

func TestOccurrenceRepositoryListBySeverity(t *testing.T) {
	repo, mock, cleanup := newOccurrenceMock(t)
	defer cleanup()

	occurred := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "student_id", "occurred_at", "severity", "guardian_notified"}).
		AddRow("o1", "s1", occurred, "grave", "yes")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND student_id = $1 AND severity = ANY($2) ORDER BY occurred_at DESC")).
		WithArgs("s1", pq.Array([]string{"grave"})).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM occurrences WHERE 1=1 AND student_id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.OccurrenceFilter{
		StudentID:  "s1",
		Severities: []models.OccurrenceSeverity{models.SeveritySerious},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, models.AnswerYes, items[0].GuardianNotified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOccurrenceRepositoryDeleteMissing(t *testing.T) {
	repo, mock, cleanup := newOccurrenceMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM occurrences WHERE id = $1")).
		WithArgs("o9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Equal(t, sql.ErrNoRows, repo.Delete(context.Background(), "o9"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOccurrenceRepositoryCreate(t *testing.T) {
	repo, mock, cleanup := newOccurrenceMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO occurrences")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	item := &models.Occurrence{StudentID: "s1", Category: "conflito", Severity: models.SeverityMinor}
	require.NoError(t, repo.Create(context.Background(), item))
	assert.NotEmpty(t, item.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOccurrenceRepositorySummary(t *testing.T) {
	repo, mock, cleanup := newOccurrenceMock(t)
	defer cleanup()

	last := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM occurrences\nWHERE student_id = $1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "minor_count", "moderate_count", "serious_count", "last_occurred_at"}).
			AddRow(4, 2, 1, 1, last))

	summary, err := repo.Summary(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.SeriousCount)
	require.NotNil(t, summary.LastOccurredAt)
	assert.True(t, last.Equal(*summary.LastOccurredAt))
}

func TestOccurrenceRepositorySummaryWithoutRecords(t *testing.T) {
	repo, mock, cleanup := newOccurrenceMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM occurrences")).
		WithArgs("s2").
		WillReturnRows(sqlmock.NewRows([]string{"total", "minor_count", "moderate_count", "serious_count", "last_occurred_at"}).
			AddRow(0, 0, 0, 0, nil))

	summary, err := repo.Summary(context.Background(), "s2")
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Nil(t, summary.LastOccurredAt)
}
