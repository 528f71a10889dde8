package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/busca-ativa-api/internal/models"
)

func newStudentMock(t *testing.T) (*StudentRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewStudentRepository(sqlxDB), mock, func() { _ = db.Close() }
}

func TestStudentRepositoryListAppliesFilters(t *testing.T) {
	repo, mock, cleanup := newStudentMock(t)
	defer cleanup()

	active := true
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "enrollment", "full_name", "class_name", "shift", "guardian_name", "phone", "active", "created_at", "updated_at"}).
		AddRow("s1", "2024001", "Ana Souza", "7A", "manha", "Maria", "1199", true, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND class_name = $1 AND active = $2 AND (LOWER(full_name) LIKE $3 OR LOWER(enrollment) LIKE $3) ORDER BY enrollment DESC LIMIT 20 OFFSET 0")).
		WithArgs("7A", true, "%ana%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE 1=1 AND class_name = $1")).
		WithArgs("7A", true, "%ana%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{
		ClassName: "7A",
		Active:    &active,
		Search:    "Ana",
		SortBy:    "enrollment",
		SortOrder: "desc",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, students, 1)
	assert.Equal(t, "Ana Souza", students[0].FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListRejectsUnknownSort(t *testing.T) {
	repo, mock, cleanup := newStudentMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY full_name ASC LIMIT 20 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.StudentFilter{SortBy: "password; DROP", SortOrder: "sideways"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByIDNotFound(t *testing.T) {
	repo, mock, cleanup := newStudentMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	student, err := repo.FindByID(context.Background(), "missing")
	assert.Nil(t, student)
	assert.Equal(t, sql.ErrNoRows, err)
}

func TestStudentRepositoryFindByIDs(t *testing.T) {
	repo, mock, cleanup := newStudentMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "full_name"}).
		AddRow("s1", "Ana").
		AddRow("s2", "Bruno")
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id IN ($1, $2)")).
		WithArgs("s1", "s2").
		WillReturnRows(rows)

	found, err := repo.FindByIDs(context.Background(), []string{"s1", "s2"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "Bruno", found["s2"].FullName)

	empty, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}
