package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/busca-ativa-api/internal/models"
	appErrors "github.com/noah-isme/busca-ativa-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Student, error)
}

// StudentService exposes the read-only student directory.
type StudentService struct {
	repo   studentRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewStudentService constructs the student service. cache may be nil.
func NewStudentService(repo studentRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

func studentCacheKey(id string) string {
	return "student:" + id
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one student, served from cache when possible.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	var cached models.Student
	if s.cache.Get(ctx, studentCacheKey(id), &cached) {
		return &cached, nil
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	s.cache.Set(ctx, studentCacheKey(id), student, s.ttl)
	return student, nil
}

// Lookup resolves many students at once. Unknown ids are absent from the result.
func (s *StudentService) Lookup(ctx context.Context, ids []string) (map[string]models.Student, error) {
	found, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	return found, nil
}

// Evict drops the cached copy of a student.
func (s *StudentService) Evict(ctx context.Context, id string) {
	s.cache.Evict(ctx, studentCacheKey(id))
}
