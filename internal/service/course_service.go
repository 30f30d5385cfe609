package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindBySlug(ctx context.Context, slug string) (*models.Course, error)
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Deactivate(ctx context.Context, id string) error
}

type courseTeacherRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateCourseRequest represents payload for creating courses.
type CreateCourseRequest struct {
	Title           string  `json:"title" validate:"required"`
	Description     *string `json:"description"`
	SubjectArea     string  `json:"subject_area" validate:"required"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,gt=0"`
	HourlyPrice     float64 `json:"hourly_price" validate:"gte=0"`
	TeacherID       string  `json:"teacher_id" validate:"required,uuid4"`
}

// UpdateCourseRequest payload for updating courses.
type UpdateCourseRequest struct {
	Title           string  `json:"title" validate:"required"`
	Description     *string `json:"description"`
	SubjectArea     string  `json:"subject_area" validate:"required"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,gt=0"`
	HourlyPrice     float64 `json:"hourly_price" validate:"gte=0"`
	TeacherID       string  `json:"teacher_id" validate:"required,uuid4"`
	Active          *bool   `json:"active"`
}

// CourseService manages the course catalog.
type CourseService struct {
	repo      courseRepository
	users     courseTeacherRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService creates an instance of CourseService.
func NewCourseService(repo courseRepository, users courseTeacherRepository, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{repo: repo, users: users, validator: validate, logger: logger}
}

// List returns paginated courses and pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return courses, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a course by ID.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// GetBySlug returns a course by its slug.
func (s *CourseService) GetBySlug(ctx context.Context, courseSlug string) (*models.Course, error) {
	course, err := s.repo.FindBySlug(ctx, courseSlug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create adds a new course with a unique slug derived from the title.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create course payload")
	}

	if err := s.ensureTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}

	courseSlug, err := s.uniqueSlug(ctx, req.Title, "")
	if err != nil {
		return nil, err
	}

	course := &models.Course{
		ID:              uuid.NewString(),
		Title:           req.Title,
		Slug:            courseSlug,
		Description:     req.Description,
		SubjectArea:     req.SubjectArea,
		DurationMinutes: req.DurationMinutes,
		HourlyPrice:     req.HourlyPrice,
		TeacherID:       req.TeacherID,
		Active:          true,
	}

	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update modifies an existing course, regenerating the slug when the title changed.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update course payload")
	}

	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if err := s.ensureTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}

	if req.Title != course.Title {
		newSlug, err := s.uniqueSlug(ctx, req.Title, course.ID)
		if err != nil {
			return nil, err
		}
		course.Slug = newSlug
	}

	course.Title = req.Title
	course.Description = req.Description
	course.SubjectArea = req.SubjectArea
	course.DurationMinutes = req.DurationMinutes
	course.HourlyPrice = req.HourlyPrice
	course.TeacherID = req.TeacherID
	if req.Active != nil {
		course.Active = *req.Active
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Deactivate soft-deletes a course.
func (s *CourseService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate course")
	}
	return nil
}

func (s *CourseService) ensureTeacher(ctx context.Context, teacherID string) error {
	teacher, err := s.users.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher || !teacher.Active {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "assignee must be an active teacher")
	}
	return nil
}

func (s *CourseService) uniqueSlug(ctx context.Context, title, excludeID string) (string, error) {
	base := slug.Make(title)
	candidate := base
	for i := 2; ; i++ {
		taken, err := s.repo.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slug uniqueness")
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
