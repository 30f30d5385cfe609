package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

type availabilityRepository interface {
	ListWindows(ctx context.Context, teacherID string) ([]models.AvailabilityWindow, error)
	CreateWindow(ctx context.Context, window *models.AvailabilityWindow) error
	DeleteWindow(ctx context.Context, id, teacherID string) (bool, error)
	ListBlackouts(ctx context.Context, teacherID string, from time.Time) ([]models.BlackoutDate, error)
	CreateBlackout(ctx context.Context, blackout *models.BlackoutDate) error
	DeleteBlackout(ctx context.Context, id, teacherID string) (bool, error)
}

// CreateWindowRequest declares a weekly recurring availability slot.
type CreateWindowRequest struct {
	DayOfWeek    int `json:"day_of_week" validate:"min=0,max=6"`
	StartMinutes int `json:"start_minutes" validate:"min=0,max=1439"`
	EndMinutes   int `json:"end_minutes" validate:"min=1,max=1440"`
}

// CreateBlackoutRequest blocks out a single calendar day.
type CreateBlackoutRequest struct {
	Date   time.Time `json:"date" validate:"required"`
	Reason *string   `json:"reason"`
}

// AvailabilityService manages teacher weekly windows and blackout dates.
type AvailabilityService struct {
	repo      availabilityRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService creates an instance of AvailabilityService.
func NewAvailabilityService(repo availabilityRepository, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AvailabilityService{repo: repo, validator: validate, logger: logger}
}

// ListWindows returns the teacher's weekly windows.
func (s *AvailabilityService) ListWindows(ctx context.Context, teacherID string) ([]models.AvailabilityWindow, error) {
	windows, err := s.repo.ListWindows(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	return windows, nil
}

// AddWindow declares a new weekly slot. Overlapping slots on the same day
// are rejected.
func (s *AvailabilityService) AddWindow(ctx context.Context, teacherID string, req CreateWindowRequest) (*models.AvailabilityWindow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if req.EndMinutes <= req.StartMinutes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "window must end after it starts")
	}

	existing, err := s.repo.ListWindows(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	for _, window := range existing {
		if int(window.DayOfWeek) != req.DayOfWeek {
			continue
		}
		if req.StartMinutes < window.EndMinutes && window.StartMinutes < req.EndMinutes {
			return nil, appErrors.Clone(appErrors.ErrConflict, "window overlaps an existing availability slot")
		}
	}

	window := &models.AvailabilityWindow{
		ID:           uuid.NewString(),
		TeacherID:    teacherID,
		DayOfWeek:    models.Weekday(req.DayOfWeek),
		StartMinutes: req.StartMinutes,
		EndMinutes:   req.EndMinutes,
	}
	if err := s.repo.CreateWindow(ctx, window); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create availability window")
	}
	return window, nil
}

// RemoveWindow deletes a weekly slot owned by the teacher.
func (s *AvailabilityService) RemoveWindow(ctx context.Context, id, teacherID string) error {
	deleted, err := s.repo.DeleteWindow(ctx, id, teacherID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete availability window")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "availability window not found")
	}
	return nil
}

// ListBlackouts returns upcoming blackout dates for the teacher.
func (s *AvailabilityService) ListBlackouts(ctx context.Context, teacherID string) ([]models.BlackoutDate, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	blackouts, err := s.repo.ListBlackouts(ctx, teacherID, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list blackouts")
	}
	return blackouts, nil
}

// AddBlackout blocks out a calendar day.
func (s *AvailabilityService) AddBlackout(ctx context.Context, teacherID string, req CreateBlackoutRequest) (*models.BlackoutDate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid blackout payload")
	}

	day := req.Date.UTC().Truncate(24 * time.Hour)
	if day.Before(time.Now().UTC().Truncate(24 * time.Hour)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "blackout date is in the past")
	}

	blackout := &models.BlackoutDate{
		ID:        uuid.NewString(),
		TeacherID: teacherID,
		Date:      day,
		Reason:    req.Reason,
	}
	if err := s.repo.CreateBlackout(ctx, blackout); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create blackout")
	}
	return blackout, nil
}

// RemoveBlackout deletes a blackout date owned by the teacher.
func (s *AvailabilityService) RemoveBlackout(ctx context.Context, id, teacherID string) error {
	deleted, err := s.repo.DeleteBlackout(ctx, id, teacherID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete blackout")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "blackout not found")
	}
	return nil
}
