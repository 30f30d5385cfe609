package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

const settingsCachePrefix = "settings:"

type settingsRepository interface {
	List(ctx context.Context) ([]models.SystemSetting, error)
	Find(ctx context.Context, key string) (*models.SystemSetting, error)
	Upsert(ctx context.Context, setting *models.SystemSetting) error
	SeedDefault(ctx context.Context, setting *models.SystemSetting) error
}

type settingsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type settingsAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UpdateSettingRequest carries a new value for a system setting.
type UpdateSettingRequest struct {
	Value string `json:"value" validate:"required"`
}

// SettingsDefaults are the fallback policy values used before an admin has
// ever touched the settings screen.
type SettingsDefaults struct {
	DuplicateWindow     time.Duration
	SimilarityThreshold float64
	NoShowConsumesHours bool
	WaitlistAutoPromote bool
}

// SettingsService exposes runtime-tunable policy knobs backed by the
// system_settings table with a Redis read-through cache.
type SettingsService struct {
	repo     settingsRepository
	cache    settingsCache
	auditor  settingsAuditor
	defaults SettingsDefaults
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewSettingsService creates an instance of SettingsService.
func NewSettingsService(repo settingsRepository, cache settingsCache, auditor settingsAuditor,
	defaults SettingsDefaults, cacheTTL time.Duration, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &SettingsService{
		repo:     repo,
		cache:    cache,
		auditor:  auditor,
		defaults: defaults,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Seed inserts the well-known settings with their defaults when absent.
func (s *SettingsService) Seed(ctx context.Context) error {
	desc := func(text string) *string { return &text }
	seeds := []models.SystemSetting{
		{
			Key:         models.SettingDuplicateWindowMinutes,
			Value:       strconv.Itoa(int(s.defaults.DuplicateWindow.Minutes())),
			Type:        models.SettingTypeInt,
			Description: desc("Window in minutes around a class start inside which similar bookings are rejected"),
		},
		{
			Key:         models.SettingSimilarityThreshold,
			Value:       strconv.FormatFloat(s.defaults.SimilarityThreshold, 'f', 2, 64),
			Type:        models.SettingTypeFloat,
			Description: desc("Course title similarity score above which a booking counts as a duplicate"),
		},
		{
			Key:         models.SettingNoShowConsumesHours,
			Value:       strconv.FormatBool(s.defaults.NoShowConsumesHours),
			Type:        models.SettingTypeBool,
			Description: desc("Whether no-show bookings consume purchased hours"),
		},
		{
			Key:         models.SettingWaitlistAutoPromote,
			Value:       strconv.FormatBool(s.defaults.WaitlistAutoPromote),
			Type:        models.SettingTypeBool,
			Description: desc("Whether freed seats automatically promote the next waitlisted student"),
		},
	}
	for i := range seeds {
		if err := s.repo.SeedDefault(ctx, &seeds[i]); err != nil {
			return fmt.Errorf("seed setting %s: %w", seeds[i].Key, err)
		}
	}
	return nil
}

// List returns all settings.
func (s *SettingsService) List(ctx context.Context) ([]models.SystemSetting, error) {
	settings, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list settings")
	}
	return settings, nil
}

// Get returns one setting by key.
func (s *SettingsService) Get(ctx context.Context, key string) (*models.SystemSetting, error) {
	setting, err := s.find(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "setting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load setting")
	}
	return setting, nil
}

// Update validates the value against the setting's declared type, persists it
// and invalidates the cache.
func (s *SettingsService) Update(ctx context.Context, key string, req UpdateSettingRequest, actorID string, meta models.LoginRequest) (*models.SystemSetting, error) {
	setting, err := s.repo.Find(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "setting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load setting")
	}

	if err := validateSettingValue(setting.Type, req.Value); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
			fmt.Sprintf("value does not parse as %s", setting.Type))
	}

	oldValue := setting.Value
	setting.Value = req.Value
	if actorID != "" {
		setting.UpdatedBy = &actorID
	}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update setting")
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, settingsCachePrefix+"*"); err != nil {
			s.logger.Warn("failed to invalidate settings cache", zap.Error(err))
		}
	}

	if s.auditor != nil {
		log := &models.AuditLog{
			Action:     models.AuditActionSettingsUpdate,
			Resource:   "settings",
			ResourceID: &setting.Key,
			OldValues:  []byte(fmt.Sprintf(`{"value":%q}`, oldValue)),
			NewValues:  []byte(fmt.Sprintf(`{"value":%q}`, req.Value)),
			IPAddress:  meta.IP,
			UserAgent:  meta.UserAgent,
		}
		if actorID != "" {
			log.UserID = &actorID
		}
		if err := s.auditor.CreateAuditLog(ctx, log); err != nil {
			s.logger.Warn("failed to record settings audit log", zap.Error(err))
		}
	}

	return setting, nil
}

// DuplicateWindow returns the configured duplicate detection window.
func (s *SettingsService) DuplicateWindow(ctx context.Context) time.Duration {
	if setting, err := s.find(ctx, models.SettingDuplicateWindowMinutes); err == nil {
		if minutes, parseErr := strconv.Atoi(setting.Value); parseErr == nil && minutes >= 0 {
			return time.Duration(minutes) * time.Minute
		}
	}
	return s.defaults.DuplicateWindow
}

// SimilarityThreshold returns the configured duplicate similarity threshold.
func (s *SettingsService) SimilarityThreshold(ctx context.Context) float64 {
	if setting, err := s.find(ctx, models.SettingSimilarityThreshold); err == nil {
		if threshold, parseErr := strconv.ParseFloat(setting.Value, 64); parseErr == nil && threshold > 0 && threshold <= 1 {
			return threshold
		}
	}
	return s.defaults.SimilarityThreshold
}

// NoShowConsumesHours reports whether no-shows count against purchased hours.
func (s *SettingsService) NoShowConsumesHours(ctx context.Context) bool {
	if setting, err := s.find(ctx, models.SettingNoShowConsumesHours); err == nil {
		if value, parseErr := strconv.ParseBool(setting.Value); parseErr == nil {
			return value
		}
	}
	return s.defaults.NoShowConsumesHours
}

// WaitlistAutoPromote reports whether freed seats trigger automatic promotion.
func (s *SettingsService) WaitlistAutoPromote(ctx context.Context) bool {
	if setting, err := s.find(ctx, models.SettingWaitlistAutoPromote); err == nil {
		if value, parseErr := strconv.ParseBool(setting.Value); parseErr == nil {
			return value
		}
	}
	return s.defaults.WaitlistAutoPromote
}

func (s *SettingsService) find(ctx context.Context, key string) (*models.SystemSetting, error) {
	cacheKey := settingsCachePrefix + key
	if s.cache != nil {
		var cached models.SystemSetting
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	setting, err := s.repo.Find(ctx, key)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, setting, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache setting", zap.String("key", key), zap.Error(err))
		}
	}
	return setting, nil
}

func validateSettingValue(settingType models.SettingType, value string) error {
	switch settingType {
	case models.SettingTypeInt:
		_, err := strconv.Atoi(value)
		return err
	case models.SettingTypeBool:
		_, err := strconv.ParseBool(value)
		return err
	case models.SettingTypeFloat:
		_, err := strconv.ParseFloat(value, 64)
		return err
	default:
		return nil
	}
}
