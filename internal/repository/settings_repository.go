package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-portal-api/internal/models"
)

// SettingsRepository handles persistence of runtime system settings.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs the repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// List returns every setting ordered by key.
func (r *SettingsRepository) List(ctx context.Context) ([]models.SystemSetting, error) {
	const query = `SELECT key, value, type, description, updated_by, updated_at FROM system_settings ORDER BY key ASC`
	var settings []models.SystemSetting
	if err := r.db.SelectContext(ctx, &settings, query); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

// Find returns a single setting by key.
func (r *SettingsRepository) Find(ctx context.Context, key string) (*models.SystemSetting, error) {
	const query = `SELECT key, value, type, description, updated_by, updated_at FROM system_settings WHERE key = $1`
	var setting models.SystemSetting
	if err := r.db.GetContext(ctx, &setting, query, key); err != nil {
		return nil, err
	}
	return &setting, nil
}

// Upsert writes a setting value, inserting the row on first use.
func (r *SettingsRepository) Upsert(ctx context.Context, setting *models.SystemSetting) error {
	setting.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO system_settings (key, value, type, description, updated_by, updated_at)
        VALUES (:key, :value, :type, :description, :updated_by, :updated_at)
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, type = EXCLUDED.type,
        updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, setting); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

// SeedDefault inserts a setting only when the key is absent.
func (r *SettingsRepository) SeedDefault(ctx context.Context, setting *models.SystemSetting) error {
	if setting.UpdatedAt.IsZero() {
		setting.UpdatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO system_settings (key, value, type, description, updated_by, updated_at)
        VALUES (:key, :value, :type, :description, :updated_by, :updated_at)
        ON CONFLICT (key) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, setting); err != nil {
		return fmt.Errorf("seed setting: %w", err)
	}
	return nil
}
