package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"paletten_hub/internal/models"
)

type SettingsSQLite struct {
	db *sql.DB
}

func NewSettingsSQLite(db *sql.DB) *SettingsSQLite {
	return &SettingsSQLite{db: db}
}

var _ Settings = (*SettingsSQLite)(nil)

const (
	upsertSettingsSQL = `
		INSERT INTO location_settings (location, desired_temperature, enabled, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(location) DO UPDATE SET
			desired_temperature=excluded.desired_temperature,
			enabled=excluded.enabled,
			updated_at=excluded.updated_at
	`

	selectSettingsSQL = `
		SELECT location, desired_temperature, enabled, updated_at
		FROM location_settings ORDER BY location ASC
	`
)

// Save inserts or replaces the override row of a location.
func (r *SettingsSQLite) Save(ctx context.Context, s models.LocationSettings) error {
	ts := s.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := r.db.ExecContext(ctx, upsertSettingsSQL,
		s.Location,
		s.DesiredTemperature,
		s.Enabled,
		ts.UTC().Format(sqliteTimestamp),
	)
	if err != nil {
		return fmt.Errorf("upsert settings for %q: %w", s.Location, err)
	}
	return nil
}

// LoadAll returns every persisted override ordered by location.
func (r *SettingsSQLite) LoadAll(ctx context.Context) ([]models.LocationSettings, error) {
	rows, err := r.db.QueryContext(ctx, selectSettingsSQL)
	if err != nil {
		return nil, fmt.Errorf("select settings: %w", err)
	}
	defer rows.Close()

	var out []models.LocationSettings
	for rows.Next() {
		var s models.LocationSettings
		if err := rows.Scan(&s.Location, &s.DesiredTemperature, &s.Enabled, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan settings: %w", err)
		}
		s.UpdatedAt = s.UpdatedAt.UTC()
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return out, nil
}
