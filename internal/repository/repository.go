package repository

import (
	"context"
	"database/sql"

	"paletten_hub/internal/models"
)

// History is the append-only store of readings and heater transitions.
type History interface {
	RecordReading(ctx context.Context, r models.Reading) error
	RecordHeaterEvent(ctx context.Context, e models.HeaterEvent) error
}

// Settings persists runtime overrides of location setpoints and auto mode.
type Settings interface {
	Save(ctx context.Context, s models.LocationSettings) error
	LoadAll(ctx context.Context) ([]models.LocationSettings, error)
}

type Repository struct {
	History  History
	Settings Settings
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		History:  NewHistorySQLite(db),
		Settings: NewSettingsSQLite(db),
	}
}
