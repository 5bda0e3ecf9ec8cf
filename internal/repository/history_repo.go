package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"paletten_hub/internal/models"
)

// sqliteTimestamp is the layout SQLite's current_timestamp uses.
const sqliteTimestamp = "2006-01-02 15:04:05"

const (
	insertReadingSQL = `
		INSERT INTO history (timestamp, location, temperature, humidity)
		VALUES (?, ?, ?, ?)
	`

	insertHeaterEventSQL = `
		INSERT INTO heater_history (timestamp, shelly_id, is_active)
		VALUES (?, ?, ?)
	`
)

// HistorySQLite appends readings and heater events. It never updates or deletes rows.
type HistorySQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewHistorySQLite(db *sql.DB) *HistorySQLite {
	return &HistorySQLite{db: db, now: time.Now}
}

// Ensure implementation of History interface at compile time.
var _ History = (*HistorySQLite)(nil)

// stamp normalizes t to UTC SQLite text, defaulting to now when zero.
func (r *HistorySQLite) stamp(t time.Time) string {
	if t.IsZero() {
		t = r.now()
	}
	return t.UTC().Format(sqliteTimestamp)
}

// RecordReading appends one row to history. Identical readings produce identical rows.
func (r *HistorySQLite) RecordReading(ctx context.Context, reading models.Reading) error {
	_, err := r.db.ExecContext(ctx, insertReadingSQL,
		r.stamp(reading.Timestamp),
		reading.Location,
		reading.Temperature,
		reading.Humidity,
	)
	if err != nil {
		return fmt.Errorf("insert reading for %q: %w", reading.Location, err)
	}
	return nil
}

// RecordHeaterEvent appends one row to heater_history.
func (r *HistorySQLite) RecordHeaterEvent(ctx context.Context, event models.HeaterEvent) error {
	_, err := r.db.ExecContext(ctx, insertHeaterEventSQL,
		r.stamp(event.Timestamp),
		event.ShellyID,
		event.IsActive,
	)
	if err != nil {
		return fmt.Errorf("insert heater event for %q: %w", event.ShellyID, err)
	}
	return nil
}
