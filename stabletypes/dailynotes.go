package stabletypes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	libdb "github.com/hoofbeat/stableops/libdbexec"
)

// SetDailyNotes upserts the whole per-day record. Notes are edited as one
// document, so last write wins.
func (s *store) SetDailyNotes(ctx context.Context, notes *DailyNotes) error {
	notes.UpdatedAt = time.Now().UTC()
	if notes.HorseNotes == nil {
		notes.HorseNotes = []HorseNote{}
	}
	if notes.Alerts == nil {
		notes.Alerts = []StableAlert{}
	}

	horseNotesJSON, err := json.Marshal(notes.HorseNotes)
	if err != nil {
		return fmt.Errorf("failed to marshal horse notes: %w", err)
	}
	alertsJSON, err := json.Marshal(notes.Alerts)
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}

	_, err = s.Exec.ExecContext(ctx, `
		INSERT INTO daily_notes
		(stable_id, note_date, general_notes, weather_notes, horse_notes, alerts, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (stable_id, note_date) DO UPDATE SET
			general_notes = EXCLUDED.general_notes,
			weather_notes = EXCLUDED.weather_notes,
			horse_notes = EXCLUDED.horse_notes,
			alerts = EXCLUDED.alerts,
			updated_at = EXCLUDED.updated_at`,
		notes.StableID,
		notes.Date,
		notes.GeneralNotes,
		notes.WeatherNotes,
		horseNotesJSON,
		alertsJSON,
		notes.UpdatedAt,
	)
	return err
}

func (s *store) GetDailyNotes(ctx context.Context, stableID string, date string) (*DailyNotes, error) {
	var notes DailyNotes
	var horseNotesJSON, alertsJSON []byte
	err := s.Exec.QueryRowContext(ctx, `
		SELECT stable_id, note_date, general_notes, weather_notes, horse_notes, alerts, updated_at
		FROM daily_notes
		WHERE stable_id = $1 AND note_date = $2`,
		stableID, date,
	).Scan(
		&notes.StableID,
		&notes.Date,
		&notes.GeneralNotes,
		&notes.WeatherNotes,
		&horseNotesJSON,
		&alertsJSON,
		&notes.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, libdb.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(horseNotesJSON, &notes.HorseNotes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal horse notes: %w", err)
	}
	if err := json.Unmarshal(alertsJSON, &notes.Alerts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alerts: %w", err)
	}
	return &notes, nil
}
