// Package dailynotesservice manages the per-stable, per-day notes and
// alerts document a caretaker acknowledges before starting a routine.
package dailynotesservice

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/hoofbeat/stableops/apiframework"
	libdb "github.com/hoofbeat/stableops/libdbexec"
	"github.com/hoofbeat/stableops/stabletypes"
)

var ErrInvalidNotes = errors.New("invalid daily notes data")

var dateFormat = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Service defines the interface for the daily notes read/write model.
type Service interface {
	Set(ctx context.Context, notes *stabletypes.DailyNotes) error
	// Get returns an empty document when no notes exist for the day.
	// Missing notes are an ordinary state, not an error.
	Get(ctx context.Context, stableID, date string) (*stabletypes.DailyNotes, error)
}

type service struct {
	dbInstance libdb.DBManager
}

// New creates a new service instance.
func New(dbInstance libdb.DBManager) Service {
	return &service{dbInstance: dbInstance}
}

func (s *service) Set(ctx context.Context, notes *stabletypes.DailyNotes) error {
	if err := validate(notes); err != nil {
		return err
	}
	tx := s.dbInstance.WithoutTransaction()
	return stabletypes.New(tx).SetDailyNotes(ctx, notes)
}

func (s *service) Get(ctx context.Context, stableID, date string) (*stabletypes.DailyNotes, error) {
	if stableID == "" {
		return nil, fmt.Errorf("%w: stableId is required", apiframework.ErrMissingParameter)
	}
	if !dateFormat.MatchString(date) {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", apiframework.ErrInvalidParameterValue)
	}

	tx := s.dbInstance.WithoutTransaction()
	notes, err := stabletypes.New(tx).GetDailyNotes(ctx, stableID, date)
	if errors.Is(err, libdb.ErrNotFound) {
		return &stabletypes.DailyNotes{
			StableID:   stableID,
			Date:       date,
			HorseNotes: []stabletypes.HorseNote{},
			Alerts:     []stabletypes.StableAlert{},
		}, nil
	}
	return notes, err
}

func validate(notes *stabletypes.DailyNotes) error {
	switch {
	case notes == nil:
		return fmt.Errorf("%w %w: notes are required", ErrInvalidNotes, apiframework.ErrUnprocessableEntity)
	case notes.StableID == "":
		return fmt.Errorf("%w %w: stableId is required", ErrInvalidNotes, apiframework.ErrUnprocessableEntity)
	case !dateFormat.MatchString(notes.Date):
		return fmt.Errorf("%w %w: date must be YYYY-MM-DD", ErrInvalidNotes, apiframework.ErrUnprocessableEntity)
	}
	for i, note := range notes.HorseNotes {
		if note.HorseID == "" {
			return fmt.Errorf("%w %w: horse note %d has no horseId", ErrInvalidNotes, apiframework.ErrUnprocessableEntity, i)
		}
		if note.Text == "" {
			return fmt.Errorf("%w %w: horse note %d has no text", ErrInvalidNotes, apiframework.ErrUnprocessableEntity, i)
		}
	}
	for i, alert := range notes.Alerts {
		if alert.Message == "" {
			return fmt.Errorf("%w %w: alert %d has no message", ErrInvalidNotes, apiframework.ErrUnprocessableEntity, i)
		}
	}
	return nil
}
