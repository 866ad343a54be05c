package dailynotesservice

import (
	"context"

	"github.com/hoofbeat/stableops/libtracker"
	"github.com/hoofbeat/stableops/stabletypes"
)

type activityTrackerDecorator struct {
	service Service
	tracker libtracker.ActivityTracker
}

func (d *activityTrackerDecorator) Set(ctx context.Context, notes *stabletypes.DailyNotes) error {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"set",
		"daily_notes",
		"stable_id", notes.StableID,
		"date", notes.Date,
	)
	defer endFn()

	err := d.service.Set(ctx, notes)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(notes.StableID+"/"+notes.Date, notes)
	}

	return err
}

func (d *activityTrackerDecorator) Get(ctx context.Context, stableID, date string) (*stabletypes.DailyNotes, error) {
	_, _, endFn := d.tracker.Start(
		ctx,
		"get",
		"daily_notes",
		"stable_id", stableID,
		"date", date,
	)
	defer endFn()

	return d.service.Get(ctx, stableID, date)
}

// WithActivityTracker wraps a Service with activity tracking functionality.
func WithActivityTracker(service Service, tracker libtracker.ActivityTracker) Service {
	return &activityTrackerDecorator{
		service: service,
		tracker: tracker,
	}
}
