package horseservice

import (
	"context"

	"github.com/hoofbeat/stableops/libtracker"
	"github.com/hoofbeat/stableops/stabletypes"
)

type activityTrackerDecorator struct {
	service Service
	tracker libtracker.ActivityTracker
}

func (d *activityTrackerDecorator) Create(ctx context.Context, horse *stabletypes.Horse) error {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"create",
		"horse",
		"name", horse.Name,
		"stable_id", horse.StableID,
	)
	defer endFn()

	err := d.service.Create(ctx, horse)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(horse.ID, horse)
	}

	return err
}

func (d *activityTrackerDecorator) Get(ctx context.Context, id string) (*stabletypes.Horse, error) {
	_, _, endFn := d.tracker.Start(
		ctx,
		"get",
		"horse",
		"id", id,
	)
	defer endFn()

	return d.service.Get(ctx, id)
}

func (d *activityTrackerDecorator) Update(ctx context.Context, horse *stabletypes.Horse) error {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"update",
		"horse",
		"id", horse.ID,
	)
	defer endFn()

	err := d.service.Update(ctx, horse)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(horse.ID, horse)
	}

	return err
}

func (d *activityTrackerDecorator) Delete(ctx context.Context, id string) error {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"delete",
		"horse",
		"id", id,
	)
	defer endFn()

	err := d.service.Delete(ctx, id)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(id, nil)
	}

	return err
}

func (d *activityTrackerDecorator) ListForStable(ctx context.Context, stableID string) ([]*stabletypes.Horse, error) {
	_, _, endFn := d.tracker.Start(
		ctx,
		"list",
		"horses",
		"stable_id", stableID,
	)
	defer endFn()

	return d.service.ListForStable(ctx, stableID)
}

func (d *activityTrackerDecorator) ListByIDs(ctx context.Context, ids []string) ([]*stabletypes.Horse, error) {
	_, _, endFn := d.tracker.Start(
		ctx,
		"list_by_ids",
		"horses",
	)
	defer endFn()

	return d.service.ListByIDs(ctx, ids)
}

func (d *activityTrackerDecorator) ListByGroups(ctx context.Context, stableID string, groupIDs []string) ([]*stabletypes.Horse, error) {
	_, _, endFn := d.tracker.Start(
		ctx,
		"list_by_groups",
		"horses",
		"stable_id", stableID,
	)
	defer endFn()

	return d.service.ListByGroups(ctx, stableID, groupIDs)
}

func (d *activityTrackerDecorator) CreateGroup(ctx context.Context, group *stabletypes.HorseGroup) error {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"create",
		"horse_group",
		"name", group.Name,
		"stable_id", group.StableID,
	)
	defer endFn()

	err := d.service.CreateGroup(ctx, group)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(group.ID, group)
	}

	return err
}

func (d *activityTrackerDecorator) GetGroup(ctx context.Context, id string) (*stabletypes.HorseGroup, error) {
	_, _, endFn := d.tracker.Start(
		ctx,
		"get",
		"horse_group",
		"id", id,
	)
	defer endFn()

	return d.service.GetGroup(ctx, id)
}

func (d *activityTrackerDecorator) DeleteGroup(ctx context.Context, id string) error {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"delete",
		"horse_group",
		"id", id,
	)
	defer endFn()

	err := d.service.DeleteGroup(ctx, id)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(id, nil)
	}

	return err
}

func (d *activityTrackerDecorator) ListGroups(ctx context.Context, stableID string) ([]*stabletypes.HorseGroup, error) {
	_, _, endFn := d.tracker.Start(
		ctx,
		"list",
		"horse_groups",
		"stable_id", stableID,
	)
	defer endFn()

	return d.service.ListGroups(ctx, stableID)
}

// WithActivityTracker wraps a Service with activity tracking functionality.
func WithActivityTracker(service Service, tracker libtracker.ActivityTracker) Service {
	return &activityTrackerDecorator{
		service: service,
		tracker: tracker,
	}
}
