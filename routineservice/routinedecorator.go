package routineservice

import (
	"context"
	"fmt"
	"time"

	"github.com/hoofbeat/stableops/libtracker"
	"github.com/hoofbeat/stableops/stabletypes"
)

type activityTrackerDecorator struct {
	service Service
	tracker libtracker.ActivityTracker
}

func (d *activityTrackerDecorator) CreateTemplate(ctx context.Context, template *stabletypes.RoutineTemplate) error {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"create",
		"routine_template",
		"name", template.Name,
		"stable_id", template.StableID,
	)
	defer endFn()

	err := d.service.CreateTemplate(ctx, template)
	if err != nil {
		reportErrFn(err)
	} else {
		templateData := struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Steps int    `json:"steps"`
		}{
			ID:    template.ID,
			Name:  template.Name,
			Steps: len(template.Steps),
		}
		reportChangeFn(template.ID, templateData)
	}

	return err
}

func (d *activityTrackerDecorator) GetTemplate(ctx context.Context, id string) (*stabletypes.RoutineTemplate, error) {
	_, _, endFn := d.tracker.Start(
		ctx,
		"get",
		"routine_template",
		"id", id,
	)
	defer endFn()

	return d.service.GetTemplate(ctx, id)
}

func (d *activityTrackerDecorator) UpdateTemplate(ctx context.Context, template *stabletypes.RoutineTemplate) error {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"update",
		"routine_template",
		"id", template.ID,
	)
	defer endFn()

	err := d.service.UpdateTemplate(ctx, template)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(template.ID, template)
	}

	return err
}

func (d *activityTrackerDecorator) DeleteTemplate(ctx context.Context, id string) error {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"delete",
		"routine_template",
		"id", id,
	)
	defer endFn()

	err := d.service.DeleteTemplate(ctx, id)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(id, nil)
	}

	return err
}

func (d *activityTrackerDecorator) ListTemplates(ctx context.Context, stableID string, createdAtCursor *time.Time, limit int) ([]*stabletypes.RoutineTemplate, error) {
	_, _, endFn := d.tracker.Start(
		ctx,
		"list",
		"routine_templates",
		"stable_id", stableID,
		"cursor", fmt.Sprintf("%v", createdAtCursor),
		"limit", fmt.Sprintf("%d", limit),
	)
	defer endFn()

	return d.service.ListTemplates(ctx, stableID, createdAtCursor, limit)
}

func (d *activityTrackerDecorator) ListTemplatesByOrganization(ctx context.Context, organizationID string, createdAtCursor *time.Time, limit int) ([]*stabletypes.RoutineTemplate, error) {
	_, _, endFn := d.tracker.Start(
		ctx,
		"list",
		"routine_templates",
		"organization_id", organizationID,
		"cursor", fmt.Sprintf("%v", createdAtCursor),
		"limit", fmt.Sprintf("%d", limit),
	)
	defer endFn()

	return d.service.ListTemplatesByOrganization(ctx, organizationID, createdAtCursor, limit)
}

func (d *activityTrackerDecorator) Schedule(ctx context.Context, req *ScheduleRequest) (*stabletypes.RoutineInstance, error) {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"schedule",
		"routine_instance",
		"template_id", req.TemplateID,
	)
	defer endFn()

	instance, err := d.service.Schedule(ctx, req)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(instance.ID, instance)
	}

	return instance, err
}

func (d *activityTrackerDecorator) GetInstance(ctx context.Context, id string) (*stabletypes.RoutineInstance, error) {
	_, _, endFn := d.tracker.Start(
		ctx,
		"get",
		"routine_instance",
		"id", id,
	)
	defer endFn()

	return d.service.GetInstance(ctx, id)
}

func (d *activityTrackerDecorator) ListInstances(ctx context.Context, stableID string, date *time.Time, limit int) ([]*stabletypes.RoutineInstance, error) {
	_, _, endFn := d.tracker.Start(
		ctx,
		"list",
		"routine_instances",
		"stable_id", stableID,
		"date", fmt.Sprintf("%v", date),
	)
	defer endFn()

	return d.service.ListInstances(ctx, stableID, date, limit)
}

func (d *activityTrackerDecorator) Start(ctx context.Context, id string) (*stabletypes.RoutineInstance, error) {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"start",
		"routine_instance",
		"id", id,
	)
	defer endFn()

	instance, err := d.service.Start(ctx, id)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(id, instance.Status)
	}

	return instance, err
}

func (d *activityTrackerDecorator) CompleteStep(ctx context.Context, instanceID, stepID string, body *stabletypes.StepCompletionBody) (*stabletypes.RoutineInstance, error) {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"complete_step",
		"routine_instance",
		"id", instanceID,
		"step_id", stepID,
	)
	defer endFn()

	instance, err := d.service.CompleteStep(ctx, instanceID, stepID, body)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(instanceID, instance.Progress)
	}

	return instance, err
}

func (d *activityTrackerDecorator) SkipStep(ctx context.Context, instanceID, stepID, reason, skippedBy string) (*stabletypes.RoutineInstance, error) {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"skip_step",
		"routine_instance",
		"id", instanceID,
		"step_id", stepID,
		"reason", reason,
	)
	defer endFn()

	instance, err := d.service.SkipStep(ctx, instanceID, stepID, reason, skippedBy)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(instanceID, instance.Progress)
	}

	return instance, err
}

func (d *activityTrackerDecorator) Complete(ctx context.Context, id string) (*stabletypes.RoutineInstance, error) {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"complete",
		"routine_instance",
		"id", id,
	)
	defer endFn()

	instance, err := d.service.Complete(ctx, id)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(id, instance.Status)
	}

	return instance, err
}

func (d *activityTrackerDecorator) Cancel(ctx context.Context, id, reason string) (*stabletypes.RoutineInstance, error) {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"cancel",
		"routine_instance",
		"id", id,
		"reason", reason,
	)
	defer endFn()

	instance, err := d.service.Cancel(ctx, id, reason)
	if err != nil {
		reportErrFn(err)
	} else {
		reportChangeFn(id, instance.Status)
	}

	return instance, err
}

func (d *activityTrackerDecorator) SweepMissed(ctx context.Context, grace time.Duration) (int, error) {
	reportErrFn, reportChangeFn, endFn := d.tracker.Start(
		ctx,
		"sweep_missed",
		"routine_instances",
		"grace", grace.String(),
	)
	defer endFn()

	flipped, err := d.service.SweepMissed(ctx, grace)
	if err != nil {
		reportErrFn(err)
	} else if flipped > 0 {
		reportChangeFn("sweep", flipped)
	}

	return flipped, err
}

// WithActivityTracker wraps a Service with activity tracking functionality.
func WithActivityTracker(service Service, tracker libtracker.ActivityTracker) Service {
	return &activityTrackerDecorator{
		service: service,
		tracker: tracker,
	}
}
