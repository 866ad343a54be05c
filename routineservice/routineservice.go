// Package routineservice owns routine templates and their scheduled
// instances: template CRUD, scheduling with step snapshots, and the
// authoritative lifecycle and progress transitions.
package routineservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/hoofbeat/stableops/apiframework"
	"github.com/hoofbeat/stableops/libbus"
	libdb "github.com/hoofbeat/stableops/libdbexec"
	"github.com/hoofbeat/stableops/stabletypes"
)

var ErrInvalidTemplate = errors.New("invalid routine template data")

// DefaultCancellationReason fills in when a cancel request carries no reason.
const DefaultCancellationReason = "cancelled without a stated reason"

// ScheduleRequest creates one dated instance of a template.
type ScheduleRequest struct {
	TemplateID     string    `json:"templateId"`
	ScheduledAt    time.Time `json:"scheduledAt"`
	AssignedTo     string    `json:"assignedTo,omitempty"`
	AssignmentType string    `json:"assignmentType,omitempty"`
}

// Service defines the interface for managing routine templates and
// driving scheduled instances through their lifecycle.
type Service interface {
	CreateTemplate(ctx context.Context, template *stabletypes.RoutineTemplate) error
	GetTemplate(ctx context.Context, id string) (*stabletypes.RoutineTemplate, error)
	UpdateTemplate(ctx context.Context, template *stabletypes.RoutineTemplate) error
	DeleteTemplate(ctx context.Context, id string) error
	ListTemplates(ctx context.Context, stableID string, createdAtCursor *time.Time, limit int) ([]*stabletypes.RoutineTemplate, error)
	ListTemplatesByOrganization(ctx context.Context, organizationID string, createdAtCursor *time.Time, limit int) ([]*stabletypes.RoutineTemplate, error)

	Schedule(ctx context.Context, req *ScheduleRequest) (*stabletypes.RoutineInstance, error)
	GetInstance(ctx context.Context, id string) (*stabletypes.RoutineInstance, error)
	ListInstances(ctx context.Context, stableID string, date *time.Time, limit int) ([]*stabletypes.RoutineInstance, error)
	Start(ctx context.Context, id string) (*stabletypes.RoutineInstance, error)
	CompleteStep(ctx context.Context, instanceID, stepID string, body *stabletypes.StepCompletionBody) (*stabletypes.RoutineInstance, error)
	SkipStep(ctx context.Context, instanceID, stepID, reason, skippedBy string) (*stabletypes.RoutineInstance, error)
	Complete(ctx context.Context, id string) (*stabletypes.RoutineInstance, error)
	Cancel(ctx context.Context, id, reason string) (*stabletypes.RoutineInstance, error)
	SweepMissed(ctx context.Context, grace time.Duration) (int, error)
}

type service struct {
	dbInstance libdb.DBManager
	messenger  libbus.Messenger
}

// New creates a new service instance.
func New(dbInstance libdb.DBManager, messenger libbus.Messenger) Service {
	return &service{
		dbInstance: dbInstance,
		messenger:  messenger,
	}
}

func (s *service) CreateTemplate(ctx context.Context, template *stabletypes.RoutineTemplate) error {
	if err := validateTemplate(template); err != nil {
		return err
	}
	tx := s.dbInstance.WithoutTransaction()
	storeInstance := stabletypes.New(tx)
	count, err := storeInstance.EstimateTemplateCount(ctx)
	if err != nil {
		return err
	}
	if err := storeInstance.EnforceMaxRowCount(ctx, count); err != nil {
		return err
	}
	assignStepIDs(template)
	return storeInstance.CreateTemplate(ctx, template)
}

func (s *service) GetTemplate(ctx context.Context, id string) (*stabletypes.RoutineTemplate, error) {
	tx := s.dbInstance.WithoutTransaction()
	return stabletypes.New(tx).GetTemplate(ctx, id)
}

func (s *service) UpdateTemplate(ctx context.Context, template *stabletypes.RoutineTemplate) error {
	if err := validateTemplate(template); err != nil {
		return err
	}
	tx := s.dbInstance.WithoutTransaction()
	storeInstance := stabletypes.New(tx)
	referenced, err := storeInstance.HasInstancesForTemplate(ctx, template.ID)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("%w: template %s has scheduled instances", apiframework.ErrImmutableTemplate, template.ID)
	}
	assignStepIDs(template)
	return storeInstance.UpdateTemplate(ctx, template)
}

func (s *service) DeleteTemplate(ctx context.Context, id string) error {
	tx := s.dbInstance.WithoutTransaction()
	storeInstance := stabletypes.New(tx)
	referenced, err := storeInstance.HasInstancesForTemplate(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("%w: template %s has scheduled instances", apiframework.ErrImmutableTemplate, id)
	}
	return storeInstance.DeleteTemplate(ctx, id)
}

func (s *service) ListTemplates(ctx context.Context, stableID string, createdAtCursor *time.Time, limit int) ([]*stabletypes.RoutineTemplate, error) {
	tx := s.dbInstance.WithoutTransaction()
	return stabletypes.New(tx).ListTemplates(ctx, stableID, createdAtCursor, limit)
}

func (s *service) ListTemplatesByOrganization(ctx context.Context, organizationID string, createdAtCursor *time.Time, limit int) ([]*stabletypes.RoutineTemplate, error) {
	tx := s.dbInstance.WithoutTransaction()
	return stabletypes.New(tx).ListTemplatesByOrganization(ctx, organizationID, createdAtCursor, limit)
}

// Schedule freezes a copy of the template's steps onto a new instance, so
// the instance keeps its shape even if the template is later deactivated.
func (s *service) Schedule(ctx context.Context, req *ScheduleRequest) (*stabletypes.RoutineInstance, error) {
	if req == nil || req.TemplateID == "" {
		return nil, fmt.Errorf("%w: templateId is required", apiframework.ErrUnprocessableEntity)
	}
	if req.ScheduledAt.IsZero() {
		return nil, fmt.Errorf("%w: scheduledAt is required", apiframework.ErrUnprocessableEntity)
	}

	tx := s.dbInstance.WithoutTransaction()
	storeInstance := stabletypes.New(tx)

	template, err := storeInstance.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	count, err := storeInstance.EstimateInstanceCount(ctx)
	if err != nil {
		return nil, err
	}
	if err := storeInstance.EnforceMaxRowCount(ctx, count); err != nil {
		return nil, err
	}

	steps := make([]stabletypes.RoutineStep, len(template.Steps))
	copy(steps, template.Steps)

	instance := &stabletypes.RoutineInstance{
		TemplateID:     template.ID,
		TemplateName:   template.Name,
		StableID:       template.StableID,
		Steps:          steps,
		ScheduledAt:    req.ScheduledAt.UTC(),
		AssignedTo:     req.AssignedTo,
		AssignmentType: req.AssignmentType,
		Status:         stabletypes.InstanceScheduled,
		Progress: stabletypes.RoutineProgress{
			StepsTotal: len(steps),
			Steps:      map[string]*stabletypes.StepProgress{},
		},
	}
	if err := storeInstance.CreateInstance(ctx, instance); err != nil {
		return nil, err
	}
	s.publish(instance.ID, "created", instance)
	return instance, nil
}

func (s *service) GetInstance(ctx context.Context, id string) (*stabletypes.RoutineInstance, error) {
	tx := s.dbInstance.WithoutTransaction()
	return stabletypes.New(tx).GetInstance(ctx, id)
}

func (s *service) ListInstances(ctx context.Context, stableID string, date *time.Time, limit int) ([]*stabletypes.RoutineInstance, error) {
	tx := s.dbInstance.WithoutTransaction()
	return stabletypes.New(tx).ListInstances(ctx, stableID, date, limit)
}

// Start is idempotent: an instance that is already underway is returned
// unchanged, only terminal statuses conflict.
func (s *service) Start(ctx context.Context, id string) (*stabletypes.RoutineInstance, error) {
	tx := s.dbInstance.WithoutTransaction()
	storeInstance := stabletypes.New(tx)

	instance, err := storeInstance.GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if instance.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot start %s instance %s", stabletypes.ErrInstanceTerminal, instance.Status, id)
	}
	if instance.Status != stabletypes.InstanceScheduled {
		return instance, nil
	}

	now := time.Now().UTC()
	instance.Status = stabletypes.InstanceStarted
	instance.StartedAt = &now
	if err := storeInstance.UpdateInstance(ctx, instance); err != nil {
		return nil, err
	}
	s.publish(instance.ID, "started", instance)
	return instance, nil
}

func (s *service) CompleteStep(ctx context.Context, instanceID, stepID string, body *stabletypes.StepCompletionBody) (*stabletypes.RoutineInstance, error) {
	if body == nil {
		body = &stabletypes.StepCompletionBody{}
	}
	status := stabletypes.StepCompleted
	if body.Skipped {
		status = stabletypes.StepSkipped
	}
	return s.finalizeStep(ctx, instanceID, stepID, status, body)
}

func (s *service) SkipStep(ctx context.Context, instanceID, stepID, reason, skippedBy string) (*stabletypes.RoutineInstance, error) {
	body := &stabletypes.StepCompletionBody{
		Skipped:     true,
		SkipReason:  reason,
		CompletedBy: skippedBy,
	}
	return s.finalizeStep(ctx, instanceID, stepID, stabletypes.StepSkipped, body)
}

// finalizeStep records the outcome of one step and recomputes the whole
// progress aggregate. The store's progress column is only ever written
// here and in the lifecycle transitions, so the server stays the single
// writer of RoutineProgress.
func (s *service) finalizeStep(ctx context.Context, instanceID, stepID string, status stabletypes.StepStatus, body *stabletypes.StepCompletionBody) (*stabletypes.RoutineInstance, error) {
	tx := s.dbInstance.WithoutTransaction()
	storeInstance := stabletypes.New(tx)

	instance, err := storeInstance.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if instance.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot record steps on %s instance %s", stabletypes.ErrInstanceTerminal, instance.Status, instanceID)
	}
	if instance.Status == stabletypes.InstanceScheduled {
		return nil, fmt.Errorf("%w: instance %s was never started", stabletypes.ErrInvalidStatusTransition, instanceID)
	}
	if !hasStep(instance, stepID) {
		return nil, fmt.Errorf("%w: step %s, instance %s", stabletypes.ErrStepNotInInstance, stepID, instanceID)
	}

	now := time.Now().UTC()
	stepProgress := &stabletypes.StepProgress{
		Status:      status,
		CompletedAt: &now,
		Notes:       body.GeneralNotes,
		PhotoURLs:   body.PhotoURLs,
		Horses:      body.HorseProgress,
	}
	if status == stabletypes.StepSkipped {
		if stepProgress.Notes == "" {
			stepProgress.Notes = body.SkipReason
		}
		stepProgress.Horses = nil
	}
	if prior := instance.Progress.Steps[stepID]; prior != nil && prior.StartedAt != nil {
		stepProgress.StartedAt = prior.StartedAt
	}
	for _, horse := range stepProgress.Horses {
		if horse.CompletedAt == nil && (horse.Completed || horse.Skipped) {
			horse.CompletedAt = &now
		}
		if horse.CompletedBy == "" {
			horse.CompletedBy = body.CompletedBy
		}
	}

	if instance.Progress.Steps == nil {
		instance.Progress.Steps = map[string]*stabletypes.StepProgress{}
	}
	instance.Progress.Steps[stepID] = stepProgress
	recomputeProgress(instance)

	if instance.Status == stabletypes.InstanceStarted {
		instance.Status = stabletypes.InstanceInProgress
	}
	if err := storeInstance.UpdateInstance(ctx, instance); err != nil {
		return nil, err
	}
	s.publish(instance.ID, "step_finalized", instance)
	return instance, nil
}

func (s *service) Complete(ctx context.Context, id string) (*stabletypes.RoutineInstance, error) {
	tx := s.dbInstance.WithoutTransaction()
	storeInstance := stabletypes.New(tx)

	instance, err := storeInstance.GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if instance.Status == stabletypes.InstanceCompleted {
		return instance, nil
	}
	if instance.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot complete %s instance %s", stabletypes.ErrInstanceTerminal, instance.Status, id)
	}
	if instance.Status == stabletypes.InstanceScheduled {
		return nil, fmt.Errorf("%w: instance %s was never started", stabletypes.ErrInvalidStatusTransition, id)
	}

	now := time.Now().UTC()
	instance.Status = stabletypes.InstanceCompleted
	instance.CompletedAt = &now
	recomputeProgress(instance)
	if err := storeInstance.UpdateInstance(ctx, instance); err != nil {
		return nil, err
	}
	s.publish(instance.ID, "completed", instance)
	return instance, nil
}

func (s *service) Cancel(ctx context.Context, id, reason string) (*stabletypes.RoutineInstance, error) {
	tx := s.dbInstance.WithoutTransaction()
	storeInstance := stabletypes.New(tx)

	instance, err := storeInstance.GetInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if instance.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot cancel %s instance %s", stabletypes.ErrInstanceTerminal, instance.Status, id)
	}
	if reason == "" {
		reason = DefaultCancellationReason
	}

	now := time.Now().UTC()
	instance.Status = stabletypes.InstanceCancelled
	instance.CancelledAt = &now
	instance.CancellationReason = reason
	if err := storeInstance.UpdateInstance(ctx, instance); err != nil {
		return nil, err
	}
	s.publish(instance.ID, "cancelled", instance)
	return instance, nil
}

// SweepMissed flips instances that stayed SCHEDULED past their slot plus
// the grace window to MISSED. Returns how many were flipped.
func (s *service) SweepMissed(ctx context.Context, grace time.Duration) (int, error) {
	tx := s.dbInstance.WithoutTransaction()
	storeInstance := stabletypes.New(tx)

	cutoff := time.Now().UTC().Add(-grace)
	stale, err := storeInstance.ListScheduledInstancesBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	flipped := 0
	for _, instance := range stale {
		instance.Status = stabletypes.InstanceMissed
		if err := storeInstance.UpdateInstance(ctx, instance); err != nil {
			if errors.Is(err, libdb.ErrNotFound) {
				continue
			}
			return flipped, err
		}
		flipped++
		s.publish(instance.ID, "missed", instance)
	}
	return flipped, nil
}

func assignStepIDs(template *stabletypes.RoutineTemplate) {
	for i := range template.Steps {
		if template.Steps[i].ID == "" {
			template.Steps[i].ID = uuid.NewString()
		}
	}
}

func hasStep(instance *stabletypes.RoutineInstance, stepID string) bool {
	for _, step := range instance.Steps {
		if step.ID == stepID {
			return true
		}
	}
	return false
}

// recomputeProgress rebuilds every derived counter from the per-horse
// ground truth. A step counts as finalized once completed or skipped.
func recomputeProgress(instance *stabletypes.RoutineInstance) {
	progress := &instance.Progress
	progress.StepsTotal = len(instance.Steps)
	progress.StepsCompleted = 0
	for _, step := range instance.Steps {
		stepProgress := progress.Steps[step.ID]
		if stepProgress == nil {
			continue
		}
		stepProgress.HorsesTotal = len(stepProgress.Horses)
		stepProgress.HorsesCompleted = 0
		for _, horse := range stepProgress.Horses {
			if horse.Completed || horse.Skipped {
				stepProgress.HorsesCompleted++
			}
		}
		if stepProgress.Status == stabletypes.StepCompleted || stepProgress.Status == stabletypes.StepSkipped {
			progress.StepsCompleted++
		}
	}
	if progress.StepsTotal == 0 {
		progress.PercentComplete = 0
		return
	}
	progress.PercentComplete = int(math.Round(100 * float64(progress.StepsCompleted) / float64(progress.StepsTotal)))
}

// publish sends a lifecycle event, best effort. State lives in the
// store; the bus is a change feed.
func (s *service) publish(instanceID, event string, instance *stabletypes.RoutineInstance) {
	if s.messenger == nil {
		return
	}
	data, err := json.Marshal(instance)
	if err != nil {
		slog.Error("failed to marshal instance event", "instance_id", instanceID, "event", event, "error", err)
		return
	}
	subject := fmt.Sprintf("routine.instance.%s", event)
	go func() {
		bgCtx := context.Background()
		if err := s.messenger.Publish(bgCtx, subject, data); err != nil {
			slog.Error("failed to publish instance event", "instance_id", instanceID, "event", event, "error", err)
		}
	}()
}

func validateTemplate(template *stabletypes.RoutineTemplate) error {
	switch {
	case template == nil:
		return fmt.Errorf("%w %w: template is required", ErrInvalidTemplate, apiframework.ErrUnprocessableEntity)
	case template.Name == "":
		return fmt.Errorf("%w %w: name is required", ErrInvalidTemplate, apiframework.ErrUnprocessableEntity)
	case template.StableID == "":
		return fmt.Errorf("%w %w: stableId is required", ErrInvalidTemplate, apiframework.ErrUnprocessableEntity)
	}

	seenOrders := map[int]string{}
	for i, step := range template.Steps {
		if step.Name == "" {
			return fmt.Errorf("%w %w: step %d has no name", ErrInvalidTemplate, apiframework.ErrUnprocessableEntity, i)
		}
		switch step.HorseContext {
		case stabletypes.HorseContextAll, stabletypes.HorseContextSpecific, stabletypes.HorseContextGroups, stabletypes.HorseContextNone:
		default:
			return fmt.Errorf("%w %w: step %q has unknown horse context %q", ErrInvalidTemplate, apiframework.ErrUnprocessableEntity, step.Name, step.HorseContext)
		}
		if prior, dup := seenOrders[step.Order]; dup {
			return fmt.Errorf("%w %w: steps %q and %q share order %d", ErrInvalidTemplate, apiframework.ErrUnprocessableEntity, prior, step.Name, step.Order)
		}
		seenOrders[step.Order] = step.Name
	}
	return nil
}
