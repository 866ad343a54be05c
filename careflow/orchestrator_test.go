package careflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hoofbeat/stableops/careflow"
	"github.com/hoofbeat/stableops/stabletypes"
	"github.com/stretchr/testify/require"
)

// fakeRepository emulates just enough of the authoritative store for the
// orchestrator: start/complete transitions and server-side progress
// recomputation over the submitted step bodies.
type fakeRepository struct {
	instance *stabletypes.RoutineInstance
	notes    *stabletypes.DailyNotes

	startCalls       int
	completeCalls    int
	failCompleteStep bool
	failComplete     bool
}

func (f *fakeRepository) GetInstance(_ context.Context, id string) (*stabletypes.RoutineInstance, error) {
	if f.instance == nil || f.instance.ID != id {
		return nil, errors.New("instance not found")
	}
	return f.instance, nil
}

func (f *fakeRepository) Start(_ context.Context, id string) (*stabletypes.RoutineInstance, error) {
	f.startCalls++
	if f.instance.Status == stabletypes.InstanceScheduled {
		now := time.Now().UTC()
		f.instance.Status = stabletypes.InstanceStarted
		f.instance.StartedAt = &now
	}
	return f.instance, nil
}

func (f *fakeRepository) CompleteStep(_ context.Context, instanceID, stepID string, body *stabletypes.StepCompletionBody) (*stabletypes.RoutineInstance, error) {
	if f.failCompleteStep {
		return nil, errors.New("network down")
	}
	f.recordStep(stepID, stabletypes.StepCompleted, body.HorseProgress, body.GeneralNotes)
	return f.instance, nil
}

func (f *fakeRepository) SkipStep(_ context.Context, instanceID, stepID, reason, skippedBy string) (*stabletypes.RoutineInstance, error) {
	f.recordStep(stepID, stabletypes.StepSkipped, nil, reason)
	return f.instance, nil
}

func (f *fakeRepository) Complete(_ context.Context, id string) (*stabletypes.RoutineInstance, error) {
	f.completeCalls++
	if f.failComplete {
		return nil, errors.New("network down")
	}
	now := time.Now().UTC()
	f.instance.Status = stabletypes.InstanceCompleted
	f.instance.CompletedAt = &now
	return f.instance, nil
}

func (f *fakeRepository) Cancel(_ context.Context, id, reason string) (*stabletypes.RoutineInstance, error) {
	now := time.Now().UTC()
	f.instance.Status = stabletypes.InstanceCancelled
	f.instance.CancelledAt = &now
	f.instance.CancellationReason = reason
	return f.instance, nil
}

func (f *fakeRepository) Get(_ context.Context, stableID, date string) (*stabletypes.DailyNotes, error) {
	if f.notes == nil {
		return &stabletypes.DailyNotes{StableID: stableID, Date: date}, nil
	}
	return f.notes, nil
}

func (f *fakeRepository) recordStep(stepID string, status stabletypes.StepStatus, horses map[string]*stabletypes.HorseStepProgress, notes string) {
	if f.instance.Progress.Steps == nil {
		f.instance.Progress.Steps = map[string]*stabletypes.StepProgress{}
	}
	f.instance.Progress.Steps[stepID] = &stabletypes.StepProgress{
		Status: status,
		Horses: horses,
		Notes:  notes,
	}
	f.instance.Progress.StepsCompleted++
	f.instance.Status = stabletypes.InstanceInProgress
}

func twoStepInstance(status stabletypes.InstanceStatus) *stabletypes.RoutineInstance {
	return &stabletypes.RoutineInstance{
		ID:       "i1",
		StableID: "st1",
		Steps: []stabletypes.RoutineStep{
			{ID: "s1", Name: "Morning feeding", Order: 1, HorseContext: stabletypes.HorseContextAll},
			{ID: "s2", Name: "Sweep aisle", Order: 2, HorseContext: stabletypes.HorseContextNone},
		},
		ScheduledAt: time.Now().UTC(),
		Status:      status,
		Progress:    stabletypes.RoutineProgress{StepsTotal: 2},
	}
}

func newOrchestrator(repo *fakeRepository, roster *fakeRoster) *careflow.Orchestrator {
	return careflow.NewOrchestrator(repo, repo, roster, "anna")
}

func TestUnit_OrchestratorFullRun(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepository{instance: twoStepInstance(stabletypes.InstanceScheduled)}
	roster := &fakeRoster{horses: []*stabletypes.Horse{
		{ID: "h1", StableID: "st1", Name: "Whisper", IsActive: true},
		{ID: "h2", StableID: "st1", Name: "Comet", IsActive: true},
	}}
	orchestrator := newOrchestrator(repo, roster)

	var observed []careflow.StateKind
	orchestrator.Subscribe(func(state careflow.FlowState) {
		observed = append(observed, state.Kind)
	})

	require.NoError(t, orchestrator.Load(ctx, "i1"))
	require.Equal(t, 1, repo.startCalls)

	state := orchestrator.State()
	require.Equal(t, careflow.StateStepExecution, state.Kind)
	require.Equal(t, 0, state.StepIndex)
	require.Equal(t, 2, state.TotalSteps)
	require.Len(t, state.Horses, 2)
	require.False(t, orchestrator.CanProceed())

	orchestrator.MarkHorseDone("h1")
	orchestrator.MarkHorseSkipped("h2", "lame")
	require.True(t, orchestrator.CanProceed())

	require.NoError(t, orchestrator.CompleteCurrentStep(ctx, "all quiet"))
	state = orchestrator.State()
	require.Equal(t, careflow.StateStepExecution, state.Kind)
	require.Equal(t, 1, state.StepIndex)
	require.Empty(t, state.Horses)
	require.True(t, orchestrator.CanProceed())

	submitted := repo.instance.Progress.Steps["s1"]
	require.Equal(t, stabletypes.StepCompleted, submitted.Status)
	require.True(t, submitted.Horses["h1"].Completed)
	require.True(t, submitted.Horses["h2"].Skipped)
	require.Equal(t, "lame", submitted.Horses["h2"].SkipReason)

	require.NoError(t, orchestrator.CompleteCurrentStep(ctx, ""))
	require.Equal(t, careflow.StateCompleted, orchestrator.State().Kind)
	require.Equal(t, 1, repo.completeCalls)
	require.Equal(t, stabletypes.InstanceCompleted, orchestrator.Instance().Status)

	require.Contains(t, observed, careflow.StateCompleting)
	require.Equal(t, careflow.StateCompleted, observed[len(observed)-1])
}

func TestUnit_OrchestratorNotesGateOnlyOnFreshStart(t *testing.T) {
	ctx := context.Background()
	notes := &stabletypes.DailyNotes{
		StableID: "st1",
		Alerts:   []stabletypes.StableAlert{{ID: "a1", Message: "Vet on site", Priority: stabletypes.PriorityUrgent}},
	}

	repo := &fakeRepository{instance: twoStepInstance(stabletypes.InstanceScheduled), notes: notes}
	orchestrator := newOrchestrator(repo, &fakeRoster{})

	require.NoError(t, orchestrator.Load(ctx, "i1"))
	state := orchestrator.State()
	require.Equal(t, careflow.StateDailyNotesAcknowledgment, state.Kind)
	require.Len(t, state.Notes.Alerts, 1)

	startsBefore := repo.startCalls
	require.NoError(t, orchestrator.AcknowledgeDailyNotes(ctx))
	require.Equal(t, careflow.StateStepExecution, orchestrator.State().Kind)
	require.Equal(t, startsBefore, repo.startCalls)

	// resuming an already started instance bypasses the gate entirely
	resumed := &fakeRepository{instance: twoStepInstance(stabletypes.InstanceStarted), notes: notes}
	resumedOrchestrator := newOrchestrator(resumed, &fakeRoster{})
	require.NoError(t, resumedOrchestrator.Load(ctx, "i1"))
	require.Equal(t, careflow.StateStepExecution, resumedOrchestrator.State().Kind)
	require.Zero(t, resumed.startCalls)
}

func TestUnit_OrchestratorResumesAtFirstUnfinishedStep(t *testing.T) {
	ctx := context.Background()
	instance := twoStepInstance(stabletypes.InstanceInProgress)
	instance.Progress.Steps = map[string]*stabletypes.StepProgress{
		"s1": {Status: stabletypes.StepCompleted},
	}
	repo := &fakeRepository{instance: instance}
	orchestrator := newOrchestrator(repo, &fakeRoster{})

	require.NoError(t, orchestrator.Load(ctx, "i1"))
	state := orchestrator.State()
	require.Equal(t, careflow.StateStepExecution, state.Kind)
	require.Equal(t, 1, state.StepIndex)
	require.Equal(t, "s2", state.Step.ID)
}

func TestUnit_OrchestratorResumeSkipsPastSkippedSteps(t *testing.T) {
	ctx := context.Background()
	instance := twoStepInstance(stabletypes.InstanceInProgress)
	instance.Progress.Steps = map[string]*stabletypes.StepProgress{
		"s1": {Status: stabletypes.StepSkipped, Notes: "farrier visit"},
	}
	repo := &fakeRepository{instance: instance}
	orchestrator := newOrchestrator(repo, &fakeRoster{})

	// a step the caretaker explicitly skipped is never replayed
	require.NoError(t, orchestrator.Load(ctx, "i1"))
	state := orchestrator.State()
	require.Equal(t, careflow.StateStepExecution, state.Kind)
	require.Equal(t, 1, state.StepIndex)
	require.Equal(t, "s2", state.Step.ID)
}

func TestUnit_OrchestratorStepFailureKeepsPosition(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepository{instance: twoStepInstance(stabletypes.InstanceStarted), failCompleteStep: true}
	orchestrator := newOrchestrator(repo, &fakeRoster{})

	require.NoError(t, orchestrator.Load(ctx, "i1"))
	err := orchestrator.CompleteCurrentStep(ctx, "")
	require.Error(t, err)

	state := orchestrator.State()
	require.Equal(t, careflow.StateError, state.Kind)
	require.Contains(t, state.Message, "Morning feeding")
	require.Empty(t, repo.instance.Progress.Steps)

	// error state accepts no further submissions
	require.ErrorIs(t, orchestrator.CompleteCurrentStep(ctx, ""), careflow.ErrNoActiveStep)
}

func TestUnit_OrchestratorSkipStepAdvances(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepository{instance: twoStepInstance(stabletypes.InstanceStarted)}
	orchestrator := newOrchestrator(repo, &fakeRoster{})

	require.NoError(t, orchestrator.Load(ctx, "i1"))
	require.NoError(t, orchestrator.SkipCurrentStep(ctx, "no horses in today"))

	require.Equal(t, 1, orchestrator.State().StepIndex)
	require.Equal(t, stabletypes.StepSkipped, repo.instance.Progress.Steps["s1"].Status)
}

func TestUnit_OrchestratorFinalizationFailure(t *testing.T) {
	ctx := context.Background()
	instance := twoStepInstance(stabletypes.InstanceInProgress)
	instance.Progress.Steps = map[string]*stabletypes.StepProgress{
		"s1": {Status: stabletypes.StepCompleted},
		"s2": {Status: stabletypes.StepCompleted},
	}
	repo := &fakeRepository{instance: instance, failComplete: true}
	orchestrator := newOrchestrator(repo, &fakeRoster{})

	err := orchestrator.Load(ctx, "i1")
	require.Error(t, err)
	require.Equal(t, careflow.StateError, orchestrator.State().Kind)
	require.Equal(t, stabletypes.InstanceInProgress, repo.instance.Status)
}

func TestUnit_OrchestratorCancel(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepository{instance: twoStepInstance(stabletypes.InstanceStarted)}
	orchestrator := newOrchestrator(repo, &fakeRoster{})

	require.NoError(t, orchestrator.Load(ctx, "i1"))
	require.NoError(t, orchestrator.Cancel(ctx, "storm warning"))

	require.Equal(t, careflow.StateError, orchestrator.State().Kind)
	require.Equal(t, stabletypes.InstanceCancelled, orchestrator.Instance().Status)
	require.Equal(t, "storm warning", orchestrator.Instance().CancellationReason)
}

func TestUnit_OrchestratorTerminalInstances(t *testing.T) {
	ctx := context.Background()

	completed := &fakeRepository{instance: twoStepInstance(stabletypes.InstanceCompleted)}
	done := newOrchestrator(completed, &fakeRoster{})
	require.NoError(t, done.Load(ctx, "i1"))
	require.Equal(t, careflow.StateCompleted, done.State().Kind)

	missed := &fakeRepository{instance: twoStepInstance(stabletypes.InstanceMissed)}
	gone := newOrchestrator(missed, &fakeRoster{})
	require.NoError(t, gone.Load(ctx, "i1"))
	require.Equal(t, careflow.StateError, gone.State().Kind)

	require.ErrorIs(t, done.Load(ctx, "i1"), careflow.ErrAlreadyLoaded)
}
