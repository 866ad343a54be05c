package careflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hoofbeat/stableops/stabletypes"
)

var (
	ErrNoActiveStep  = errors.New("careflow: no step is being executed")
	ErrNotGated      = errors.New("careflow: no daily-notes acknowledgment is pending")
	ErrAlreadyLoaded = errors.New("careflow: orchestrator already drives an instance")
)

// InstanceRepository is the engine's only gateway to persistent state.
// Every call is a single round trip; nothing is retried here. Satisfied
// by the routine service directly and by its HTTP client.
type InstanceRepository interface {
	GetInstance(ctx context.Context, id string) (*stabletypes.RoutineInstance, error)
	Start(ctx context.Context, id string) (*stabletypes.RoutineInstance, error)
	CompleteStep(ctx context.Context, instanceID, stepID string, body *stabletypes.StepCompletionBody) (*stabletypes.RoutineInstance, error)
	SkipStep(ctx context.Context, instanceID, stepID, reason, skippedBy string) (*stabletypes.RoutineInstance, error)
	Complete(ctx context.Context, id string) (*stabletypes.RoutineInstance, error)
	Cancel(ctx context.Context, id, reason string) (*stabletypes.RoutineInstance, error)
}

// NotesSource reads the day's notes for the gate. Absence is an empty
// document, not an error.
type NotesSource interface {
	Get(ctx context.Context, stableID, date string) (*stabletypes.DailyNotes, error)
}

// Orchestrator walks one caretaker through one routine instance. All
// mutators serialize on an internal mutex, so a step submission can
// never race a second submission for the same instance. One
// orchestrator drives one instance; build a fresh one per execution.
type Orchestrator struct {
	repo      InstanceRepository
	notes     NotesSource
	resolver  *Resolver
	caretaker string

	mu         sync.Mutex
	instance   *stabletypes.RoutineInstance
	steps      []stabletypes.RoutineStep
	stepIndex  int
	horses     []*stabletypes.Horse
	progress   ProgressSet
	gate       NotesGate
	state      FlowState
	subscriber func(FlowState)
}

// NewOrchestrator wires the engine's collaborators. The caretaker id
// stamps completedBy on everything this execution finalizes.
func NewOrchestrator(repo InstanceRepository, notes NotesSource, roster RosterSource, caretaker string) *Orchestrator {
	return &Orchestrator{
		repo:      repo,
		notes:     notes,
		resolver:  NewResolver(roster),
		caretaker: caretaker,
		state:     FlowState{Kind: StateLoading},
	}
}

// Subscribe registers a callback observing every state change. The
// callback runs synchronously on the mutating goroutine and must not
// call back into the orchestrator.
func (o *Orchestrator) Subscribe(fn func(FlowState)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subscriber = fn
}

// State returns the current flow-state snapshot.
func (o *Orchestrator) State() FlowState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Load fetches the instance, starts it when still scheduled, evaluates
// the daily-notes gate, and positions execution at the first unfinished
// step. A terminal instance short-circuits: completed instances land in
// the completed state, cancelled and missed ones in the error state.
func (o *Orchestrator) Load(ctx context.Context, instanceID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.instance != nil {
		return ErrAlreadyLoaded
	}
	o.setState(FlowState{Kind: StateLoading})

	instance, err := o.repo.GetInstance(ctx, instanceID)
	if err != nil {
		o.fail(fmt.Sprintf("failed to load routine: %v", err))
		return err
	}
	startedFromScheduled := instance.Status == stabletypes.InstanceScheduled
	if startedFromScheduled {
		instance, err = o.repo.Start(ctx, instanceID)
		if err != nil {
			o.fail(fmt.Sprintf("failed to start routine: %v", err))
			return err
		}
	}
	switch instance.Status {
	case stabletypes.InstanceCompleted:
		o.instance = instance
		o.setState(FlowState{Kind: StateCompleted})
		return nil
	case stabletypes.InstanceCancelled, stabletypes.InstanceMissed:
		o.instance = instance
		o.fail(fmt.Sprintf("routine is %s and cannot be executed", instance.Status))
		return nil
	}

	o.instance = instance
	o.steps = make([]stabletypes.RoutineStep, len(instance.Steps))
	copy(o.steps, instance.Steps)
	sort.SliceStable(o.steps, func(i, j int) bool {
		return o.steps[i].Order < o.steps[j].Order
	})
	o.stepIndex = o.resumeIndex()

	if startedFromScheduled {
		day := instance.ScheduledAt.UTC().Format("2006-01-02")
		notes, err := o.notes.Get(ctx, instance.StableID, day)
		if err != nil {
			o.fail(fmt.Sprintf("failed to load daily notes: %v", err))
			return err
		}
		if o.gate.Required(startedFromScheduled, notes) {
			o.setState(FlowState{Kind: StateDailyNotesAcknowledgment, Notes: notes})
			return nil
		}
	}
	return o.enterStep(ctx)
}

// AcknowledgeDailyNotes opens the gate and enters step execution at the
// resumed position. Purely local, no round trip.
func (o *Orchestrator) AcknowledgeDailyNotes(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Kind != StateDailyNotesAcknowledgment {
		return ErrNotGated
	}
	o.gate.Acknowledge()
	return o.enterStep(ctx)
}

// CanProceed reports whether the current step satisfies the UX gate for
// completion. It never blocks CompleteCurrentStep, the server stays the
// final arbiter.
func (o *Orchestrator) CanProceed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Kind != StateStepExecution {
		return false
	}
	step := o.steps[o.stepIndex]
	return CanProceed(&step, o.horses, o.progress)
}

// MarkHorseDone finalizes one horse of the current step as completed.
func (o *Orchestrator) MarkHorseDone(horseID string) {
	o.mutateProgress(func(p ProgressSet) ProgressSet {
		return p.MarkDone(horseID, o.caretaker)
	})
}

// MarkHorseSkipped finalizes one horse of the current step as skipped.
func (o *Orchestrator) MarkHorseSkipped(horseID, reason string) {
	o.mutateProgress(func(p ProgressSet) ProgressSet {
		return p.MarkSkipped(horseID, reason, o.caretaker)
	})
}

// UpdateHorseNotes replaces the free-text note for one horse.
func (o *Orchestrator) UpdateHorseNotes(horseID, text string) {
	o.mutateProgress(func(p ProgressSet) ProgressSet {
		return p.SetNotes(horseID, text)
	})
}

// SetFeedingConfirmed records the feeding checkbox for one horse.
func (o *Orchestrator) SetFeedingConfirmed(horseID string, confirmed bool) {
	o.mutateProgress(func(p ProgressSet) ProgressSet {
		return p.SetFeedingConfirmed(horseID, confirmed)
	})
}

// SetMedicationGiven records that medication was given to one horse.
func (o *Orchestrator) SetMedicationGiven(horseID string, given bool) {
	o.mutateProgress(func(p ProgressSet) ProgressSet {
		return p.SetMedicationGiven(horseID, given)
	})
}

// SetMedicationSkipped records that medication was withheld for one horse.
func (o *Orchestrator) SetMedicationSkipped(horseID string, skipped bool) {
	o.mutateProgress(func(p ProgressSet) ProgressSet {
		return p.SetMedicationSkipped(horseID, skipped)
	})
}

// SetBlanketAction records the blanket outcome for one horse.
func (o *Orchestrator) SetBlanketAction(horseID string, action stabletypes.BlanketAction) {
	o.mutateProgress(func(p ProgressSet) ProgressSet {
		return p.SetBlanketAction(horseID, action)
	})
}

// MarkAllRemainingDone finalizes every unfinished horse of the current
// step as completed. Skips stay skips.
func (o *Orchestrator) MarkAllRemainingDone() {
	o.mutateProgress(func(p ProgressSet) ProgressSet {
		return p.MarkAllRemainingDone(o.caretaker)
	})
}

// CompleteCurrentStep submits the entire working progress map plus the
// general notes, then advances to the next step or finalizes the
// instance. The map is submitted as-is even when CanProceed is false.
// On failure the state becomes Error and the position does not advance.
func (o *Orchestrator) CompleteCurrentStep(ctx context.Context, generalNotes string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Kind != StateStepExecution {
		return ErrNoActiveStep
	}
	step := o.steps[o.stepIndex]
	body := &stabletypes.StepCompletionBody{
		HorseProgress: o.progress.Submission(),
		GeneralNotes:  generalNotes,
		CompletedBy:   o.caretaker,
	}
	instance, err := o.repo.CompleteStep(ctx, o.instance.ID, step.ID, body)
	if err != nil {
		o.fail(fmt.Sprintf("failed to complete step %q: %v", step.Name, err))
		return err
	}
	o.instance = instance
	return o.advance(ctx)
}

// SkipCurrentStep skips the whole step without per-horse progress, then
// advances identically to CompleteCurrentStep.
func (o *Orchestrator) SkipCurrentStep(ctx context.Context, reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Kind != StateStepExecution {
		return ErrNoActiveStep
	}
	step := o.steps[o.stepIndex]
	instance, err := o.repo.SkipStep(ctx, o.instance.ID, step.ID, reason, o.caretaker)
	if err != nil {
		o.fail(fmt.Sprintf("failed to skip step %q: %v", step.Name, err))
		return err
	}
	o.instance = instance
	return o.advance(ctx)
}

// Cancel cancels the instance. Available from any non-terminal status;
// a blank reason gets a server-side placeholder. The flow state moves
// to Error so a still-open execution screen stops accepting input.
func (o *Orchestrator) Cancel(ctx context.Context, reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.instance == nil {
		return ErrNoActiveStep
	}
	instance, err := o.repo.Cancel(ctx, o.instance.ID, reason)
	if err != nil {
		o.fail(fmt.Sprintf("failed to cancel routine: %v", err))
		return err
	}
	o.instance = instance
	o.fail("routine was cancelled")
	return nil
}

// Instance returns the last authoritative instance snapshot.
func (o *Orchestrator) Instance() *stabletypes.RoutineInstance {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.instance
}

// resumeIndex picks the first step, in order, that the server does not
// consider finalized. Completed and skipped steps are behind us; an app
// restart must never replay them.
func (o *Orchestrator) resumeIndex() int {
	for i, step := range o.steps {
		progress, ok := o.instance.Progress.Steps[step.ID]
		if !ok || progress == nil {
			return i
		}
		if progress.Status != stabletypes.StepCompleted && progress.Status != stabletypes.StepSkipped {
			return i
		}
	}
	return len(o.steps)
}

// enterStep resolves horses and seeds the working progress map for the
// current position, or finalizes when all steps are behind us. Callers
// hold the mutex.
func (o *Orchestrator) enterStep(ctx context.Context) error {
	if o.stepIndex >= len(o.steps) {
		return o.finalize(ctx)
	}
	step := o.steps[o.stepIndex]
	o.horses = o.resolver.Resolve(ctx, &step, o.instance.StableID)
	var existing map[string]*stabletypes.HorseStepProgress
	if prior, ok := o.instance.Progress.Steps[step.ID]; ok && prior != nil {
		existing = prior.Horses
	}
	o.progress = SeedProgress(o.horses, existing)
	o.setState(FlowState{
		Kind:       StateStepExecution,
		StepIndex:  o.stepIndex,
		Step:       &step,
		TotalSteps: len(o.steps),
		Horses:     o.horses,
		Progress:   o.progress,
	})
	return nil
}

func (o *Orchestrator) advance(ctx context.Context) error {
	o.stepIndex++
	return o.enterStep(ctx)
}

func (o *Orchestrator) finalize(ctx context.Context) error {
	o.setState(FlowState{Kind: StateCompleting})
	instance, err := o.repo.Complete(ctx, o.instance.ID)
	if err != nil {
		o.fail(fmt.Sprintf("failed to complete routine: %v", err))
		return err
	}
	o.instance = instance
	o.setState(FlowState{Kind: StateCompleted})
	return nil
}

func (o *Orchestrator) mutateProgress(mutate func(ProgressSet) ProgressSet) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Kind != StateStepExecution {
		return
	}
	o.progress = mutate(o.progress)
	state := o.state
	state.Progress = o.progress
	o.setState(state)
}

func (o *Orchestrator) fail(message string) {
	o.setState(FlowState{Kind: StateError, Message: message})
}

func (o *Orchestrator) setState(state FlowState) {
	o.state = state
	if o.subscriber != nil {
		o.subscriber(state)
	}
}
