// Package careflow drives a caretaker through a scheduled routine
// instance: it sequences steps in order, resolves which horses each step
// applies to, gates execution behind unacknowledged daily notes, tracks
// per-horse completion, and submits step results to the authoritative
// store. The server owns progress arithmetic; this package only decides
// what to submit and when.
package careflow

import "github.com/hoofbeat/stableops/stabletypes"

// StateKind discriminates the flow-state variants.
type StateKind string

const (
	StateLoading                  StateKind = "loading"
	StateDailyNotesAcknowledgment StateKind = "daily_notes_acknowledgment"
	StateStepExecution            StateKind = "step_execution"
	StateCompleting               StateKind = "completing"
	StateCompleted                StateKind = "completed"
	StateError                    StateKind = "error"
)

// FlowState is the observable snapshot of a routine execution. Kind
// selects the variant; only the fields belonging to that variant are
// populated.
type FlowState struct {
	Kind StateKind `json:"kind"`

	// DailyNotesAcknowledgment payload.
	Notes *stabletypes.DailyNotes `json:"notes,omitempty"`

	// StepExecution payload.
	StepIndex  int                      `json:"stepIndex,omitempty"`
	Step       *stabletypes.RoutineStep `json:"step,omitempty"`
	TotalSteps int                      `json:"totalSteps,omitempty"`
	Horses     []*stabletypes.Horse     `json:"horses,omitempty"`
	Progress   ProgressSet              `json:"progress,omitempty"`

	// Error payload.
	Message string `json:"message,omitempty"`
}
