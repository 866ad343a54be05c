// Package stabletypes holds the data model for stable care operations and
// its SQL-backed store: horses, routine templates, scheduled routine
// instances with their progress aggregates, and daily notes.
package stabletypes

import (
	"errors"
	"time"
)

var (
	ErrInvalidStatusTransition = errors.New("stabletypes: invalid status transition")
	ErrInstanceTerminal        = errors.New("stabletypes: instance is in a terminal status")
	ErrStepNotInInstance       = errors.New("stabletypes: step does not belong to instance")
)

// HorseContext is a step's horse-targeting rule.
type HorseContext string

const (
	HorseContextAll      HorseContext = "ALL"
	HorseContextSpecific HorseContext = "SPECIFIC"
	HorseContextGroups   HorseContext = "GROUPS"
	HorseContextNone     HorseContext = "NONE"
)

// HorseFilter narrows a step's horse set beyond the HorseContext tag.
type HorseFilter struct {
	HorseIDs        []string `json:"horseIds,omitempty"`
	GroupIDs        []string `json:"groupIds,omitempty"`
	LocationIDs     []string `json:"locationIds,omitempty"`
	ExcludeHorseIDs []string `json:"excludeHorseIds,omitempty"`
}

// RoutineStep is one unit of work inside a template. Instances embed a
// frozen copy of the template's steps at schedule time, so a step struct
// appears in both places.
type RoutineStep struct {
	ID                      string       `json:"id" example:"s1a2b3c4-d5e6-4f7a-8b9c-0d1e2f3a4b5c"`
	Name                    string       `json:"name" example:"Morning feeding"`
	Order                   int          `json:"order" example:"1"`
	Category                string       `json:"category" example:"feeding"`
	HorseContext            HorseContext `json:"horseContext" example:"ALL"`
	Filter                  *HorseFilter `json:"filter,omitempty"`
	ShowFeeding             bool         `json:"showFeeding" example:"true"`
	ShowMedication          bool         `json:"showMedication" example:"false"`
	ShowBlanketStatus       bool         `json:"showBlanketStatus" example:"false"`
	ShowSpecialInstructions bool         `json:"showSpecialInstructions" example:"false"`
	RequiresConfirmation    bool         `json:"requiresConfirmation" example:"false"`
	AllowPartialCompletion  bool         `json:"allowPartialCompletion" example:"false"`
	EstimatedMinutes        int          `json:"estimatedMinutes" example:"20"`
}

// RoutineTemplate is the reusable, ordered definition of care steps.
// Once a scheduled instance references it, the instance works from its
// own frozen step snapshot, so later template edits never affect it.
type RoutineTemplate struct {
	ID                string        `json:"id" example:"t7d9e1a3-8f0c-4a7d-9b1e-2f3a4b5c6d7e"`
	OrganizationID    string        `json:"organizationId" example:"o1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"`
	StableID          string        `json:"stableId" example:"st1b2c3d-e5f6-4a7b-8c9d-0e1f2a3b4c5d"`
	Name              string        `json:"name" example:"Morning routine"`
	Steps             []RoutineStep `json:"steps"`
	RequiresNotesRead bool          `json:"requiresNotesRead" example:"true"`
	AllowSkipSteps    bool          `json:"allowSkipSteps" example:"true"`
	Points            int           `json:"points" example:"10"`
	IsActive          bool          `json:"isActive" example:"true"`

	CreatedAt time.Time `json:"createdAt" example:"2023-11-15T14:30:45Z"`
	UpdatedAt time.Time `json:"updatedAt" example:"2023-11-15T14:30:45Z"`
}

// InstanceStatus is the lifecycle state of a scheduled routine instance.
type InstanceStatus string

const (
	InstanceScheduled  InstanceStatus = "SCHEDULED"
	InstanceStarted    InstanceStatus = "STARTED"
	InstanceInProgress InstanceStatus = "IN_PROGRESS"
	InstanceCompleted  InstanceStatus = "COMPLETED"
	InstanceCancelled  InstanceStatus = "CANCELLED"
	InstanceMissed     InstanceStatus = "MISSED"
)

// Terminal reports whether no further transition is allowed from s.
func (s InstanceStatus) Terminal() bool {
	switch s {
	case InstanceCompleted, InstanceCancelled, InstanceMissed:
		return true
	}
	return false
}

// RoutineInstance is one scheduled, dated occurrence of a template.
type RoutineInstance struct {
	ID           string        `json:"id" example:"i1a2b3c4-d5e6-4f7a-8b9c-0d1e2f3a4b5c"`
	TemplateID   string        `json:"templateId" example:"t7d9e1a3-8f0c-4a7d-9b1e-2f3a4b5c6d7e"`
	TemplateName string        `json:"templateName" example:"Morning routine"`
	StableID     string        `json:"stableId" example:"st1b2c3d-e5f6-4a7b-8c9d-0e1f2a3b4c5d"`
	Steps        []RoutineStep `json:"steps"`

	ScheduledAt    time.Time `json:"scheduledAt" example:"2023-11-15T07:00:00Z"`
	AssignedTo     string    `json:"assignedTo,omitempty" example:"u4d5e6f7-a8b9-4c0d-1e2f-3a4b5c6d7e8f"`
	AssignmentType string    `json:"assignmentType,omitempty" example:"caretaker"`

	Status             InstanceStatus `json:"status" example:"SCHEDULED"`
	StartedAt          *time.Time     `json:"startedAt,omitempty"`
	CompletedAt        *time.Time     `json:"completedAt,omitempty"`
	CancelledAt        *time.Time     `json:"cancelledAt,omitempty"`
	CancellationReason string         `json:"cancellationReason,omitempty"`

	Progress RoutineProgress `json:"progress"`

	CreatedAt time.Time `json:"createdAt" example:"2023-11-15T06:00:00Z"`
	UpdatedAt time.Time `json:"updatedAt" example:"2023-11-15T06:00:00Z"`
}

// RoutineProgress aggregates step progress for an instance. The server is
// the only writer; clients submit per-horse fields and read this back.
type RoutineProgress struct {
	StepsCompleted  int                      `json:"stepsCompleted" example:"2"`
	StepsTotal      int                      `json:"stepsTotal" example:"5"`
	PercentComplete int                      `json:"percentComplete" example:"40"`
	Steps           map[string]*StepProgress `json:"steps,omitempty"`
}

// StepStatus is the per-step completion state.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepSkipped    StepStatus = "skipped"
)

// StepProgress tracks one step of one instance.
type StepProgress struct {
	Status          StepStatus                    `json:"status" example:"completed"`
	StartedAt       *time.Time                    `json:"startedAt,omitempty"`
	CompletedAt     *time.Time                    `json:"completedAt,omitempty"`
	Notes           string                        `json:"notes,omitempty"`
	PhotoURLs       []string                      `json:"photoUrls,omitempty"`
	Horses          map[string]*HorseStepProgress `json:"horses,omitempty"`
	HorsesCompleted int                           `json:"horsesCompleted" example:"3"`
	HorsesTotal     int                           `json:"horsesTotal" example:"4"`
}

// BlanketAction is the per-horse blanket outcome for blanket steps.
type BlanketAction string

const (
	BlanketOn        BlanketAction = "ON"
	BlanketOff       BlanketAction = "OFF"
	BlanketUnchanged BlanketAction = "UNCHANGED"
)

// HorseStepProgress is the per-animal outcome for one step. Completed and
// Skipped are mutually exclusive; the progress model enforces it.
type HorseStepProgress struct {
	Completed  bool   `json:"completed" example:"true"`
	Skipped    bool   `json:"skipped" example:"false"`
	SkipReason string `json:"skipReason,omitempty" example:"lame"`
	Notes      string `json:"notes,omitempty"`

	PhotoURLs []string `json:"photoUrls,omitempty"`

	FeedingConfirmed  *bool         `json:"feedingConfirmed,omitempty"`
	MedicationGiven   *bool         `json:"medicationGiven,omitempty"`
	MedicationSkipped *bool         `json:"medicationSkipped,omitempty"`
	BlanketAction     BlanketAction `json:"blanketAction,omitempty" example:"UNCHANGED"`

	CompletedBy string     `json:"completedBy,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Horse is one animal on a stable's roster.
type Horse struct {
	ID           string `json:"id" example:"h1a2b3c4-d5e6-4f7a-8b9c-0d1e2f3a4b5c"`
	StableID     string `json:"stableId" example:"st1b2c3d-e5f6-4a7b-8c9d-0e1f2a3b4c5d"`
	Name         string `json:"name" example:"Whisper"`
	HorseGroupID string `json:"horseGroupId,omitempty"`
	LocationID   string `json:"locationId,omitempty"`
	IsActive     bool   `json:"isActive" example:"true"`

	CreatedAt time.Time `json:"createdAt" example:"2023-11-15T14:30:45Z"`
	UpdatedAt time.Time `json:"updatedAt" example:"2023-11-15T14:30:45Z"`
}

// HorseGroup is a named grouping of horses within a stable.
type HorseGroup struct {
	ID       string `json:"id" example:"g1a2b3c4-d5e6-4f7a-8b9c-0d1e2f3a4b5c"`
	StableID string `json:"stableId"`
	Name     string `json:"name" example:"Paddock A"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NotePriority ranks daily notes and alerts.
type NotePriority string

const (
	PriorityLow    NotePriority = "LOW"
	PriorityNormal NotePriority = "NORMAL"
	PriorityHigh   NotePriority = "HIGH"
	PriorityUrgent NotePriority = "URGENT"
)

// HorseNote is a per-horse note inside a day's DailyNotes.
type HorseNote struct {
	ID       string       `json:"id"`
	HorseID  string       `json:"horseId"`
	Text     string       `json:"text" example:"Check left front shoe"`
	Priority NotePriority `json:"priority" example:"HIGH"`
	Category string       `json:"category,omitempty" example:"farrier"`
}

// StableAlert is a stable-wide alert inside a day's DailyNotes.
type StableAlert struct {
	ID               string       `json:"id"`
	Message          string       `json:"message" example:"Vet on site 09:00-11:00"`
	Priority         NotePriority `json:"priority" example:"URGENT"`
	AffectedHorseIDs []string     `json:"affectedHorseIds,omitempty"`
	ExpiresAt        *time.Time   `json:"expiresAt,omitempty"`
}

// DailyNotes is the per-stable, per-date aggregate of notes and alerts.
// Acknowledgment is a client-side gate, never persisted here.
type DailyNotes struct {
	StableID     string        `json:"stableId"`
	Date         string        `json:"date" example:"2023-11-15"`
	GeneralNotes string        `json:"generalNotes,omitempty"`
	WeatherNotes string        `json:"weatherNotes,omitempty"`
	HorseNotes   []HorseNote   `json:"horseNotes,omitempty"`
	Alerts       []StableAlert `json:"alerts,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// HasEntries reports whether the notes carry anything a caretaker must
// acknowledge before starting a routine.
func (n *DailyNotes) HasEntries() bool {
	if n == nil {
		return false
	}
	return len(n.HorseNotes) > 0 || len(n.Alerts) > 0
}

// StepCompletionBody is the payload submitted when a caretaker finalizes
// a step. HorseProgress may be nil for pure-confirmation or skipped steps.
type StepCompletionBody struct {
	HorseProgress map[string]*HorseStepProgress `json:"horseProgress,omitempty"`
	GeneralNotes  string                        `json:"generalNotes,omitempty"`
	PhotoURLs     []string                      `json:"photoUrls,omitempty"`
	Skipped       bool                          `json:"skipped,omitempty"`
	SkipReason    string                        `json:"skipReason,omitempty"`
	CompletedBy   string                        `json:"completedBy,omitempty"`
}
