package careflow

import (
	"time"

	"github.com/hoofbeat/stableops/stabletypes"
)

// ProgressSet is the in-memory per-horse progress map for the step the
// caretaker is currently working. Every mutation returns a new set and
// leaves the receiver untouched, so a snapshot handed to an observer
// stays stable while the caretaker keeps tapping.
type ProgressSet map[string]stabletypes.HorseStepProgress

// SeedProgress builds the working set for a step: one entry per resolved
// horse, pre-filled from existing server-side progress where present and
// blank otherwise. Entries the server knows about always win over the
// synthesized blanks.
func SeedProgress(horses []*stabletypes.Horse, existing map[string]*stabletypes.HorseStepProgress) ProgressSet {
	set := make(ProgressSet, len(horses))
	for _, horse := range horses {
		if prior, ok := existing[horse.ID]; ok && prior != nil {
			set[horse.ID] = *prior
			continue
		}
		set[horse.ID] = stabletypes.HorseStepProgress{}
	}
	return set
}

func (p ProgressSet) clone() ProgressSet {
	next := make(ProgressSet, len(p))
	for id, entry := range p {
		next[id] = entry
	}
	return next
}

// MarkDone finalizes one horse as completed. Marking a previously skipped
// horse done clears the skip.
func (p ProgressSet) MarkDone(horseID, completedBy string) ProgressSet {
	entry, ok := p[horseID]
	if !ok {
		return p
	}
	next := p.clone()
	now := time.Now().UTC()
	entry.Completed = true
	entry.Skipped = false
	entry.SkipReason = ""
	entry.CompletedBy = completedBy
	entry.CompletedAt = &now
	next[horseID] = entry
	return next
}

// MarkSkipped finalizes one horse as skipped. The reason may be empty;
// callers that want a placeholder supply their own.
func (p ProgressSet) MarkSkipped(horseID, reason, skippedBy string) ProgressSet {
	entry, ok := p[horseID]
	if !ok {
		return p
	}
	next := p.clone()
	now := time.Now().UTC()
	entry.Skipped = true
	entry.Completed = false
	entry.SkipReason = reason
	entry.CompletedBy = skippedBy
	entry.CompletedAt = &now
	next[horseID] = entry
	return next
}

// MarkAllRemainingDone marks every horse that is neither completed nor
// skipped as done. Already finalized entries, skips included, are left
// untouched, which makes the operation idempotent.
func (p ProgressSet) MarkAllRemainingDone(completedBy string) ProgressSet {
	next := p
	for id, entry := range p {
		if entry.Completed || entry.Skipped {
			continue
		}
		next = next.MarkDone(id, completedBy)
	}
	return next
}

// SetNotes replaces the free-text note for one horse.
func (p ProgressSet) SetNotes(horseID, text string) ProgressSet {
	entry, ok := p[horseID]
	if !ok {
		return p
	}
	next := p.clone()
	entry.Notes = text
	next[horseID] = entry
	return next
}

// SetFeedingConfirmed records the feeding checkbox for one horse.
func (p ProgressSet) SetFeedingConfirmed(horseID string, confirmed bool) ProgressSet {
	entry, ok := p[horseID]
	if !ok {
		return p
	}
	next := p.clone()
	entry.FeedingConfirmed = &confirmed
	next[horseID] = entry
	return next
}

// SetMedicationGiven records that medication was given. Giving clears a
// previously recorded medication skip, the two never hold together.
func (p ProgressSet) SetMedicationGiven(horseID string, given bool) ProgressSet {
	entry, ok := p[horseID]
	if !ok {
		return p
	}
	next := p.clone()
	entry.MedicationGiven = &given
	if given {
		skipped := false
		entry.MedicationSkipped = &skipped
	}
	next[horseID] = entry
	return next
}

// SetMedicationSkipped records that medication was withheld. Skipping
// clears a previously recorded medication-given mark.
func (p ProgressSet) SetMedicationSkipped(horseID string, skipped bool) ProgressSet {
	entry, ok := p[horseID]
	if !ok {
		return p
	}
	next := p.clone()
	entry.MedicationSkipped = &skipped
	if skipped {
		given := false
		entry.MedicationGiven = &given
	}
	next[horseID] = entry
	return next
}

// SetBlanketAction records the blanket outcome for one horse.
func (p ProgressSet) SetBlanketAction(horseID string, action stabletypes.BlanketAction) ProgressSet {
	entry, ok := p[horseID]
	if !ok {
		return p
	}
	next := p.clone()
	entry.BlanketAction = action
	next[horseID] = entry
	return next
}

// UnmarkedCount counts horses with neither completed nor skipped set.
func (p ProgressSet) UnmarkedCount(horses []*stabletypes.Horse) int {
	count := 0
	for _, horse := range horses {
		entry := p[horse.ID]
		if !entry.Completed && !entry.Skipped {
			count++
		}
	}
	return count
}

// CompletedCount counts horses marked done, skips excluded.
func (p ProgressSet) CompletedCount(horses []*stabletypes.Horse) int {
	count := 0
	for _, horse := range horses {
		if p[horse.ID].Completed {
			count++
		}
	}
	return count
}

// Submission converts the working set into the wire shape the step
// completion call expects. Returns nil for an empty set.
func (p ProgressSet) Submission() map[string]*stabletypes.HorseStepProgress {
	if len(p) == 0 {
		return nil
	}
	out := make(map[string]*stabletypes.HorseStepProgress, len(p))
	for id, entry := range p {
		copied := entry
		out[id] = &copied
	}
	return out
}

// CanProceed reports whether a step is ready to be completed: trivially
// true for steps without horses or steps that allow partial completion,
// otherwise every horse must be finalized one way or the other. This is
// a UX gate only, step submission never enforces it.
func CanProceed(step *stabletypes.RoutineStep, horses []*stabletypes.Horse, progress ProgressSet) bool {
	if len(horses) == 0 {
		return true
	}
	if step.AllowPartialCompletion {
		return true
	}
	return progress.UnmarkedCount(horses) == 0
}
