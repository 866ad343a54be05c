package careflow

import "github.com/hoofbeat/stableops/stabletypes"

// NotesGate is the one-time interstitial that blocks step execution
// until the day's notes are acknowledged. Acknowledgment is a local
// action, nothing is persisted. The gate only applies when the instance
// is started fresh from SCHEDULED; resuming an already running instance
// bypasses it.
type NotesGate struct {
	acknowledged bool
}

// Required reports whether the gate must interpose before step
// execution.
func (g *NotesGate) Required(startedFromScheduled bool, notes *stabletypes.DailyNotes) bool {
	if !startedFromScheduled || g.acknowledged {
		return false
	}
	return notes.HasEntries()
}

// Acknowledge opens the gate for the rest of the execution.
func (g *NotesGate) Acknowledge() {
	g.acknowledged = true
}
