package careflow_test

import (
	"testing"

	"github.com/hoofbeat/stableops/careflow"
	"github.com/hoofbeat/stableops/stabletypes"
	"github.com/stretchr/testify/require"
)

func rosterOf(ids ...string) []*stabletypes.Horse {
	horses := make([]*stabletypes.Horse, 0, len(ids))
	for _, id := range ids {
		horses = append(horses, &stabletypes.Horse{ID: id, Name: "horse-" + id, IsActive: true})
	}
	return horses
}

func TestUnit_SeedProgressPrefersExistingEntries(t *testing.T) {
	horses := rosterOf("h1", "h2")
	existing := map[string]*stabletypes.HorseStepProgress{
		"h1": {Completed: true, Notes: "already fed"},
	}

	set := careflow.SeedProgress(horses, existing)
	require.Len(t, set, 2)
	require.True(t, set["h1"].Completed)
	require.Equal(t, "already fed", set["h1"].Notes)
	require.False(t, set["h2"].Completed)
	require.False(t, set["h2"].Skipped)
}

func TestUnit_MarkDoneAndSkippedAreMutuallyExclusive(t *testing.T) {
	set := careflow.SeedProgress(rosterOf("h1"), nil)

	set = set.MarkSkipped("h1", "lame", "anna")
	require.True(t, set["h1"].Skipped)
	require.False(t, set["h1"].Completed)
	require.Equal(t, "lame", set["h1"].SkipReason)

	set = set.MarkDone("h1", "anna")
	require.True(t, set["h1"].Completed)
	require.False(t, set["h1"].Skipped)
	require.Empty(t, set["h1"].SkipReason)
	require.NotNil(t, set["h1"].CompletedAt)
	require.Equal(t, "anna", set["h1"].CompletedBy)
}

func TestUnit_MutationsCopyOnWrite(t *testing.T) {
	before := careflow.SeedProgress(rosterOf("h1"), nil)
	after := before.MarkDone("h1", "anna")

	require.False(t, before["h1"].Completed)
	require.True(t, after["h1"].Completed)

	unknown := after.MarkDone("missing", "anna")
	require.Len(t, unknown, 1)
}

func TestUnit_MarkAllRemainingDoneIsIdempotentAndSkipPreserving(t *testing.T) {
	set := careflow.SeedProgress(rosterOf("h1", "h2", "h3"), nil)
	set = set.MarkSkipped("h2", "vet visit", "anna")

	once := set.MarkAllRemainingDone("anna")
	require.True(t, once["h1"].Completed)
	require.True(t, once["h2"].Skipped)
	require.False(t, once["h2"].Completed)
	require.True(t, once["h3"].Completed)

	twice := once.MarkAllRemainingDone("anna")
	require.Equal(t, once, twice)
}

func TestUnit_MedicationGivenAndSkippedExcludeEachOther(t *testing.T) {
	set := careflow.SeedProgress(rosterOf("h1"), nil)

	set = set.SetMedicationSkipped("h1", true)
	require.True(t, *set["h1"].MedicationSkipped)

	set = set.SetMedicationGiven("h1", true)
	require.True(t, *set["h1"].MedicationGiven)
	require.False(t, *set["h1"].MedicationSkipped)

	set = set.SetMedicationSkipped("h1", true)
	require.True(t, *set["h1"].MedicationSkipped)
	require.False(t, *set["h1"].MedicationGiven)
}

func TestUnit_FeatureSettersTouchOnlyTheirField(t *testing.T) {
	set := careflow.SeedProgress(rosterOf("h1"), nil)
	set = set.MarkDone("h1", "anna")
	set = set.SetFeedingConfirmed("h1", true)
	set = set.SetBlanketAction("h1", stabletypes.BlanketOn)
	set = set.SetNotes("h1", "ate slowly")

	entry := set["h1"]
	require.True(t, entry.Completed)
	require.True(t, *entry.FeedingConfirmed)
	require.Equal(t, stabletypes.BlanketOn, entry.BlanketAction)
	require.Equal(t, "ate slowly", entry.Notes)
}

func TestUnit_CanProceed(t *testing.T) {
	strict := &stabletypes.RoutineStep{ID: "s1", AllowPartialCompletion: false}
	partial := &stabletypes.RoutineStep{ID: "s2", AllowPartialCompletion: true}
	horses := rosterOf("h1", "h2")
	set := careflow.SeedProgress(horses, nil)

	require.True(t, careflow.CanProceed(strict, nil, nil))
	require.True(t, careflow.CanProceed(partial, horses, set))
	require.False(t, careflow.CanProceed(strict, horses, set))

	set = set.MarkDone("h1", "anna")
	require.False(t, careflow.CanProceed(strict, horses, set))
	require.Equal(t, 1, set.UnmarkedCount(horses))
	require.Equal(t, 1, set.CompletedCount(horses))

	set = set.MarkSkipped("h2", "", "anna")
	require.True(t, careflow.CanProceed(strict, horses, set))
	require.Equal(t, 0, set.UnmarkedCount(horses))
	require.Equal(t, 1, set.CompletedCount(horses))
}

func TestUnit_SubmissionShape(t *testing.T) {
	require.Nil(t, careflow.ProgressSet{}.Submission())

	set := careflow.SeedProgress(rosterOf("h1"), nil)
	set = set.MarkDone("h1", "anna")
	out := set.Submission()
	require.Len(t, out, 1)
	require.True(t, out["h1"].Completed)
}
