package stabletypes_test

import (
	"testing"
	"time"

	libdb "github.com/hoofbeat/stableops/libdbexec"
	"github.com/hoofbeat/stableops/stabletypes"
	"github.com/stretchr/testify/require"
)

func scheduledInstance(stableID string, at time.Time) *stabletypes.RoutineInstance {
	steps := defaultSteps()
	return &stabletypes.RoutineInstance{
		TemplateID:   "template-1",
		TemplateName: "Morning routine",
		StableID:     stableID,
		Steps:        steps,
		ScheduledAt:  at,
		Status:       stabletypes.InstanceScheduled,
		Progress: stabletypes.RoutineProgress{
			StepsTotal: len(steps),
			Steps:      map[string]*stabletypes.StepProgress{},
		},
	}
}

func TestUnit_Instance_CreatesAndFetchesWithProgress(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	instance := scheduledInstance("stable-1", time.Now().UTC())
	err := s.CreateInstance(ctx, instance)
	require.NoError(t, err)
	require.NotEmpty(t, instance.ID)

	got, err := s.GetInstance(ctx, instance.ID)
	require.NoError(t, err)
	require.Equal(t, instance.TemplateID, got.TemplateID)
	require.Equal(t, stabletypes.InstanceScheduled, got.Status)
	require.Len(t, got.Steps, 2)
	require.Equal(t, 2, got.Progress.StepsTotal)
	require.Equal(t, 0, got.Progress.PercentComplete)
	require.Nil(t, got.StartedAt)
}

func TestUnit_Instance_UpdatePersistsStepProgress(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	instance := scheduledInstance("stable-1", time.Now().UTC())
	require.NoError(t, s.CreateInstance(ctx, instance))

	now := time.Now().UTC()
	stepID := instance.Steps[0].ID
	instance.Status = stabletypes.InstanceInProgress
	instance.StartedAt = &now
	instance.Progress.StepsCompleted = 1
	instance.Progress.PercentComplete = 50
	instance.Progress.Steps = map[string]*stabletypes.StepProgress{
		stepID: {
			Status:      stabletypes.StepCompleted,
			CompletedAt: &now,
			Horses: map[string]*stabletypes.HorseStepProgress{
				"horse-1": {Completed: true, CompletedBy: "user-1", CompletedAt: &now},
				"horse-2": {Skipped: true, SkipReason: "lame"},
			},
			HorsesCompleted: 1,
			HorsesTotal:     2,
		},
	}
	require.NoError(t, s.UpdateInstance(ctx, instance))

	got, err := s.GetInstance(ctx, instance.ID)
	require.NoError(t, err)
	require.Equal(t, stabletypes.InstanceInProgress, got.Status)
	require.NotNil(t, got.StartedAt)
	require.Equal(t, 1, got.Progress.StepsCompleted)
	require.Equal(t, 50, got.Progress.PercentComplete)

	stepProgress := got.Progress.Steps[stepID]
	require.NotNil(t, stepProgress)
	require.Equal(t, stabletypes.StepCompleted, stepProgress.Status)
	require.Equal(t, 1, stepProgress.HorsesCompleted)
	require.True(t, stepProgress.Horses["horse-1"].Completed)
	require.True(t, stepProgress.Horses["horse-2"].Skipped)
	require.Equal(t, "lame", stepProgress.Horses["horse-2"].SkipReason)
}

func TestUnit_Instance_DeleteAndNotFound(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	instance := scheduledInstance("stable-1", time.Now().UTC())
	require.NoError(t, s.CreateInstance(ctx, instance))

	require.NoError(t, s.DeleteInstance(ctx, instance.ID))
	_, err := s.GetInstance(ctx, instance.ID)
	require.ErrorIs(t, err, libdb.ErrNotFound)

	err = s.UpdateInstance(ctx, instance)
	require.ErrorIs(t, err, libdb.ErrNotFound)
}

func TestUnit_Instance_ListFiltersByDate(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	today := time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)
	yesterday := today.Add(-24 * time.Hour)

	require.NoError(t, s.CreateInstance(ctx, scheduledInstance("stable-1", today)))
	require.NoError(t, s.CreateInstance(ctx, scheduledInstance("stable-1", today.Add(10*time.Hour))))
	require.NoError(t, s.CreateInstance(ctx, scheduledInstance("stable-1", yesterday)))
	require.NoError(t, s.CreateInstance(ctx, scheduledInstance("stable-2", today)))

	all, err := s.ListInstances(ctx, "stable-1", nil, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	day := today
	onDay, err := s.ListInstances(ctx, "stable-1", &day, 0)
	require.NoError(t, err)
	require.Len(t, onDay, 2)
	// Day filter orders ascending by scheduled time.
	require.True(t, onDay[0].ScheduledAt.Before(onDay[1].ScheduledAt))

	_, err = s.ListInstances(ctx, "stable-1", nil, stabletypes.MAXLIMIT+1)
	require.ErrorIs(t, err, stabletypes.ErrLimitParamExceeded)
}

func TestUnit_Instance_ListScheduledBeforeCutoff(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	cutoff := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	stale := scheduledInstance("stable-1", cutoff.Add(-2*time.Hour))
	require.NoError(t, s.CreateInstance(ctx, stale))

	started := scheduledInstance("stable-1", cutoff.Add(-3*time.Hour))
	started.Status = stabletypes.InstanceStarted
	require.NoError(t, s.CreateInstance(ctx, started))

	upcoming := scheduledInstance("stable-1", cutoff.Add(time.Hour))
	require.NoError(t, s.CreateInstance(ctx, upcoming))

	got, err := s.ListScheduledInstancesBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, stale.ID, got[0].ID)
}
