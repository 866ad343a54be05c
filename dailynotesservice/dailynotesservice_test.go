package dailynotesservice_test

import (
	"context"
	"testing"

	"github.com/hoofbeat/stableops/apiframework"
	"github.com/hoofbeat/stableops/dailynotesservice"
	libdb "github.com/hoofbeat/stableops/libdbexec"
	"github.com/hoofbeat/stableops/libtracker"
	"github.com/hoofbeat/stableops/stabletypes"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (context.Context, dailynotesservice.Service) {
	t.Helper()

	ctx := context.TODO()
	connStr, _, cleanup, err := libdb.SetupLocalInstance(ctx, "test", "test", "test")
	require.NoError(t, err)

	dbManager, err := libdb.NewPostgresDBManager(ctx, connStr, stabletypes.Schema)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, dbManager.Close())
		cleanup()
	})

	service := dailynotesservice.WithActivityTracker(
		dailynotesservice.New(dbManager),
		libtracker.NoopTracker{},
	)
	return ctx, service
}

func TestSystem_DailyNotesSetAndGet(t *testing.T) {
	ctx, service := setupService(t)

	notes := &stabletypes.DailyNotes{
		StableID:     "stable-1",
		Date:         "2024-03-10",
		GeneralNotes: "Farrier at noon",
		HorseNotes: []stabletypes.HorseNote{
			{HorseID: "horse-1", Text: "Check left front shoe", Priority: stabletypes.PriorityHigh},
		},
	}
	require.NoError(t, service.Set(ctx, notes))

	got, err := service.Get(ctx, "stable-1", "2024-03-10")
	require.NoError(t, err)
	require.Equal(t, "Farrier at noon", got.GeneralNotes)
	require.True(t, got.HasEntries())
}

func TestSystem_DailyNotesAbsenceIsEmptyDocument(t *testing.T) {
	ctx, service := setupService(t)

	got, err := service.Get(ctx, "stable-1", "2024-03-11")
	require.NoError(t, err)
	require.Equal(t, "stable-1", got.StableID)
	require.Equal(t, "2024-03-11", got.Date)
	require.False(t, got.HasEntries())
}

func TestSystem_DailyNotesValidation(t *testing.T) {
	ctx, service := setupService(t)

	err := service.Set(ctx, &stabletypes.DailyNotes{StableID: "stable-1", Date: "10.03.2024"})
	require.ErrorIs(t, err, apiframework.ErrUnprocessableEntity)

	err = service.Set(ctx, &stabletypes.DailyNotes{
		StableID:   "stable-1",
		Date:       "2024-03-10",
		HorseNotes: []stabletypes.HorseNote{{Text: "no horse"}},
	})
	require.ErrorIs(t, err, apiframework.ErrUnprocessableEntity)

	_, err = service.Get(ctx, "", "2024-03-10")
	require.ErrorIs(t, err, apiframework.ErrMissingParameter)

	_, err = service.Get(ctx, "stable-1", "not-a-date")
	require.ErrorIs(t, err, apiframework.ErrInvalidParameterValue)
}
