package stabletypes_test

import (
	"testing"
	"time"

	libdb "github.com/hoofbeat/stableops/libdbexec"
	"github.com/hoofbeat/stableops/stabletypes"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestUnit_Horse_CreatesAndFetchesByID(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	horse := &stabletypes.Horse{
		ID:       uuid.NewString(),
		StableID: "stable-1",
		Name:     "Whisper",
		IsActive: true,
	}

	err := s.CreateHorse(ctx, horse)
	require.NoError(t, err)
	require.NotEmpty(t, horse.ID)

	got, err := s.GetHorse(ctx, horse.ID)
	require.NoError(t, err)
	require.Equal(t, horse.Name, got.Name)
	require.Equal(t, horse.StableID, got.StableID)
	require.True(t, got.IsActive)
	require.WithinDuration(t, horse.CreatedAt, got.CreatedAt, time.Second)
}

func TestUnit_Horse_AssignsIDWhenMissing(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	horse := &stabletypes.Horse{
		StableID: "stable-1",
		Name:     "Comet",
		IsActive: true,
	}
	err := s.CreateHorse(ctx, horse)
	require.NoError(t, err)
	require.NotEmpty(t, horse.ID)
}

func TestUnit_Horse_UpdatesFieldsCorrectly(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	horse := &stabletypes.Horse{
		ID:       uuid.NewString(),
		StableID: "stable-1",
		Name:     "Initial",
		IsActive: true,
	}
	err := s.CreateHorse(ctx, horse)
	require.NoError(t, err)

	horse.Name = "Renamed"
	horse.HorseGroupID = "group-a"
	horse.IsActive = false

	err = s.UpdateHorse(ctx, horse)
	require.NoError(t, err)

	got, err := s.GetHorse(ctx, horse.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed", got.Name)
	require.Equal(t, "group-a", got.HorseGroupID)
	require.False(t, got.IsActive)
}

func TestUnit_Horse_DeletesSuccessfully(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	horse := &stabletypes.Horse{
		ID:       uuid.NewString(),
		StableID: "stable-1",
		Name:     "ToDelete",
		IsActive: true,
	}
	err := s.CreateHorse(ctx, horse)
	require.NoError(t, err)

	err = s.DeleteHorse(ctx, horse.ID)
	require.NoError(t, err)

	_, err = s.GetHorse(ctx, horse.ID)
	require.ErrorIs(t, err, libdb.ErrNotFound)

	err = s.DeleteHorse(ctx, horse.ID)
	require.ErrorIs(t, err, libdb.ErrNotFound)
}

func TestUnit_Horse_ListForStableSkipsInactiveAndForeign(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	require.NoError(t, s.CreateHorse(ctx, &stabletypes.Horse{StableID: "stable-1", Name: "Bravo", IsActive: true}))
	require.NoError(t, s.CreateHorse(ctx, &stabletypes.Horse{StableID: "stable-1", Name: "Alpha", IsActive: true}))
	require.NoError(t, s.CreateHorse(ctx, &stabletypes.Horse{StableID: "stable-1", Name: "Retired", IsActive: false}))
	require.NoError(t, s.CreateHorse(ctx, &stabletypes.Horse{StableID: "stable-2", Name: "Elsewhere", IsActive: true}))

	horses, err := s.ListHorsesForStable(ctx, "stable-1")
	require.NoError(t, err)
	require.Len(t, horses, 2)
	// Ordered by name.
	require.Equal(t, "Alpha", horses[0].Name)
	require.Equal(t, "Bravo", horses[1].Name)
}

func TestUnit_Horse_ListByIDsAndGroups(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	a := &stabletypes.Horse{StableID: "stable-1", Name: "A", HorseGroupID: "g1", IsActive: true}
	b := &stabletypes.Horse{StableID: "stable-1", Name: "B", HorseGroupID: "g2", IsActive: true}
	c := &stabletypes.Horse{StableID: "stable-1", Name: "C", HorseGroupID: "g1", IsActive: true}
	for _, h := range []*stabletypes.Horse{a, b, c} {
		require.NoError(t, s.CreateHorse(ctx, h))
	}

	byIDs, err := s.ListHorsesByIDs(ctx, []string{a.ID, c.ID})
	require.NoError(t, err)
	require.Len(t, byIDs, 2)

	empty, err := s.ListHorsesByIDs(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)

	byGroups, err := s.ListHorsesByGroups(ctx, "stable-1", []string{"g1"})
	require.NoError(t, err)
	require.Len(t, byGroups, 2)
	require.Equal(t, "A", byGroups[0].Name)
	require.Equal(t, "C", byGroups[1].Name)

	none, err := s.ListHorsesByGroups(ctx, "stable-1", nil)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestUnit_HorseGroup_CRUDAndUniqueName(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	group := &stabletypes.HorseGroup{
		StableID: "stable-1",
		Name:     "Paddock A",
	}
	err := s.CreateHorseGroup(ctx, group)
	require.NoError(t, err)
	require.NotEmpty(t, group.ID)

	got, err := s.GetHorseGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Equal(t, "Paddock A", got.Name)

	dup := &stabletypes.HorseGroup{StableID: "stable-1", Name: "Paddock A"}
	err = s.CreateHorseGroup(ctx, dup)
	require.ErrorIs(t, err, libdb.ErrUniqueViolation)

	groups, err := s.ListHorseGroups(ctx, "stable-1")
	require.NoError(t, err)
	require.Len(t, groups, 1)

	require.NoError(t, s.DeleteHorseGroup(ctx, group.ID))
	_, err = s.GetHorseGroup(ctx, group.ID)
	require.ErrorIs(t, err, libdb.ErrNotFound)
}

func TestUnit_Horse_EstimateCount(t *testing.T) {
	ctx, s := stabletypes.SetupStore(t)

	require.NoError(t, s.CreateHorse(ctx, &stabletypes.Horse{StableID: "stable-1", Name: "One", IsActive: true}))

	count, err := s.EstimateHorseCount(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, int64(0))
}
