package horseservice_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/hoofbeat/stableops/apiframework"
	"github.com/hoofbeat/stableops/horseservice"
	libdb "github.com/hoofbeat/stableops/libdbexec"
	"github.com/hoofbeat/stableops/libkvstore"
	"github.com/hoofbeat/stableops/libtracker"
	"github.com/hoofbeat/stableops/stabletypes"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T, withCache bool) (context.Context, horseservice.Service) {
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

	var kvManager libkvstore.KVManager
	if withCache {
		kvConn, _, kvCleanup, err := libkvstore.SetupLocalValKeyInstance(ctx)
		require.NoError(t, err)
		u, err := url.Parse(kvConn)
		require.NoError(t, err)
		kvManager, err = libkvstore.NewManager(libkvstore.Config{KVAddr: u.Host}, 10*time.Second)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = kvManager.Close()
			kvCleanup()
		})
	}

	service := horseservice.WithActivityTracker(
		horseservice.New(dbManager, kvManager),
		libtracker.NoopTracker{},
	)
	return ctx, service
}

func TestSystem_HorseCRUDWithoutCache(t *testing.T) {
	ctx, service := setupService(t, false)

	err := service.Create(ctx, &stabletypes.Horse{StableID: "stable-1"})
	require.ErrorIs(t, err, apiframework.ErrUnprocessableEntity)

	horse := &stabletypes.Horse{StableID: "stable-1", Name: "Whisper", IsActive: true}
	require.NoError(t, service.Create(ctx, horse))
	require.NotEmpty(t, horse.ID)

	got, err := service.Get(ctx, horse.ID)
	require.NoError(t, err)
	require.Equal(t, "Whisper", got.Name)

	got.Name = "Willow"
	require.NoError(t, service.Update(ctx, got))

	roster, err := service.ListForStable(ctx, "stable-1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	require.Equal(t, "Willow", roster[0].Name)

	require.NoError(t, service.Delete(ctx, horse.ID))
	_, err = service.Get(ctx, horse.ID)
	require.ErrorIs(t, err, libdb.ErrNotFound)
}

func TestSystem_RosterCacheInvalidation(t *testing.T) {
	ctx, service := setupService(t, true)

	horse := &stabletypes.Horse{StableID: "stable-1", Name: "Comet", IsActive: true}
	require.NoError(t, service.Create(ctx, horse))

	// Prime the cache.
	roster, err := service.ListForStable(ctx, "stable-1")
	require.NoError(t, err)
	require.Len(t, roster, 1)

	// Cached read returns the same roster.
	roster, err = service.ListForStable(ctx, "stable-1")
	require.NoError(t, err)
	require.Len(t, roster, 1)

	// A write invalidates, so the next read sees the new horse.
	require.NoError(t, service.Create(ctx, &stabletypes.Horse{StableID: "stable-1", Name: "Nova", IsActive: true}))
	roster, err = service.ListForStable(ctx, "stable-1")
	require.NoError(t, err)
	require.Len(t, roster, 2)

	require.NoError(t, service.Delete(ctx, horse.ID))
	roster, err = service.ListForStable(ctx, "stable-1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	require.Equal(t, "Nova", roster[0].Name)
}

func TestSystem_GroupLifecycleAndScopedLists(t *testing.T) {
	ctx, service := setupService(t, false)

	group := &stabletypes.HorseGroup{StableID: "stable-1", Name: "Paddock A"}
	require.NoError(t, service.CreateGroup(ctx, group))

	err := service.CreateGroup(ctx, &stabletypes.HorseGroup{StableID: "stable-1", Name: "Paddock A"})
	require.ErrorIs(t, err, libdb.ErrUniqueViolation)

	a := &stabletypes.Horse{StableID: "stable-1", Name: "A", HorseGroupID: group.ID, IsActive: true}
	b := &stabletypes.Horse{StableID: "stable-1", Name: "B", IsActive: true}
	require.NoError(t, service.Create(ctx, a))
	require.NoError(t, service.Create(ctx, b))

	inGroup, err := service.ListByGroups(ctx, "stable-1", []string{group.ID})
	require.NoError(t, err)
	require.Len(t, inGroup, 1)
	require.Equal(t, "A", inGroup[0].Name)

	byIDs, err := service.ListByIDs(ctx, []string{a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, byIDs, 2)

	groups, err := service.ListGroups(ctx, "stable-1")
	require.NoError(t, err)
	require.Len(t, groups, 1)

	require.NoError(t, service.DeleteGroup(ctx, group.ID))
	_, err = service.GetGroup(ctx, group.ID)
	require.ErrorIs(t, err, libdb.ErrNotFound)
}
