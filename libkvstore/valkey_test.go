package libkvstore_test

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	libkv "github.com/hoofbeat/stableops/libkvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupExec(t *testing.T) (context.Context, libkv.KVExec, func()) {
	t.Helper()
	ctx := context.Background()

	connStr, _, cleanup, err := libkv.SetupLocalValKeyInstance(ctx)
	require.NoError(t, err)

	u, err := url.Parse(connStr)
	require.NoError(t, err)

	manager, err := libkv.NewManager(libkv.Config{KVAddr: u.Host}, 10*time.Second)
	require.NoError(t, err)

	kv, err := manager.Executor(ctx)
	require.NoError(t, err)

	return ctx, kv, func() {
		_ = manager.Close()
		cleanup()
	}
}

func TestUnit_ValkeyCRUD(t *testing.T) {
	ctx, kv, done := setupExec(t)
	defer done()

	key := "testkey"
	value := json.RawMessage(`"testvalue"`)

	require.NoError(t, kv.Set(ctx, key, value))

	retrieved, err := kv.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, retrieved)

	exists, err := kv.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, kv.Delete(ctx, key))

	_, err = kv.Get(ctx, key)
	assert.ErrorIs(t, err, libkv.ErrNotFound)

	exists, err = kv.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUnit_ValkeyTTL(t *testing.T) {
	ctx, kv, done := setupExec(t)
	defer done()

	key := "ttlkey"
	value := json.RawMessage(`"ttlvalue"`)

	require.NoError(t, kv.SetWithTTL(ctx, key, value, 2*time.Second))

	time.Sleep(3 * time.Second)

	_, err := kv.Get(ctx, key)
	assert.ErrorIs(t, err, libkv.ErrNotFound)
}

func TestUnit_ValkeyKeysAndLists(t *testing.T) {
	ctx, kv, done := setupExec(t)
	defer done()

	keys := []string{"key1", "key2", "key3"}
	value := json.RawMessage(`"value"`)
	for _, key := range keys {
		require.NoError(t, kv.Set(ctx, key, value))
	}

	listed, err := kv.Keys(ctx, "*")
	require.NoError(t, err)
	listedMap := make(map[string]bool)
	for _, k := range listed {
		listedMap[k] = true
	}
	for _, key := range keys {
		assert.True(t, listedMap[key])
	}

	listKey := "testlist"
	for _, v := range []string{`"item1"`, `"item2"`, `"item3"`} {
		require.NoError(t, kv.ListPush(ctx, listKey, json.RawMessage(v)))
	}
	items, err := kv.ListRange(ctx, listKey, 0, -1)
	require.NoError(t, err)
	require.Len(t, items, 3)
	// LPUSH semantics: newest first.
	for i, expected := range []string{"item3", "item2", "item1"} {
		var actual string
		require.NoError(t, json.Unmarshal(items[i], &actual))
		assert.Equal(t, expected, actual)
	}
}
