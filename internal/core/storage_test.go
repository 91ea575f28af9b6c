package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStorageDriver(t *testing.T) {
	cases := map[string]StorageDriver{
		"":           StorageSQLite,
		"memory":     StorageMemory,
		" SQLite ":   StorageSQLite,
		"postgres":   StoragePostgres,
		"POSTGRES\n": StoragePostgres,
	}
	for in, want := range cases {
		got, err := ParseStorageDriver(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseStorageDriver("mysql")
	assert.Error(t, err)
}

func TestOpenPersistentStoreMemory(t *testing.T) {
	store, closeFn, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: StorageMemory}, NewDefaultRulesEngine(DuplicateScopeAll))
	require.NoError(t, err)
	require.NoError(t, closeFn())

	res := NewService(store).Bootstrap(context.Background())
	assert.True(t, res.Success, res.Message)
}

func TestOpenPersistentStoreSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := StorageConfig{Driver: StorageSQLite, SQLitePath: filepath.Join(t.TempDir(), "occupancy.db")}

	store, closeFn, err := OpenPersistentStore(ctx, cfg, NewDefaultRulesEngine(DuplicateScopeAll))
	require.NoError(t, err)
	svc := NewService(store)
	require.True(t, svc.Bootstrap(ctx).Success)
	res := svc.ResolveAndLinkPerson(ctx, PersonCandidate{FullName: "Dora", PrimaryID: "777"}, firstUnit(t, svc), "owner")
	require.True(t, res.Success, res.Message)
	require.NoError(t, closeFn())

	store, closeFn, err = OpenPersistentStore(ctx, cfg, NewDefaultRulesEngine(DuplicateScopeAll))
	require.NoError(t, err)
	defer func() { _ = closeFn() }()
	reopened := NewService(store)
	links, err := reopened.ListLinksForPerson(ctx, res.PersonID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, res.LinkID, links[0].ID)

	again := reopened.Bootstrap(ctx)
	assert.False(t, again.Success)
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	_, _, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: "mysql"}, NewDefaultRulesEngine(DuplicateScopeAll))
	assert.Error(t, err)
}

func firstUnit(t *testing.T, svc *Service) string {
	t.Helper()
	tree, err := svc.Hierarchy(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, tree)
	return tree[0].Entries[0].Units[0].ID
}
