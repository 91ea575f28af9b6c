package archive_test

import (
	"context"
	"errors"
	"occupancy/internal/archive"
	"occupancy/internal/core"
	"occupancy/internal/infra/blob/memory"
	"occupancy/pkg/domain"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededService(t *testing.T) *core.Service {
	t.Helper()
	ctx := context.Background()
	svc := core.NewInMemoryService()
	require.True(t, svc.Bootstrap(ctx).Success)
	tree, err := svc.Hierarchy(ctx)
	require.NoError(t, err)
	unit := tree[0].Entries[0].Units[0].ID
	res := svc.ResolveAndLinkPerson(ctx, core.PersonCandidate{FullName: "Ana Lima", PrimaryID: "11122233344"}, unit, domain.CategoryOwnerResident)
	require.True(t, res.Success, res.Message)
	require.True(t, svc.AttachVehicle(ctx, res.PersonID, "ABC1D23", "Gol").Success)
	return svc
}

func TestExportWritesSnapshot(t *testing.T) {
	ctx := context.Background()
	svc := seededService(t)
	store := memory.New()
	at := time.Date(2024, 5, 17, 15, 30, 0, 0, time.UTC)
	exp := archive.NewExporter(svc.Coordinator(), store, archive.WithClock(func() time.Time { return at }))

	info, snap, err := exp.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/snapshot-20240517T153000.000000000Z.json", info.Key)
	assert.Equal(t, "application/json", info.ContentType)
	assert.Equal(t, "1", info.Metadata["links"])
	assert.Equal(t, archive.Counts{Blocks: 10, Entries: 24, Units: 192, Persons: 1, Links: 1, Vehicles: 1}, snap.Counts)

	latest, _, err := exp.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.Counts, latest.Counts)
	require.Len(t, latest.Links, 1)
	assert.Equal(t, domain.CategoryOwnerResident, latest.Links[0].Category)
	assert.Equal(t, "11122233344", latest.Persons[0].PrimaryID)
}

func TestLatestPicksNewestSnapshot(t *testing.T) {
	ctx := context.Background()
	svc := seededService(t)
	store := memory.New()
	clock := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	exp := archive.NewExporter(svc.Coordinator(), store, archive.WithPrefix("backups"), archive.WithClock(func() time.Time {
		clock = clock.Add(time.Hour)
		return clock
	}))

	_, _, err := exp.Latest(ctx)
	require.ErrorIs(t, err, archive.ErrNoSnapshot)

	_, _, err = exp.Export(ctx)
	require.NoError(t, err)
	links, err := svc.ListLinksForPerson(ctx, mustPerson(t, svc))
	require.NoError(t, err)
	require.True(t, svc.DeleteLink(ctx, links[0].ID).Success)
	_, _, err = exp.Export(ctx)
	require.NoError(t, err)

	infos, err := exp.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.True(t, strings.HasPrefix(infos[0].Key, "backups/"))

	latest, info, err := exp.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, infos[1].Key, info.Key)
	assert.Zero(t, latest.Counts.Links)
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	_, err := archive.Decode(strings.NewReader(`{"version": 99}`))
	assert.Error(t, err)
	_, err = archive.Decode(strings.NewReader(`{`))
	assert.Error(t, err)
	snap, err := archive.Decode(strings.NewReader(`{"version": 1, "links": []}`))
	require.NoError(t, err)
	assert.Empty(t, snap.Links)
}

type brokenSource struct{}

func (brokenSource) View(context.Context, func(domain.TransactionView) error) error {
	return errors.New("database is locked")
}

func TestExportSurfacesSourceFailure(t *testing.T) {
	store := memory.New()
	_, _, err := archive.NewExporter(brokenSource{}, store).Export(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	list, _ := store.List(context.Background(), "")
	assert.Empty(t, list)
}

func mustPerson(t *testing.T, svc *core.Service) string {
	t.Helper()
	hits, err := svc.SearchPersons(context.Background(), "111", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	return hits[0].Person.ID
}
