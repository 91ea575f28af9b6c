package core

import (
	"context"
	"occupancy/internal/infra/persistence/memory"
	"occupancy/pkg/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 17, 15, 30, 0, 0, time.UTC)

const smallTopologyYAML = `
blocks:
  - from: 1
    to: 2
    entries: [a]
apartments:
  A: ["10", "20", "30"]
`

type fixture struct {
	svc   *Service
	store *memory.Store
	units map[string]string
}

// newFixture bootstraps two blocks with one entry of three units each. Units
// are addressed as block+letter+number, e.g. "1A10".
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWithStore(t, nil, opts...)
}

// newFixtureWithStore is newFixture with extra memory store options applied
// after the fixed clock.
func newFixtureWithStore(t *testing.T, storeOpts []memory.Option, opts ...Option) *fixture {
	t.Helper()
	cfg := applyOptions(opts)
	storeOpts = append([]memory.Option{memory.WithClock(func() time.Time { return fixedNow })}, storeOpts...)
	store := memory.NewStore(NewDefaultRulesEngine(cfg.scope), storeOpts...)
	topo, err := ParseTopology([]byte(smallTopologyYAML))
	require.NoError(t, err)
	svc := NewService(store, opts...).WithTopology(topo)
	res := svc.Bootstrap(context.Background())
	require.True(t, res.Success, res.Message)

	f := &fixture{svc: svc, store: store, units: make(map[string]string)}
	tree, err := svc.Hierarchy(context.Background())
	require.NoError(t, err)
	for _, b := range tree {
		for _, e := range b.Entries {
			for _, u := range e.Units {
				f.units[b.Name+e.Letter+u.ApartmentNumber] = u.ID
			}
		}
	}
	return f
}

func (f *fixture) unit(t *testing.T, key string) string {
	t.Helper()
	id, ok := f.units[key]
	require.True(t, ok, "unknown unit %s", key)
	return id
}

func (f *fixture) person(t *testing.T, primaryID string) string {
	t.Helper()
	var id string
	_, err := f.svc.Coordinator().Run(context.Background(), "seed_person", func(tx domain.Transaction) error {
		p, _, err := f.svc.directory.ResolvePerson(tx, PersonCandidate{FullName: "Person " + primaryID, PrimaryID: primaryID})
		id = p.ID
		return err
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) link(t *testing.T, personID, unitKey string, category domain.Category) string {
	t.Helper()
	res := f.svc.CreateLink(context.Background(), personID, f.unit(t, unitKey), category)
	require.True(t, res.Success, res.Message)
	return res.LinkID
}

func (f *fixture) findLink(t *testing.T, id string) (domain.Link, bool) {
	t.Helper()
	var (
		link domain.Link
		ok   bool
	)
	require.NoError(t, f.store.View(context.Background(), func(v domain.TransactionView) error {
		link, ok = v.FindLink(id)
		return nil
	}))
	return link, ok
}

func (f *fixture) links(t *testing.T) []domain.Link {
	t.Helper()
	var out []domain.Link
	require.NoError(t, f.store.View(context.Background(), func(v domain.TransactionView) error {
		out = v.ListLinks()
		return nil
	}))
	return out
}

// requireInvariants checks the owner and residential invariants over the
// committed state.
func (f *fixture) requireInvariants(t *testing.T) {
	t.Helper()
	owners := make(map[string]int)
	residences := make(map[string]int)
	for _, l := range f.links(t) {
		if !l.IsActive() {
			continue
		}
		if l.Category.IsOwning() {
			owners[l.UnitID]++
		}
		if l.Category.IsResidential() {
			residences[l.PersonID]++
		}
	}
	for unit, n := range owners {
		require.LessOrEqual(t, n, 1, "unit %s has %d active owners", unit, n)
	}
	for person, n := range residences {
		require.LessOrEqual(t, n, 1, "person %s has %d active residences", person, n)
	}
}
