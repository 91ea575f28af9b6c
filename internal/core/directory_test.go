package core

import (
	"context"
	"occupancy/pkg/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolve(t *testing.T, f *fixture, c PersonCandidate) (domain.Person, bool, error) {
	t.Helper()
	var (
		p       domain.Person
		created bool
	)
	_, err := f.svc.Coordinator().Run(context.Background(), "resolve", func(tx domain.Transaction) error {
		var err error
		p, created, err = f.svc.directory.ResolvePerson(tx, c)
		return err
	})
	return p, created, err
}

func countPersons(t *testing.T, f *fixture) int {
	t.Helper()
	n := 0
	require.NoError(t, f.store.View(context.Background(), func(v domain.TransactionView) error {
		n = len(v.ListPersons())
		return nil
	}))
	return n
}

func TestResolvePersonIsIdempotentOnPrimaryID(t *testing.T) {
	f := newFixture(t)
	first, created, err := resolve(t, f, PersonCandidate{FullName: "Ana Lima", PrimaryID: "11122233344"})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := resolve(t, f, PersonCandidate{PrimaryID: "111.222.333-44"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ana Lima", second.FullName)
	assert.Equal(t, 1, countPersons(t, f))
}

func TestResolvePersonFallsBackToAltID(t *testing.T) {
	f := newFixture(t)
	first, _, err := resolve(t, f, PersonCandidate{FullName: "Bruno", AltID: " mg-12.345 "})
	require.NoError(t, err)
	assert.Equal(t, "MG-12.345", first.AltID)

	second, created, err := resolve(t, f, PersonCandidate{AltID: "MG-12.345"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// A primary id takes precedence; an unknown primary creates a new record,
	// which then collides on the alternate id.
	_, _, err = resolve(t, f, PersonCandidate{PrimaryID: "555", AltID: "MG-12.345"})
	var conflict domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.InvariantDuplicateIdentifier, conflict.Invariant)
}

func TestResolvePersonValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name  string
		in    PersonCandidate
		field string
	}{
		{name: "no identifiers", in: PersonCandidate{FullName: "Nobody"}, field: "identifier"},
		{name: "letters in primary id", in: PersonCandidate{PrimaryID: "12AB"}, field: "primary_id"},
		{name: "short primary id", in: PersonCandidate{PrimaryID: "12"}, field: "primary_id"},
		{name: "bad email", in: PersonCandidate{PrimaryID: "123", Email: "not-an-email"}, field: "email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := resolve(t, f, tc.in)
			var ve domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
	assert.Zero(t, countPersons(t, f))
}

func TestResolveAndLinkPersonIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	owner := f.person(t, "1001")
	f.link(t, owner, "1A10", domain.CategoryOwner)

	res := f.svc.ResolveAndLinkPerson(context.Background(), PersonCandidate{FullName: "Late Owner", PrimaryID: "2002"}, f.unit(t, "1A10"), domain.CategoryOwner)
	require.False(t, res.Success)
	assert.Equal(t, domain.InvariantOwner, res.Invariant)
	assert.Equal(t, 1, countPersons(t, f), "person created in a failed command must roll back")

	res = f.svc.ResolveAndLinkPerson(context.Background(), PersonCandidate{FullName: "Tenant", PrimaryID: "2002"}, f.unit(t, "1A10"), domain.CategoryTenant)
	require.True(t, res.Success, res.Message)
	assert.NotEmpty(t, res.PersonID)
	assert.NotEmpty(t, res.LinkID)
	assert.Contains(t, res.Message, "created person")

	res = f.svc.ResolveAndLinkPerson(context.Background(), PersonCandidate{PrimaryID: "2002"}, f.unit(t, "1A20"), domain.CategoryResponsible)
	require.True(t, res.Success, res.Message)
	assert.Contains(t, res.Message, "resolved person")
}

func TestUpdatePerson(t *testing.T) {
	f := newFixture(t)
	p1, p2 := f.person(t, "1001"), f.person(t, "1002")
	name, alt, taken, empty := "Carla Souza", "x-1", "1002", ""

	res := f.svc.UpdatePerson(context.Background(), p1, PersonUpdate{FullName: &name, AltID: &alt})
	require.True(t, res.Success, res.Message)
	got, err := f.svc.GetPerson(context.Background(), p1)
	require.NoError(t, err)
	assert.Equal(t, "Carla Souza", got.FullName)
	assert.Equal(t, "X-1", got.AltID)
	assert.Equal(t, "1001", got.PrimaryID)

	res = f.svc.UpdatePerson(context.Background(), p1, PersonUpdate{PrimaryID: &taken})
	require.False(t, res.Success)
	assert.Equal(t, domain.InvariantDuplicateIdentifier, res.Invariant)

	res = f.svc.UpdatePerson(context.Background(), p2, PersonUpdate{PrimaryID: &empty})
	assert.Equal(t, domain.KindValidation, res.Kind)

	res = f.svc.UpdatePerson(context.Background(), "ghost", PersonUpdate{FullName: &name})
	assert.Equal(t, domain.KindNotFound, res.Kind)
}

func TestDeletePersonCascades(t *testing.T) {
	f := newFixture(t)
	p1, p2 := f.person(t, "1001"), f.person(t, "1002")
	f.link(t, p1, "1A10", domain.CategoryOwnerResident)
	ended := f.link(t, p1, "1A20", domain.CategoryResponsible)
	require.True(t, f.svc.DeactivateLink(context.Background(), ended).Success)
	kept := f.link(t, p2, "1A30", domain.CategoryTenant)
	require.True(t, f.svc.AttachVehicle(context.Background(), p1, "abc1d23", "Fiat Uno").Success)

	res := f.svc.DeletePerson(context.Background(), p1)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 2, res.Count)

	_, err := f.svc.GetPerson(context.Background(), p1)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	links := f.links(t)
	require.Len(t, links, 1)
	assert.Equal(t, kept, links[0].ID)
	require.NoError(t, f.store.View(context.Background(), func(v domain.TransactionView) error {
		assert.Empty(t, v.ListVehicles())
		return nil
	}))

	assert.Equal(t, domain.KindNotFound, f.svc.DeletePerson(context.Background(), p1).Kind)
}

func TestAttachVehicle(t *testing.T) {
	f := newFixture(t)
	p1 := f.person(t, "1001")

	res := f.svc.AttachVehicle(context.Background(), p1, " abc1d23 ", "Gol")
	require.True(t, res.Success, res.Message)
	assert.NotEmpty(t, res.VehicleID)
	assert.Contains(t, res.Message, "ABC1D23")

	assert.Equal(t, domain.KindValidation, f.svc.AttachVehicle(context.Background(), p1, " ", "").Kind)
	assert.Equal(t, domain.KindNotFound, f.svc.AttachVehicle(context.Background(), "ghost", "XYZ", "").Kind)
}

func TestSearchPersons(t *testing.T) {
	f := newFixture(t)
	for _, c := range []PersonCandidate{
		{FullName: "Ana Lima", PrimaryID: "11122233344"},
		{FullName: "Bruno Alves", PrimaryID: "55566677788"},
		{FullName: "Ana Beatriz Costa", AltID: "RG-42"},
	} {
		_, _, err := resolve(t, f, c)
		require.NoError(t, err)
	}

	hits, err := f.svc.SearchPersons(context.Background(), "ana", 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Ana Lima", hits[0].Person.FullName)

	hits, err = f.svc.SearchPersons(context.Background(), "555.666", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Bruno Alves", hits[0].Person.FullName)

	hits, err = f.svc.SearchPersons(context.Background(), "rg-4", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "RG-42", hits[0].Person.AltID)

	hits, err = f.svc.SearchPersons(context.Background(), "a", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = f.svc.SearchPersons(context.Background(), "  ", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
