package domain

import (
	"context"
	"time"
)

// TransactionView provides read-only access to a consistent snapshot of the
// occupancy state. Lists are returned in a stable order.
type TransactionView interface {
	ListBlocks() []Block
	ListEntries() []Entry
	ListUnits() []Unit
	ListPersons() []Person
	ListLinks() []Link
	ListVehicles() []Vehicle

	FindBlock(id string) (Block, bool)
	FindEntry(id string) (Entry, bool)
	FindUnit(id string) (Unit, bool)
	FindPerson(id string) (Person, bool)
	FindLink(id string) (Link, bool)
	FindVehicle(id string) (Vehicle, bool)

	FindPersonByPrimaryID(primaryID string) (Person, bool)
	FindPersonByAltID(altID string) (Person, bool)

	ListEntriesForBlock(blockID string) []Entry
	ListUnitsForEntry(entryID string) []Unit
	ListLinksForUnit(unitID string) []Link
	ListLinksForPerson(personID string) []Link
	ListVehiclesForPerson(personID string) []Vehicle
}

// Transaction exposes the mutations a persistence implementation must support
// within an atomic scope. Reads through the embedded view observe the
// transaction's own uncommitted writes.
type Transaction interface {
	TransactionView

	Snapshot() TransactionView
	Changes() []Change
	Now() time.Time

	CreateBlock(Block) (Block, error)
	CreateEntry(Entry) (Entry, error)
	CreateUnit(Unit) (Unit, error)

	CreatePerson(Person) (Person, error)
	UpdatePerson(id string, mutator func(*Person) error) (Person, error)
	DeletePerson(id string) error

	CreateLink(Link) (Link, error)
	UpdateLink(id string, mutator func(*Link) error) (Link, error)
	DeleteLink(id string) error

	CreateVehicle(Vehicle) (Vehicle, error)
	DeleteVehicle(id string) error
}

// PersistentStore is a minimal abstraction over durable backends. Writers are
// serialized; View observes only committed state.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}
