// Package domain defines the persistent entities, value types, error taxonomy
// and rule evaluation primitives used by the occupancy core.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence tables.
const (
	// EntityBlock identifies a building block record.
	EntityBlock EntityType = "block"
	// EntityEntry identifies an entry (stairwell) inside a block.
	EntityEntry EntityType = "entry"
	// EntityUnit identifies a residential unit.
	EntityUnit EntityType = "unit"
	// EntityPerson identifies a person record.
	EntityPerson EntityType = "person"
	// EntityLink identifies an occupancy link between a person and a unit.
	EntityLink EntityType = "link"
	// EntityVehicle identifies a vehicle owned by a person.
	EntityVehicle EntityType = "vehicle"
)

// LinkStatus captures whether an occupancy link is in force.
type LinkStatus string

// Link statuses. Inactive is terminal for a row; reactivation creates a new link.
const (
	LinkActive   LinkStatus = "active"
	LinkInactive LinkStatus = "inactive"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Block is the top level of the residential topology.
type Block struct {
	Base
	Name string `json:"name"`
}

// Entry groups units sharing an entrance within a block.
type Entry struct {
	Base
	Letter  string `json:"letter"`
	BlockID string `json:"block_id"`
}

// Unit is an addressable apartment inside an entry.
type Unit struct {
	Base
	ApartmentNumber string `json:"apartment_number"`
	EntryID         string `json:"entry_id"`
}

// Person is an individual who may be linked to units.
// PrimaryID and AltID are optional but unique when present.
type Person struct {
	Base
	FullName  string `json:"full_name"`
	PrimaryID string `json:"primary_id,omitempty"`
	AltID     string `json:"alt_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// HasIdentifier reports whether the person carries at least one identifier.
func (p Person) HasIdentifier() bool {
	return p.PrimaryID != "" || p.AltID != ""
}

// Vehicle is an owned resource of a person, removed with the person.
type Vehicle struct {
	Base
	PersonID string `json:"person_id"`
	Plate    string `json:"plate"`
	Model    string `json:"model,omitempty"`
}

// Link associates one person with one unit, under one category, over one interval.
type Link struct {
	Base
	PersonID  string     `json:"person_id"`
	UnitID    string     `json:"unit_id"`
	Category  Category   `json:"category"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Status    LinkStatus `json:"status"`
	Note      string     `json:"note,omitempty"`
}

// IsActive reports whether the link is currently in force.
func (l Link) IsActive() bool {
	return l.Status == LinkActive
}

// Day returns the calendar date of t, read in t's own location, as midnight
// UTC. Link start and end dates carry no time of day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// EntityID returns the id of the record touched by the change.
func (c Change) EntityID() string {
	for _, v := range []any{c.After, c.Before} {
		switch rec := v.(type) {
		case Block:
			return rec.ID
		case Entry:
			return rec.ID
		case Unit:
			return rec.ID
		case Person:
			return rec.ID
		case Link:
			return rec.ID
		case Vehicle:
			return rec.ID
		}
	}
	return ""
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in the change log.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)
