// Package memory provides an in-memory implementation of the occupancy
// persistence store. It is the transactional core shared by the SQL backends.
package memory

import (
	"context"
	"fmt"
	"occupancy/pkg/domain"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

// CommitHook runs inside RunInTransaction after rules pass and before the new
// state becomes visible. A non-nil error discards the transaction.
type CommitHook func(ctx context.Context, changes []domain.Change) error

type memoryState struct {
	blocks   map[string]domain.Block
	entries  map[string]domain.Entry
	units    map[string]domain.Unit
	persons  map[string]domain.Person
	links    map[string]domain.Link
	vehicles map[string]domain.Vehicle
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Blocks   map[string]domain.Block   `json:"blocks"`
	Entries  map[string]domain.Entry   `json:"entries"`
	Units    map[string]domain.Unit    `json:"units"`
	Persons  map[string]domain.Person  `json:"persons"`
	Links    map[string]domain.Link    `json:"links"`
	Vehicles map[string]domain.Vehicle `json:"vehicles"`
}

func newMemoryState() memoryState {
	return memoryState{
		blocks:   make(map[string]domain.Block),
		entries:  make(map[string]domain.Entry),
		units:    make(map[string]domain.Unit),
		persons:  make(map[string]domain.Person),
		links:    make(map[string]domain.Link),
		vehicles: make(map[string]domain.Vehicle),
	}
}

func (s memoryState) clone() memoryState {
	out := newMemoryState()
	for k, v := range s.blocks {
		out.blocks[k] = v
	}
	for k, v := range s.entries {
		out.entries[k] = v
	}
	for k, v := range s.units {
		out.units[k] = v
	}
	for k, v := range s.persons {
		out.persons[k] = v
	}
	for k, v := range s.links {
		out.links[k] = cloneLink(v)
	}
	for k, v := range s.vehicles {
		out.vehicles[k] = v
	}
	return out
}

func cloneLink(l domain.Link) domain.Link {
	if l.EndDate != nil {
		end := *l.EndDate
		l.EndDate = &end
	}
	return l
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	c := state.clone()
	return Snapshot{
		Blocks:   c.blocks,
		Entries:  c.entries,
		Units:    c.units,
		Persons:  c.persons,
		Links:    c.links,
		Vehicles: c.vehicles,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{
		blocks:   s.Blocks,
		entries:  s.Entries,
		units:    s.Units,
		persons:  s.Persons,
		links:    s.Links,
		vehicles: s.Vehicles,
	}
	if state.blocks == nil {
		state.blocks = map[string]domain.Block{}
	}
	if state.entries == nil {
		state.entries = map[string]domain.Entry{}
	}
	if state.units == nil {
		state.units = map[string]domain.Unit{}
	}
	if state.persons == nil {
		state.persons = map[string]domain.Person{}
	}
	if state.links == nil {
		state.links = map[string]domain.Link{}
	}
	if state.vehicles == nil {
		state.vehicles = map[string]domain.Vehicle{}
	}
	return state.clone()
}

// Store provides an in-memory transactional store. A single mutex serializes
// writers for the whole read-validate-write cycle of a transaction.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *domain.RulesEngine
	nowFn  func() time.Time
	loc    *time.Location
	idFn   func() string
	hooks  []CommitHook
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps and link dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithLocation sets the zone whose calendar decides link dates. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.idFn = fn
		}
	}
}

// WithCommitHook registers a hook run before each commit is published.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) {
		if hook != nil {
			s.hooks = append(s.hooks, hook)
		}
	}
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  time.Now,
		loc:    time.UTC,
		idFn:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *domain.RulesEngine {
	return s.engine
}

// NowFunc returns the time provider used by the store.
func (s *Store) NowFunc() func() time.Time {
	return s.nowFn
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Rules are evaluated over the resulting state and commit hooks run before the
// copy replaces the committed state; any failure leaves the store untouched.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn().In(s.loc),
	}
	tx.transactionView = transactionView{state: &tx.state}

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, newTransactionView(&tx.state), tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if len(tx.changes) > 0 {
		for _, hook := range s.hooks {
			if err := hook(ctx, tx.Changes()); err != nil {
				return result, err
			}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the committed state.
func (s *Store) View(_ context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

// transaction reads through the embedded view, which points at its own state copy.
type transaction struct {
	transactionView
	store   *Store
	state   memoryState
	changes []domain.Change
	now     time.Time
}

func (tx *transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) newID(id string) string {
	if id != "" {
		return id
	}
	return tx.store.idFn()
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() domain.TransactionView { return tx.transactionView }

// Changes returns the changes recorded so far, in order.
func (tx *transaction) Changes() []domain.Change {
	out := make([]domain.Change, len(tx.changes))
	copy(out, tx.changes)
	return out
}

// Now returns the transaction timestamp; all writes in one transaction share it.
func (tx *transaction) Now() time.Time { return tx.now }

// CreateBlock stores a new block. Block names are unique.
func (tx *transaction) CreateBlock(b domain.Block) (domain.Block, error) {
	b.ID = tx.newID(b.ID)
	if _, exists := tx.state.blocks[b.ID]; exists {
		return domain.Block{}, fmt.Errorf("block %q already exists", b.ID)
	}
	for _, other := range tx.state.blocks {
		if other.Name == b.Name {
			return domain.Block{}, domain.ConflictError{
				Invariant: domain.InvariantDuplicateTopology,
				Message:   fmt.Sprintf("block %s already exists", b.Name),
			}
		}
	}
	b.CreatedAt, b.UpdatedAt = tx.now, tx.now
	tx.state.blocks[b.ID] = b
	tx.recordChange(domain.Change{Entity: domain.EntityBlock, Action: domain.ActionCreate, After: b})
	return b, nil
}

// CreateEntry stores a new entry under an existing block. Letters are unique per block.
func (tx *transaction) CreateEntry(e domain.Entry) (domain.Entry, error) {
	if _, ok := tx.state.blocks[e.BlockID]; !ok {
		return domain.Entry{}, domain.NotFoundError{Entity: domain.EntityBlock, ID: e.BlockID}
	}
	e.ID = tx.newID(e.ID)
	if _, exists := tx.state.entries[e.ID]; exists {
		return domain.Entry{}, fmt.Errorf("entry %q already exists", e.ID)
	}
	for _, other := range tx.state.entries {
		if other.BlockID == e.BlockID && other.Letter == e.Letter {
			return domain.Entry{}, domain.ConflictError{
				Invariant: domain.InvariantDuplicateTopology,
				Message:   fmt.Sprintf("entry %s already exists in block %s", e.Letter, e.BlockID),
			}
		}
	}
	e.CreatedAt, e.UpdatedAt = tx.now, tx.now
	tx.state.entries[e.ID] = e
	tx.recordChange(domain.Change{Entity: domain.EntityEntry, Action: domain.ActionCreate, After: e})
	return e, nil
}

// CreateUnit stores a new unit under an existing entry. Apartment numbers are unique per entry.
func (tx *transaction) CreateUnit(u domain.Unit) (domain.Unit, error) {
	if _, ok := tx.state.entries[u.EntryID]; !ok {
		return domain.Unit{}, domain.NotFoundError{Entity: domain.EntityEntry, ID: u.EntryID}
	}
	u.ID = tx.newID(u.ID)
	if _, exists := tx.state.units[u.ID]; exists {
		return domain.Unit{}, fmt.Errorf("unit %q already exists", u.ID)
	}
	for _, other := range tx.state.units {
		if other.EntryID == u.EntryID && other.ApartmentNumber == u.ApartmentNumber {
			return domain.Unit{}, domain.ConflictError{
				Invariant: domain.InvariantDuplicateTopology,
				Message:   fmt.Sprintf("unit %s already exists in entry %s", u.ApartmentNumber, u.EntryID),
			}
		}
	}
	u.CreatedAt, u.UpdatedAt = tx.now, tx.now
	tx.state.units[u.ID] = u
	tx.recordChange(domain.Change{Entity: domain.EntityUnit, Action: domain.ActionCreate, After: u})
	return u, nil
}

func (tx *transaction) checkIdentifiers(p domain.Person) error {
	for _, other := range tx.state.persons {
		if other.ID == p.ID {
			continue
		}
		if p.PrimaryID != "" && other.PrimaryID == p.PrimaryID {
			return domain.ConflictError{
				Invariant: domain.InvariantDuplicateIdentifier,
				Message:   fmt.Sprintf("duplicate identifier: primary id %s belongs to person %s", p.PrimaryID, other.ID),
			}
		}
		if p.AltID != "" && other.AltID == p.AltID {
			return domain.ConflictError{
				Invariant: domain.InvariantDuplicateIdentifier,
				Message:   fmt.Sprintf("duplicate identifier: alt id %s belongs to person %s", p.AltID, other.ID),
			}
		}
	}
	return nil
}

// CreatePerson stores a new person. Non-empty identifiers must be unique.
func (tx *transaction) CreatePerson(p domain.Person) (domain.Person, error) {
	p.ID = tx.newID(p.ID)
	if _, exists := tx.state.persons[p.ID]; exists {
		return domain.Person{}, fmt.Errorf("person %q already exists", p.ID)
	}
	if err := tx.checkIdentifiers(p); err != nil {
		return domain.Person{}, err
	}
	p.CreatedAt, p.UpdatedAt = tx.now, tx.now
	tx.state.persons[p.ID] = p
	tx.recordChange(domain.Change{Entity: domain.EntityPerson, Action: domain.ActionCreate, After: p})
	return p, nil
}

// UpdatePerson mutates a person using the provided mutator function.
func (tx *transaction) UpdatePerson(id string, mutator func(*domain.Person) error) (domain.Person, error) {
	current, ok := tx.state.persons[id]
	if !ok {
		return domain.Person{}, domain.NotFoundError{Entity: domain.EntityPerson, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Person{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	if err := tx.checkIdentifiers(current); err != nil {
		return domain.Person{}, err
	}
	current.UpdatedAt = tx.now
	tx.state.persons[id] = current
	tx.recordChange(domain.Change{Entity: domain.EntityPerson, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeletePerson removes a person that no longer owns links or vehicles.
func (tx *transaction) DeletePerson(id string) error {
	current, ok := tx.state.persons[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityPerson, ID: id}
	}
	for _, l := range tx.state.links {
		if l.PersonID == id {
			return domain.ConflictError{
				Invariant: domain.InvariantReferenced,
				Message:   fmt.Sprintf("person %s still referenced by link %s", id, l.ID),
			}
		}
	}
	for _, v := range tx.state.vehicles {
		if v.PersonID == id {
			return domain.ConflictError{
				Invariant: domain.InvariantReferenced,
				Message:   fmt.Sprintf("person %s still referenced by vehicle %s", id, v.ID),
			}
		}
	}
	delete(tx.state.persons, id)
	tx.recordChange(domain.Change{Entity: domain.EntityPerson, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateLink stores a new link between an existing person and unit.
func (tx *transaction) CreateLink(l domain.Link) (domain.Link, error) {
	if _, ok := tx.state.persons[l.PersonID]; !ok {
		return domain.Link{}, domain.NotFoundError{Entity: domain.EntityPerson, ID: l.PersonID}
	}
	if _, ok := tx.state.units[l.UnitID]; !ok {
		return domain.Link{}, domain.NotFoundError{Entity: domain.EntityUnit, ID: l.UnitID}
	}
	if !l.Category.Valid() {
		_, err := l.Category.Classify()
		return domain.Link{}, err
	}
	l.ID = tx.newID(l.ID)
	if _, exists := tx.state.links[l.ID]; exists {
		return domain.Link{}, fmt.Errorf("link %q already exists", l.ID)
	}
	if l.Status == "" {
		l.Status = domain.LinkActive
	}
	if l.StartDate.IsZero() {
		l.StartDate = tx.now
	}
	l.StartDate = domain.Day(l.StartDate)
	l.CreatedAt, l.UpdatedAt = tx.now, tx.now
	tx.state.links[l.ID] = cloneLink(l)
	tx.recordChange(domain.Change{Entity: domain.EntityLink, Action: domain.ActionCreate, After: cloneLink(l)})
	return cloneLink(l), nil
}

// UpdateLink mutates a link. The person and unit of a link are fixed for its lifetime.
func (tx *transaction) UpdateLink(id string, mutator func(*domain.Link) error) (domain.Link, error) {
	current, ok := tx.state.links[id]
	if !ok {
		return domain.Link{}, domain.NotFoundError{Entity: domain.EntityLink, ID: id}
	}
	before := cloneLink(current)
	if err := mutator(&current); err != nil {
		return domain.Link{}, err
	}
	if current.PersonID != before.PersonID || current.UnitID != before.UnitID {
		return domain.Link{}, domain.ValidationError{Field: "link", Message: "person and unit of a link cannot change"}
	}
	if !current.Category.Valid() {
		_, err := current.Category.Classify()
		return domain.Link{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.links[id] = cloneLink(current)
	tx.recordChange(domain.Change{Entity: domain.EntityLink, Action: domain.ActionUpdate, Before: before, After: cloneLink(current)})
	return cloneLink(current), nil
}

// DeleteLink hard-deletes a link.
func (tx *transaction) DeleteLink(id string) error {
	current, ok := tx.state.links[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityLink, ID: id}
	}
	delete(tx.state.links, id)
	tx.recordChange(domain.Change{Entity: domain.EntityLink, Action: domain.ActionDelete, Before: cloneLink(current)})
	return nil
}

// CreateVehicle stores a vehicle owned by an existing person.
func (tx *transaction) CreateVehicle(v domain.Vehicle) (domain.Vehicle, error) {
	if _, ok := tx.state.persons[v.PersonID]; !ok {
		return domain.Vehicle{}, domain.NotFoundError{Entity: domain.EntityPerson, ID: v.PersonID}
	}
	v.ID = tx.newID(v.ID)
	if _, exists := tx.state.vehicles[v.ID]; exists {
		return domain.Vehicle{}, fmt.Errorf("vehicle %q already exists", v.ID)
	}
	v.CreatedAt, v.UpdatedAt = tx.now, tx.now
	tx.state.vehicles[v.ID] = v
	tx.recordChange(domain.Change{Entity: domain.EntityVehicle, Action: domain.ActionCreate, After: v})
	return v, nil
}

// DeleteVehicle removes a vehicle.
func (tx *transaction) DeleteVehicle(id string) error {
	current, ok := tx.state.vehicles[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityVehicle, ID: id}
	}
	delete(tx.state.vehicles, id)
	tx.recordChange(domain.Change{Entity: domain.EntityVehicle, Action: domain.ActionDelete, Before: current})
	return nil
}

// transactionView exposes a read-only snapshot of the transactional state.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) domain.TransactionView {
	return transactionView{state: state}
}

// naturalLess orders numeric strings by value and falls back to lexical order.
func naturalLess(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	default:
		return a < b
	}
}

func sortLinks(out []domain.Link) []domain.Link {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortEntries(out []domain.Entry) []domain.Entry {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Letter != out[j].Letter {
			return out[i].Letter < out[j].Letter
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortUnits(out []domain.Unit) []domain.Unit {
	sort.Slice(out, func(i, j int) bool {
		if out[i].ApartmentNumber != out[j].ApartmentNumber {
			return naturalLess(out[i].ApartmentNumber, out[j].ApartmentNumber)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListBlocks returns blocks ordered by name.
func (v transactionView) ListBlocks() []domain.Block {
	out := make([]domain.Block, 0, len(v.state.blocks))
	for _, b := range v.state.blocks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return naturalLess(out[i].Name, out[j].Name) })
	return out
}

// ListEntries returns all entries ordered by letter.
func (v transactionView) ListEntries() []domain.Entry {
	out := make([]domain.Entry, 0, len(v.state.entries))
	for _, e := range v.state.entries {
		out = append(out, e)
	}
	return sortEntries(out)
}

// ListUnits returns all units ordered by apartment number.
func (v transactionView) ListUnits() []domain.Unit {
	out := make([]domain.Unit, 0, len(v.state.units))
	for _, u := range v.state.units {
		out = append(out, u)
	}
	return sortUnits(out)
}

// ListPersons returns persons ordered by full name.
func (v transactionView) ListPersons() []domain.Person {
	out := make([]domain.Person, 0, len(v.state.persons))
	for _, p := range v.state.persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListLinks returns all links ordered by start date.
func (v transactionView) ListLinks() []domain.Link {
	out := make([]domain.Link, 0, len(v.state.links))
	for _, l := range v.state.links {
		out = append(out, cloneLink(l))
	}
	return sortLinks(out)
}

// ListVehicles returns all vehicles ordered by plate.
func (v transactionView) ListVehicles() []domain.Vehicle {
	out := make([]domain.Vehicle, 0, len(v.state.vehicles))
	for _, veh := range v.state.vehicles {
		out = append(out, veh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Plate < out[j].Plate })
	return out
}

func (v transactionView) FindBlock(id string) (domain.Block, bool) {
	b, ok := v.state.blocks[id]
	return b, ok
}

func (v transactionView) FindEntry(id string) (domain.Entry, bool) {
	e, ok := v.state.entries[id]
	return e, ok
}

func (v transactionView) FindUnit(id string) (domain.Unit, bool) {
	u, ok := v.state.units[id]
	return u, ok
}

func (v transactionView) FindPerson(id string) (domain.Person, bool) {
	p, ok := v.state.persons[id]
	return p, ok
}

func (v transactionView) FindLink(id string) (domain.Link, bool) {
	l, ok := v.state.links[id]
	if !ok {
		return domain.Link{}, false
	}
	return cloneLink(l), true
}

func (v transactionView) FindVehicle(id string) (domain.Vehicle, bool) {
	veh, ok := v.state.vehicles[id]
	return veh, ok
}

// FindPersonByPrimaryID looks up a person by primary identifier. Empty values never match.
func (v transactionView) FindPersonByPrimaryID(primaryID string) (domain.Person, bool) {
	if primaryID == "" {
		return domain.Person{}, false
	}
	for _, p := range v.state.persons {
		if p.PrimaryID == primaryID {
			return p, true
		}
	}
	return domain.Person{}, false
}

// FindPersonByAltID looks up a person by alternate identifier. Empty values never match.
func (v transactionView) FindPersonByAltID(altID string) (domain.Person, bool) {
	if altID == "" {
		return domain.Person{}, false
	}
	for _, p := range v.state.persons {
		if p.AltID == altID {
			return p, true
		}
	}
	return domain.Person{}, false
}

func (v transactionView) ListEntriesForBlock(blockID string) []domain.Entry {
	var out []domain.Entry
	for _, e := range v.state.entries {
		if e.BlockID == blockID {
			out = append(out, e)
		}
	}
	return sortEntries(out)
}

func (v transactionView) ListUnitsForEntry(entryID string) []domain.Unit {
	var out []domain.Unit
	for _, u := range v.state.units {
		if u.EntryID == entryID {
			out = append(out, u)
		}
	}
	return sortUnits(out)
}

func (v transactionView) ListLinksForUnit(unitID string) []domain.Link {
	var out []domain.Link
	for _, l := range v.state.links {
		if l.UnitID == unitID {
			out = append(out, cloneLink(l))
		}
	}
	return sortLinks(out)
}

func (v transactionView) ListLinksForPerson(personID string) []domain.Link {
	var out []domain.Link
	for _, l := range v.state.links {
		if l.PersonID == personID {
			out = append(out, cloneLink(l))
		}
	}
	return sortLinks(out)
}

func (v transactionView) ListVehiclesForPerson(personID string) []domain.Vehicle {
	var out []domain.Vehicle
	for _, veh := range v.state.vehicles {
		if veh.PersonID == personID {
			out = append(out, veh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Plate < out[j].Plate })
	return out
}
