package core

import (
	"context"
	"errors"
	"fmt"
	"occupancy/internal/events"
	"occupancy/internal/infra/persistence/memory"
	"occupancy/pkg/domain"
)

// Operation names used for logging, metrics, tracing and events.
const (
	OpResolveAndLinkPerson = "resolve_and_link_person"
	OpCreateLink           = "create_link"
	OpTransferPerson       = "transfer_person"
	OpUpdateLinkCategory   = "update_link_category"
	OpDeactivateLink       = "deactivate_link"
	OpDeleteLink           = "delete_link"
	OpPurgeInactiveLinks   = "purge_inactive_links"
	OpUpdatePerson         = "update_person"
	OpDeletePerson         = "delete_person"
	OpAttachVehicle        = "attach_vehicle"
	OpBootstrap            = "bootstrap"
)

// CommandResult is the outcome of a command. Failures never escape as errors;
// they are reported with Success false, a message and the error kind.
type CommandResult struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	Kind      domain.ErrorKind `json:"kind,omitempty"`
	Field     string           `json:"field,omitempty"`
	Invariant string           `json:"invariant,omitempty"`
	PersonID  string           `json:"person_id,omitempty"`
	LinkID    string           `json:"link_id,omitempty"`
	VehicleID string           `json:"vehicle_id,omitempty"`
	Count     int              `json:"count,omitempty"`
}

// Err returns the failure as a typed error, or nil on success.
func (r CommandResult) Err() error {
	if r.Success {
		return nil
	}
	switch r.Kind {
	case domain.KindValidation:
		return domain.ValidationError{Field: r.Field, Message: r.Message}
	case domain.KindConflict:
		return domain.ConflictError{Invariant: r.Invariant, Message: r.Message}
	default:
		return errors.New(r.Message)
	}
}

func succeeded(msg string) CommandResult {
	return CommandResult{Success: true, Message: msg}
}

// ResultFromError maps err to a failed CommandResult. Errors without a known
// kind are reported as persistence failures.
func ResultFromError(err error) CommandResult {
	res := CommandResult{Message: err.Error(), Kind: domain.KindOf(err)}
	if res.Kind == "" {
		res.Kind = domain.KindPersistence
	}
	var ve domain.ValidationError
	if errors.As(err, &ve) {
		res.Field = ve.Field
		res.Message = ve.Message
	}
	var ce domain.ConflictError
	if errors.As(err, &ce) {
		res.Invariant = ce.Invariant
	}
	return res
}

// Service is the command interface of the occupancy core. Mutating commands
// run through the coordinator; reads use committed snapshots.
type Service struct {
	coord     *Coordinator
	catalog   Catalog
	directory Directory
	ledger    Ledger
	topology  Topology
	hasTopo   bool
}

// NewService constructs a service over store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	coord := NewCoordinator(store, opts...)
	return &Service{
		coord:     coord,
		catalog:   NewCatalog(),
		directory: NewDirectory(),
		ledger:    NewLedger(NewValidator(coord.opts.scope)),
	}
}

// NewInMemoryService creates a service over a fresh in-memory store whose
// rules engine enforces the configured duplicate scope.
func NewInMemoryService(opts ...Option) *Service {
	cfg := applyOptions(opts)
	return NewService(memory.NewStore(NewDefaultRulesEngine(cfg.scope)), opts...)
}

// WithTopology returns the service configured to bootstrap topo instead of the
// embedded default.
func (s *Service) WithTopology(topo Topology) *Service {
	s.topology = topo
	s.hasTopo = true
	return s
}

// Coordinator exposes the unit-of-work runner.
func (s *Service) Coordinator() *Coordinator { return s.coord }

// OnDataChanged subscribes handler to committed-mutation events and returns a
// function cancelling the subscription.
func (s *Service) OnDataChanged(handler events.Handler) func() {
	return s.coord.Subscribe(handler)
}

// ResolveAndLinkPerson resolves (or creates) the person described by candidate
// and links it to unitID, all in one transaction.
func (s *Service) ResolveAndLinkPerson(ctx context.Context, candidate PersonCandidate, unitID string, category domain.Category) CommandResult {
	var (
		person  domain.Person
		created bool
		link    domain.Link
	)
	_, err := s.coord.Run(ctx, OpResolveAndLinkPerson, func(tx domain.Transaction) error {
		var err error
		person, created, err = s.directory.ResolvePerson(tx, candidate)
		if err != nil {
			return err
		}
		link, err = s.ledger.CreateLink(tx, person.ID, unitID, category)
		return err
	})
	if err != nil {
		return ResultFromError(err)
	}
	verb := "resolved"
	if created {
		verb = "created"
	}
	res := succeeded(fmt.Sprintf("%s person %s and linked to unit %s as %s", verb, person.ID, unitID, category))
	res.PersonID, res.LinkID = person.ID, link.ID
	return res
}

// CreateLink links an existing person to a unit.
func (s *Service) CreateLink(ctx context.Context, personID, unitID string, category domain.Category) CommandResult {
	var link domain.Link
	_, err := s.coord.Run(ctx, OpCreateLink, func(tx domain.Transaction) error {
		var err error
		link, err = s.ledger.CreateLink(tx, personID, unitID, category)
		return err
	})
	if err != nil {
		return ResultFromError(err)
	}
	res := succeeded(fmt.Sprintf("linked person %s to unit %s as %s", personID, unitID, category))
	res.PersonID, res.LinkID = personID, link.ID
	return res
}

// TransferPerson ends oldLinkID and links the person to newUnitID atomically.
func (s *Service) TransferPerson(ctx context.Context, personID, oldLinkID, newUnitID string, category domain.Category) CommandResult {
	var link domain.Link
	_, err := s.coord.Run(ctx, OpTransferPerson, func(tx domain.Transaction) error {
		var err error
		link, err = s.ledger.TransferLink(tx, personID, oldLinkID, newUnitID, category)
		return err
	})
	if err != nil {
		return ResultFromError(err)
	}
	res := succeeded(fmt.Sprintf("transferred person %s from link %s to unit %s", personID, oldLinkID, newUnitID))
	res.PersonID, res.LinkID = personID, link.ID
	return res
}

// UpdateLinkCategory changes the category of a link in place.
func (s *Service) UpdateLinkCategory(ctx context.Context, linkID string, category domain.Category) CommandResult {
	_, err := s.coord.Run(ctx, OpUpdateLinkCategory, func(tx domain.Transaction) error {
		_, err := s.ledger.UpdateLinkCategory(tx, linkID, category)
		return err
	})
	if err != nil {
		return ResultFromError(err)
	}
	res := succeeded(fmt.Sprintf("link %s is now %s", linkID, category))
	res.LinkID = linkID
	return res
}

// DeactivateLink ends a link today.
func (s *Service) DeactivateLink(ctx context.Context, linkID string) CommandResult {
	_, err := s.coord.Run(ctx, OpDeactivateLink, func(tx domain.Transaction) error {
		_, err := s.ledger.DeactivateLink(tx, linkID)
		return err
	})
	if err != nil {
		return ResultFromError(err)
	}
	res := succeeded(fmt.Sprintf("link %s deactivated", linkID))
	res.LinkID = linkID
	return res
}

// DeleteLink hard-deletes a link.
func (s *Service) DeleteLink(ctx context.Context, linkID string) CommandResult {
	_, err := s.coord.Run(ctx, OpDeleteLink, func(tx domain.Transaction) error {
		return s.ledger.DeleteLink(tx, linkID)
	})
	if err != nil {
		return ResultFromError(err)
	}
	res := succeeded(fmt.Sprintf("link %s deleted", linkID))
	res.LinkID = linkID
	return res
}

// PurgeInactiveLinks hard-deletes the Inactive links of a person.
func (s *Service) PurgeInactiveLinks(ctx context.Context, personID string) CommandResult {
	var removed int
	_, err := s.coord.Run(ctx, OpPurgeInactiveLinks, func(tx domain.Transaction) error {
		var err error
		removed, err = s.ledger.PurgeInactiveForPerson(tx, personID)
		return err
	})
	if err != nil {
		return ResultFromError(err)
	}
	res := succeeded(fmt.Sprintf("removed %d inactive links of person %s", removed, personID))
	res.PersonID, res.Count = personID, removed
	return res
}

// UpdatePerson edits person fields.
func (s *Service) UpdatePerson(ctx context.Context, personID string, update PersonUpdate) CommandResult {
	_, err := s.coord.Run(ctx, OpUpdatePerson, func(tx domain.Transaction) error {
		_, err := s.directory.UpdatePerson(tx, personID, update)
		return err
	})
	if err != nil {
		return ResultFromError(err)
	}
	res := succeeded(fmt.Sprintf("person %s updated", personID))
	res.PersonID = personID
	return res
}

// DeletePerson removes a person with its links and vehicles. Irreversible.
func (s *Service) DeletePerson(ctx context.Context, personID string) CommandResult {
	var removed int
	_, err := s.coord.Run(ctx, OpDeletePerson, func(tx domain.Transaction) error {
		var err error
		removed, err = s.directory.DeletePerson(tx, personID)
		return err
	})
	if err != nil {
		return ResultFromError(err)
	}
	res := succeeded(fmt.Sprintf("person %s deleted with %d links", personID, removed))
	res.PersonID, res.Count = personID, removed
	return res
}

// AttachVehicle records a vehicle owned by a person.
func (s *Service) AttachVehicle(ctx context.Context, personID, plate, model string) CommandResult {
	var vehicle domain.Vehicle
	_, err := s.coord.Run(ctx, OpAttachVehicle, func(tx domain.Transaction) error {
		var err error
		vehicle, err = s.directory.AttachVehicle(tx, personID, plate, model)
		return err
	})
	if err != nil {
		return ResultFromError(err)
	}
	res := succeeded(fmt.Sprintf("vehicle %s attached to person %s", vehicle.Plate, personID))
	res.PersonID, res.VehicleID = personID, vehicle.ID
	return res
}

// Bootstrap creates the configured topology. It fails with kind
// already_initialized when any block exists.
func (s *Service) Bootstrap(ctx context.Context) CommandResult {
	topo := s.topology
	if !s.hasTopo {
		var err error
		if topo, err = DefaultTopology(); err != nil {
			return ResultFromError(domain.ValidationError{Field: "topology", Message: err.Error()})
		}
	}
	var sum BootstrapSummary
	_, err := s.coord.Run(ctx, OpBootstrap, func(tx domain.Transaction) error {
		var err error
		sum, err = s.catalog.Bootstrap(tx, topo)
		return err
	})
	if err != nil {
		return ResultFromError(err)
	}
	res := succeeded(fmt.Sprintf("created %d blocks, %d entries, %d units", sum.Blocks, sum.Entries, sum.Units))
	res.Count = sum.Units
	return res
}

// ListActiveLinksForUnit lists the Active links of a unit.
func (s *Service) ListActiveLinksForUnit(ctx context.Context, unitID string) ([]domain.Link, error) {
	var out []domain.Link
	err := s.coord.View(ctx, func(view domain.TransactionView) error {
		var err error
		out, err = s.ledger.ActiveLinksForUnit(view, unitID)
		return err
	})
	return out, err
}

// ListLinksForPerson lists every link of a person.
func (s *Service) ListLinksForPerson(ctx context.Context, personID string) ([]domain.Link, error) {
	var out []domain.Link
	err := s.coord.View(ctx, func(view domain.TransactionView) error {
		var err error
		out, err = s.ledger.LinksForPerson(view, personID)
		return err
	})
	return out, err
}

// Hierarchy returns the full block, entry, unit tree.
func (s *Service) Hierarchy(ctx context.Context) ([]BlockNode, error) {
	var out []BlockNode
	err := s.coord.View(ctx, func(view domain.TransactionView) error {
		out = s.catalog.Hierarchy(view)
		return nil
	})
	return out, err
}

// EntriesForBlock lists the entries of a block.
func (s *Service) EntriesForBlock(ctx context.Context, blockID string) ([]domain.Entry, error) {
	var out []domain.Entry
	err := s.coord.View(ctx, func(view domain.TransactionView) error {
		var err error
		out, err = s.catalog.EntriesForBlock(view, blockID)
		return err
	})
	return out, err
}

// UnitsForEntry lists the units of an entry.
func (s *Service) UnitsForEntry(ctx context.Context, entryID string) ([]domain.Unit, error) {
	var out []domain.Unit
	err := s.coord.View(ctx, func(view domain.TransactionView) error {
		var err error
		out, err = s.catalog.UnitsForEntry(view, entryID)
		return err
	})
	return out, err
}

// GetPerson loads a person.
func (s *Service) GetPerson(ctx context.Context, personID string) (domain.Person, error) {
	var out domain.Person
	err := s.coord.View(ctx, func(view domain.TransactionView) error {
		var err error
		out, err = s.directory.GetPerson(view, personID)
		return err
	})
	return out, err
}

// SearchPersons ranks persons against query.
func (s *Service) SearchPersons(ctx context.Context, query string, limit int) ([]PersonMatch, error) {
	var out []PersonMatch
	err := s.coord.View(ctx, func(view domain.TransactionView) error {
		out = s.directory.Search(view, query, limit)
		return nil
	})
	return out, err
}
