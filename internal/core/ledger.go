package core

import (
	"fmt"
	"occupancy/pkg/domain"
)

// Ledger performs the state transitions of occupancy links. Every method takes
// the transaction it writes through; invariants are checked against the links
// visible in that transaction before anything is written.
type Ledger struct {
	validator Validator
}

// NewLedger constructs a ledger guarded by validator.
func NewLedger(validator Validator) Ledger {
	return Ledger{validator: validator}
}

// Validator returns the validator guarding the ledger.
func (l Ledger) Validator() Validator { return l.validator }

func (l Ledger) requirePerson(view domain.TransactionView, personID string) (domain.Person, error) {
	p, ok := view.FindPerson(personID)
	if !ok {
		return domain.Person{}, domain.NotFoundError{Entity: domain.EntityPerson, ID: personID}
	}
	if !p.HasIdentifier() {
		return domain.Person{}, domain.ValidationError{Field: "identifier", Message: fmt.Sprintf("person %s needs a primary_id or alt_id before it can be linked", personID)}
	}
	return p, nil
}

func (l Ledger) requireUnit(view domain.TransactionView, unitID string) error {
	if _, ok := view.FindUnit(unitID); !ok {
		return domain.NotFoundError{Entity: domain.EntityUnit, ID: unitID}
	}
	return nil
}

func (l Ledger) requireLink(view domain.TransactionView, linkID string) (domain.Link, error) {
	link, ok := view.FindLink(linkID)
	if !ok {
		return domain.Link{}, domain.NotFoundError{Entity: domain.EntityLink, ID: linkID}
	}
	return link, nil
}

// CreateLink inserts an Active link starting today.
func (l Ledger) CreateLink(tx domain.Transaction, personID, unitID string, category domain.Category) (domain.Link, error) {
	if _, err := category.Classify(); err != nil {
		return domain.Link{}, err
	}
	if _, err := l.requirePerson(tx, personID); err != nil {
		return domain.Link{}, err
	}
	if err := l.requireUnit(tx, unitID); err != nil {
		return domain.Link{}, err
	}
	if err := l.validator.Validate(tx.ListLinks(), Proposal{PersonID: personID, UnitID: unitID, Category: category}); err != nil {
		return domain.Link{}, err
	}
	return tx.CreateLink(domain.Link{
		PersonID:  personID,
		UnitID:    unitID,
		Category:  category,
		StartDate: domain.Day(tx.Now()),
		Status:    domain.LinkActive,
	})
}

// TransferLink ends oldLinkID today and opens an Active link for the same
// person at newUnitID. The destination is validated as if the old link were
// already gone; both writes share tx and therefore commit together.
func (l Ledger) TransferLink(tx domain.Transaction, personID, oldLinkID, newUnitID string, category domain.Category) (domain.Link, error) {
	if _, err := category.Classify(); err != nil {
		return domain.Link{}, err
	}
	old, err := l.requireLink(tx, oldLinkID)
	if err != nil {
		return domain.Link{}, err
	}
	if _, err := l.requirePerson(tx, personID); err != nil {
		return domain.Link{}, err
	}
	if old.PersonID != personID {
		return domain.Link{}, domain.ValidationError{Field: "link_id", Message: fmt.Sprintf("link %s does not belong to person %s", oldLinkID, personID)}
	}
	if !old.IsActive() {
		return domain.Link{}, domain.ConflictError{Invariant: domain.InvariantLinkState, Message: fmt.Sprintf("link %s is already inactive and cannot be transferred", oldLinkID)}
	}
	if err := l.requireUnit(tx, newUnitID); err != nil {
		return domain.Link{}, err
	}
	proposal := Proposal{PersonID: personID, UnitID: newUnitID, Category: category, ExcludeLinkID: oldLinkID}
	if err := l.validator.Validate(tx.ListLinks(), proposal); err != nil {
		return domain.Link{}, err
	}
	today := domain.Day(tx.Now())
	if _, err := tx.UpdateLink(oldLinkID, func(link *domain.Link) error {
		link.Status = domain.LinkInactive
		link.EndDate = &today
		return nil
	}); err != nil {
		return domain.Link{}, err
	}
	return tx.CreateLink(domain.Link{
		PersonID:  personID,
		UnitID:    newUnitID,
		Category:  category,
		StartDate: today,
		Status:    domain.LinkActive,
	})
}

// UpdateLinkCategory rewrites the category of a link in place; dates are kept.
func (l Ledger) UpdateLinkCategory(tx domain.Transaction, linkID string, category domain.Category) (domain.Link, error) {
	if _, err := category.Classify(); err != nil {
		return domain.Link{}, err
	}
	current, err := l.requireLink(tx, linkID)
	if err != nil {
		return domain.Link{}, err
	}
	if current.Category == category {
		return current, nil
	}
	links := tx.ListLinks()
	if current.IsActive() {
		proposal := Proposal{PersonID: current.PersonID, UnitID: current.UnitID, Category: category, ExcludeLinkID: linkID, InPlace: true}
		if err := l.validator.Validate(links, proposal); err != nil {
			return domain.Link{}, err
		}
	} else if l.validator.Scope() == DuplicateScopeAll {
		// Inactive rows still count as duplicates under the all-rows policy.
		if err := l.validator.CheckDuplicate(links, current.PersonID, current.UnitID, category, linkID); err != nil {
			return domain.Link{}, err
		}
	}
	return tx.UpdateLink(linkID, func(link *domain.Link) error {
		link.Category = category
		return nil
	})
}

// DeactivateLink ends an Active link today. Ending a link only relaxes
// invariants, so nothing is re-checked.
func (l Ledger) DeactivateLink(tx domain.Transaction, linkID string) (domain.Link, error) {
	current, err := l.requireLink(tx, linkID)
	if err != nil {
		return domain.Link{}, err
	}
	if !current.IsActive() {
		return domain.Link{}, domain.ConflictError{Invariant: domain.InvariantLinkState, Message: fmt.Sprintf("link %s is already inactive", linkID)}
	}
	today := domain.Day(tx.Now())
	return tx.UpdateLink(linkID, func(link *domain.Link) error {
		link.Status = domain.LinkInactive
		link.EndDate = &today
		return nil
	})
}

// DeleteLink hard-deletes a link regardless of status.
func (l Ledger) DeleteLink(tx domain.Transaction, linkID string) error {
	if _, err := l.requireLink(tx, linkID); err != nil {
		return err
	}
	return tx.DeleteLink(linkID)
}

// PurgeInactiveForPerson hard-deletes every Inactive link of the person and
// returns how many were removed. Active links are untouched.
func (l Ledger) PurgeInactiveForPerson(tx domain.Transaction, personID string) (int, error) {
	if _, ok := tx.FindPerson(personID); !ok {
		return 0, domain.NotFoundError{Entity: domain.EntityPerson, ID: personID}
	}
	removed := 0
	for _, link := range tx.ListLinksForPerson(personID) {
		if link.IsActive() {
			continue
		}
		if err := tx.DeleteLink(link.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// ActiveLinksForUnit lists the Active links of a unit.
func (l Ledger) ActiveLinksForUnit(view domain.TransactionView, unitID string) ([]domain.Link, error) {
	if err := l.requireUnit(view, unitID); err != nil {
		return nil, err
	}
	var out []domain.Link
	for _, link := range view.ListLinksForUnit(unitID) {
		if link.IsActive() {
			out = append(out, link)
		}
	}
	return out, nil
}

// LinksForPerson lists every link of a person, Active and Inactive.
func (l Ledger) LinksForPerson(view domain.TransactionView, personID string) ([]domain.Link, error) {
	if _, ok := view.FindPerson(personID); !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityPerson, ID: personID}
	}
	return view.ListLinksForPerson(personID), nil
}
