package core

import (
	"fmt"
	"occupancy/pkg/domain"
	"strings"
)

// DuplicateScope selects which rows the duplicate-link check considers.
type DuplicateScope string

const (
	// DuplicateScopeAll treats every row, Active or Inactive, as a duplicate
	// candidate. An ended link therefore blocks recreating the same
	// (person, unit, category) triple.
	DuplicateScopeAll DuplicateScope = "all"
	// DuplicateScopeActive only considers Active rows.
	DuplicateScopeActive DuplicateScope = "active"
)

// ParseDuplicateScope validates a configured scope; empty selects DuplicateScopeAll.
func ParseDuplicateScope(raw string) (DuplicateScope, error) {
	switch DuplicateScope(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DuplicateScopeAll:
		return DuplicateScopeAll, nil
	case DuplicateScopeActive:
		return DuplicateScopeActive, nil
	default:
		return "", domain.ValidationError{Field: "duplicate_scope", Message: fmt.Sprintf("unknown duplicate scope %q", raw)}
	}
}

// Proposal describes a link about to be written.
type Proposal struct {
	PersonID string
	UnitID   string
	Category domain.Category
	// ExcludeLinkID names an existing link the write retires or rewrites; it
	// never counts against the owner or residential invariant.
	ExcludeLinkID string
	// InPlace is set when ExcludeLinkID is rewritten rather than retired, so
	// the old row no longer exists in its current shape after the write.
	InPlace bool
}

// Validator evaluates occupancy invariants against a snapshot of links. It
// holds no state besides its duplicate policy and is safe for concurrent use.
type Validator struct {
	scope DuplicateScope
}

// NewValidator constructs a validator; an empty scope selects DuplicateScopeAll.
func NewValidator(scope DuplicateScope) Validator {
	if scope == "" {
		scope = DuplicateScopeAll
	}
	return Validator{scope: scope}
}

// Scope returns the duplicate policy in effect.
func (v Validator) Scope() DuplicateScope { return v.scope }

// Validate runs the owner, residential and duplicate checks in that order and
// returns the first violation.
func (v Validator) Validate(links []domain.Link, p Proposal) error {
	if err := v.CheckOwnerInvariant(links, p.UnitID, p.Category, p.ExcludeLinkID); err != nil {
		return err
	}
	if err := v.CheckResidentialInvariant(links, p.PersonID, p.Category, p.ExcludeLinkID); err != nil {
		return err
	}
	exclude := ""
	if p.InPlace || v.scope == DuplicateScopeActive {
		exclude = p.ExcludeLinkID
	}
	return v.CheckDuplicate(links, p.PersonID, p.UnitID, p.Category, exclude)
}

// CheckOwnerInvariant fails when an owning category would give unitID a second
// Active owner.
func (v Validator) CheckOwnerInvariant(links []domain.Link, unitID string, category domain.Category, excludeLinkID string) error {
	class, err := category.Classify()
	if err != nil {
		return err
	}
	if !class.Owning {
		return nil
	}
	for _, l := range links {
		if l.ID == excludeLinkID || l.UnitID != unitID || !l.IsActive() || !l.Category.IsOwning() {
			continue
		}
		return domain.ConflictError{
			Invariant: domain.InvariantOwner,
			Message:   fmt.Sprintf("unit already has an owner: unit %s is owned through link %s (%s)", unitID, l.ID, l.Category),
		}
	}
	return nil
}

// CheckResidentialInvariant fails when a residential category would give
// personID a second Active residence.
func (v Validator) CheckResidentialInvariant(links []domain.Link, personID string, category domain.Category, excludeLinkID string) error {
	class, err := category.Classify()
	if err != nil {
		return err
	}
	if !class.Residential {
		return nil
	}
	for _, l := range links {
		if l.ID == excludeLinkID || l.PersonID != personID || !l.IsActive() || !l.Category.IsResidential() {
			continue
		}
		return domain.ConflictError{
			Invariant: domain.InvariantResidential,
			Message:   fmt.Sprintf("residential invariant: person %s already resides at unit %s through link %s (%s)", personID, l.UnitID, l.ID, l.Category),
		}
	}
	return nil
}

// CheckDuplicate fails when another row already carries the same
// (person, unit, category) triple. Which rows count depends on the scope.
func (v Validator) CheckDuplicate(links []domain.Link, personID, unitID string, category domain.Category, excludeLinkID string) error {
	if _, err := category.Classify(); err != nil {
		return err
	}
	for _, l := range links {
		if l.ID == excludeLinkID || l.PersonID != personID || l.UnitID != unitID || l.Category != category {
			continue
		}
		if v.scope == DuplicateScopeActive && !l.IsActive() {
			continue
		}
		return domain.ConflictError{
			Invariant: domain.InvariantDuplicate,
			Message:   fmt.Sprintf("duplicate link: person %s is already linked to unit %s as %s (link %s, %s)", personID, unitID, category, l.ID, l.Status),
		}
	}
	return nil
}
