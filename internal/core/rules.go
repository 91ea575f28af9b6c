package core

import (
	"context"
	"fmt"
	"occupancy/pkg/domain"
	"sort"
)

// NewDefaultRulesEngine builds a rules engine that re-checks every occupancy
// invariant over the state a transaction is about to commit.
func NewDefaultRulesEngine(scope DuplicateScope) *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	for _, rule := range defaultRules(scope) {
		engine.Register(rule)
	}
	return engine
}

func defaultRules(scope DuplicateScope) []domain.Rule {
	return []domain.Rule{
		NewOwnerInvariantRule(),
		NewResidentialInvariantRule(),
		NewDuplicateLinkRule(scope),
	}
}

// NewOwnerInvariantRule blocks commits leaving a unit with more than one Active owning link.
func NewOwnerInvariantRule() domain.Rule {
	return ownerInvariantRule{}
}

type ownerInvariantRule struct{}

func (ownerInvariantRule) Name() string { return domain.InvariantOwner }

func (ownerInvariantRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	if !touchesLinks(changes) {
		return domain.Result{}, nil
	}
	owners := make(map[string][]string)
	for _, l := range view.ListLinks() {
		if l.IsActive() && l.Category.IsOwning() {
			owners[l.UnitID] = append(owners[l.UnitID], l.ID)
		}
	}
	res := domain.Result{}
	for _, unitID := range sortedKeysOf(owners) {
		ids := owners[unitID]
		if len(ids) < 2 {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     domain.InvariantOwner,
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("unit already has an owner: unit %s has %d active owning links %v", unitID, len(ids), ids),
			Entity:   domain.EntityUnit,
			EntityID: unitID,
		})
	}
	return res, nil
}

// NewResidentialInvariantRule blocks commits leaving a person with more than one Active residence.
func NewResidentialInvariantRule() domain.Rule {
	return residentialInvariantRule{}
}

type residentialInvariantRule struct{}

func (residentialInvariantRule) Name() string { return domain.InvariantResidential }

func (residentialInvariantRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	if !touchesLinks(changes) {
		return domain.Result{}, nil
	}
	residences := make(map[string][]string)
	for _, l := range view.ListLinks() {
		if l.IsActive() && l.Category.IsResidential() {
			residences[l.PersonID] = append(residences[l.PersonID], l.ID)
		}
	}
	res := domain.Result{}
	for _, personID := range sortedKeysOf(residences) {
		ids := residences[personID]
		if len(ids) < 2 {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     domain.InvariantResidential,
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("residential invariant: person %s has %d active residential links %v", personID, len(ids), ids),
			Entity:   domain.EntityPerson,
			EntityID: personID,
		})
	}
	return res, nil
}

// NewDuplicateLinkRule blocks commits that write a link whose (person, unit,
// category) triple already exists within the configured scope. Only Active
// links written by the transaction are checked, so historical rows written
// under another policy never block a deactivation.
func NewDuplicateLinkRule(scope DuplicateScope) domain.Rule {
	return duplicateLinkRule{validator: NewValidator(scope)}
}

type duplicateLinkRule struct {
	validator Validator
}

func (duplicateLinkRule) Name() string { return domain.InvariantDuplicate }

func (r duplicateLinkRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	if !touchesLinks(changes) {
		return domain.Result{}, nil
	}
	links := view.ListLinks()
	res := domain.Result{}
	seen := make(map[string]bool)
	for _, change := range changes {
		if change.Entity != domain.EntityLink || change.Action == domain.ActionDelete {
			continue
		}
		written, ok := change.After.(domain.Link)
		if !ok || seen[written.ID] {
			continue
		}
		seen[written.ID] = true
		current, ok := view.FindLink(written.ID)
		if !ok || !current.IsActive() {
			continue
		}
		if err := r.validator.CheckDuplicate(links, current.PersonID, current.UnitID, current.Category, current.ID); err != nil {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     domain.InvariantDuplicate,
				Severity: domain.SeverityBlock,
				Message:  err.Error(),
				Entity:   domain.EntityLink,
				EntityID: current.ID,
			})
		}
	}
	return res, nil
}

func touchesLinks(changes []domain.Change) bool {
	for _, c := range changes {
		if c.Entity == domain.EntityLink {
			return true
		}
	}
	return false
}

func sortedKeysOf(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
