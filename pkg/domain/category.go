package domain

import (
	"fmt"
	"strings"
)

// Category is the role a link represents. The set is closed.
type Category string

// Canonical link categories.
const (
	CategoryOwner             Category = "owner"
	CategoryOwnerResident     Category = "owner_resident"
	CategoryTenant            Category = "tenant"
	CategoryResident          Category = "resident"
	CategoryTemporaryResident Category = "temporary_resident"
	CategoryResponsible       Category = "responsible"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{
		CategoryOwner,
		CategoryOwnerResident,
		CategoryTenant,
		CategoryResident,
		CategoryTemporaryResident,
		CategoryResponsible,
	}
}

// CategoryClass describes which invariants a category participates in.
type CategoryClass struct {
	// Owning categories count against the one-owner-per-unit invariant.
	Owning bool
	// Residential categories count against the one-residence-per-person invariant.
	Residential bool
}

// Classify returns the invariant class of c. Every category must appear in the
// switch; an unknown value is an error so it can never slip past an invariant.
func (c Category) Classify() (CategoryClass, error) {
	switch c {
	case CategoryOwner:
		return CategoryClass{Owning: true}, nil
	case CategoryOwnerResident:
		return CategoryClass{Owning: true, Residential: true}, nil
	case CategoryTenant, CategoryResident:
		return CategoryClass{Residential: true}, nil
	case CategoryTemporaryResident, CategoryResponsible:
		return CategoryClass{}, nil
	default:
		return CategoryClass{}, ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", string(c))}
	}
}

// Valid reports whether c is one of the canonical categories.
func (c Category) Valid() bool {
	_, err := c.Classify()
	return err == nil
}

// IsOwning reports whether c counts as an owning category. Unknown values are not owning.
func (c Category) IsOwning() bool {
	class, _ := c.Classify()
	return class.Owning
}

// IsResidential reports whether c counts as a residential category.
func (c Category) IsResidential() bool {
	class, _ := c.Classify()
	return class.Residential
}

// ParseCategory accepts canonical tokens and their common spellings
// ("OwnerResident", "owner-resident", "Owner Resident").
func ParseCategory(raw string) (Category, error) {
	norm := strings.ToLower(strings.TrimSpace(raw))
	if norm == "" {
		return "", ValidationError{Field: "category", Message: "category is required"}
	}
	norm = strings.NewReplacer("-", "", "_", "", " ", "").Replace(norm)
	for _, c := range Categories() {
		if strings.ReplaceAll(string(c), "_", "") == norm {
			return c, nil
		}
	}
	return "", ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", raw)}
}
