package core

import (
	"errors"
	"fmt"
	"occupancy/pkg/domain"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// PersonCandidate carries the fields used to resolve or create a person.
type PersonCandidate struct {
	FullName  string `json:"full_name" validate:"max=200"`
	PrimaryID string `json:"primary_id" validate:"omitempty,numeric,min=3,max=32"`
	AltID     string `json:"alt_id" validate:"omitempty,max=32"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
}

// Normalize strips punctuation and spaces from the primary id and trims and
// upper-cases the alternate id.
func (c *PersonCandidate) Normalize() {
	c.FullName = strings.Join(strings.Fields(c.FullName), " ")
	c.PrimaryID = NormalizePrimaryID(c.PrimaryID)
	c.AltID = NormalizeAltID(c.AltID)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
}

// PersonUpdate names the fields updatePerson changes; nil leaves a field as is.
type PersonUpdate struct {
	FullName  *string `json:"full_name,omitempty"`
	PrimaryID *string `json:"primary_id,omitempty"`
	AltID     *string `json:"alt_id,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

// NormalizePrimaryID removes separators commonly typed inside document numbers.
func NormalizePrimaryID(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, raw)
}

// NormalizeAltID trims and upper-cases an alternate identifier.
func NormalizeAltID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// PersonMatch is one search hit.
type PersonMatch struct {
	Person domain.Person `json:"person"`
	Rank   int           `json:"rank"`
}

// Directory stores person records and resolves identity.
type Directory struct {
	validate *validator.Validate
}

// NewDirectory constructs a directory.
func NewDirectory() Directory {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return Directory{validate: v}
}

func (d Directory) check(c PersonCandidate) error {
	err := d.validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return domain.ValidationError{Field: fe.Field(), Message: describeTag(fe)}
	}
	return domain.ValidationError{Field: "person", Message: err.Error()}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "numeric":
		return "must contain only digits"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// ResolvePerson returns the id of the person matching the candidate's primary
// id, else its alternate id, creating the person when neither matches.
func (d Directory) ResolvePerson(tx domain.Transaction, candidate PersonCandidate) (domain.Person, bool, error) {
	candidate.Normalize()
	if candidate.PrimaryID == "" && candidate.AltID == "" {
		return domain.Person{}, false, domain.ValidationError{Field: "identifier", Message: "primary_id or alt_id is required"}
	}
	if err := d.check(candidate); err != nil {
		return domain.Person{}, false, err
	}
	if candidate.PrimaryID != "" {
		if p, ok := tx.FindPersonByPrimaryID(candidate.PrimaryID); ok {
			return p, false, nil
		}
	} else if p, ok := tx.FindPersonByAltID(candidate.AltID); ok {
		return p, false, nil
	}
	created, err := tx.CreatePerson(domain.Person{
		FullName:  candidate.FullName,
		PrimaryID: candidate.PrimaryID,
		AltID:     candidate.AltID,
		Email:     candidate.Email,
		Phone:     candidate.Phone,
	})
	if err != nil {
		return domain.Person{}, false, err
	}
	return created, true, nil
}

// UpdatePerson applies the supplied fields. Identifiers owned by another person
// are rejected with a duplicate-identifier conflict, and a person must keep at
// least one identifier.
func (d Directory) UpdatePerson(tx domain.Transaction, id string, update PersonUpdate) (domain.Person, error) {
	current, ok := tx.FindPerson(id)
	if !ok {
		return domain.Person{}, domain.NotFoundError{Entity: domain.EntityPerson, ID: id}
	}
	next := PersonCandidate{
		FullName:  current.FullName,
		PrimaryID: current.PrimaryID,
		AltID:     current.AltID,
		Email:     current.Email,
		Phone:     current.Phone,
	}
	if update.FullName != nil {
		next.FullName = *update.FullName
	}
	if update.PrimaryID != nil {
		next.PrimaryID = *update.PrimaryID
	}
	if update.AltID != nil {
		next.AltID = *update.AltID
	}
	if update.Email != nil {
		next.Email = *update.Email
	}
	if update.Phone != nil {
		next.Phone = *update.Phone
	}
	next.Normalize()
	if next.PrimaryID == "" && next.AltID == "" {
		return domain.Person{}, domain.ValidationError{Field: "identifier", Message: "a person must keep a primary_id or alt_id"}
	}
	if err := d.check(next); err != nil {
		return domain.Person{}, err
	}
	return tx.UpdatePerson(id, func(p *domain.Person) error {
		p.FullName = next.FullName
		p.PrimaryID = next.PrimaryID
		p.AltID = next.AltID
		p.Email = next.Email
		p.Phone = next.Phone
		return nil
	})
}

// DeletePerson removes the person together with every link and vehicle it owns.
// It returns the number of links removed.
func (Directory) DeletePerson(tx domain.Transaction, id string) (int, error) {
	if _, ok := tx.FindPerson(id); !ok {
		return 0, domain.NotFoundError{Entity: domain.EntityPerson, ID: id}
	}
	links := tx.ListLinksForPerson(id)
	for _, l := range links {
		if err := tx.DeleteLink(l.ID); err != nil {
			return 0, err
		}
	}
	for _, v := range tx.ListVehiclesForPerson(id) {
		if err := tx.DeleteVehicle(v.ID); err != nil {
			return 0, err
		}
	}
	if err := tx.DeletePerson(id); err != nil {
		return 0, err
	}
	return len(links), nil
}

// AttachVehicle records a vehicle owned by the person.
func (Directory) AttachVehicle(tx domain.Transaction, personID, plate, model string) (domain.Vehicle, error) {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	if plate == "" {
		return domain.Vehicle{}, domain.ValidationError{Field: "plate", Message: "plate is required"}
	}
	if _, ok := tx.FindPerson(personID); !ok {
		return domain.Vehicle{}, domain.NotFoundError{Entity: domain.EntityPerson, ID: personID}
	}
	return tx.CreateVehicle(domain.Vehicle{PersonID: personID, Plate: plate, Model: strings.TrimSpace(model)})
}

// GetPerson loads a person.
func (Directory) GetPerson(view domain.TransactionView, id string) (domain.Person, error) {
	p, ok := view.FindPerson(id)
	if !ok {
		return domain.Person{}, domain.NotFoundError{Entity: domain.EntityPerson, ID: id}
	}
	return p, nil
}

// Search ranks persons by fuzzy match on the name and by prefix match on
// either identifier. Identifier hits rank first. limit <= 0 returns every hit.
func (Directory) Search(view domain.TransactionView, query string, limit int) []PersonMatch {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	primary := NormalizePrimaryID(query)
	alt := NormalizeAltID(query)
	var out []PersonMatch
	for _, p := range view.ListPersons() {
		switch {
		case primary != "" && strings.HasPrefix(p.PrimaryID, primary):
			out = append(out, PersonMatch{Person: p, Rank: -1})
		case p.AltID != "" && strings.HasPrefix(p.AltID, alt):
			out = append(out, PersonMatch{Person: p, Rank: -1})
		default:
			if rank := fuzzy.RankMatchNormalizedFold(query, p.FullName); rank >= 0 {
				out = append(out, PersonMatch{Person: p, Rank: rank})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
