// Package sqlstore maps committed change sets onto the normalized occupancy
// tables and loads those tables back into a memory snapshot. It is shared by
// the SQLite and Postgres backends.
package sqlstore

import (
	"fmt"
	"occupancy/pkg/domain"
	"strconv"
	"strings"
	"time"
)

// Dialect captures the differences between SQL engines that matter here.
type Dialect struct {
	Name string
	// Numbered switches "?" placeholders to "$n".
	Numbered bool
	// TextTime stores timestamps as RFC 3339 text instead of native values.
	TextTime bool
	// Constraint extracts the violated constraint description from a unique
	// violation, reporting false for any other error.
	Constraint func(err error) (string, bool)
}

// Rebind rewrites "?" placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) timeArg(t time.Time) any {
	if d.TextTime {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC()
}

func (d Dialect) nullTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return d.timeArg(*t)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// MapError converts unique violations into domain conflicts and leaves other errors unchanged.
func (d Dialect) MapError(err error) error {
	if err == nil || d.Constraint == nil {
		return err
	}
	constraint, ok := d.Constraint(err)
	if !ok {
		return err
	}
	invariant := invariantFor(constraint)
	return domain.ConflictError{
		Invariant: invariant,
		Message:   fmt.Sprintf("%s: constraint %s rejected the write", strings.ReplaceAll(invariant, "_", " "), constraint),
	}
}

var constraintInvariants = []struct {
	needle    string
	invariant string
}{
	{"one_active_owner", domain.InvariantOwner},
	{"links.unit_id", domain.InvariantOwner},
	{"one_active_residence", domain.InvariantResidential},
	{"links.person_id", domain.InvariantResidential},
	{"primary_id", domain.InvariantDuplicateIdentifier},
	{"alt_id", domain.InvariantDuplicateIdentifier},
	{"blocks", domain.InvariantDuplicateTopology},
	{"entries", domain.InvariantDuplicateTopology},
	{"units", domain.InvariantDuplicateTopology},
}

func invariantFor(constraint string) string {
	for _, c := range constraintInvariants {
		if strings.Contains(constraint, c.needle) {
			return c.invariant
		}
	}
	return "unique_constraint"
}

// timeValue scans timestamps stored either natively or as text.
type timeValue struct {
	dst *time.Time
}

func (t timeValue) Scan(src any) error {
	parsed, ok, err := parseTime(src)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("unexpected NULL timestamp")
	}
	*t.dst = parsed
	return nil
}

// nullTimeValue scans an optional timestamp.
type nullTimeValue struct {
	dst **time.Time
}

func (t nullTimeValue) Scan(src any) error {
	parsed, ok, err := parseTime(src)
	if err != nil {
		return err
	}
	if !ok {
		*t.dst = nil
		return nil
	}
	*t.dst = &parsed
	return nil
}

var textTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02",
}

func parseTime(src any) (time.Time, bool, error) {
	var raw string
	switch v := src.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return v.UTC(), true, nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return time.Time{}, false, fmt.Errorf("unsupported timestamp type %T", src)
	}
	for _, layout := range textTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("parse timestamp %q", raw)
}

// nullableText scans NULL text columns into empty strings.
type nullableText struct {
	dst *string
}

func (n nullableText) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n.dst = ""
	case string:
		*n.dst = v
	case []byte:
		*n.dst = string(v)
	default:
		return fmt.Errorf("unsupported text type %T", src)
	}
	return nil
}
