package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced through the command interface.
type ErrorKind string

// Error kinds returned to callers.
const (
	KindValidation         ErrorKind = "validation"
	KindConflict           ErrorKind = "conflict"
	KindNotFound           ErrorKind = "not_found"
	KindAlreadyInitialized ErrorKind = "already_initialized"
	KindPersistence        ErrorKind = "persistence"
)

// Invariant names carried by ConflictError.
const (
	InvariantOwner               = "owner_invariant"
	InvariantResidential         = "residential_invariant"
	InvariantDuplicate           = "duplicate_link"
	InvariantDuplicateIdentifier = "duplicate_identifier"
	InvariantLinkState           = "link_state"
	InvariantDuplicateTopology   = "duplicate_topology"
	InvariantReferenced          = "referenced"
)

// ValidationError reports missing or malformed input, caught before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Kind implements the classified error contract.
func (ValidationError) Kind() ErrorKind { return KindValidation }

// ConflictError reports a violated invariant or uniqueness constraint.
type ConflictError struct {
	Invariant string
	Message   string
}

func (e ConflictError) Error() string { return e.Message }

// Kind implements the classified error contract.
func (ConflictError) Kind() ErrorKind { return KindConflict }

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Kind implements the classified error contract.
func (NotFoundError) Kind() ErrorKind { return KindNotFound }

// AlreadyInitializedError is returned when bootstrap runs against an existing topology.
type AlreadyInitializedError struct {
	Blocks int
}

func (e AlreadyInitializedError) Error() string {
	return fmt.Sprintf("unit catalog already initialized (%d blocks)", e.Blocks)
}

// Kind implements the classified error contract.
func (AlreadyInitializedError) Kind() ErrorKind { return KindAlreadyInitialized }

// PersistenceError wraps an infrastructural failure of a unit of work.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("persistence failure: %v", e.Err)
	}
	return fmt.Sprintf("%s: persistence failure: %v", e.Op, e.Err)
}

func (e PersistenceError) Unwrap() error { return e.Err }

// Kind implements the classified error contract.
func (PersistenceError) Kind() ErrorKind { return KindPersistence }

type classified interface {
	Kind() ErrorKind
}

// KindOf returns the kind of err, or an empty kind when err is nil or unclassified.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var c classified
	if errors.As(err, &c) {
		return c.Kind()
	}
	return ""
}
