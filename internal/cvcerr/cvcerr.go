// Package cvcerr defines the typed error taxonomy shared across the engine
// and its storage tiers. Every exported sentinel is wrapped with %w at each
// layer boundary so callers can test with errors.Is/errors.As without
// depending on error strings.
package cvcerr

import "errors"

var (
	// ErrNotFound means an unknown commit, branch, or blob was requested.
	ErrNotFound = errors.New("cvc: not found")

	// ErrAmbiguous means a short-hash prefix matched more than one commit.
	ErrAmbiguous = errors.New("cvc: ambiguous short hash")

	// ErrInvariantViolation means a parent hash is absent, a blob hash
	// mismatched, or a branch head points at a missing commit.
	ErrInvariantViolation = errors.New("cvc: invariant violation")

	// ErrIoError means a disk/filesystem operation failed.
	ErrIoError = errors.New("cvc: io error")

	// ErrConflict means an optimistic branch-head update lost a race.
	ErrConflict = errors.New("cvc: conflict")

	// ErrNoCommonAncestor means a merge was attempted between disjoint
	// histories.
	ErrNoCommonAncestor = errors.New("cvc: no common ancestor")

	// ErrEncodingError means a value could not be canonicalized (e.g. a
	// non-finite float).
	ErrEncodingError = errors.New("cvc: encoding error")

	// ErrCacheCorrupt means the persistent cache file was unreadable. It is
	// treated as "no cache", never fatal.
	ErrCacheCorrupt = errors.New("cvc: cache corrupt")

	// ErrIntegrityError means a reconstructed blob's digest did not match
	// its content hash.
	ErrIntegrityError = errors.New("cvc: integrity error")
)

// Ambiguous is returned by short-hash resolution when a prefix matches more
// than one commit.
type Ambiguous struct {
	Prefix  string
	Matches []string
}

func (e *Ambiguous) Error() string {
	return "cvc: ambiguous short hash " + e.Prefix
}

func (e *Ambiguous) Unwrap() error { return ErrAmbiguous }

// NotFound is returned when a named entity (commit, branch, blob) cannot be
// resolved.
type NotFound struct {
	Kind string
	ID   string
}

func (e *NotFound) Error() string {
	return "cvc: " + e.Kind + " not found: " + e.ID
}

func (e *NotFound) Unwrap() error { return ErrNotFound }

// Conflict is returned when an optimistic branch-head update lost a race.
type Conflict struct {
	Branch       string
	ExpectedHead string
	ActualHead   string
}

func (e *Conflict) Error() string {
	return "cvc: conflict advancing branch " + e.Branch
}

func (e *Conflict) Unwrap() error { return ErrConflict }
