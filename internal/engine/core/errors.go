package core

import (
	"context"
	"errors"
	"fmt"
)

// CompileError is fatal to the caller of load/add/set/register (spec.md
// §7). No partial state is retained when one is returned.
type CompileError struct {
	Collection string
	Action     string
	Err        error
}

func (e *CompileError) Error() string {
	if e.Collection == "" && e.Action == "" {
		return fmt.Sprintf("compile: %v", e.Err)
	}
	return fmt.Sprintf("compile %s/%s: %v", e.Collection, e.Action, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// UnknownValidator is raised when a rule variant names a validator that was
// never registered (spec.md §3 invariant 2).
var ErrUnknownValidator = errors.New("engine: unknown validator")

// UnknownRule is raised when a `data`/`query` field-rule mapping contains a
// key outside the recognized set (spec.md §4.3.2).
var ErrUnknownRule = errors.New("engine: unknown field rule")

// DuplicateValidator is raised by Registry.Register for a name already
// bound to a handler.
var ErrDuplicateValidator = errors.New("engine: duplicate validator")

// InvalidHandler is raised by Registry.Register when handler is nil.
var ErrInvalidHandler = errors.New("engine: invalid handler")

// CollectionExists is raised by Engine.Add for a collection already present
// in the compiled table (spec.md §4.4, invariant 3).
var ErrCollectionExists = errors.New("engine: collection already exists")

// AccessorError wraps a fault surfaced by an exists/unique lookup. It is a
// fault, not a non-match: the matcher propagates it to the caller of
// Validate instead of treating it as ordinary control flow.
type AccessorError struct {
	Collection string
	Err        error
}

func (e *AccessorError) Error() string {
	return fmt.Sprintf("accessor: %s: %v", e.Collection, e.Err)
}

func (e *AccessorError) Unwrap() error { return e.Err }

// ValidateError is one entry of a denied Validate result. Type is either a
// validator name or the literal 0 for a pre-validator structural failure
// (spec.md §6).
type ValidateError struct {
	Type  any // string validator name, or int(0)
	Error string
}

// PermissionDenied is the user-visible denial the Entry Facade raises when
// Validate returns errors instead of a match (spec.md §4.7, §7).
type PermissionDenied struct {
	Errors []ValidateError
}

func (e *PermissionDenied) Error() string {
	if len(e.Errors) == 0 {
		return "engine: permission denied"
	}
	return fmt.Sprintf("engine: permission denied: %s", e.Errors[0].Error)
}

// AsCancelled reports whether err is (or wraps) context cancellation, the
// condition the engine surfaces verbatim as a Cancelled fault per spec.md
// §7, rather than retrying or converting it into a non-match.
func AsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
