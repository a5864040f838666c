// Package resultcache caches Rule Matcher outcomes in front of Validate, an
// optional performance layer the Entry Facade consults before compiling a
// fresh match. It never caches the compiled permission table itself — that
// stays in memory inside the engine, unchanged from spec.md §6 — only the
// {matched | errors} outcome of one (collection, action,
// query, data, injections) tuple, analogous to the teacher's decision
// cache keyed on a full HTTP auth decision instead.
package resultcache

import (
	"context"
	"time"
)

// Outcome is the cached shape of a matcher Result, reduced to what's needed
// to reconstruct a Validate call without touching the accessor again:
// MatchedVariant is 0 or more when a variant matched and -1 when none did
// (the Entry Facade stores 0 for any match, not the variant's index), and
// Errors mirrors core.ValidateError in a cache-serializable form.
type Outcome struct {
	MatchedVariant int
	Errors         []CachedError
	StoredAt       time.Time
	ExpiresAt      time.Time
}

// CachedError is core.ValidateError flattened to JSON-friendly types (Type
// is always rendered as a string; "0" marks a pre-validator structural
// failure, matching the external wire contract in spec.md §6).
type CachedError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Cache is the contract the Entry Facade consumes. Backends never need to
// know how keys are derived — see Key in this package for that.
type Cache interface {
	Lookup(ctx context.Context, key string) (Outcome, bool, error)
	Store(ctx context.Context, key string, outcome Outcome) error
	// InvalidateAll drops every cached outcome. Neither the engine nor the
	// Entry Facade calls it on a reload; whatever owns both the engine and
	// the cache calls it after any Engine.Load/Add/Set, since a reload can
	// change which variant matches for an unchanged request.
	InvalidateAll(ctx context.Context) error
	Close(ctx context.Context) error
}
