package core

import "context"

// Accessor is the narrow lookup surface validator handlers consume for
// `exists`/`unique` field rules (spec.md §4.6). It is declared here, at the
// point of use, rather than in the accessor package, so validators never
// needs to import the accessor package's concrete CRUD surface — anything
// satisfying this single method (including the full accessor.Port) works.
type Accessor interface {
	// Get returns the first document in collection matching query. ok is
	// false when no document matches; err is non-nil only on a genuine
	// accessor fault (AccessorError), never to signal "not found".
	Get(ctx context.Context, collection string, query map[string]any) (doc map[string]any, ok bool, err error)
}

// ValidatorContext is the (config, context) pair every built-in and
// registered validator handler receives, matching spec.md §4.2's
// `context = {engine, request, injections}` contract. "engine" is
// represented here as the Accessor the handler needs for exists/unique
// checks, since that is the only engine capability a validator may use.
type ValidatorContext struct {
	Request    *Request
	Injections map[string]any
	Accessor   Accessor
}

// Handler is the compiled shape of a validator: a pure asynchronous
// predicate over (config, context). It returns ("", nil) when the
// validator has nothing to say, a non-empty message and nil error for a
// non-match, or a non-nil error for a fault (e.g. an AccessorError bubbling
// out of an exists/unique lookup). A nil config means "not configured";
// each handler decides what that means: condition and query are no-ops,
// while data still applies its preconditions and multi its per-action
// default.
type Handler func(ctx context.Context, config any, vctx *ValidatorContext) (string, error)
