// Package accessor defines the data accessor contract the Rule Engine and
// the Entry Facade depend on (spec.md §4.6, §4.7). Only the interface
// contract is in scope for the engine itself; this package and its
// mongoaccessor/memory subpackages supply concrete implementations so the
// rest of the repository has something real to wire against and exercise
// in tests.
package accessor

import "context"

// Port is the full surface the Entry Facade drives: Get for exists/unique
// lookups (re-exported with the same shape core.Accessor expects, so any
// Port value satisfies it structurally) plus the CRUD operations the
// facade forwards a matched request to.
type Port interface {
	// Get returns the first document in collection matching query.
	Get(ctx context.Context, collection string, query map[string]any) (doc map[string]any, ok bool, err error)

	Add(ctx context.Context, collection string, docs []map[string]any) ([]string, error)
	Read(ctx context.Context, collection string, query map[string]any, opts ReadOptions) ([]map[string]any, error)
	Update(ctx context.Context, collection string, query map[string]any, data map[string]any, opts UpdateOptions) (int64, error)
	Remove(ctx context.Context, collection string, query map[string]any, multi bool) (int64, error)
	Count(ctx context.Context, collection string, query map[string]any) (int64, error)
}

// ReadOptions carries the Request fields a Read call needs beyond the raw
// query (spec.md §3/§6: order, offset, limit, projection).
type ReadOptions struct {
	Order      []OrderClause
	Offset     int
	Limit      int
	Projection map[string]int
}

// OrderClause mirrors core.OrderClause without importing the engine
// package, keeping accessor's import graph independent of the engine.
type OrderClause struct {
	Field     string
	Direction string
}

// UpdateOptions carries the Request flags that change update semantics.
type UpdateOptions struct {
	Multi  bool
	Upsert bool
	Merge  bool
}
