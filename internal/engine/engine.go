// Package engine assembles the Rule Engine: a validator registry plus a
// compiled permission table, mutated only by Register/Load/Add/Set and read
// only by Validate (spec.md §5). Mutation takes an exclusive lock; Validate
// takes a snapshot of the table under a read lock and then runs free of any
// lock, so in-flight validations never observe a torn table and never block
// a concurrent Validate call.
package engine

import (
	"context"
	"fmt"
	"sync"

	"passgate/internal/engine/compiler"
	"passgate/internal/engine/core"
	"passgate/internal/engine/matcher"
	"passgate/internal/engine/registry"
	"passgate/internal/engine/validators"
	"passgate/internal/expr"
)

// Engine owns the validator registry and the compiled permission table. The
// zero value is not usable; construct with New.
type Engine struct {
	mu       sync.RWMutex
	registry *registry.Registry
	table    map[string]compiler.CollectionRules
	env      *expr.Environment
}

// New builds an Engine with the four built-in validators registered in
// their fixed order and an empty table.
func New() (*Engine, error) {
	env, err := expr.NewEnvironment()
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	reg := registry.New()
	if err := validators.RegisterBuiltins(reg, env); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return &Engine{
		registry: reg,
		table:    make(map[string]compiler.CollectionRules),
		env:      env,
	}, nil
}

// Register binds an additional validator name, beyond the four built-ins,
// to handler. Must not be called concurrently with Validate or any other
// mutating method.
func (e *Engine) Register(name string, handler core.Handler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.registry.Register(name, handler); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

// Set compiles raw (a single collection's permission-config document) and
// installs it, replacing any existing rules for collection.
func (e *Engine) Set(collection string, raw map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setLocked(collection, raw)
}

func (e *Engine) setLocked(collection string, raw map[string]any) error {
	compiled, err := compiler.Compile(raw, e.registry)
	if err != nil {
		return &core.CompileError{Collection: collection, Err: err}
	}
	// Copy-on-write: Validate may still be reading the previous map.
	next := make(map[string]compiler.CollectionRules, len(e.table)+1)
	for name, rules := range e.table {
		next[name] = rules
	}
	next[collection] = compiled
	e.table = next
	return nil
}

// Add is Set with a pre-check that collection is absent, per spec.md §4.4
// ("add(collection, …) is set with a pre-check that the collection is
// absent, else fatal CollectionExists").
func (e *Engine) Add(collection string, raw map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.table[collection]; exists {
		return &core.CompileError{Collection: collection, Err: core.ErrCollectionExists}
	}
	return e.setLocked(collection, raw)
}

// Load replaces the entire table with the compiled form of source, a
// collection-name -> permission-config document (spec.md §3's Rule Source).
// A failure to compile any one collection leaves the previous table
// untouched — no partial state is retained, per spec.md §7.
func (e *Engine) Load(source map[string]map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[string]compiler.CollectionRules, len(source))
	for collection, raw := range source {
		compiled, err := compiler.Compile(raw, e.registry)
		if err != nil {
			return &core.CompileError{Collection: collection, Err: err}
		}
		next[collection] = compiled
	}
	e.table = next
	return nil
}

// Validate runs the Rule Matcher against a snapshot of the current table
// (spec.md §4.5/§4.7). accessor is used only for exists/unique lookups; it
// is never required to be safe for concurrent Get calls from the engine's
// perspective beyond what the implementation itself documents.
func (e *Engine) Validate(ctx context.Context, request *core.Request, injections map[string]any, accessor core.Accessor) (matcher.Result, error) {
	e.mu.RLock()
	snapshot := e.table
	e.mu.RUnlock()
	return matcher.Validate(ctx, snapshot, request, injections, accessor)
}

// Schema returns the compiled $schema pseudo-permission for collection, if
// one was registered. It is never consulted by Validate (spec.md §4.4 Open
// Question (a)): callers must invoke this explicitly.
func (e *Engine) Schema(collection string) (compiler.CompiledVariant, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rules, ok := e.table[collection]
	if !ok || rules.Schema == nil {
		return compiler.CompiledVariant{}, false
	}
	return *rules.Schema, true
}

// Collections returns the names currently present in the compiled table.
func (e *Engine) Collections() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.table))
	for name := range e.table {
		names = append(names, name)
	}
	return names
}
