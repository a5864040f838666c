// Package gateway implements the Entry Facade: the single call surface that
// combines the Rule Engine's Validate, the optional result cache, and the
// accessor CRUD surface into one Execute call. Shape grounded on the
// teacher's internal/runtime.Pipeline — a constructor that wires optional
// collaborators with sane defaults, a debug-level structured-log snapshot
// per call, and metrics observation around each collaborator boundary.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"passgate/internal/accessor"
	"passgate/internal/engine"
	"passgate/internal/engine/core"
	"passgate/internal/metrics"
	"passgate/internal/resultcache"
)

const defaultCacheTTL = 30 * time.Second

// FacadeOptions configures NewFacade. Cache and Metrics are optional; when
// omitted the facade runs without a result cache and with nil-safe metrics.
type FacadeOptions struct {
	Cache    resultcache.Cache
	CacheTTL time.Duration
	// CacheSalt namespaces result-cache keys so two Facade instances sharing
	// a backend (e.g. the same Redis database) never collide.
	CacheSalt string
	Metrics   *metrics.Recorder
}

// Facade is the Entry Facade: Engine.Validate, the result cache, and the
// Accessor Port combined behind one Execute call.
type Facade struct {
	logger   *slog.Logger
	engine   *engine.Engine
	accessor accessor.Port
	cache    resultcache.Cache
	cacheTTL time.Duration
	salt     string
	metrics  *metrics.Recorder
}

// NewFacade builds a Facade around eng and acc. A nil logger falls back to
// slog.Default(); a nil opts.Cache means every call goes straight to Validate.
func NewFacade(logger *slog.Logger, eng *engine.Engine, acc accessor.Port, opts FacadeOptions) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Facade{
		logger:   logger.With(slog.String("component", "gateway")),
		engine:   eng,
		accessor: acc,
		cache:    opts.Cache,
		cacheTTL: ttl,
		salt:     opts.CacheSalt,
		metrics:  opts.Metrics,
	}
}

// Response is what Execute returns on a matched request: whatever the
// accessor returned for the forwarded operation, plus whether the
// permission decision came from the result cache. It carries no summary of
// the matched variant.
type Response struct {
	// Documents holds the result of Read (possibly empty) or Add (the
	// inserted IDs represented as documents with an "_id" key each).
	Documents []map[string]any
	// Count holds the affected/matching document count for Update, Remove,
	// and Count actions.
	Count int64
	// FromCache reports whether the permission decision reused a cached
	// Validate outcome rather than evaluating the compiled table.
	FromCache bool
}

// Execute resolves whether request is permitted against collection's
// compiled rules and, on a match, forwards it to the accessor. A non-match
// returns *core.PermissionDenied, matching spec.md §7 — never both a nil
// error and a non-matching Response.
func (f *Facade) Execute(ctx context.Context, request *core.Request, injections map[string]any) (Response, error) {
	start := time.Now()
	action, _ := core.ParseAction(request.Action)

	fromCache, d, err := f.validate(ctx, request, injections)
	if err != nil {
		f.observeValidate(request.Collection, string(action), metrics.ValidateFault, start)
		return Response{}, err
	}
	if !d.matched {
		f.observeValidate(request.Collection, string(action), metrics.ValidateDenied, start)
		f.logger.DebugContext(ctx, "request denied",
			slog.String("collection", request.Collection),
			slog.String("action", request.Action),
			slog.Int("error_count", len(d.errors)),
		)
		return Response{}, &core.PermissionDenied{Errors: d.errors}
	}
	f.observeValidate(request.Collection, string(action), metrics.ValidateMatched, start)
	f.logger.DebugContext(ctx, "request matched",
		slog.String("collection", request.Collection),
		slog.String("action", request.Action),
		slog.Bool("from_cache", fromCache),
	)

	resp, err := f.forward(ctx, request, action)
	resp.FromCache = fromCache
	return resp, err
}

// decision is the subset of a matcher.Result the facade needs once a
// permission check is over: whether a variant matched, and why not when it
// didn't. It is the shape cached in the result cache (resultcache.Outcome
// carries no compiled variant, only a matched/not-matched sentinel), since
// nothing downstream of Execute ever needs the matched CompiledVariant's
// Processors again — only report.Explainer inspects those, straight off a
// live matcher.Result, never off a cached decision.
type decision struct {
	matched bool
	errors  []core.ValidateError
}

func (f *Facade) validate(ctx context.Context, request *core.Request, injections map[string]any) (bool, decision, error) {
	if f.cache == nil {
		result, err := f.engine.Validate(ctx, request, injections, f.accessor)
		if err != nil {
			return false, decision{}, err
		}
		return false, decision{matched: result.Matched != nil, errors: result.Errors}, nil
	}

	key := resultcache.Key(f.salt, request, injections)
	lookupStart := time.Now()
	if outcome, ok, err := f.cache.Lookup(ctx, key); err == nil && ok {
		f.observeCacheLookup(metrics.CacheLookupHit, lookupStart)
		return true, outcomeToDecision(outcome), nil
	} else if err != nil {
		f.observeCacheLookup(metrics.CacheLookupError, lookupStart)
	} else {
		f.observeCacheLookup(metrics.CacheLookupMiss, lookupStart)
	}

	result, err := f.engine.Validate(ctx, request, injections, f.accessor)
	if err != nil {
		return false, decision{}, err
	}
	d := decision{matched: result.Matched != nil, errors: result.Errors}

	storeStart := time.Now()
	if err := f.cache.Store(ctx, key, decisionToOutcome(d, f.cacheTTL)); err != nil {
		f.observeCacheStore(metrics.CacheStoreError, storeStart)
	} else {
		f.observeCacheStore(metrics.CacheStoreStored, storeStart)
	}
	return false, d, nil
}

// decisionToOutcome and outcomeToDecision translate between the matcher's
// decision and the cache's wire shape. MatchedVariant only ever carries a
// matched/not-matched sentinel here (0 or -1) — the real compiled variant
// index is never reconstructed from a cache hit.
func decisionToOutcome(d decision, ttl time.Duration) resultcache.Outcome {
	variant := -1
	if d.matched {
		variant = 0
	}
	cachedErrors := make([]resultcache.CachedError, 0, len(d.errors))
	for _, e := range d.errors {
		cachedErrors = append(cachedErrors, resultcache.CachedError{
			Type:  fmt.Sprintf("%v", e.Type),
			Error: e.Error,
		})
	}
	now := time.Now().UTC()
	return resultcache.Outcome{
		MatchedVariant: variant,
		Errors:         cachedErrors,
		StoredAt:       now,
		ExpiresAt:      now.Add(ttl),
	}
}

func outcomeToDecision(outcome resultcache.Outcome) decision {
	errs := make([]core.ValidateError, 0, len(outcome.Errors))
	for _, e := range outcome.Errors {
		errs = append(errs, core.ValidateError{Type: e.Type, Error: e.Error})
	}
	return decision{matched: outcome.MatchedVariant >= 0, errors: errs}
}

// forward dispatches a matched request to the accessor's CRUD surface per
// spec.md §4.6/§6's action vocabulary.
func (f *Facade) forward(ctx context.Context, request *core.Request, action core.Action) (Response, error) {
	opStart := time.Now()
	var resp Response
	var err error

	switch action {
	case core.ActionAdd:
		docs, ok := request.DataAsSlice()
		if !ok {
			doc, ok := request.DataAsMap()
			if !ok {
				return Response{}, &core.AccessorError{Collection: request.Collection, Err: errors.New("add requires data")}
			}
			docs = []map[string]any{doc}
		}
		var ids []string
		ids, err = f.accessor.Add(ctx, request.Collection, docs)
		for _, id := range ids {
			resp.Documents = append(resp.Documents, map[string]any{"_id": id})
		}
	case core.ActionRead:
		resp.Documents, err = f.accessor.Read(ctx, request.Collection, request.Query, accessor.ReadOptions{
			Order:      toAccessorOrder(request.Order),
			Offset:     request.Offset,
			Limit:      request.Limit,
			Projection: request.Projection,
		})
	case core.ActionUpdate:
		data, ok := request.DataAsMap()
		if !ok {
			return Response{}, &core.AccessorError{Collection: request.Collection, Err: errors.New("update requires a single document of data")}
		}
		resp.Count, err = f.accessor.Update(ctx, request.Collection, request.Query, data, accessor.UpdateOptions{
			Multi:  request.Multi,
			Upsert: request.Upsert,
			Merge:  request.Merge,
		})
	case core.ActionRemove:
		resp.Count, err = f.accessor.Remove(ctx, request.Collection, request.Query, request.Multi)
	case core.ActionCount:
		resp.Count, err = f.accessor.Count(ctx, request.Collection, request.Query)
	case core.ActionWatch:
		err = errors.New("gateway: watch is not served by the accessor surface")
	default:
		err = errors.New("gateway: unsupported action")
	}

	f.observeAccessor(request.Collection, string(action), err, opStart)
	if err != nil {
		return Response{}, &core.AccessorError{Collection: request.Collection, Err: err}
	}
	return resp, nil
}

func toAccessorOrder(orders []core.OrderClause) []accessor.OrderClause {
	if len(orders) == 0 {
		return nil
	}
	out := make([]accessor.OrderClause, len(orders))
	for i, o := range orders {
		out[i] = accessor.OrderClause{Field: o.Field, Direction: o.Direction}
	}
	return out
}

func (f *Facade) observeValidate(collection, action string, outcome metrics.ValidateOutcome, start time.Time) {
	if f.metrics == nil {
		return
	}
	f.metrics.ObserveValidate(collection, action, outcome, time.Since(start))
}

func (f *Facade) observeAccessor(collection, operation string, err error, start time.Time) {
	if f.metrics == nil {
		return
	}
	f.metrics.ObserveAccessor(collection, operation, err, time.Since(start))
}

func (f *Facade) observeCacheLookup(result metrics.CacheLookupOutcome, start time.Time) {
	if f.metrics == nil {
		return
	}
	f.metrics.ObserveCacheLookup(result, time.Since(start))
}

func (f *Facade) observeCacheStore(result metrics.CacheStoreOutcome, start time.Time) {
	if f.metrics == nil {
		return
	}
	f.metrics.ObserveCacheStore(result, time.Since(start))
}
