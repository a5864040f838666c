// Package memory implements accessor.Port entirely in-process, so the Rule
// Engine's own test suite never needs a live Mongo instance. Shape grounded
// on the teacher's map+mutex decision cache.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"passgate/internal/accessor"
)

type collection struct {
	seq  int
	docs map[string]map[string]any
}

// Store is an in-memory accessor.Port. The zero value is not usable;
// construct with New.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// New returns an empty Store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// Seed installs docs into collection directly, bypassing Add, for test
// fixtures that need known document IDs.
func (s *Store) Seed(collectionName string, id string, doc map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collectionLocked(collectionName)
	c.docs[id] = cloneDoc(doc)
}

func (s *Store) collectionLocked(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]map[string]any)}
		s.collections[name] = c
	}
	return c
}

func (s *Store) Get(_ context.Context, collectionName string, query map[string]any) (map[string]any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collectionName]
	if !ok {
		return nil, false, nil
	}
	for _, doc := range c.docs {
		if matches(doc, query) {
			return cloneDoc(doc), true, nil
		}
	}
	return nil, false, nil
}

func (s *Store) Add(_ context.Context, collectionName string, docs []map[string]any) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collectionLocked(collectionName)
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		c.seq++
		id := fmt.Sprintf("%s-%d", collectionName, c.seq)
		stored := cloneDoc(doc)
		stored["_id"] = id
		c.docs[id] = stored
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) Read(_ context.Context, collectionName string, query map[string]any, opts accessor.ReadOptions) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collectionName]
	if !ok {
		return nil, nil
	}
	var out []map[string]any
	for _, doc := range c.docs {
		if matches(doc, query) {
			out = append(out, cloneDoc(doc))
		}
	}
	sortDocs(out, opts.Order)
	if opts.Offset > 0 && opts.Offset < len(out) {
		out = out[opts.Offset:]
	} else if opts.Offset >= len(out) {
		out = nil
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	if len(opts.Projection) > 0 {
		out = applyProjection(out, opts.Projection)
	}
	return out, nil
}

func (s *Store) Update(_ context.Context, collectionName string, query map[string]any, data map[string]any, opts accessor.UpdateOptions) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collectionLocked(collectionName)
	var updated int64
	for id, doc := range c.docs {
		if !matches(doc, query) {
			continue
		}
		for k, v := range data {
			doc[k] = v
		}
		c.docs[id] = doc
		updated++
		if !opts.Multi {
			break
		}
	}
	if updated == 0 && opts.Upsert {
		c.seq++
		id := fmt.Sprintf("%s-%d", collectionName, c.seq)
		merged := cloneDoc(query)
		for k, v := range data {
			merged[k] = v
		}
		merged["_id"] = id
		c.docs[id] = merged
		updated = 1
	}
	return updated, nil
}

func (s *Store) Remove(_ context.Context, collectionName string, query map[string]any, multi bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collectionName]
	if !ok {
		return 0, nil
	}
	var removed int64
	for id, doc := range c.docs {
		if !matches(doc, query) {
			continue
		}
		delete(c.docs, id)
		removed++
		if !multi {
			break
		}
	}
	return removed, nil
}

func (s *Store) Count(_ context.Context, collectionName string, query map[string]any) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collectionName]
	if !ok {
		return 0, nil
	}
	var count int64
	for _, doc := range c.docs {
		if matches(doc, query) {
			count++
		}
	}
	return count, nil
}

// matches implements plain equality matching only — no operator support.
// Rule validators only ever query Store with single-key equality lookups
// (exists/unique), and wiring $-operator semantics into a test fake would
// duplicate the accessor's own query-translation concern for no benefit.
func matches(doc map[string]any, query map[string]any) bool {
	for k, v := range query {
		if !reflect.DeepEqual(doc[k], v) {
			return false
		}
	}
	return true
}

func sortDocs(docs []map[string]any, order []accessor.OrderClause) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range order {
			vi, vj := fmt.Sprint(docs[i][o.Field]), fmt.Sprint(docs[j][o.Field])
			if vi == vj {
				continue
			}
			if o.Direction == "desc" {
				return vi > vj
			}
			return vi < vj
		}
		return false
	})
}

func applyProjection(docs []map[string]any, projection map[string]int) []map[string]any {
	include := false
	for _, v := range projection {
		if v == 1 {
			include = true
			break
		}
	}
	out := make([]map[string]any, len(docs))
	for i, doc := range docs {
		projected := make(map[string]any)
		if include {
			for field, flag := range projection {
				if flag == 1 {
					if v, ok := doc[field]; ok {
						projected[field] = v
					}
				}
			}
		} else {
			projected = cloneDoc(doc)
			for field, flag := range projection {
				if flag == 0 {
					delete(projected, field)
				}
			}
		}
		out[i] = projected
	}
	return out
}

func cloneDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
