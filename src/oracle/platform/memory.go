package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with the same predicate and
// revision semantics as the MySQL implementation. It backs unit tests
// and local development without a database.
type MemoryStore struct {
	mu        sync.RWMutex
	docs      map[string]map[string]Document // type -> id -> doc
	contracts map[string]Contract
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]map[string]Document),
		contracts: make(map[string]Contract),
	}
}

func (s *MemoryStore) Query(_ context.Context, docType string, where []Where, opts QueryOptions) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Document
	for _, doc := range s.docs[docType] {
		match := true
		for _, w := range where {
			ok, err := matchClause(doc.Data[w.Field], w.Op, w.Value)
			if err != nil {
				return nil, err
			}
			if !ok {
				match = false
				break
			}
		}
		if match {
			out = append(out, doc)
		}
	}

	if opts.OrderBy != "" {
		field := opts.OrderBy
		sort.Slice(out, func(i, j int) bool {
			return lessValue(out[i].Data[field], out[j].Data[field])
		})
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func matchClause(have any, op string, want any) (bool, error) {
	switch op {
	case "==":
		return compareValues(have, want) == 0, nil
	case ">":
		return compareValues(have, want) > 0, nil
	case ">=":
		return compareValues(have, want) >= 0, nil
	case "<":
		return compareValues(have, want) < 0, nil
	case "<=":
		return compareValues(have, want) <= 0, nil
	default:
		return false, fmt.Errorf("platform: unsupported query op %q", op)
	}
}

// compareValues orders two payload values, coercing numbers so that
// int clauses match float64 values decoded from JSON.
func compareValues(a, b any) int {
	if fa, aok := toFloat(a); aok {
		if fb, bok := toFloat(b); bok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	sa, sb := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

func lessValue(a, b any) bool { return compareValues(a, b) < 0 }

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func (s *MemoryStore) Create(_ context.Context, doc Document, _ WriteSignature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.docs[doc.Type]
	if !ok {
		byID = make(map[string]Document)
		s.docs[doc.Type] = byID
	}
	if _, exists := byID[doc.ID]; exists {
		return fmt.Errorf("platform: create %s/%s: duplicate id", doc.Type, doc.ID)
	}
	now := time.Now()
	doc.Revision = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now
	byID[doc.ID] = doc
	return nil
}

func (s *MemoryStore) Replace(_ context.Context, doc Document, prevRevision uint64, _ WriteSignature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.docs[doc.Type][doc.ID]
	if !ok || existing.Revision != prevRevision {
		return fmt.Errorf("platform: replace %s/%s at revision %d: %w", doc.Type, doc.ID, prevRevision, ErrRevisionConflict)
	}
	existing.Data = doc.Data
	existing.Revision = prevRevision + 1
	existing.UpdatedAt = time.Now()
	s.docs[doc.Type][doc.ID] = existing
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, docType, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[docType][id]; !ok {
		return fmt.Errorf("platform: delete %s/%s: %w", docType, id, ErrNotFound)
	}
	delete(s.docs[docType], id)
	return nil
}

func (s *MemoryStore) FetchContract(_ context.Context, id string) (Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[id]
	if !ok {
		return Contract{}, fmt.Errorf("platform: contract %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (s *MemoryStore) RegisterContract(_ context.Context, c Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.contracts[c.ID] = c
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
