// Package memory is an in-process db.Store with Elasticsearch-like alias
// semantics: an alias may bind several indexes and alias updates are applied
// all-or-nothing. It backs the "memory" driver and end-to-end tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kailas-cloud/indexstager/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithCopyLag hides a copied index from ListIndexes for the given number of
// listings, the way a backfill running in the background would.
func WithCopyLag(listings int) Option {
	return func(s *Store) { s.copyLag = listings }
}

// Store keeps index definitions and alias bindings in memory.
type Store struct {
	mu      sync.RWMutex
	indexes map[string]*db.IndexDefinition
	aliases map[string]map[string]struct{} // alias -> indexes
	pending map[string]int                 // copied index -> listings left before visible
	copyLag int
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		indexes: make(map[string]*db.IndexDefinition),
		aliases: make(map[string]map[string]struct{}),
		pending: make(map[string]int),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// CreateIndex registers a new concrete index.
func (s *Store) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid index definition: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(def)
}

func (s *Store) createLocked(def *db.IndexDefinition) error {
	if _, ok := s.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	if _, ok := s.aliases[def.Name]; ok {
		return fmt.Errorf("create %s: %w", def.Name, db.ErrAliasConflict)
	}
	s.indexes[def.Name] = def.Clone()
	return nil
}

// DropIndex removes a concrete index and every alias binding pointing at it.
func (s *Store) DropIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[name]; !ok {
		return db.ErrIndexNotFound
	}
	delete(s.indexes, name)
	delete(s.pending, name)
	for alias, targets := range s.aliases {
		delete(targets, name)
		if len(targets) == 0 {
			delete(s.aliases, alias)
		}
	}
	return nil
}

// IndexExists reports whether name is a concrete index or an alias.
func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, concrete := s.indexes[name]
	_, alias := s.aliases[name]
	return concrete || alias, nil
}

// DescribeIndex returns the definition name resolves to. An alias must bind
// exactly one index.
func (s *Store) DescribeIndex(_ context.Context, name string) (*db.IndexDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, err := s.resolveLocked(name)
	if err != nil {
		return nil, err
	}
	return def.Clone(), nil
}

func (s *Store) resolveLocked(name string) (*db.IndexDefinition, error) {
	if def, ok := s.indexes[name]; ok {
		return def, nil
	}
	targets := s.aliases[name]
	if len(targets) != 1 {
		return nil, db.ErrIndexNotFound
	}
	for t := range targets {
		return s.indexes[t], nil
	}
	return nil, db.ErrIndexNotFound
}

// CopyIndex creates dst with the definition of src.
func (s *Store) CopyIndex(_ context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, err := s.resolveLocked(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	copyDef, err := db.CopyOf(def).Named(dst).Build()
	if err != nil {
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	if err := s.createLocked(copyDef); err != nil {
		return err
	}
	if s.copyLag > 0 {
		s.pending[dst] = s.copyLag
	}
	return nil
}

// ListIndexes returns concrete index names, sorted. Copies still within their
// lag are omitted.
func (s *Store) ListIndexes(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.indexes))
	for name := range s.indexes {
		if left, ok := s.pending[name]; ok {
			if left > 0 {
				s.pending[name] = left - 1
				continue
			}
			delete(s.pending, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// AliasBindings mirrors Elasticsearch GET /{name}/_alias/*: an alias yields
// every index it binds; a concrete index yields itself only when aliased.
func (s *Store) AliasBindings(_ context.Context, name string) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]string)
	found := false

	if targets, ok := s.aliases[name]; ok {
		found = true
		for t := range targets {
			out[t] = append(out[t], name)
		}
	}
	if _, ok := s.indexes[name]; ok {
		found = true
		for alias, targets := range s.aliases {
			if _, bound := targets[name]; bound {
				out[name] = append(out[name], alias)
			}
		}
		if aliases, ok := out[name]; ok {
			sort.Strings(aliases)
		}
	}
	if !found {
		return nil, db.ErrIndexNotFound
	}
	return out, nil
}

// UpdateAliases validates every action against a working copy and commits
// only if all of them succeed.
func (s *Store) UpdateAliases(_ context.Context, actions []db.AliasAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := make(map[string]map[string]struct{}, len(s.aliases))
	for alias, targets := range s.aliases {
		cp := make(map[string]struct{}, len(targets))
		for t := range targets {
			cp[t] = struct{}{}
		}
		work[alias] = cp
	}

	for i, a := range actions {
		switch a.Type {
		case db.AliasAdd:
			if _, ok := s.indexes[a.Index]; !ok {
				return fmt.Errorf("action %d add %s -> %s: %w", i, a.Alias, a.Index, db.ErrIndexNotFound)
			}
			if _, ok := s.indexes[a.Alias]; ok {
				return fmt.Errorf("action %d add %s: %w", i, a.Alias, db.ErrAliasConflict)
			}
			if work[a.Alias] == nil {
				work[a.Alias] = make(map[string]struct{})
			}
			work[a.Alias][a.Index] = struct{}{}
		case db.AliasRemove:
			targets := work[a.Alias]
			if _, ok := targets[a.Index]; !ok {
				return fmt.Errorf("action %d remove %s -> %s: %w", i, a.Alias, a.Index, db.ErrAliasNotFound)
			}
			delete(targets, a.Index)
			if len(targets) == 0 {
				delete(work, a.Alias)
			}
		default:
			return fmt.Errorf("action %d: unknown alias action %q", i, a.Type)
		}
	}

	s.aliases = work
	return nil
}
