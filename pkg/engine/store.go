package engine

import (
	"sync"

	"github.com/BYTE-6D65/timeshift/pkg/clock"
	"github.com/BYTE-6D65/timeshift/pkg/correction"
	"github.com/BYTE-6D65/timeshift/pkg/store"
)

// backend is the surface shared by store.Database and store.Resolver.
type backend interface {
	Add(c correction.Correction)
	Len() int
	Corrections() []correction.Correction
	OutdatePast(cutoff clock.Epoch) int
	OutdateWeekly(t clock.Epoch) int
	Solve(t clock.Epoch, target clock.Scale) (store.Solution, error)
}

var (
	_ backend = (*store.Database)(nil)
	_ backend = (*store.Resolver)(nil)
)

// Store is a named correction store guarded by a read/write lock: writers
// are serialized, lookups share the read lock.
type Store struct {
	mu     sync.RWMutex
	name   string
	mode   Mode
	strict bool
	b      backend
}

func newStore(name string, mode Mode, strict bool) *Store {
	g := &Store{name: name, mode: mode, strict: strict}
	switch mode {
	case ModeResolver:
		g.strict = false
		g.b = store.NewResolver()
	default:
		var opts []store.Option
		if strict {
			opts = append(opts, store.WithStrictValidity())
		}
		g.b = store.NewDatabase(opts...)
	}
	return g
}

// Name returns the store name.
func (g *Store) Name() string { return g.name }

// Info describes the store.
func (g *Store) Info() StoreInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return StoreInfo{Name: g.name, Mode: g.mode, Strict: g.strict, Len: g.b.Len()}
}

// mergeFrom appends src's corrections to g. src is copied under its own
// read lock first so two opposite merges cannot deadlock.
func (g *Store) mergeFrom(src *Store) error {
	src.mu.RLock()
	var other backend
	switch b := src.b.(type) {
	case *store.Database:
		other = b.Clone()
	case *store.Resolver:
		other = b.Clone()
	}
	src.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	switch dst := g.b.(type) {
	case *store.Database:
		o, ok := other.(*store.Database)
		if !ok {
			return ErrModeMismatch
		}
		dst.MergeMut(o)
	case *store.Resolver:
		o, ok := other.(*store.Resolver)
		if !ok {
			return ErrModeMismatch
		}
		dst.MergeMut(o)
	}
	return nil
}

// StoreInfo describes a named store.
type StoreInfo struct {
	Name   string `json:"name"`
	Mode   Mode   `json:"mode"`
	Strict bool   `json:"strict"`
	Len    int    `json:"corrections"`
}
