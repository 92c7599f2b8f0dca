package store

import (
	"fmt"
	"slices"

	"github.com/BYTE-6D65/timeshift/pkg/clock"
	"github.com/BYTE-6D65/timeshift/pkg/correction"
)

// Resolver keeps the latest known correction per (source, destination)
// pair. Adding a correction for a pair already present replaces it.
// Validity windows are never enforced.
type Resolver struct {
	entries []correction.Correction
}

// NewResolver creates a resolver and adds entries in order.
func NewResolver(entries ...correction.Correction) *Resolver {
	r := &Resolver{}
	for _, c := range entries {
		r.Add(c)
	}
	return r
}

// Add stores c, discarding any correction with the same scale pair.
func (r *Resolver) Add(c correction.Correction) {
	r.entries = slices.DeleteFunc(r.entries, func(old correction.Correction) bool {
		return old.Source == c.Source && old.Destination == c.Destination
	})
	r.entries = append(r.entries, c)
}

// Len returns the number of stored corrections.
func (r *Resolver) Len() int { return len(r.entries) }

// Corrections returns a copy of the stored corrections.
func (r *Resolver) Corrections() []correction.Correction {
	return slices.Clone(r.entries)
}

// Lookup returns the stored correction for src -> dst, if any.
func (r *Resolver) Lookup(src, dst clock.Scale) (correction.Correction, bool) {
	for _, c := range r.entries {
		if c.Source == src && c.Destination == dst {
			return c, true
		}
	}
	return correction.Correction{}, false
}

// OutdatePast drops corrections referenced at or before cutoff.
func (r *Resolver) OutdatePast(cutoff clock.Epoch) int {
	return outdate(&r.entries, cutoff)
}

// OutdateWeekly drops corrections referenced one week or more before t.
func (r *Resolver) OutdateWeekly(t clock.Epoch) int {
	return outdate(&r.entries, t.Add(-clock.Week))
}

// Solve returns the path PreciseCorrection would take.
func (r *Resolver) Solve(t clock.Epoch, target clock.Scale) (Solution, error) {
	return Solve(r.entries, t, target, Lenient)
}

// PreciseCorrection converts t into target.
func (r *Resolver) PreciseCorrection(t clock.Epoch, target clock.Scale) (clock.Epoch, error) {
	sol, err := r.Solve(t, target)
	if err != nil {
		return clock.Epoch{}, err
	}
	return sol.Apply(t), nil
}

// Merge returns a resolver holding r's corrections followed by other's.
// Entries are concatenated as they are; pairs present in both are kept twice.
func (r *Resolver) Merge(other *Resolver) *Resolver {
	m := r.Clone()
	m.MergeMut(other)
	return m
}

// MergeMut appends other's corrections to r.
func (r *Resolver) MergeMut(other *Resolver) {
	if other == nil {
		return
	}
	r.entries = append(r.entries, other.entries...)
}

// Clone returns an independent copy.
func (r *Resolver) Clone() *Resolver {
	return &Resolver{entries: slices.Clone(r.entries)}
}

func (r *Resolver) String() string {
	return fmt.Sprintf("Resolver{%d corrections}", len(r.entries))
}
