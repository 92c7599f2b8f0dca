package store

import (
	"fmt"
	"slices"

	"github.com/BYTE-6D65/timeshift/pkg/clock"
	"github.com/BYTE-6D65/timeshift/pkg/correction"
)

// Database is an append-only collection of corrections. Several entries may
// cover the same scale pair over different windows.
//
// In lenient mode (the default) every entry is usable at any instant. In
// strict mode an entry is usable only inside its validity window.
//
// A Database is not safe for concurrent mutation; callers serialize writers.
type Database struct {
	entries []correction.Correction
	strict  bool
}

// Option configures a Database.
type Option func(*Database)

// WithStrictValidity enables the validity window check.
func WithStrictValidity() Option {
	return func(d *Database) {
		d.strict = true
	}
}

// WithCorrections seeds the database.
func WithCorrections(entries ...correction.Correction) Option {
	return func(d *Database) {
		d.entries = append(d.entries, entries...)
	}
}

// NewDatabase creates an empty lenient database unless options say otherwise.
func NewDatabase(opts ...Option) *Database {
	d := &Database{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Strict returns a copy of d with validity checking enabled.
func (d *Database) Strict() *Database {
	s := d.Clone()
	s.strict = true
	return s
}

// IsStrict reports whether validity windows are enforced.
func (d *Database) IsStrict() bool { return d.strict }

// Gate returns the eligibility check for the current mode.
func (d *Database) Gate() Gate {
	if d.strict {
		return Strict
	}
	return Lenient
}

// Add appends a correction.
func (d *Database) Add(c correction.Correction) {
	d.entries = append(d.entries, c)
}

// AddAll appends every correction in order.
func (d *Database) AddAll(cs ...correction.Correction) {
	d.entries = append(d.entries, cs...)
}

// Len returns the number of stored corrections.
func (d *Database) Len() int { return len(d.entries) }

// Corrections returns a copy of the stored corrections in insertion order.
func (d *Database) Corrections() []correction.Correction {
	return slices.Clone(d.entries)
}

// OutdatePast drops every correction whose reference instant is not
// strictly after cutoff. It returns the number removed.
func (d *Database) OutdatePast(cutoff clock.Epoch) int {
	return outdate(&d.entries, cutoff)
}

// OutdateWeekly drops every correction referenced one week or more before t.
func (d *Database) OutdateWeekly(t clock.Epoch) int {
	return outdate(&d.entries, t.Add(-clock.Week))
}

// Solve returns the path PreciseCorrection would take, without applying it.
func (d *Database) Solve(t clock.Epoch, target clock.Scale) (Solution, error) {
	return Solve(d.entries, t, target, d.Gate())
}

// PreciseCorrection converts t into target using the stored corrections.
func (d *Database) PreciseCorrection(t clock.Epoch, target clock.Scale) (clock.Epoch, error) {
	sol, err := d.Solve(t, target)
	if err != nil {
		return clock.Epoch{}, err
	}
	return sol.Apply(t), nil
}

// Merge returns a new database holding d's corrections followed by other's.
// The result keeps d's mode.
func (d *Database) Merge(other *Database) *Database {
	m := d.Clone()
	m.MergeMut(other)
	return m
}

// MergeMut appends other's corrections to d.
func (d *Database) MergeMut(other *Database) {
	if other == nil {
		return
	}
	d.entries = append(d.entries, other.entries...)
}

// Clone returns an independent copy.
func (d *Database) Clone() *Database {
	return &Database{entries: slices.Clone(d.entries), strict: d.strict}
}

func (d *Database) String() string {
	mode := "lenient"
	if d.strict {
		mode = "strict"
	}
	return fmt.Sprintf("Database{%d corrections, %s}", len(d.entries), mode)
}

func outdate(entries *[]correction.Correction, cutoff clock.Epoch) int {
	before := len(*entries)
	*entries = slices.DeleteFunc(*entries, func(c correction.Correction) bool {
		return !c.Reference.After(cutoff)
	})
	return before - len(*entries)
}
