// Package timeshift defines how timestamp-bearing values move between time
// scales, either by relabeling (coarse) or through a correction store
// (precise).
package timeshift

import (
	"github.com/BYTE-6D65/timeshift/pkg/clock"
)

// Corrector converts a single instant into a target scale.
// store.Database and store.Resolver implement it.
type Corrector interface {
	PreciseCorrection(t clock.Epoch, target clock.Scale) (clock.Epoch, error)
}

// Timeshift is implemented by values that carry instants.
//
// CoarseShift relabels every instant into the scale without applying any
// offset and always succeeds. PreciseCorrect converts every instant with c
// and fails as a whole if any instant cannot be converted.
type Timeshift[T any] interface {
	CoarseShift(s clock.Scale) T
	PreciseCorrect(c Corrector, s clock.Scale) (T, error)
}

// Mutable is the in-place form of Timeshift. Implementations of
// PreciseCorrectMut must leave the receiver untouched on error.
type Mutable[T any] interface {
	*T
	Clone() T
	CoarseShiftMut(s clock.Scale)
	PreciseCorrectMut(c Corrector, s clock.Scale) error
}

// CoarseShift returns a relabeled copy of v.
func CoarseShift[T any, P Mutable[T]](v *T, s clock.Scale) T {
	out := P(v).Clone()
	P(&out).CoarseShiftMut(s)
	return out
}

// PreciseCorrect returns a corrected copy of v. v is never modified.
func PreciseCorrect[T any, P Mutable[T]](v *T, c Corrector, s clock.Scale) (T, error) {
	out := P(v).Clone()
	if err := P(&out).PreciseCorrectMut(c, s); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Correct converts a single instant with c.
func Correct(c Corrector, t clock.Epoch, s clock.Scale) (clock.Epoch, error) {
	return c.PreciseCorrection(t, s)
}
