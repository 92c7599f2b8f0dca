// Package store holds correction entries and resolves instants between
// time scales with them.
//
// A single search backs both store kinds. It tries, in order: the identity
// (same scale), direct-forward entries, direct-reverse entries, and finally
// two-hop compositions through one intermediate scale. Inside a tier the
// entry whose reference instant is nearest to the query instant wins.
package store

import (
	"github.com/BYTE-6D65/timeshift/pkg/clock"
	"github.com/BYTE-6D65/timeshift/pkg/correction"
)

// Gate decides whether an entry may be used for an instant.
type Gate func(c correction.Correction, t clock.Epoch) bool

// Lenient accepts every entry, extrapolating beyond any validity window.
func Lenient(correction.Correction, clock.Epoch) bool { return true }

// Strict accepts an entry only inside its validity window.
func Strict(c correction.Correction, t clock.Epoch) bool {
	return c.Applies(t.ToScale(c.Source))
}

// Tier identifies which stage of the search produced a solution.
type Tier uint8

const (
	Identity Tier = iota
	Forward
	Reverse
	Indirect
)

func (t Tier) String() string {
	switch t {
	case Identity:
		return "identity"
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	case Indirect:
		return "indirect"
	default:
		return "unknown"
	}
}

// Leg is one entry taking part in a solution. Sign is -1 when the entry is
// applied source to destination and +1 when applied destination to source.
type Leg struct {
	correction.Correction
	Sign float64
}

func forwardLeg(c correction.Correction) Leg { return Leg{Correction: c, Sign: -1} }
func reverseLeg(c correction.Correction) Leg { return Leg{Correction: c, Sign: 1} }

// legToward orients c so that it is applied from scale from.
func legToward(c correction.Correction, from clock.Scale) Leg {
	if c.Source == from {
		return forwardLeg(c)
	}
	return reverseLeg(c)
}

// Solution is a resolved path from an instant's scale to Target.
type Solution struct {
	Tier   Tier
	Target clock.Scale
	Legs   []Leg
}

// Apply converts t along the solution: a coarse re-tag into Target shifted
// by the signed sum of every leg's offset. Each leg's elapsed time is taken
// from t in that leg's source scale. The sum is rounded to the nanosecond
// once, after all legs are added.
func (s Solution) Apply(t clock.Epoch) clock.Epoch {
	if s.Tier == Identity {
		return t
	}
	var shift float64
	for _, leg := range s.Legs {
		shift += leg.Sign * leg.Polynomial.Offset(leg.Elapsed(t))
	}
	return t.ToScale(s.Target).Add(correction.SecondsToDuration(shift))
}

// Solve finds the best path for converting t into target among entries,
// using gate to filter candidates. Entries failing the gate never win a
// tier; when no tier has an eligible candidate Solve returns a
// *correction.NoCorrectionError.
func Solve(entries []correction.Correction, t clock.Epoch, target clock.Scale, gate Gate) (Solution, error) {
	src := t.Scale()
	if src == target {
		return Solution{Tier: Identity, Target: target}, nil
	}
	if gate == nil {
		gate = Lenient
	}

	fwd, rev := -1, -1
	for i, c := range entries {
		switch {
		case c.Source == src && c.Destination == target:
			if gate(c, t) && nearer(entries, i, fwd, t) {
				fwd = i
			}
		case c.Source == target && c.Destination == src:
			if gate(c, t) && nearer(entries, i, rev, t) {
				rev = i
			}
		}
	}
	if fwd >= 0 {
		return Solution{Tier: Forward, Target: target, Legs: []Leg{forwardLeg(entries[fwd])}}, nil
	}
	if rev >= 0 {
		return Solution{Tier: Reverse, Target: target, Legs: []Leg{reverseLeg(entries[rev])}}, nil
	}

	if legs, ok := solveIndirect(entries, t, target, gate); ok {
		return Solution{Tier: Indirect, Target: target, Legs: legs}, nil
	}
	return Solution{}, correction.NoCorrection(src, target)
}

// nearer reports whether candidate i beats the current best (-1 for none).
// Ties keep the earlier entry.
func nearer(entries []correction.Correction, i, best int, t clock.Epoch) bool {
	if best < 0 {
		return true
	}
	return entries[i].Distance(t) < entries[best].Distance(t)
}

// solveIndirect pairs an entry touching the source scale with one touching
// the target through a shared intermediate scale. Either entry may be used
// in either direction; the pair nearest in summed distance wins.
func solveIndirect(entries []correction.Correction, t clock.Epoch, target clock.Scale, gate Gate) ([]Leg, bool) {
	src := t.Scale()

	var first, second []int
	for i, c := range entries {
		if c.Source == c.Destination || !gate(c, t) {
			continue
		}
		if c.Touches(src) && !c.Touches(target) {
			first = append(first, i)
		}
		if c.Touches(target) && !c.Touches(src) {
			second = append(second, i)
		}
	}

	bestA, bestB := -1, -1
	var bestDist int64
	for _, a := range first {
		mid := entries[a].Other(src)
		da := int64(entries[a].Distance(t))
		for _, b := range second {
			if entries[b].Other(target) != mid {
				continue
			}
			d := da + int64(entries[b].Distance(t))
			if bestA < 0 || d < bestDist {
				bestA, bestB, bestDist = a, b, d
			}
		}
	}
	if bestA < 0 {
		return nil, false
	}

	mid := entries[bestA].Other(src)
	return []Leg{
		legToward(entries[bestA], src),
		legToward(entries[bestB], mid),
	}, true
}
