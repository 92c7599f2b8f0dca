package correction

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/BYTE-6D65/timeshift/pkg/clock"
)

// Correction is a polynomial offset model from Source to Destination,
// anchored at Reference (tagged in Source) and optionally bounded by a
// validity window centered on Reference.
//
// Applying the model forward (Source -> Destination) subtracts the offset;
// applying it in reverse adds it.
type Correction struct {
	Source      clock.Scale
	Destination clock.Scale
	Reference   clock.Epoch
	Polynomial  Polynomial

	// Validity is the half-width of the window around Reference during
	// which the model is authoritative. NoWindow means none was published;
	// zero is a published window that contains no instant.
	Validity time.Duration
}

// NoWindow is the Validity of a correction published without a validity
// period. Such a correction applies at every instant.
const NoWindow time.Duration = -1

// New defines a correction from its reference epoch; the source scale is
// the reference epoch's scale.
func New(ref clock.Epoch, dst clock.Scale, poly Polynomial, validity time.Duration) Correction {
	return Correction{
		Source:      ref.Scale(),
		Destination: dst,
		Reference:   ref,
		Polynomial:  poly,
		Validity:    validity,
	}
}

// NewChecked defines a correction with an explicitly declared source scale.
// It fails with ErrMalformed if ref is not tagged in src.
func NewChecked(src, dst clock.Scale, ref clock.Epoch, poly Polynomial, validity time.Duration) (Correction, error) {
	c := Correction{
		Source:      src,
		Destination: dst,
		Reference:   ref,
		Polynomial:  poly,
		Validity:    validity,
	}
	if err := c.Validate(); err != nil {
		return Correction{}, err
	}
	return c, nil
}

// FromTimeOfWeek defines a correction whose reference is given as a week
// counter and nanoseconds into that week, in the source scale.
func FromTimeOfWeek(week uint32, towNanos uint64, src, dst clock.Scale, poly Polynomial, validity time.Duration) Correction {
	return New(clock.FromTimeOfWeek(week, towNanos, src), dst, poly, validity)
}

// FromTimeOfWeekSeconds is FromTimeOfWeek with whole seconds into the week.
func FromTimeOfWeekSeconds(week uint32, towSeconds uint64, src, dst clock.Scale, poly Polynomial, validity time.Duration) Correction {
	return FromTimeOfWeek(week, towSeconds*uint64(time.Second), src, dst, poly, validity)
}

// Validate checks the construction invariants.
func (c Correction) Validate() error {
	if !c.Source.Valid() || !c.Destination.Valid() {
		return errors.Wrapf(ErrMalformed, "unknown scale in %s -> %s", c.Source, c.Destination)
	}
	if c.Reference.Scale() != c.Source {
		return errors.WithHint(
			errors.Wrapf(ErrMalformed, "reference epoch tagged %s, declared source %s",
				c.Reference.Scale(), c.Source),
			"express the reference epoch in the source scale")
	}
	if c.Source == c.Destination {
		return errors.Wrapf(ErrMalformed, "source and destination are both %s", c.Source)
	}
	if c.Validity < 0 && c.Validity != NoWindow {
		return errors.Wrapf(ErrMalformed, "negative validity period %s", c.Validity)
	}
	return nil
}

// HasWindow reports whether a validity period was published.
func (c Correction) HasWindow() bool {
	return c.Validity != NoWindow
}

// Applies reports whether |now - Reference| < Validity. A zero-width window
// never applies; a correction without a published window always does.
func (c Correction) Applies(now clock.Epoch) bool {
	if !c.HasWindow() {
		return true
	}
	dt := now.Sub(c.Reference)
	if dt < 0 {
		dt = -dt
	}
	return dt < c.Validity
}

// ValidityStart returns Reference - Validity, or Reference when no window
// was published.
func (c Correction) ValidityStart() clock.Epoch {
	if !c.HasWindow() {
		return c.Reference
	}
	return c.Reference.Add(-c.Validity)
}

// ValidityEnd returns Reference + Validity, or Reference when no window was
// published.
func (c Correction) ValidityEnd() clock.Epoch {
	if !c.HasWindow() {
		return c.Reference
	}
	return c.Reference.Add(c.Validity)
}

// Touches reports whether s is either side of the correction.
func (c Correction) Touches(s clock.Scale) bool {
	return c.Source == s || c.Destination == s
}

// Other returns the scale opposite s. It is only meaningful when Touches(s).
func (c Correction) Other(s clock.Scale) clock.Scale {
	if c.Source == s {
		return c.Destination
	}
	return c.Source
}

// Elapsed returns the seconds from the reference instant to t, with both
// expressed in the source scale.
func (c Correction) Elapsed(t clock.Epoch) float64 {
	return t.ToScale(c.Source).Sub(c.Reference.ToScale(c.Source)).Seconds()
}

// Distance returns |t - Reference|, used to pick the nearest model.
func (c Correction) Distance(t clock.Epoch) time.Duration {
	d := t.Sub(c.Reference)
	if d < 0 {
		return -d
	}
	return d
}

// Forward converts t into Destination: coarse re-tag, then subtract the offset.
func (c Correction) Forward(t clock.Epoch) clock.Epoch {
	return t.ToScale(c.Destination).Add(-c.Polynomial.OffsetDuration(c.Elapsed(t)))
}

// Reverse converts t into Source: coarse re-tag, then add the offset.
func (c Correction) Reverse(t clock.Epoch) clock.Epoch {
	return t.ToScale(c.Source).Add(c.Polynomial.OffsetDuration(c.Elapsed(t)))
}

func (c Correction) String() string {
	return fmt.Sprintf("(%s-%s)=%s at %s", c.Source, c.Destination, c.Polynomial, c.Reference)
}
