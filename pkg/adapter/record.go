package adapter

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/BYTE-6D65/timeshift/pkg/clock"
	"github.com/BYTE-6D65/timeshift/pkg/correction"
)

// Record is the wire form of a correction, as published by a broadcast
// decoder. The reference instant is given either as text
// ("2020-01-01T00:00:00 GPST") or as a week number and nanoseconds into the
// week of the source scale.
type Record struct {
	Source      string  `json:"source"`
	Destination string  `json:"destination"`
	Reference   string  `json:"reference,omitempty"`
	Week        *uint32 `json:"week,omitempty"`
	TimeOfWeek  *uint64 `json:"tow_ns,omitempty"`
	A0          float64 `json:"a0"`
	A1          float64 `json:"a1,omitzero"`
	A2          float64 `json:"a2,omitzero"`
	Validity    string  `json:"validity,omitempty"`
}

// Correction converts the record, checking that the reference instant is
// expressed in the source scale.
func (r Record) Correction() (correction.Correction, error) {
	src, err := clock.ParseScale(r.Source)
	if err != nil {
		return correction.Correction{}, errors.Wrap(err, "source")
	}
	dst, err := clock.ParseScale(r.Destination)
	if err != nil {
		return correction.Correction{}, errors.Wrap(err, "destination")
	}

	var ref clock.Epoch
	switch {
	case r.Reference != "":
		if ref, err = clock.Parse(r.Reference); err != nil {
			return correction.Correction{}, errors.Wrap(err, "reference")
		}
	case r.Week != nil && r.TimeOfWeek != nil:
		if ref, err = clock.FromTimeOfWeekChecked(*r.Week, *r.TimeOfWeek, src); err != nil {
			return correction.Correction{}, errors.Wrap(err, "reference")
		}
	default:
		return correction.Correction{}, errors.WithHint(
			errors.New("record has no reference instant"),
			`set "reference" or both "week" and "tow_ns"`)
	}

	validity := correction.NoWindow
	if r.Validity != "" {
		if validity, err = time.ParseDuration(r.Validity); err != nil {
			return correction.Correction{}, errors.Wrap(err, "validity")
		}
	}

	poly := correction.Polynomial{Constant: r.A0, Rate: r.A1, Accel: r.A2}
	return correction.NewChecked(src, dst, ref, poly, validity)
}

// FromCorrection returns the wire form of c.
func FromCorrection(c correction.Correction) Record {
	r := Record{
		Source:      c.Source.String(),
		Destination: c.Destination.String(),
		Reference:   c.Reference.String(),
		A0:          c.Polynomial.Constant,
		A1:          c.Polynomial.Rate,
		A2:          c.Polynomial.Accel,
	}
	if c.HasWindow() {
		r.Validity = c.Validity.String()
	}
	return r
}
