package timeshift

import (
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/BYTE-6D65/timeshift/pkg/clock"
)

// Sample is one timestamped measurement.
type Sample struct {
	At    clock.Epoch `json:"at"`
	Value float64     `json:"value"`
}

// Series is an ordered list of samples.
type Series struct {
	Name    string   `json:"name,omitempty"`
	Samples []Sample `json:"samples"`
}

// Append adds a sample.
func (s *Series) Append(at clock.Epoch, value float64) {
	s.Samples = append(s.Samples, Sample{At: at, Value: value})
}

// Len returns the number of samples.
func (s Series) Len() int { return len(s.Samples) }

// Clone returns a deep copy of s.
func (s Series) Clone() Series {
	return Series{Name: s.Name, Samples: slices.Clone(s.Samples)}
}

// CoarseShiftMut relabels every sample.
func (s *Series) CoarseShiftMut(sc clock.Scale) {
	for i := range s.Samples {
		s.Samples[i].At = s.Samples[i].At.ToScale(sc)
	}
}

// PreciseCorrectMut corrects every sample. On failure no sample is changed
// and the error names the first unreachable sample.
func (s *Series) PreciseCorrectMut(c Corrector, sc clock.Scale) error {
	out := make([]Sample, len(s.Samples))
	for i, smp := range s.Samples {
		at, err := c.PreciseCorrection(smp.At, sc)
		if err != nil {
			return errors.Wrapf(err, "sample %d of series %q", i, s.Name)
		}
		out[i] = Sample{At: at, Value: smp.Value}
	}
	s.Samples = out
	return nil
}

func (s Series) CoarseShift(sc clock.Scale) Series {
	return CoarseShift(&s, sc)
}

func (s Series) PreciseCorrect(c Corrector, sc clock.Scale) (Series, error) {
	return PreciseCorrect(&s, c, sc)
}

var _ Timeshift[Series] = Series{}
