package timeshift

import (
	"fmt"
	"time"

	"github.com/BYTE-6D65/timeshift/pkg/clock"
)

// Span is an interval between two instants, each tagged with its own scale.
type Span struct {
	Start clock.Epoch `json:"start"`
	End   clock.Epoch `json:"end"`
}

// Duration returns End - Start.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Clone returns a copy of s.
func (s Span) Clone() Span { return s }

// CoarseShiftMut relabels both ends.
func (s *Span) CoarseShiftMut(sc clock.Scale) {
	s.Start = s.Start.ToScale(sc)
	s.End = s.End.ToScale(sc)
}

// PreciseCorrectMut corrects both ends, or neither.
func (s *Span) PreciseCorrectMut(c Corrector, sc clock.Scale) error {
	start, err := c.PreciseCorrection(s.Start, sc)
	if err != nil {
		return err
	}
	end, err := c.PreciseCorrection(s.End, sc)
	if err != nil {
		return err
	}
	s.Start, s.End = start, end
	return nil
}

func (s Span) CoarseShift(sc clock.Scale) Span {
	return CoarseShift(&s, sc)
}

func (s Span) PreciseCorrect(c Corrector, sc clock.Scale) (Span, error) {
	return PreciseCorrect(&s, c, sc)
}

func (s Span) String() string {
	return fmt.Sprintf("[%s, %s]", s.Start, s.End)
}

var _ Timeshift[Span] = Span{}
