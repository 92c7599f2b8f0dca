package correction

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BYTE-6D65/timeshift/pkg/clock"
)

func TestPolynomial_Offset(t *testing.T) {
	p := Polynomial{Constant: 1e-9, Rate: 1e-10, Accel: 1e-15}

	assert.Equal(t, 1e-9, p.Offset(0))
	assert.InDelta(t, 1e-9+1e-10*10+1e-15*100, p.Offset(10), 1e-24)
	assert.Equal(t, time.Nanosecond, Constant(1e-9).OffsetDuration(0))
	assert.Equal(t, 3*time.Nanosecond, Constant(3e-9).OffsetDuration(0))
	assert.True(t, Polynomial{}.IsZero())
}

func TestSecondsToDuration_SymmetricRounding(t *testing.T) {
	for _, s := range []float64{0.5e-9, 1.5e-9, 2.5e-9, 1e-10, 0.123456789} {
		assert.Equal(t, -SecondsToDuration(s), SecondsToDuration(-s), "%g", s)
	}
	assert.Equal(t, 2*time.Nanosecond, SecondsToDuration(1.6e-9))
	assert.Equal(t, -2*time.Nanosecond, SecondsToDuration(-1.6e-9))
}

func TestCorrection_NewInfersSource(t *testing.T) {
	ref := clock.MustParse("2020-01-01T00:00:00 GST")
	c := New(ref, clock.GPST, Constant(1e-9), time.Hour)

	assert.Equal(t, clock.GST, c.Source)
	assert.Equal(t, clock.GPST, c.Destination)
	require.NoError(t, c.Validate())
	assert.Equal(t, "(GST-GPST)=(1.000e-09 s, 0.000e+00 s/s, 0.000e+00 s/s²) at 2020-01-01T00:00:00 GST", c.String())
}

func TestCorrection_NewCheckedRejectsMismatchedReference(t *testing.T) {
	ref := clock.MustParse("2020-01-01T00:00:00 GPST")

	_, err := NewChecked(clock.GST, clock.GPST, ref, Constant(1e-9), time.Hour)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.NotEmpty(t, errors.GetAllHints(err))

	c, err := NewChecked(clock.GPST, clock.UTC, ref, Constant(1e-9), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, clock.GPST, c.Source)
}

func TestCorrection_ValidateRejects(t *testing.T) {
	ref := clock.MustParse("2020-01-01T00:00:00 GPST")

	same := New(ref, clock.GPST, Constant(0), 0)
	assert.ErrorIs(t, same.Validate(), ErrMalformed)

	negative := New(ref, clock.UTC, Constant(0), -time.Second)
	assert.ErrorIs(t, negative.Validate(), ErrMalformed)
}

func TestCorrection_FromTimeOfWeek(t *testing.T) {
	c := FromTimeOfWeekSeconds(2086, 3*86400, clock.GPST, clock.UTC, Constant(0), 0)
	assert.Equal(t, "2020-01-01T00:00:00 GPST", c.Reference.String())
	assert.Equal(t, clock.GPST, c.Source)

	n := FromTimeOfWeek(2086, 3*86400*uint64(time.Second)+5, clock.GPST, clock.UTC, Constant(0), 0)
	assert.Equal(t, 5*time.Nanosecond, n.Reference.Sub(c.Reference))
}

func TestCorrection_ValidityWindow(t *testing.T) {
	ref := clock.MustParse("2020-01-01T00:00:00 GPST")
	c := New(ref, clock.UTC, Constant(1e-9), time.Hour)

	assert.True(t, c.Applies(ref))
	assert.True(t, c.Applies(ref.Add(59*time.Minute)))
	assert.True(t, c.Applies(ref.Add(-59*time.Minute)))
	assert.False(t, c.Applies(ref.Add(time.Hour)), "window is open at both ends")
	assert.False(t, c.Applies(ref.Add(-2*time.Hour)))

	assert.Equal(t, "2019-12-31T23:00:00 GPST", c.ValidityStart().String())
	assert.Equal(t, "2020-01-01T01:00:00 GPST", c.ValidityEnd().String())

	unbounded := New(ref, clock.UTC, Constant(1e-9), NoWindow)
	assert.False(t, unbounded.HasWindow())
	assert.True(t, unbounded.Applies(ref.Add(100*clock.Week)))
	assert.Equal(t, ref, unbounded.ValidityStart())
	assert.Equal(t, ref, unbounded.ValidityEnd())
	assert.NoError(t, unbounded.Validate())
}

func TestCorrection_ZeroWidthWindowNeverApplies(t *testing.T) {
	ref := clock.MustParse("2020-01-01T00:00:00 GPST")
	c := New(ref, clock.UTC, Constant(1e-9), 0)

	assert.True(t, c.HasWindow())
	assert.False(t, c.Applies(ref))
	assert.False(t, c.Applies(ref.Add(time.Nanosecond)))
	assert.False(t, c.Applies(ref.Add(30*24*time.Hour)))
	assert.Equal(t, ref, c.ValidityStart())
	assert.Equal(t, ref, c.ValidityEnd())
	assert.NoError(t, c.Validate())

	c.Validity = -2 * time.Nanosecond
	assert.ErrorIs(t, c.Validate(), ErrMalformed)
}

func TestCorrection_ForwardReverse(t *testing.T) {
	ref := clock.MustParse("2020-01-01T00:00:00 GPST")
	a0, a1 := 1e-9, 1e-10
	c := New(ref, clock.UTC, Polynomial{Constant: a0, Rate: a1}, 0)

	instant := ref.Add(time.Second)
	utc := c.Forward(instant)
	assert.Equal(t, clock.UTC, utc.Scale())
	assert.Equal(t, instant.ToScale(clock.UTC).Add(-SecondsToDuration(a0+a1)), utc)

	back := c.Reverse(utc)
	assert.Equal(t, clock.GPST, back.Scale())
	assert.Equal(t, instant, back)
}

func TestCorrection_TouchesOther(t *testing.T) {
	c := New(clock.MustParse("2020-01-01T00:00:00 BDT"), clock.GST, Constant(0), 0)
	assert.True(t, c.Touches(clock.BDT))
	assert.True(t, c.Touches(clock.GST))
	assert.False(t, c.Touches(clock.UTC))
	assert.Equal(t, clock.GST, c.Other(clock.BDT))
	assert.Equal(t, clock.BDT, c.Other(clock.GST))
}

func TestNoCorrectionError(t *testing.T) {
	err := NoCorrection(clock.UTC, clock.GPST)
	assert.ErrorIs(t, err, ErrNoCorrection)
	assert.True(t, IsNoCorrection(err))
	assert.Contains(t, err.Error(), "UTC -> GPST")

	var nc *NoCorrectionError
	require.True(t, errors.As(err, &nc))
	assert.Equal(t, clock.UTC, nc.From)
	assert.Equal(t, clock.GPST, nc.To)

	assert.False(t, IsNoCorrection(ErrMalformed))
}

// TestPropertyReverseIsNegatedForward verifies that for the same elapsed
// time the forward and reverse shifts are exact negations.
func TestPropertyReverseIsNegatedForward(t *testing.T) {
	t.Parallel()
	ref := clock.MustParse("2020-01-01T00:00:00 GPST")
	rapid.Check(t, func(t *rapid.T) {
		p := Polynomial{
			Constant: rapid.Float64Range(-1e-3, 1e-3).Draw(t, "a0"),
			Rate:     rapid.Float64Range(-1e-9, 1e-9).Draw(t, "a1"),
			Accel:    rapid.Float64Range(-1e-15, 1e-15).Draw(t, "a2"),
		}
		c := New(ref, clock.UTC, p, 0)
		instant := ref.Add(time.Duration(rapid.Int64Range(-int64(clock.Week), int64(clock.Week)).Draw(t, "dt")))

		fwd := c.Forward(instant).Sub(instant)
		rev := c.Reverse(instant).Sub(instant)
		if fwd != -rev {
			t.Fatalf("forward %v is not the negation of reverse %v", fwd, rev)
		}
	})
}
