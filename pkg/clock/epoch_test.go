package clock

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseScale_Aliases(t *testing.T) {
	cases := map[string]Scale{
		"GPST":   GPST,
		"gps":    GPST,
		"Gal":    GST,
		"BDS":    BDT,
		"beidou": BDT,
		"QZSS":   QZSST,
		" utc ":  UTC,
		"TT":     TT,
	}
	for name, want := range cases {
		got, err := ParseScale(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseScale("GLONASST")
	assert.Error(t, err)
}

func TestEpoch_CoarseRetagKeepsInstant(t *testing.T) {
	gpst := MustParse("2020-01-01T00:00:00 GPST")

	utc := gpst.ToScale(UTC)
	assert.True(t, utc.Equal(gpst))
	assert.Equal(t, "2019-12-31T23:59:42 UTC", utc.String())

	bdt := gpst.ToScale(BDT)
	assert.Equal(t, "2019-12-31T23:59:46 BDT", bdt.String())

	gst := gpst.ToScale(GST)
	assert.Equal(t, "2020-01-01T00:00:00 GST", gst.String())

	tai := gpst.ToScale(TAI)
	assert.Equal(t, "2020-01-01T00:00:19 TAI", tai.String())

	tt := gpst.ToScale(TT)
	assert.Equal(t, "2020-01-01T00:00:51.184 TT", tt.String())
}

func TestEpoch_SameReadingDifferentScales(t *testing.T) {
	gpst := MustParse("2020-01-01T00:00:00 GPST")
	gst := MustParse("2020-01-01T00:00:00 GST")
	bdt := MustParse("2020-01-01T00:00:00 BDT")

	assert.True(t, gpst.Equal(gst))
	assert.Equal(t, 14*time.Second, bdt.Sub(gpst))
	assert.NotEqual(t, gpst, gst, "== also compares the scale tag")
}

func TestEpoch_LeapSecondArithmetic(t *testing.T) {
	before := MustParse("2016-12-31T23:59:59 UTC")
	after := MustParse("2017-01-01T00:00:00 UTC")

	assert.Equal(t, 2*time.Second, after.Sub(before))
	assert.Equal(t, int64(36), LeapSeconds(before))
	assert.Equal(t, int64(37), LeapSeconds(after))
	assert.Equal(t, int64(10), LeapSeconds(MustParse("1970-01-01T00:00:00 UTC")))
}

func TestEpoch_TimeOfWeek(t *testing.T) {
	gpst := MustParse("2020-01-01T00:00:00 GPST")
	week, tow := gpst.ToTimeOfWeek()
	assert.Equal(t, uint32(2086), week)
	assert.Equal(t, uint64(3*24*time.Hour), tow)
	assert.True(t, FromTimeOfWeek(2086, tow, GPST).Equal(gpst))

	week, _ = gpst.ToScale(GST).ToTimeOfWeek()
	assert.Equal(t, uint32(2086-1024), week)

	bdt := MustParse("2020-01-01T00:00:00 BDT")
	week, tow = bdt.ToTimeOfWeek()
	assert.Equal(t, uint32(730), week)
	assert.Equal(t, uint64(3*24*time.Hour), tow)
}

func TestEpoch_ParseFormats(t *testing.T) {
	e, err := Parse("2020-01-01 12:30:00.5 gps")
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01T12:30:00.5 GPST", e.String())

	_, err = Parse("2020-01-01T00:00:00")
	assert.Error(t, err, "scale is required")

	_, err = Parse("not-a-date UTC")
	assert.Error(t, err)

	var u Epoch
	require.NoError(t, u.UnmarshalText([]byte("2020-01-01T00:00:00 UTC")))
	text, err := u.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01T00:00:00 UTC", string(text))
}

func TestEpoch_FromTime(t *testing.T) {
	e := FromTime(time.Date(2024, 3, 1, 6, 0, 0, 7, time.UTC))
	assert.Equal(t, "2024-03-01T06:00:00.000000007 UTC", e.String())
	assert.Equal(t, time.Date(2024, 3, 1, 6, 0, 0, 7, time.UTC), e.Time())
}

func TestEpoch_ParseRejectsOutOfRange(t *testing.T) {
	for _, text := range []string{
		"2300-01-01T00:00:00 GPST",
		"1500-06-01T00:00:00 TAI",
		"2191-01-01T00:00:00 GPST",
		"1609-12-31T23:59:59.999999999 TAI",
	} {
		_, err := Parse(text)
		assert.ErrorIs(t, err, ErrOutOfRange, text)
	}
}

func TestEpoch_RangeBoundaries(t *testing.T) {
	for _, text := range []string{
		"1610-01-01T00:00:00 TAI",
		"1610-01-01T00:00:00 UTC",
		"2190-12-31T23:59:59.999999999 GPST",
		"2190-12-31T23:59:59.999999999 TT",
	} {
		e, err := Parse(text)
		require.NoError(t, err, text)
		assert.Equal(t, text, e.String())
	}

	first := MustParse("1610-01-01T00:00:00 TAI")
	last := MustParse("2190-12-31T23:59:59.999999999 TAI")
	assert.Positive(t, last.Sub(first))

	_, err := FromGregorianChecked(2190, time.December, 31, 23, 59, 59, int(time.Second), GPST)
	assert.ErrorIs(t, err, ErrOutOfRange, "nanos carrying into 2191")
	_, err = FromGregorianChecked(1610, time.January, 1, 0, 0, 0, -1, TAI)
	assert.ErrorIs(t, err, ErrOutOfRange, "nanos borrowing into 1609")
	assert.Panics(t, func() { FromGregorian(2300, time.January, 1, 0, 0, 0, 0, GPST) })
}

func TestEpoch_TimeOfWeekRange(t *testing.T) {
	e, err := FromTimeOfWeekChecked(2086, uint64(3*24*time.Hour), GPST)
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01T00:00:00 GPST", e.String())

	_, err = FromTimeOfWeekChecked(math.MaxUint32, 0, GPST)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = FromTimeOfWeekChecked(0, math.MaxUint64, BDT)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Panics(t, func() { FromTimeOfWeek(math.MaxUint32, 0, GST) })

	// Last week that still fits ends before 2191.
	week, _ := MustParse("2190-12-31T00:00:00 GPST").ToTimeOfWeek()
	_, err = FromTimeOfWeekChecked(week, 0, GPST)
	assert.NoError(t, err)
	_, err = FromTimeOfWeekChecked(week+1, 0, GPST)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

// epochGen draws instants between roughly fromYear and 2150.
func epochGen(fromYear int64, scales ...Scale) *rapid.Generator[Epoch] {
	return rapid.Custom(func(t *rapid.T) Epoch {
		tai := rapid.Int64Range((fromYear-1900)*365*86400*nanosPerSecond, 250*365*86400*nanosPerSecond).Draw(t, "tai")
		s := rapid.SampledFrom(scales).Draw(t, "scale")
		return Epoch{tai: tai, scale: s}
	})
}

// TestPropertyEpochStringRoundTrip verifies String and Parse are inverse
// outside of UTC, whose inserted seconds have no distinct civil reading.
func TestPropertyEpochStringRoundTrip(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		e := epochGen(1950, TAI, TT, GPST, GST, BDT, QZSST).Draw(t, "epoch")
		back, err := Parse(e.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", e.String(), err)
		}
		if back != e {
			t.Fatalf("round trip changed epoch: %v -> %v", e, back)
		}
	})
}

// TestPropertyTimeOfWeekRoundTrip verifies week/TOW decomposition is lossless.
func TestPropertyTimeOfWeekRoundTrip(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		e := epochGen(2007, GPST, GST, BDT, QZSST).Draw(t, "epoch")
		week, tow := e.ToTimeOfWeek()
		if tow >= uint64(Week) {
			t.Fatalf("tow %d exceeds a week", tow)
		}
		if back := FromTimeOfWeek(week, tow, e.Scale()); back != e {
			t.Fatalf("week %d tow %d gave %v, want %v", week, tow, back, e)
		}
	})
}
