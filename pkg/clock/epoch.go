package clock

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	// Seconds between 1900-01-01 and the Unix epoch.
	unix1900 int64 = 2208988800

	nanosPerSecond = int64(time.Second)

	// Week is the GNSS week length.
	Week = 7 * 24 * time.Hour

	parseLayout = "2006-01-02T15:04:05.999999999"
)

// Epoch is an absolute instant tagged with the scale it is expressed in.
// The instant is held as TAI nanoseconds since 1900-01-01T00:00:00 TAI, which
// spans roughly 1608 to 2192 at 1 ns resolution. Constructors accept
// 1610-01-01 .. 2190-12-31. Two epochs are == only when both the instant and
// the scale tag match; use Equal to compare instants.
type Epoch struct {
	tai   int64
	scale Scale
}

// ErrOutOfRange is returned for instants outside the span an Epoch can hold.
var ErrOutOfRange = errors.New("clock: instant outside 1610-01-01 .. 2190-12-31")

// Supported civil span, in seconds since 1900 on the scale's own clock. The
// end is exclusive. Both bounds leave room for the scale offsets to TAI.
var (
	minWallSeconds = civilSeconds(1610, time.January, 1, 0, 0, 0)
	maxWallSeconds = civilSeconds(2191, time.January, 1, 0, 0, 0)
)

func civilSeconds(year int, month time.Month, day, hour, minute, second int) int64 {
	return time.Date(year, month, day, hour, minute, second, 0, time.UTC).Unix() + unix1900
}

// wallNanos converts a civil date to nanoseconds since 1900-01-01 on a
// clock without leap seconds. The date must be in range.
func wallNanos(year int, month time.Month, day, hour, minute, second, nanos int) int64 {
	return civilSeconds(year, month, day, hour, minute, second)*nanosPerSecond + int64(nanos)
}

func checkWallSeconds(secs int64) error {
	if secs < minWallSeconds || secs >= maxWallSeconds {
		return ErrOutOfRange
	}
	return nil
}

func fromWall(wall int64, s Scale) Epoch {
	if s == UTC {
		return Epoch{tai: wall + leapOffsetAtUTC(wall), scale: s}
	}
	return Epoch{tai: wall + int64(s.taiOffset()), scale: s}
}

// wall returns the civil reading of e in its own scale, in nanoseconds since 1900.
func (e Epoch) wall() int64 {
	if e.scale == UTC {
		return e.tai - leapOffsetAtTAI(e.tai)
	}
	return e.tai - int64(e.scale.taiOffset())
}

// FromGregorianChecked builds an epoch from a calendar reading in scale s.
// Fields are normalized like time.Date. It fails with ErrOutOfRange outside
// 1610-01-01 .. 2190-12-31.
func FromGregorianChecked(year int, month time.Month, day, hour, minute, second, nanos int, s Scale) (Epoch, error) {
	// Rejects years whose seconds would not fit before the exact check.
	if year < 1600 || year > 2200 {
		return Epoch{}, errors.Wrapf(ErrOutOfRange, "year %d", year)
	}
	secs := civilSeconds(year, month, day, hour, minute, second) + floorDiv(int64(nanos), nanosPerSecond)
	if err := checkWallSeconds(secs); err != nil {
		return Epoch{}, errors.Wrapf(err, "%04d-%02d-%02d", year, month, day)
	}
	return fromWall(wallNanos(year, month, day, hour, minute, second, nanos), s), nil
}

// FromGregorian is FromGregorianChecked for readings known to be in range.
// It panics otherwise.
func FromGregorian(year int, month time.Month, day, hour, minute, second, nanos int, s Scale) Epoch {
	e, err := FromGregorianChecked(year, month, day, hour, minute, second, nanos, s)
	if err != nil {
		panic(err)
	}
	return e
}

// FromTime converts a time.Time, interpreted as UTC, into a UTC epoch. It
// panics outside the supported range.
func FromTime(t time.Time) Epoch {
	t = t.UTC()
	return FromGregorian(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), UTC)
}

// Parse reads "2020-01-01T00:00:00[.fffffffff] GPST". A space may replace the T.
func Parse(text string) (Epoch, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 || len(fields) > 3 {
		return Epoch{}, errors.Newf("clock: cannot parse epoch %q: want \"<date>T<time> <scale>\"", text)
	}
	s, err := ParseScale(fields[len(fields)-1])
	if err != nil {
		return Epoch{}, err
	}
	stamp := strings.Join(fields[:len(fields)-1], "T")
	t, err := time.Parse(parseLayout, stamp)
	if err != nil {
		return Epoch{}, errors.Wrapf(err, "clock: cannot parse epoch %q", text)
	}
	e, err := FromGregorianChecked(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), s)
	if err != nil {
		return Epoch{}, errors.Wrapf(err, "clock: cannot parse epoch %q", text)
	}
	return e, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(text string) Epoch {
	e, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return e
}

// weekOrigin returns the civil start of week 0 for scale s.
func weekOrigin(s Scale) int64 {
	switch s {
	case GST:
		return wallNanos(1999, time.August, 22, 0, 0, 0, 0)
	case BDT:
		return wallNanos(2006, time.January, 1, 0, 0, 0, 0)
	default:
		return wallNanos(1980, time.January, 6, 0, 0, 0, 0)
	}
}

// FromTimeOfWeekChecked builds an epoch from a week counter and nanoseconds
// into that week, in scale s. towNanos may exceed one week. It fails with
// ErrOutOfRange past 2190-12-31.
func FromTimeOfWeekChecked(week uint32, towNanos uint64, s Scale) (Epoch, error) {
	origin := weekOrigin(s)
	secs := origin/nanosPerSecond + int64(week)*int64(Week/time.Second) + int64(towNanos/uint64(nanosPerSecond))
	if err := checkWallSeconds(secs); err != nil {
		return Epoch{}, errors.Wrapf(err, "%s week %d + %dns", s, week, towNanos)
	}
	return fromWall(origin+int64(week)*int64(Week)+int64(towNanos), s), nil
}

// FromTimeOfWeek is FromTimeOfWeekChecked for values known to be in range.
// It panics otherwise.
func FromTimeOfWeek(week uint32, towNanos uint64, s Scale) Epoch {
	e, err := FromTimeOfWeekChecked(week, towNanos, s)
	if err != nil {
		panic(err)
	}
	return e
}

// ToTimeOfWeek returns the week counter and nanoseconds into the week of e
// in its own scale.
func (e Epoch) ToTimeOfWeek() (week uint32, towNanos uint64) {
	elapsed := e.wall() - weekOrigin(e.scale)
	w := floorDiv(elapsed, int64(Week))
	return uint32(w), uint64(elapsed - w*int64(Week))
}

// Scale returns the scale tag.
func (e Epoch) Scale() Scale { return e.scale }

// ToScale re-tags the same physical instant into scale s. No systematic
// offset between the scales is applied.
func (e Epoch) ToScale(s Scale) Epoch {
	e.scale = s
	return e
}

// Add shifts the instant by d, keeping the scale tag. The result is only
// meaningful while it stays inside the supported span.
func (e Epoch) Add(d time.Duration) Epoch {
	e.tai += int64(d)
	return e
}

// Sub returns e-u as an absolute (TAI) duration, independent of scale tags.
func (e Epoch) Sub(u Epoch) time.Duration {
	return time.Duration(e.tai - u.tai)
}

// Equal reports whether both epochs denote the same instant.
func (e Epoch) Equal(u Epoch) bool { return e.tai == u.tai }

// Before reports whether e is strictly earlier than u.
func (e Epoch) Before(u Epoch) bool { return e.tai < u.tai }

// After reports whether e is strictly later than u.
func (e Epoch) After(u Epoch) bool { return e.tai > u.tai }

// Gregorian returns the civil reading of e in its own scale. The returned
// time.Time carries the UTC location only as a container.
func (e Epoch) Gregorian() time.Time {
	w := e.wall()
	secs := floorDiv(w, nanosPerSecond)
	return time.Unix(secs-unix1900, w-secs*nanosPerSecond).UTC()
}

// Time converts e to a time.Time in UTC.
func (e Epoch) Time() time.Time {
	return e.ToScale(UTC).Gregorian()
}

func (e Epoch) String() string {
	return e.Gregorian().Format(parseLayout) + " " + e.scale.String()
}

// MarshalText implements encoding.TextMarshaler.
func (e Epoch) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Epoch) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
