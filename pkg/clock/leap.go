package clock

import "time"

// leapSecond marks the UTC date from which TAI-UTC equals total seconds.
type leapSecond struct {
	year  int
	month time.Month
	total int64
}

// UTC leap second history since the 1972 reform.
var leapSeconds = []leapSecond{
	{1972, time.January, 10},
	{1972, time.July, 11},
	{1973, time.January, 12},
	{1974, time.January, 13},
	{1975, time.January, 14},
	{1976, time.January, 15},
	{1977, time.January, 16},
	{1978, time.January, 17},
	{1979, time.January, 18},
	{1980, time.January, 19},
	{1981, time.July, 20},
	{1982, time.July, 21},
	{1983, time.July, 22},
	{1985, time.July, 23},
	{1988, time.January, 24},
	{1990, time.January, 25},
	{1991, time.January, 26},
	{1992, time.July, 27},
	{1993, time.July, 28},
	{1994, time.July, 29},
	{1996, time.January, 30},
	{1997, time.July, 31},
	{1999, time.January, 32},
	{2006, time.January, 33},
	{2009, time.January, 34},
	{2012, time.July, 35},
	{2015, time.July, 36},
	{2017, time.January, 37},
}

// leapBoundary is a leap table row resolved to nanoseconds since 1900.
type leapBoundary struct {
	utcWall int64 // UTC wall-clock nanoseconds since 1900 at which the step applies
	tai     int64 // same instant in TAI nanoseconds since 1900
	offset  int64 // TAI-UTC in nanoseconds from this boundary on
}

var leapBoundaries = buildLeapBoundaries()

func buildLeapBoundaries() []leapBoundary {
	out := make([]leapBoundary, len(leapSeconds))
	for i, ls := range leapSeconds {
		wall := wallNanos(ls.year, ls.month, 1, 0, 0, 0, 0)
		offset := ls.total * int64(time.Second)
		out[i] = leapBoundary{utcWall: wall, tai: wall + offset, offset: offset}
	}
	return out
}

// Instants before 1972 use the initial 10 s offset; the pre-reform rubber
// seconds are not modelled.
const preReformOffset = 10 * int64(time.Second)

// leapOffsetAtUTC returns TAI-UTC for a UTC wall-clock reading.
func leapOffsetAtUTC(wall int64) int64 {
	offset := preReformOffset
	for _, b := range leapBoundaries {
		if wall < b.utcWall {
			break
		}
		offset = b.offset
	}
	return offset
}

// leapOffsetAtTAI returns TAI-UTC for an absolute TAI instant.
func leapOffsetAtTAI(tai int64) int64 {
	offset := preReformOffset
	for _, b := range leapBoundaries {
		if tai < b.tai {
			break
		}
		offset = b.offset
	}
	return offset
}

// LeapSeconds returns TAI-UTC in whole seconds at the given instant.
func LeapSeconds(e Epoch) int64 {
	return leapOffsetAtTAI(e.tai) / int64(time.Second)
}
