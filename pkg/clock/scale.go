package clock

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Scale identifies a timekeeping system. Scales are closed, comparable values.
type Scale uint8

const (
	TAI   Scale = iota // International Atomic Time
	TT                 // Terrestrial Time
	UTC                // Coordinated Universal Time
	GPST               // GPS time
	GST                // Galileo system time
	BDT                // BeiDou time
	QZSST              // QZSS time
)

var scaleNames = [...]string{
	TAI:   "TAI",
	TT:    "TT",
	UTC:   "UTC",
	GPST:  "GPST",
	GST:   "GST",
	BDT:   "BDT",
	QZSST: "QZSST",
}

var scaleAliases = map[string]Scale{
	"TAI":    TAI,
	"TT":     TT,
	"UTC":    UTC,
	"GPST":   GPST,
	"GPS":    GPST,
	"GST":    GST,
	"GAL":    GST,
	"BDT":    BDT,
	"BDS":    BDT,
	"BEIDOU": BDT,
	"QZSST":  QZSST,
	"QZSS":   QZSST,
}

// Scales lists every known scale in declaration order.
func Scales() []Scale {
	return []Scale{TAI, TT, UTC, GPST, GST, BDT, QZSST}
}

func (s Scale) String() string {
	if int(s) < len(scaleNames) {
		return scaleNames[s]
	}
	return fmt.Sprintf("Scale(%d)", uint8(s))
}

// Valid reports whether s is one of the known scales.
func (s Scale) Valid() bool {
	return int(s) < len(scaleNames)
}

// ParseScale resolves a scale name, case-insensitively. Common constellation
// aliases (GPS, GAL, BDS, QZSS) are accepted.
func ParseScale(name string) (Scale, error) {
	s, ok := scaleAliases[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, errors.Newf("clock: unknown time scale %q", name)
	}
	return s, nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Scale) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, errors.Newf("clock: cannot marshal %s", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Scale) UnmarshalText(text []byte) error {
	parsed, err := ParseScale(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// taiOffset returns TAI minus the scale for the non-UTC scales.
func (s Scale) taiOffset() time.Duration {
	switch s {
	case GPST, GST, QZSST:
		return 19 * time.Second
	case BDT:
		return 33 * time.Second
	case TT:
		return -32184 * time.Millisecond
	default:
		return 0
	}
}
