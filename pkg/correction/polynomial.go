package correction

import (
	"fmt"
	"math"
	"time"
)

// Polynomial models the offset between two scales as a function of the
// seconds elapsed since a reference instant:
//
//	offset(dt) = Constant + Rate*dt + Accel*dt²
//
// Units are s, s/s and s/s².
type Polynomial struct {
	Constant float64 `json:"a0"`
	Rate     float64 `json:"a1"`
	Accel    float64 `json:"a2"`
}

// Constant returns a polynomial with a fixed offset only.
func Constant(seconds float64) Polynomial {
	return Polynomial{Constant: seconds}
}

// Offset evaluates the polynomial at dt seconds. Terms are summed in the
// order constant, rate, accel; the explicit conversions stop the compiler
// from fusing them into FMA instructions so every platform rounds alike.
func (p Polynomial) Offset(dt float64) float64 {
	return p.Constant + float64(p.Rate*dt) + float64(p.Accel*dt*dt)
}

// OffsetDuration evaluates the polynomial and rounds to the nearest nanosecond.
func (p Polynomial) OffsetDuration(dt float64) time.Duration {
	return SecondsToDuration(p.Offset(dt))
}

// IsZero reports whether every coefficient is zero.
func (p Polynomial) IsZero() bool {
	return p == Polynomial{}
}

func (p Polynomial) String() string {
	return fmt.Sprintf("(%.3e s, %.3e s/s, %.3e s/s²)", p.Constant, p.Rate, p.Accel)
}

// SecondsToDuration rounds seconds to the nearest nanosecond, halves away
// from zero, so that SecondsToDuration(-s) == -SecondsToDuration(s).
func SecondsToDuration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds * 1e9))
}
