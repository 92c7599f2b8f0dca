package correction

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/BYTE-6D65/timeshift/pkg/clock"
)

var (
	// ErrNoCorrection is matched by every NoCorrectionError.
	ErrNoCorrection = errors.New("no correction available")

	// ErrMalformed indicates a correction whose reference epoch is not
	// expressed in its declared source scale.
	ErrMalformed = errors.New("malformed correction")
)

// NoCorrectionError reports that no direct or composable correction links
// two scales, or that every candidate fell outside its validity window.
// It is recoverable: retry once new corrections arrive, or fall back to a
// coarse shift.
type NoCorrectionError struct {
	From clock.Scale
	To   clock.Scale
}

func (e *NoCorrectionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrNoCorrection, e.From, e.To)
}

// Is makes errors.Is(err, ErrNoCorrection) hold.
func (e *NoCorrectionError) Is(target error) bool {
	return target == ErrNoCorrection
}

// NoCorrection builds the error for a from->to lookup, with a user hint.
func NoCorrection(from, to clock.Scale) error {
	return errors.WithHintf(&NoCorrectionError{From: from, To: to},
		"add a %s/%s correction (or one via a shared intermediate scale), or use a coarse shift", from, to)
}

// IsNoCorrection reports whether err is or wraps a NoCorrectionError.
func IsNoCorrection(err error) bool {
	var nc *NoCorrectionError
	return errors.As(err, &nc)
}
