package correction

import (
	"sync"
	"time"

	"github.com/BYTE-6D65/timeshift/pkg/clock"
)

// Fitter estimates a linear correction from observed scale offsets using a
// rolling least-squares fit: offset = Constant + Rate*dt, dt in seconds
// since the reference epoch. It is safe for concurrent use.
type Fitter struct {
	mu sync.RWMutex

	reference clock.Epoch
	poly      Polynomial

	// Rolling window for least-squares fit
	window     []observation
	windowSize int
	index      int // Circular buffer index
	count      int // Number of observations (up to windowSize)

	sumX  float64
	sumY  float64
	sumXX float64
	sumXY float64
}

type observation struct {
	dt     float64
	offset float64
}

// NewFitter creates a Fitter anchored at reference with the given window size.
// Larger windows smooth noise but follow drift changes more slowly.
func NewFitter(reference clock.Epoch, windowSize int) *Fitter {
	if windowSize < 2 {
		windowSize = 10
	}
	return &Fitter{
		reference:  reference,
		window:     make([]observation, windowSize),
		windowSize: windowSize,
	}
}

// Observe records the offset, in seconds, measured at instant t.
func (f *Fitter) Observe(t clock.Epoch, offsetSeconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	x := t.Sub(f.reference).Seconds()

	if f.count == f.windowSize {
		old := f.window[f.index]
		f.sumX -= old.dt
		f.sumY -= old.offset
		f.sumXX -= old.dt * old.dt
		f.sumXY -= old.dt * old.offset
	} else {
		f.count++
	}

	f.window[f.index] = observation{dt: x, offset: offsetSeconds}
	f.index = (f.index + 1) % f.windowSize

	f.sumX += x
	f.sumY += offsetSeconds
	f.sumXX += x * x
	f.sumXY += x * offsetSeconds

	f.updateFit()
}

// updateFit solves the normal equations. Must be called with lock held.
func (f *Fitter) updateFit() {
	n := float64(f.count)
	if f.count == 1 {
		f.poly = Polynomial{Constant: f.sumY}
		return
	}

	det := f.sumXX*n - f.sumX*f.sumX
	if det < 1e-12 {
		// All observations at the same instant: average them, no drift.
		f.poly = Polynomial{Constant: f.sumY / n}
		return
	}

	f.poly = Polynomial{
		Constant: (f.sumXX*f.sumY - f.sumX*f.sumXY) / det,
		Rate:     (f.sumXY*n - f.sumX*f.sumY) / det,
	}
}

// Polynomial returns the current fit.
func (f *Fitter) Polynomial() Polynomial {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.poly
}

// Count returns the number of observations currently in the window.
func (f *Fitter) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

// Correction publishes the current fit as a src -> dst correction.
func (f *Fitter) Correction(src, dst clock.Scale, validity time.Duration) Correction {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return New(f.reference.ToScale(src), dst, f.poly, validity)
}
