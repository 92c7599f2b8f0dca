package clock

import (
	"sync"
	"time"

	"github.com/beevik/ntp"
	"github.com/jonboulle/clockwork"
)

// OffsetQuery returns the local clock offset measured against a server.
type OffsetQuery func(server string) (time.Duration, error)

// QueryNTP measures the local clock offset with a single NTP exchange.
func QueryNTP(server string) (time.Duration, error) {
	resp, err := ntp.Query(server)
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// NTPClock corrects a local clock by an offset measured against an NTP
// server. The offset is refreshed lazily on read once syncInterval elapsed;
// failed syncs keep the last good offset and back off.
type NTPClock struct {
	mu sync.Mutex

	server       string
	syncInterval time.Duration
	local        clockwork.Clock
	query        OffsetQuery

	offset      time.Duration
	lastSync    time.Time
	lastAttempt time.Time
	backoff     time.Duration
	lastErr     error
}

const (
	ntpBackoffInitial = 5 * time.Second
	ntpBackoffMax     = 5 * time.Minute
)

// NTPOption configures an NTPClock.
type NTPOption func(*NTPClock)

// WithLocalClock sets the underlying local clock.
func WithLocalClock(local clockwork.Clock) NTPOption {
	return func(c *NTPClock) { c.local = local }
}

// WithOffsetQuery replaces the NTP exchange, mainly for tests.
func WithOffsetQuery(q OffsetQuery) NTPOption {
	return func(c *NTPClock) { c.query = q }
}

// NewNTPClock creates an NTP-disciplined clock. An initial sync is attempted;
// its failure is reported by Health, not returned.
func NewNTPClock(server string, syncInterval time.Duration, opts ...NTPOption) *NTPClock {
	c := &NTPClock{
		server:       server,
		syncInterval: syncInterval,
		local:        clockwork.NewRealClock(),
		query:        QueryNTP,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.mu.Lock()
	c.sync()
	c.mu.Unlock()
	return c
}

// Now returns the corrected current instant as a UTC epoch.
func (c *NTPClock) Now() Epoch {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeSync()
	return FromTime(c.local.Now().Add(c.offset))
}

// Since returns the duration elapsed since e.
func (c *NTPClock) Since(e Epoch) time.Duration {
	return c.Now().Sub(e)
}

// Health reports the current offset, the last successful sync and the last error.
func (c *NTPClock) Health() (offset time.Duration, lastSync time.Time, lastErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset, c.lastSync, c.lastErr
}

// Must be called with lock held.
func (c *NTPClock) maybeSync() {
	effective := c.syncInterval
	if c.backoff > 0 {
		effective = c.backoff
	}
	if c.local.Since(c.lastAttempt) < effective {
		return
	}
	c.sync()
}

// Must be called with lock held.
func (c *NTPClock) sync() {
	c.lastAttempt = c.local.Now()
	offset, err := c.query(c.server)
	if err != nil {
		c.lastErr = err
		if c.backoff == 0 {
			c.backoff = ntpBackoffInitial
		} else {
			c.backoff = min(c.backoff*2, ntpBackoffMax)
		}
		return
	}
	c.offset = offset
	c.lastSync = c.lastAttempt
	c.backoff = 0
	c.lastErr = nil
}
