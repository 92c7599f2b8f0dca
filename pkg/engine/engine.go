// Package engine owns named correction stores and serves conversions from
// them with logging, metrics and locking.
package engine

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/BYTE-6D65/timeshift/pkg/adapter"
	"github.com/BYTE-6D65/timeshift/pkg/clock"
	"github.com/BYTE-6D65/timeshift/pkg/correction"
	"github.com/BYTE-6D65/timeshift/pkg/emitter"
	"github.com/BYTE-6D65/timeshift/pkg/registry"
	"github.com/BYTE-6D65/timeshift/pkg/store"
	"github.com/BYTE-6D65/timeshift/pkg/telemetry"
)

var (
	// ErrUnknownStore is returned for a store name that was never created.
	ErrUnknownStore = errors.New("engine: unknown store")

	// ErrModeMismatch is returned when merging a database with a resolver.
	ErrModeMismatch = errors.New("engine: cannot merge stores of different modes")
)

// Engine wires together the stores, clock, metrics and logger.
type Engine struct {
	cfg      Config
	clock    clock.Clock
	stores   *registry.Registry[*Store]
	metrics  *telemetry.Metrics
	log      zerolog.Logger
	clockSet bool
}

// EngineOption configures an Engine instance.
type EngineOption func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithClock sets the clock implementation.
func WithClock(clk clock.Clock) EngineOption {
	return func(e *Engine) {
		e.clock = clk
		e.clockSet = true
	}
}

// WithRegistry sets the registry holding the stores.
func WithRegistry(reg *registry.Registry[*Store]) EngineOption {
	return func(e *Engine) {
		e.stores = reg
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// New creates an Engine and the stores named in its configuration.
// Defaults:
//   - Config: DefaultConfig()
//   - Clock: SystemClock, or an NTPClock when Config.UseNTP is set
//   - Metrics: telemetry.Default()
//   - Logger: the global zerolog logger
func New(opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		cfg:    DefaultConfig(),
		clock:  clock.NewSystemClock(),
		stores: registry.New[*Store](),
		log:    log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "engine config")
	}
	if e.metrics == nil {
		e.metrics = telemetry.Default()
	}
	if e.cfg.UseNTP && !e.clockSet {
		e.clock = clock.NewNTPClock(e.cfg.NTPServer, time.Duration(e.cfg.NTPSyncInterval))
	}

	for _, name := range e.cfg.Stores {
		if err := e.CreateStore(name, e.cfg.Mode, e.cfg.StrictValidity); err != nil {
			return nil, err
		}
	}

	e.log.Debug().
		Str("mode", string(e.cfg.Mode)).
		Bool("strict", e.cfg.StrictValidity).
		Strs("stores", e.cfg.Stores).
		Msg("engine ready")
	return e, nil
}

// Config returns the configuration in use.
func (e *Engine) Config() Config {
	return e.cfg
}

// Clock returns the clock implementation.
func (e *Engine) Clock() clock.Clock {
	return e.clock
}

// Metrics returns the metrics sink.
func (e *Engine) Metrics() *telemetry.Metrics {
	return e.metrics
}

// ClockHealth reports the NTP offset and last error when the engine clock
// is NTP-disciplined. ok is false for other clocks.
func (e *Engine) ClockHealth() (offset time.Duration, lastSync time.Time, lastErr error, ok bool) {
	nc, isNTP := e.clock.(*clock.NTPClock)
	if !isNTP {
		return 0, time.Time{}, nil, false
	}
	offset, lastSync, lastErr = nc.Health()
	e.metrics.ClockOffset.Set(offset.Seconds())
	return offset, lastSync, lastErr, true
}

// CreateStore adds an empty store. Resolvers ignore strict.
func (e *Engine) CreateStore(name string, mode Mode, strict bool) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	if err := e.stores.Register(name, newStore(name, mode, strict)); err != nil {
		return errors.Wrap(err, "engine: create store")
	}
	e.metrics.StoreSize.WithLabelValues(name).Set(0)
	e.log.Info().Str("store", name).Str("mode", string(mode)).Bool("strict", strict).Msg("store created")
	return nil
}

// DropStore removes a store and its corrections.
func (e *Engine) DropStore(name string) error {
	if !e.stores.Has(name) {
		return errors.Wrapf(ErrUnknownStore, "%q", name)
	}
	e.stores.Delete(name)
	e.metrics.StoreSize.DeleteLabelValues(name)
	return nil
}

// Stores describes every store, sorted by name.
func (e *Engine) Stores() []StoreInfo {
	entries := e.stores.List()
	out := make([]StoreInfo, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Value.Info())
	}
	return out
}

func (e *Engine) lookup(name string) (*Store, error) {
	if name == "" {
		name = e.cfg.DefaultStore
	}
	g, ok := e.stores.Get(name)
	if !ok {
		return nil, errors.WithHint(errors.Wrapf(ErrUnknownStore, "%q", name),
			"list stores with `timeshift list --stores`")
	}
	return g, nil
}

// Add appends corrections to the named store. An empty name selects the
// default store.
func (e *Engine) Add(name string, cs ...correction.Correction) error {
	timer := telemetry.NewTimer()
	defer timer.Observe(e.metrics.EngineDuration.WithLabelValues("add"))

	g, err := e.lookup(name)
	if err != nil {
		e.metrics.EngineOperations.WithLabelValues("add", "error").Inc()
		return err
	}

	g.mu.Lock()
	for _, c := range cs {
		g.b.Add(c)
	}
	n := g.b.Len()
	g.mu.Unlock()

	e.metrics.StoreSize.WithLabelValues(g.name).Set(float64(n))
	e.metrics.EngineOperations.WithLabelValues("add", "ok").Inc()
	e.log.Debug().Str("store", g.name).Int("added", len(cs)).Int("total", n).Msg("corrections added")
	return nil
}

// Observation is one measured offset, in seconds, between the scale At is
// tagged in and a destination scale.
type Observation struct {
	At     clock.Epoch
	Offset float64
}

// Fit derives a linear correction into dst from measured offsets and adds it
// to the named store. The correction is referenced at the first observation
// and every observation must share its scale.
func (e *Engine) Fit(name string, dst clock.Scale, obs []Observation, validity time.Duration) (correction.Correction, error) {
	if len(obs) == 0 {
		return correction.Correction{}, errors.New("engine: fit needs at least one observation")
	}
	src := obs[0].At.Scale()
	f := correction.NewFitter(obs[0].At, len(obs))
	for i, o := range obs {
		if o.At.Scale() != src {
			return correction.Correction{}, errors.Newf("engine: observation %d is in %s, want %s", i, o.At.Scale(), src)
		}
		f.Observe(o.At, o.Offset)
	}
	c, err := correction.NewChecked(src, dst, obs[0].At, f.Polynomial(), validity)
	if err != nil {
		return correction.Correction{}, errors.Wrap(err, "fit")
	}
	if err := e.Add(name, c); err != nil {
		return correction.Correction{}, err
	}
	e.log.Info().Stringer("correction", c).Int("observations", f.Count()).Msg("correction fitted")
	return c, nil
}

// IngestResult summarizes one Ingest call.
type IngestResult struct {
	BatchID uuid.UUID
	Source  string
	Count   int
}

// Ingest reads every correction from src and adds them to the named store
// as one batch. Nothing is added if src fails part way.
func (e *Engine) Ingest(ctx context.Context, name string, src adapter.Source) (IngestResult, error) {
	timer := telemetry.NewTimer()
	defer timer.Observe(e.metrics.EngineDuration.WithLabelValues("ingest"))

	res := IngestResult{BatchID: uuid.New(), Source: src.ID()}
	g, err := e.lookup(name)
	if err != nil {
		e.metrics.EngineOperations.WithLabelValues("ingest", "error").Inc()
		return res, err
	}

	var batch []correction.Correction
	err = src.Each(ctx, func(c correction.Correction) error {
		batch = append(batch, c)
		return nil
	})
	if err != nil {
		e.metrics.EngineOperations.WithLabelValues("ingest", "error").Inc()
		e.metrics.Ingested.WithLabelValues(g.name, "error").Inc()
		e.log.Warn().Err(err).
			Str("batch", res.BatchID.String()).
			Str("source", src.ID()).
			Msg("ingest failed")
		return res, errors.Wrapf(err, "ingest %s", src.ID())
	}

	g.mu.Lock()
	for _, c := range batch {
		g.b.Add(c)
	}
	n := g.b.Len()
	g.mu.Unlock()

	res.Count = len(batch)
	e.metrics.Ingested.WithLabelValues(g.name, "ok").Add(float64(len(batch)))
	e.metrics.StoreSize.WithLabelValues(g.name).Set(float64(n))
	e.metrics.EngineOperations.WithLabelValues("ingest", "ok").Inc()
	e.log.Info().
		Str("batch", res.BatchID.String()).
		Str("store", g.name).
		Str("source", src.ID()).
		Int("count", res.Count).
		Msg("corrections ingested")
	return res, nil
}

// IngestFiles ingests each configured correction file into the default store.
func (e *Engine) IngestFiles(ctx context.Context) ([]IngestResult, error) {
	var opts []adapter.DecoderOption
	if e.cfg.SkipInvalid {
		opts = append(opts, adapter.SkipInvalid())
	}
	results := make([]IngestResult, 0, len(e.cfg.CorrectionFiles))
	for _, path := range e.cfg.CorrectionFiles {
		res, err := e.Ingest(ctx, e.cfg.DefaultStore, adapter.NewFileSource(path, opts...))
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Correct converts t into target with the named store and reports the
// path taken.
func (e *Engine) Correct(name string, t clock.Epoch, target clock.Scale) (clock.Epoch, store.Solution, error) {
	g, err := e.lookup(name)
	if err != nil {
		return clock.Epoch{}, store.Solution{}, err
	}

	timer := telemetry.NewTimer()
	g.mu.RLock()
	sol, err := g.b.Solve(t, target)
	g.mu.RUnlock()
	if err != nil {
		e.metrics.LookupFailures.WithLabelValues(g.name, t.Scale().String(), target.String()).Inc()
		e.log.Debug().Err(err).Str("store", g.name).Stringer("at", t).Msg("no correction")
		return clock.Epoch{}, store.Solution{}, err
	}
	out := sol.Apply(t)
	timer.Observe(e.metrics.LookupDuration.WithLabelValues(g.name))
	e.metrics.Lookups.WithLabelValues(g.name, sol.Tier.String()).Inc()
	return out, sol, nil
}

// CorrectNow converts the engine clock's current instant into target.
func (e *Engine) CorrectNow(name string, target clock.Scale) (clock.Epoch, store.Solution, error) {
	return e.Correct(name, e.clock.Now(), target)
}

// Corrector returns a timeshift.Corrector view of the named store that
// records metrics like Correct.
func (e *Engine) Corrector(name string) (*StoreCorrector, error) {
	if _, err := e.lookup(name); err != nil {
		return nil, err
	}
	return &StoreCorrector{engine: e, name: name}, nil
}

// StoreCorrector converts instants through one engine store.
type StoreCorrector struct {
	engine *Engine
	name   string
}

// PreciseCorrection implements timeshift.Corrector.
func (c *StoreCorrector) PreciseCorrection(t clock.Epoch, target clock.Scale) (clock.Epoch, error) {
	out, _, err := c.engine.Correct(c.name, t, target)
	return out, err
}

// OutdatePast drops corrections referenced at or before cutoff.
func (e *Engine) OutdatePast(name string, cutoff clock.Epoch) (int, error) {
	return e.outdate(name, "past", func(b backend) int { return b.OutdatePast(cutoff) })
}

// OutdateWeekly drops corrections referenced one week or more before t.
func (e *Engine) OutdateWeekly(name string, t clock.Epoch) (int, error) {
	return e.outdate(name, "weekly", func(b backend) int { return b.OutdateWeekly(t) })
}

// OutdateStale runs OutdateWeekly against the engine clock's current
// instant on every store. It does nothing when weekly eviction is disabled.
func (e *Engine) OutdateStale() (int, error) {
	if !e.cfg.WeeklyEviction {
		return 0, nil
	}
	now := e.clock.Now()
	total := 0
	for _, name := range e.stores.Keys() {
		n, err := e.OutdateWeekly(name, now)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (e *Engine) outdate(name, kind string, fn func(backend) int) (int, error) {
	g, err := e.lookup(name)
	if err != nil {
		return 0, err
	}
	g.mu.Lock()
	removed := fn(g.b)
	n := g.b.Len()
	g.mu.Unlock()

	e.metrics.Evictions.WithLabelValues(g.name, kind).Add(float64(removed))
	e.metrics.StoreSize.WithLabelValues(g.name).Set(float64(n))
	if removed > 0 {
		e.log.Info().Str("store", g.name).Str("kind", kind).Int("removed", removed).Int("left", n).Msg("corrections outdated")
	}
	return removed, nil
}

// Merge appends src's corrections to dst. Both stores must have the same mode.
func (e *Engine) Merge(dst, src string) error {
	gd, err := e.lookup(dst)
	if err != nil {
		return err
	}
	gs, err := e.lookup(src)
	if err != nil {
		return err
	}
	if gd == gs {
		return errors.Newf("engine: cannot merge store %q into itself", gd.name)
	}
	if err := gd.mergeFrom(gs); err != nil {
		return errors.Wrapf(err, "merge %s into %s", gs.name, gd.name)
	}
	info := gd.Info()
	e.metrics.StoreSize.WithLabelValues(gd.name).Set(float64(info.Len))
	e.log.Info().Str("dst", gd.name).Str("src", gs.name).Int("total", info.Len).Msg("stores merged")
	return nil
}

// Snapshot returns a copy of the named store's corrections.
func (e *Engine) Snapshot(name string) ([]correction.Correction, error) {
	g, err := e.lookup(name)
	if err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.b.Corrections(), nil
}

// Export writes the named store's corrections to em.
func (e *Engine) Export(ctx context.Context, name string, em emitter.Emitter) error {
	cs, err := e.Snapshot(name)
	if err != nil {
		return err
	}
	if err := em.EmitCorrections(ctx, cs); err != nil {
		return errors.Wrapf(err, "export to %s", em.ID())
	}
	return nil
}
