// Package emitter writes corrections and conversion results to external
// destinations.
package emitter

import (
	"context"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/BYTE-6D65/timeshift/pkg/adapter"
	"github.com/BYTE-6D65/timeshift/pkg/clock"
	"github.com/BYTE-6D65/timeshift/pkg/correction"
	"github.com/BYTE-6D65/timeshift/pkg/store"
)

// Common errors returned by emitters
var (
	ErrClosed = errors.New("emitter: closed")
)

// Emitter is a sink for timeshift output.
type Emitter interface {
	// ID returns a unique identifier for this emitter instance.
	ID() string

	// Type returns the emitter category (e.g. "jsonl").
	Type() string

	// EmitCorrections writes every correction in order.
	EmitCorrections(ctx context.Context, cs []correction.Correction) error

	// EmitConversion writes one conversion result.
	EmitConversion(ctx context.Context, c Conversion) error

	// Close releases the destination. Safe to call multiple times.
	Close() error
}

// Conversion is the outcome of converting one instant.
type Conversion struct {
	Input  string `json:"input"`
	Output string `json:"output,omitempty"`
	Target string `json:"target"`
	Tier   string `json:"tier,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewConversion describes converting in to target. out and sol are
// ignored when err is set.
func NewConversion(in clock.Epoch, target clock.Scale, out clock.Epoch, sol store.Solution, err error) Conversion {
	c := Conversion{Input: in.String(), Target: target.String()}
	if err != nil {
		c.Error = err.Error()
		return c
	}
	c.Output = out.String()
	c.Tier = sol.Tier.String()
	return c
}

// JSONLines writes one JSON object per line. It is safe for concurrent use.
type JSONLines struct {
	id string

	mu     sync.Mutex
	enc    *jsontext.Encoder
	w      io.Writer
	closed bool
}

// NewJSONLines creates an emitter writing to w. If w is an io.Closer it is
// closed by Close.
func NewJSONLines(id string, w io.Writer) *JSONLines {
	return &JSONLines{id: id, w: w, enc: jsontext.NewEncoder(w)}
}

func (e *JSONLines) ID() string   { return "jsonl:" + e.id }
func (e *JSONLines) Type() string { return "jsonl" }

func (e *JSONLines) EmitCorrections(ctx context.Context, cs []correction.Correction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range cs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.encode(adapter.FromCorrection(c)); err != nil {
			return err
		}
	}
	return nil
}

func (e *JSONLines) EmitConversion(ctx context.Context, c Conversion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encode(c)
}

// encode writes v. Must be called with lock held.
func (e *JSONLines) encode(v any) error {
	if e.closed {
		return ErrClosed
	}
	if err := json.MarshalEncode(e.enc, v); err != nil {
		return errors.Wrapf(err, "emitter %s", e.id)
	}
	return nil
}

func (e *JSONLines) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if c, ok := e.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var _ Emitter = (*JSONLines)(nil)
