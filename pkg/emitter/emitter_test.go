package emitter

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BYTE-6D65/timeshift/pkg/adapter"
	"github.com/BYTE-6D65/timeshift/pkg/clock"
	"github.com/BYTE-6D65/timeshift/pkg/correction"
	"github.com/BYTE-6D65/timeshift/pkg/store"
)

type closeRecorder struct {
	bytes.Buffer
	closed int
}

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

func TestJSONLines_CorrectionsReadBack(t *testing.T) {
	cs := []correction.Correction{
		correction.New(clock.MustParse("2020-01-01T00:00:00 GST"), clock.GPST, correction.Constant(1e-9), time.Hour),
		correction.New(clock.MustParse("2020-01-01T00:00:00 BDT"), clock.GST, correction.Polynomial{Constant: 2e-9, Rate: 1e-12}, 0),
	}

	var buf bytes.Buffer
	e := NewJSONLines("test", &buf)
	require.NoError(t, e.EmitCorrections(context.Background(), cs))

	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))

	back, err := adapter.NewDecoder(&buf).Decode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cs, back)
}

func TestJSONLines_Conversion(t *testing.T) {
	db := store.NewDatabase(store.WithCorrections(
		correction.New(clock.MustParse("2020-01-01T00:00:00 GST"), clock.GPST, correction.Constant(1e-9), 0),
	))
	in := clock.MustParse("2020-01-01T00:00:00 GST")
	sol, err := db.Solve(in, clock.GPST)
	require.NoError(t, err)

	var buf bytes.Buffer
	e := NewJSONLines("test", &buf)
	require.NoError(t, e.EmitConversion(context.Background(), NewConversion(in, clock.GPST, sol.Apply(in), sol, nil)))

	_, err = db.Solve(clock.MustParse("2020-01-01T00:00:00 UTC"), clock.GPST)
	require.Error(t, err)
	require.NoError(t, e.EmitConversion(context.Background(),
		NewConversion(clock.MustParse("2020-01-01T00:00:00 UTC"), clock.GPST, clock.Epoch{}, store.Solution{}, err)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"output":"2019-12-31T23:59:59.999999999 GPST"`)
	assert.Contains(t, lines[0], `"tier":"forward"`)
	assert.Contains(t, lines[1], `"error":"no correction available: UTC -> GPST"`)
	assert.NotContains(t, lines[1], `"output"`)
}

func TestJSONLines_Close(t *testing.T) {
	w := &closeRecorder{}
	e := NewJSONLines("file", w)
	assert.Equal(t, "jsonl:file", e.ID())
	assert.Equal(t, "jsonl", e.Type())

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Equal(t, 1, w.closed)

	err := e.EmitConversion(context.Background(), Conversion{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestJSONLines_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	err := NewJSONLines("test", &buf).EmitCorrections(ctx, []correction.Correction{{}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}
