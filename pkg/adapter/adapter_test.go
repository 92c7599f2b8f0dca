package adapter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BYTE-6D65/timeshift/pkg/clock"
	"github.com/BYTE-6D65/timeshift/pkg/correction"
)

const jsonLines = `{"source":"GST","destination":"GPST","reference":"2020-01-01T00:00:00 GST","a0":1e-9,"validity":"1h"}
{"source":"BDT","destination":"GST","week":730,"tow_ns":259200000000000,"a0":2e-9,"a1":1e-12}
`

func TestDecoder_JSONLines(t *testing.T) {
	cs, err := NewDecoder(strings.NewReader(jsonLines)).Decode(context.Background())
	require.NoError(t, err)
	require.Len(t, cs, 2)

	assert.Equal(t, clock.GST, cs[0].Source)
	assert.Equal(t, clock.GPST, cs[0].Destination)
	assert.Equal(t, correction.Constant(1e-9), cs[0].Polynomial)
	assert.Equal(t, time.Hour, cs[0].Validity)

	assert.Equal(t, clock.BDT, cs[1].Source)
	assert.Equal(t, clock.BDT, cs[1].Reference.Scale())
	week, tow := cs[1].Reference.ToTimeOfWeek()
	assert.Equal(t, uint32(730), week)
	assert.Equal(t, uint64(259200000000000), tow)
	assert.Equal(t, 1e-12, cs[1].Polynomial.Rate)
	assert.Equal(t, correction.NoWindow, cs[1].Validity)
	assert.False(t, cs[1].HasWindow())
}

func TestDecoder_Array(t *testing.T) {
	in := `[
  {"source":"GPS","destination":"UTC","reference":"2020-01-01T00:00:00 GPST","a0":5e-9},
  {"source":"GAL","destination":"GPS","reference":"2020-01-01T00:00:00 GST","a0":1e-9}
]`
	cs, err := NewDecoder(strings.NewReader(in)).Decode(context.Background())
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, clock.GPST, cs[0].Source)
	assert.Equal(t, clock.GST, cs[1].Source)
}

func TestDecoder_Empty(t *testing.T) {
	cs, err := NewDecoder(strings.NewReader("")).Decode(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cs)

	cs, err = NewDecoder(strings.NewReader("[]")).Decode(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cs)
}

func TestDecoder_MalformedReference(t *testing.T) {
	in := `{"source":"GST","destination":"GPST","reference":"2020-01-01T00:00:00 GPST","a0":1e-9}`
	_, err := NewDecoder(strings.NewReader(in)).Decode(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, correction.ErrMalformed))
	assert.Contains(t, err.Error(), "record 0")
}

func TestDecoder_ReferenceOutOfRange(t *testing.T) {
	for _, in := range []string{
		`{"source":"GST","destination":"GPST","reference":"2300-01-01T00:00:00 GST","a0":1e-9}`,
		`{"source":"GPST","destination":"UTC","week":4000000000,"tow_ns":0,"a0":1e-9}`,
	} {
		_, err := NewDecoder(strings.NewReader(in)).Decode(context.Background())
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, clock.ErrOutOfRange), in)
		assert.Contains(t, err.Error(), "reference")
	}
}

func TestDecoder_SkipInvalid(t *testing.T) {
	in := `{"source":"GST","destination":"GPST","reference":"2020-01-01T00:00:00 GPST","a0":1e-9}
{"source":"XYZ","destination":"GPST","reference":"2020-01-01T00:00:00 GST","a0":1e-9}
{"source":"GST","destination":"GPST","a0":1e-9}
{"source":"GST","destination":"GPST","reference":"2020-01-01T00:00:00 GST","a0":1e-9}
`
	d := NewDecoder(strings.NewReader(in), SkipInvalid())
	cs, err := d.Decode(context.Background())
	require.NoError(t, err)
	assert.Len(t, cs, 1)
	assert.Equal(t, 3, d.Skipped())
}

func TestDecoder_UnknownField(t *testing.T) {
	in := `{"source":"GST","destination":"GPST","reference":"2020-01-01T00:00:00 GST","a0":1e-9,"a3":4}`
	_, err := NewDecoder(strings.NewReader(in), SkipInvalid()).Decode(context.Background())
	require.Error(t, err, "unknown members are a syntax-level failure")
}

func TestDecoder_BadValidity(t *testing.T) {
	in := `{"source":"GST","destination":"GPST","reference":"2020-01-01T00:00:00 GST","a0":1e-9,"validity":"soon"}`
	_, err := NewDecoder(strings.NewReader(in)).Decode(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validity")
}

func TestDecoder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDecoder(strings.NewReader(jsonLines)).Decode(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecoder_StopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	n := 0
	err := NewDecoder(strings.NewReader(jsonLines)).Each(context.Background(), func(correction.Correction) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrections.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(jsonLines), 0o644))

	src := NewFileSource(path)
	assert.Equal(t, "file:"+path, src.ID())
	assert.Equal(t, "file", src.Type())

	var got []correction.Correction
	require.NoError(t, src.Each(context.Background(), func(c correction.Correction) error {
		got = append(got, c)
		return nil
	}))
	assert.Len(t, got, 2)

	err := NewFileSource(filepath.Join(dir, "missing.jsonl")).Each(context.Background(), func(correction.Correction) error { return nil })
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestReaderSource(t *testing.T) {
	src := NewReaderSource("stdin", strings.NewReader(jsonLines))
	assert.Equal(t, "reader:stdin", src.ID())
	assert.Equal(t, "reader", src.Type())

	n := 0
	require.NoError(t, src.Each(context.Background(), func(correction.Correction) error {
		n++
		return nil
	}))
	assert.Equal(t, 2, n)
}

func TestRecord_FromCorrection(t *testing.T) {
	c := correction.New(clock.MustParse("2020-01-01T00:00:00 GST"), clock.GPST, correction.Polynomial{Constant: 1e-9, Rate: 2e-12}, time.Hour)
	r := FromCorrection(c)

	assert.Equal(t, "GST", r.Source)
	assert.Equal(t, "GPST", r.Destination)
	assert.Equal(t, "2020-01-01T00:00:00 GST", r.Reference)
	assert.Equal(t, "1h0m0s", r.Validity)

	back, err := r.Correction()
	require.NoError(t, err)
	assert.Equal(t, c, back)

	assert.Empty(t, FromCorrection(correction.New(c.Reference, clock.UTC, c.Polynomial, correction.NoWindow)).Validity)

	zero := correction.New(c.Reference, clock.UTC, c.Polynomial, 0)
	r = FromCorrection(zero)
	assert.Equal(t, "0s", r.Validity)
	back, err = r.Correction()
	require.NoError(t, err)
	assert.Equal(t, zero, back)
	assert.True(t, back.HasWindow())
}
