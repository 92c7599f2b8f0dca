// Package adapter reads correction records from external sources.
package adapter

import (
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/BYTE-6D65/timeshift/pkg/correction"
)

// Common errors returned by adapters
var (
	ErrPermissionDenied = errors.New("adapter: permission denied - check access rights")
	ErrSourceNotFound   = errors.New("adapter: source not found")
)

// Source yields corrections from somewhere outside the process: a file,
// a pipe, a decoder of broadcast navigation messages.
type Source interface {
	// ID returns a unique identifier for this source (e.g. "file:/var/lib/corr.jsonl").
	ID() string

	// Type returns the source category (e.g. "file", "reader").
	Type() string

	// Each calls fn for every correction in order. It stops at the first
	// error from the source or from fn, or when ctx is cancelled.
	Each(ctx context.Context, fn func(correction.Correction) error) error
}

// Decoder reads records from a stream holding either one JSON array or a
// sequence of JSON objects (JSON lines).
type Decoder struct {
	r           io.Reader
	skipInvalid bool
	skipped     int
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// SkipInvalid makes the decoder drop records that fail validation instead
// of stopping. Syntax errors still stop decoding.
func SkipInvalid() DecoderOption {
	return func(d *Decoder) { d.skipInvalid = true }
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{r: r}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Skipped returns how many invalid records were dropped.
func (d *Decoder) Skipped() int { return d.skipped }

// Each decodes records one at a time and passes each correction to fn.
func (d *Decoder) Each(ctx context.Context, fn func(correction.Correction) error) error {
	dec := jsontext.NewDecoder(d.r)

	array := dec.PeekKind() == '['
	if array {
		if _, err := dec.ReadToken(); err != nil {
			return errors.Wrap(err, "adapter: read array start")
		}
	}

	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if array && dec.PeekKind() == ']' {
			_, err := dec.ReadToken()
			return err
		}

		var rec Record
		if err := json.UnmarshalDecode(dec, &rec, json.RejectUnknownMembers(true)); err != nil {
			if !array && errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrapf(err, "adapter: record %d", n)
		}

		c, err := rec.Correction()
		if err != nil {
			if d.skipInvalid {
				d.skipped++
				continue
			}
			return errors.Wrapf(err, "adapter: record %d", n)
		}
		if err := fn(c); err != nil {
			return err
		}
	}
}

// Decode reads every record.
func (d *Decoder) Decode(ctx context.Context) ([]correction.Correction, error) {
	var out []correction.Correction
	err := d.Each(ctx, func(c correction.Correction) error {
		out = append(out, c)
		return nil
	})
	return out, err
}

// ReaderSource adapts an io.Reader into a Source.
type ReaderSource struct {
	id   string
	r    io.Reader
	opts []DecoderOption
}

// NewReaderSource wraps r. id names the stream in logs.
func NewReaderSource(id string, r io.Reader, opts ...DecoderOption) *ReaderSource {
	return &ReaderSource{id: id, r: r, opts: opts}
}

func (s *ReaderSource) ID() string   { return "reader:" + s.id }
func (s *ReaderSource) Type() string { return "reader" }

func (s *ReaderSource) Each(ctx context.Context, fn func(correction.Correction) error) error {
	return NewDecoder(s.r, s.opts...).Each(ctx, fn)
}

// FileSource reads a correction file. The file is opened on every call to
// Each, so a FileSource can be ingested repeatedly as the file is rewritten.
type FileSource struct {
	path string
	opts []DecoderOption
}

// NewFileSource creates a source for the file at path.
func NewFileSource(path string, opts ...DecoderOption) *FileSource {
	return &FileSource{path: path, opts: opts}
}

func (s *FileSource) ID() string   { return "file:" + s.path }
func (s *FileSource) Type() string { return "file" }

func (s *FileSource) Each(ctx context.Context, fn func(correction.Correction) error) error {
	f, err := os.Open(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return errors.Wrapf(ErrSourceNotFound, "%s", s.path)
	case errors.Is(err, os.ErrPermission):
		return errors.Wrapf(ErrPermissionDenied, "%s", s.path)
	case err != nil:
		return errors.Wrapf(err, "adapter: open %s", s.path)
	}
	defer f.Close()
	return NewDecoder(f, s.opts...).Each(ctx, fn)
}

var (
	_ Source = (*ReaderSource)(nil)
	_ Source = (*FileSource)(nil)
)
