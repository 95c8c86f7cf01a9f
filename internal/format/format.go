// Package format defines the detector/parser contract every module format
// implements and the ordered registry that resolves a raw buffer to exactly
// one parser.
package format

import (
	"log/slog"

	"github.com/spotUP/DEViLBOX-sub001/internal/song"
)

// Format is one detector/parser pair.
//
// Detect must be a pure, total predicate over any byte length including
// zero: it never panics, never mutates data, and rejects truncated or
// all-zero buffers. The filename is a weak hint: a few formats carry no
// distinguishing bytes and require a filename prefix to disambiguate.
//
// Parse is called only after a passing Detect and may still fail with a
// ParseError: detection is a cheap filter, not a validity proof.
type Format interface {
	Name() string
	Detect(data []byte, filename string) bool
	Parse(data []byte, filename string) (*song.Song, error)
}

// Registry holds detector/parser pairs in priority order: unambiguous magic
// strings first, magic-less structural heuristics last. It is read-only
// after construction and safe for concurrent use.
type Registry struct {
	formats []Format
	log     *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger injects a structured logger; the default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// NewRegistry builds a registry with the given priority order.
func NewRegistry(formats []Format, opts ...Option) *Registry {
	r := &Registry{
		formats: formats,
		log:     DiscardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Formats returns the registered formats in priority order.
func (r *Registry) Formats() []Format { return r.formats }

// Identify resolves data to the first format whose detector accepts it.
func (r *Registry) Identify(data []byte, filename string) (Format, error) {
	if len(data) == 0 {
		return nil, ErrUnrecognized
	}
	for _, f := range r.formats {
		if f.Detect(data, filename) {
			r.log.Debug("format detected", "format", f.Name(), "file", filename, "size", len(data))
			return f, nil
		}
	}
	return nil, ErrUnrecognized
}

// Convert runs detection and parsing in one step. Failures carry the
// tentatively matched format name so a near-miss detection is
// distinguishable from no detection at all.
func (r *Registry) Convert(data []byte, filename string) (*song.Song, error) {
	f, err := r.Identify(data, filename)
	if err != nil {
		return nil, &ConvertError{Err: err}
	}

	s, err := f.Parse(data, filename)
	if err != nil {
		r.log.Warn("parse failed after positive detection", "format", f.Name(), "file", filename, "error", err)
		return nil, &ConvertError{Format: f.Name(), Err: err}
	}

	if err := s.Validate(); err != nil {
		// A parser bug, but the caller must never see an inconsistent model.
		return nil, &ConvertError{Format: f.Name(), Err: Malformed(f.Name(), 0, "inconsistent model: %v", err)}
	}
	return s, nil
}
