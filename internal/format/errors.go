package format

import (
	"errors"
	"fmt"
)

// Sentinel errors for the three failure shapes every parser reduces to.
var (
	// ErrUnrecognized means no detector matched the buffer at all.
	ErrUnrecognized = errors.New("unrecognized module format")
	// ErrMalformed means a detector matched but structural decoding failed.
	ErrMalformed = errors.New("malformed module data")
	// ErrUnsupportedVariant means the format family is recognized but this
	// sub-variant is intentionally not decoded.
	ErrUnsupportedVariant = errors.New("unsupported format variant")
)

// ParseError reports a structural failure inside a parser, with enough
// context to diagnose near-miss detections.
type ParseError struct {
	Format string
	Offset int
	Detail string
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("%s: %s at offset %d", e.Format, e.Detail, e.Offset)
	}
	return fmt.Sprintf("%s: %s", e.Format, e.Detail)
}

func (e *ParseError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrMalformed
}

// Malformed builds a ParseError wrapping ErrMalformed.
func Malformed(format string, offset int, detail string, args ...any) *ParseError {
	return &ParseError{Format: format, Offset: offset, Detail: fmt.Sprintf(detail, args...)}
}

// Unsupported builds a ParseError wrapping ErrUnsupportedVariant.
func Unsupported(format string, detail string, args ...any) *ParseError {
	return &ParseError{Format: format, Detail: fmt.Sprintf(detail, args...), Cause: ErrUnsupportedVariant}
}

// ConvertError distinguishes "format X matched but failed to parse" from
// "nothing matched"; callers report the tentatively matched format name.
type ConvertError struct {
	Format string // tentatively matched format, "" when none matched
	Err    error
}

func (e *ConvertError) Error() string {
	if e.Format == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("matched %s but failed to convert: %v", e.Format, e.Err)
}

func (e *ConvertError) Unwrap() error { return e.Err }
