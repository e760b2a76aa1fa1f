package midifile

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// Error taxonomy. Wrapped with position/context via pkg/errors as they
// propagate; compare with errors.Is.
var (
	// ErrTruncated: the buffer ran out mid-read.
	ErrTruncated = stderrors.New("truncated input")

	// ErrBadMagic: header or track chunk signature mismatch.
	ErrBadMagic = stderrors.New("bad chunk signature")

	// ErrUnsupportedFormat: SMF format other than 0/1, or an unknown
	// top-level status byte.
	ErrUnsupportedFormat = stderrors.New("unsupported format")

	// ErrMalformedLength: a declared length is zero where data is required,
	// or exceeds the varint ceiling.
	ErrMalformedLength = stderrors.New("malformed length")
)

// nonFatal wraps errors the caller may proceed past: the tracks that did
// decode are valid, only something later (typically the footer) was bad.
type nonFatal struct {
	err error
}

func (e *nonFatal) Error() string { return e.err.Error() }
func (e *nonFatal) Unwrap() error { return e.err }

// NonFatal marks an error as recoverable for IsFatal.
func NonFatal(err error) error {
	if err == nil {
		return nil
	}
	return &nonFatal{err: err}
}

// IsFatal reports whether an error from Decode or Encode means the result is
// unusable. Non-fatal errors leave a usable Performance behind.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var nf *nonFatal
	return !stderrors.As(err, &nf)
}

// errAt wraps a taxonomy error with the cursor position for diagnostics.
func errAt(c *Cursor, base error, format string, args ...interface{}) error {
	return errors.Wrapf(base, "offset %d: "+format, append([]interface{}{c.Pos()}, args...)...)
}
