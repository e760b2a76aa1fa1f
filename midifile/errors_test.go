package midifile

import (
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
)

func TestIsFatal(t *testing.T) {
	if IsFatal(nil) {
		t.Error("nil error reported fatal")
	}
	if !IsFatal(ErrBadMagic) {
		t.Error("plain sentinel not fatal")
	}
	if IsFatal(NonFatal(ErrTruncated)) {
		t.Error("wrapped non-fatal error reported fatal")
	}
	// Wrapping a non-fatal error keeps it non-fatal.
	wrapped := pkgerrors.Wrap(NonFatal(ErrTruncated), "while reading")
	if IsFatal(wrapped) {
		t.Error("context wrapping lost the non-fatal marker")
	}
}

func TestNonFatalPreservesSentinel(t *testing.T) {
	err := NonFatal(ErrTruncated)
	if !errors.Is(err, ErrTruncated) {
		t.Error("sentinel lost through NonFatal")
	}
	if NonFatal(nil) != nil {
		t.Error("NonFatal(nil) is not nil")
	}
}
