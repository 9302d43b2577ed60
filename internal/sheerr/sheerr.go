// Package sheerr defines the closed SHE error-kind variant (spec.md §7) and
// the normalization rule the dispatcher applies at its boundary.
//
// Grounded in the teacher's pkg/ntag424/errors.go: a small status-word-style
// error type with Is*-style classifier helpers, rather than raw sentinel
// errors.
package sheerr

import (
	"errors"
	"fmt"
)

// Code is one of the SHE-specified return codes.
type Code byte

const (
	NoError Code = iota
	SequenceError
	KeyNotAvailable
	KeyInvalid
	KeyEmpty
	NoSecureBoot
	WriteProtected
	KeyUpdateError
	RNGSeed
	NoDebugging
	Busy
	MemoryFailure
	GeneralError
	// BadArgs is transport-level (spec.md §7): it is never remapped and is
	// returned only for null/invalid arguments to the dispatch entry point.
	BadArgs
)

var names = map[Code]string{
	NoError:         "NO_ERROR",
	SequenceError:   "SEQUENCE_ERROR",
	KeyNotAvailable: "KEY_NOT_AVAILABLE",
	KeyInvalid:      "KEY_INVALID",
	KeyEmpty:        "KEY_EMPTY",
	NoSecureBoot:    "NO_SECURE_BOOT",
	WriteProtected:  "WRITE_PROTECTED",
	KeyUpdateError:  "KEY_UPDATE_ERROR",
	RNGSeed:         "RNG_SEED",
	NoDebugging:     "NO_DEBUGGING",
	Busy:            "BUSY",
	MemoryFailure:   "MEMORY_FAILURE",
	GeneralError:    "GENERAL_ERROR",
	BadArgs:         "BAD_ARGS",
}

func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("CODE(%d)", byte(c))
}

// Error wraps a Code as a Go error, optionally carrying the underlying cause
// (e.g. a keystore I/O failure) for logging without leaking it past the
// dispatcher boundary.
type Error struct {
	Code  Code
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return NoError.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New builds an *Error for a bare SHE code.
func New(code Code) error {
	if code == NoError {
		return nil
	}
	return &Error{Code: code}
}

// Wrap builds an *Error for a SHE code with an underlying cause.
func Wrap(code Code, cause error) error {
	if code == NoError && cause == nil {
		return nil
	}
	return &Error{Code: code, Cause: cause}
}

// CodeOf extracts the SHE Code from an error. Any error that isn't one of
// ours normalizes to GeneralError, per spec.md §7's dispatcher-boundary rule.
// BadArgs is always raised as one of our own *Error values (sheerr.New), so
// it passes through unchanged like every other SHE code.
func CodeOf(err error) Code {
	if err == nil {
		return NoError
	}
	var sheErr *Error
	if errors.As(err, &sheErr) {
		return sheErr.Code
	}
	return GeneralError
}
