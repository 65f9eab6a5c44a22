package token

import (
	"strconv"

	"github.com/pkg/errors"
)

// Tokenization error kinds, §4.3 / §7. Every error returned by Tokenize
// is wrapped with the structural path at the point of failure (e.g.
// "arg[2].x[3]") via pathErrorf; Detokenize errors carry no path.
var (
	ErrWrongDataFormat = errors.New("wrong data format")
	ErrIntOverflow     = errors.New("integer value out of range")
	ErrInvalidHex      = errors.New("invalid hex string")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrUtf8Error       = errors.New("invalid utf-8")
	ErrLengthMismatch  = errors.New("length mismatch")
	ErrUnknownField    = errors.New("unknown field")
	ErrMissingField    = errors.New("missing field")
)

// PathError decorates a tokenization/detokenization error with the
// structural path at which it occurred.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }

func pathErrorf(path string, err error) error {
	return &PathError{Path: path, Err: err}
}

func join(path, seg string) string {
	if path == "" {
		return seg
	}
	return path + "." + seg
}

func index(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
