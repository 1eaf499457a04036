package service

import (
	"errors"
	"strings"
)

// Error kinds. Every error returned by DocumentService matches exactly one of
// these through errors.Is.
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrStoreInconsistency = errors.New("store inconsistency")
	ErrDependencyTimeout  = errors.New("dependency timeout")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrMetadataWriteError = errors.New("metadata write error")
	ErrValidation         = errors.New("validation error")
)

var kindCodes = []struct {
	kind error
	code string
}{
	{ErrUnauthenticated, "unauthenticated"},
	{ErrForbidden, "forbidden"},
	{ErrNotFound, "not_found"},
	{ErrStoreInconsistency, "store_inconsistency"},
	{ErrDependencyTimeout, "dependency_timeout"},
	{ErrServiceUnavailable, "service_unavailable"},
	{ErrMetadataWriteError, "metadata_write_error"},
	{ErrValidation, "validation_error"},
}

// Error is a classified failure with a human readable reason and, for path or
// batch operations, the path that caused it.
type Error struct {
	Kind   error
	Reason string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Path != "" {
		b.WriteString(" (path ")
		b.WriteString(e.Path)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, path, reason string, cause error) *Error {
	return &Error{Kind: kind, Path: path, Reason: reason, Err: cause}
}

// Code returns the stable error code of err, or "internal_error" when err was not
// produced by this package.
func Code(err error) string {
	for _, kc := range kindCodes {
		if errors.Is(err, kc.kind) {
			return kc.code
		}
	}
	return "internal_error"
}
