package geolocation

import (
	"github.com/pkg/errors"
)

// ErrorKind classifies a LocationError.
type ErrorKind int

// Error kinds surfaced on the location and timeout streams.
const (
	KindLocationUnavailable ErrorKind = iota
	KindTimeout
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindLocationUnavailable:
		return "location unavailable"
	case KindTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// LocationError is the only error type emitted by a Wrapper.
type LocationError struct {
	Kind  ErrorKind
	Cause error
}

var (
	// ErrLocationUnavailable is emitted when the Manager reports an empty batch or a failure.
	ErrLocationUnavailable = &LocationError{Kind: KindLocationUnavailable}
	// ErrTimeout is emitted when no fix arrived before the request deadline.
	ErrTimeout = &LocationError{Kind: KindTimeout}
)

// NewOtherError wraps a non-domain error.
func NewOtherError(cause error) *LocationError {
	return &LocationError{Kind: KindOther, Cause: cause}
}

func (e *LocationError) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return errors.Wrap(e.Cause, e.Kind.String()).Error()
}

func (e *LocationError) Unwrap() error {
	return e.Cause
}

// Is matches any LocationError of the same kind, so errors.Is(err, ErrTimeout) works for wrapped
// and unwrapped values alike.
func (e *LocationError) Is(target error) bool {
	var le *LocationError
	if !errors.As(target, &le) {
		return false
	}
	return le.Kind == e.Kind
}

// failureError maps an error reported by a Manager onto a LocationError. Domain errors are kept
// as is; anything else becomes a location unavailable error carrying the cause.
func failureError(err error) *LocationError {
	if err == nil {
		return ErrLocationUnavailable
	}
	var le *LocationError
	if errors.As(err, &le) {
		return le
	}
	return &LocationError{Kind: KindLocationUnavailable, Cause: err}
}
