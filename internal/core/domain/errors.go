package domain

import "errors"

// Error kinds returned by collaborators and the exploration pipeline.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrLocationNotFound   = errors.New("location not found")
	ErrNoRoute            = errors.New("no route found")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrNotFound           = errors.New("not found")
)

// ExploreError is a pipeline-fatal failure with a message safe to show users.
type ExploreError struct {
	Kind    error  // one of the Err* kinds above
	Message string // user-facing
	Cause   error
}

func (e *ExploreError) Error() string {
	return e.Message
}

// Unwrap exposes both the kind and the underlying cause to errors.Is.
func (e *ExploreError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// Code is the stable machine-readable identifier of the error kind.
func (e *ExploreError) Code() string {
	return ErrorCode(e.Kind)
}

// ErrorCode maps an error to the code used in API responses and history rows.
func ErrorCode(err error) string {
	var ee *ExploreError
	if errors.As(err, &ee) {
		err = ee.Kind
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "bad_request"
	case errors.Is(err, ErrLocationNotFound):
		return "location_not_found"
	case errors.Is(err, ErrNoRoute):
		return "no_route"
	case errors.Is(err, ErrServiceUnavailable):
		return "service_unavailable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal_error"
	}
}
