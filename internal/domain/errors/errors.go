// Package errors defines the engine's closed set of error kinds.
//
// Unlike an open hierarchy of ad-hoc error structs, the engine's error
// surface is small and fixed (spec §7): every failure that crosses a
// component boundary is tagged with one of a handful of kinds so the
// HTTP layer and the job/step records can translate it without a type
// switch over dozens of concrete types.
package errors

import "fmt"

// Kind enumerates the engine's error categories.
type Kind string

const (
	NotFound            Kind = "NotFound"
	Validation          Kind = "Validation"
	QueueFull           Kind = "QueueFull"
	UpstreamUnavailable Kind = "UpstreamUnavailable"
	Budget              Kind = "Budget"
	Internal            Kind = "Internal"
)

// Error is the engine's single error type. Component boundaries raise
// an *Error instead of an ad-hoc type so callers can branch on Kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

func Validationf(format string, args ...any) *Error {
	return New(Validation, fmt.Sprintf(format, args...))
}

func Internalf(format string, args ...any) *Error {
	return New(Internal, fmt.Sprintf(format, args...))
}

// KindOf unwraps err looking for an *Error and returns its Kind, or
// Internal if err is not (or does not wrap) one.
func KindOf(err error) Kind {
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return Internal
}

// As is a thin wrapper so callers don't need a second import of the
// standard errors package just for this one call site.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
