// Package errs defines the closed set of error kinds the engine
// distinguishes when deciding whether to log-and-continue, return to a
// caller, or abort the process.
package errs

import "errors"

// Kind identifies which branch of the error handling policy in spec.md §7
// an error belongs to.
type Kind string

const (
	// ConfigInvalid marks malformed settings, fatal at startup and
	// recoverable on a live set_config.
	ConfigInvalid Kind = "config_invalid"
	// DuplicateService marks a ShutdownService registration conflict.
	DuplicateService Kind = "duplicate_service"
	// ExchangeUnavailable marks a transient exchange failure that should
	// trigger an Automatic block.
	ExchangeUnavailable Kind = "exchange_unavailable"
	// RateLimited marks a rate limiter admission denial.
	RateLimited Kind = "rate_limited"
	// InvariantViolation marks a fatal, unrecoverable state violation.
	InvariantViolation Kind = "invariant_violation"
	// PanicCaught marks a recovered task panic.
	PanicCaught Kind = "panic_caught"
)

// Error is a typed error carrying one of the Kind values above plus a
// wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
