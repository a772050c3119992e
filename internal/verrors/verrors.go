// Package verrors defines the typed error taxonomy used across the
// voiceprint verification pipeline, from audio decoding through the HTTP
// handlers.
package verrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a verification error into one of a fixed set of kinds.
// Handlers map a Code to an HTTP status via [StatusFor]; [CodeOf] extracts
// the Code from any error that wraps an *Error. The package defines no
// sentinel error values.
type Code int

const (
	// Internal covers unexpected failures with no more specific Code.
	Internal Code = iota
	// BadAudio indicates the audio payload could not be decoded.
	BadAudio
	// TooFewSamples indicates fewer enrollment samples were supplied than
	// the configured minimum.
	TooFewSamples
	// TooManySamples indicates more enrollment samples were supplied than
	// the configured maximum.
	TooManySamples
	// NotEnrolled indicates the customer has no active voiceprint.
	NotEnrolled
	// CohortUnavailable indicates the background cohort store could not be
	// queried.
	CohortUnavailable
	// StoreUnavailable indicates the voiceprint or cohort store is down.
	StoreUnavailable
	// Conflict indicates a write would overwrite state in a way the caller
	// did not ask for (e.g. mismatched stored payload).
	Conflict
	// ServiceDisabled indicates the voiceprint feature is turned off via
	// configuration.
	ServiceDisabled
)

func (c Code) String() string {
	switch c {
	case BadAudio:
		return "bad_audio"
	case TooFewSamples:
		return "too_few_samples"
	case TooManySamples:
		return "too_many_samples"
	case NotEnrolled:
		return "not_enrolled"
	case CohortUnavailable:
		return "cohort_unavailable"
	case StoreUnavailable:
		return "store_unavailable"
	case Conflict:
		return "conflict"
	case ServiceDisabled:
		return "service_disabled"
	default:
		return "internal"
	}
}

// Error is the concrete error type carried through the pipeline. It wraps
// an optional underlying cause so callers can still unwrap to driver-level
// errors (sql.ErrNoRows, a gRPC status, etc.).
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds an *Error with a formatted message and no wrapped cause.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that carries cause as its Unwrap target.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the Code from err, returning Internal if err is nil or
// does not wrap a *verrors.Error.
func CodeOf(err error) Code {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	return Internal
}

// StatusFor maps a Code to the HTTP status the handlers should return.
func StatusFor(code Code) int {
	switch code {
	case BadAudio, TooFewSamples, TooManySamples:
		return http.StatusBadRequest
	case NotEnrolled:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case CohortUnavailable, StoreUnavailable:
		return http.StatusServiceUnavailable
	case ServiceDisabled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
