// Package errs defines the closed error taxonomy surfaced at the dispatch
// core boundary. Every failure the core raises is one of these
// seven kinds; the HTTP boundary (out of scope for the core itself) maps
// kinds to transport status codes.
package errs

import "fmt"

// Kind is a closed set of failure categories. The core never invents a new
// kind at runtime; adapters and the dispatch core classify every failure
// into one of these before it crosses the core boundary.
type Kind string

const (
	// Credentials indicates a required configuration variable was absent
	// at adapter construction time.
	Credentials Kind = "credentials"
	// ModelNotFound indicates a registry miss or a vendor 404.
	ModelNotFound Kind = "model_not_found"
	// Conversion indicates neutral-to-vendor translation failed, including
	// capability-gating rejections and malformed attachments.
	Conversion Kind = "conversion"
	// Throttling indicates the vendor asked the caller to slow down. It is
	// the only retryable kind.
	Throttling Kind = "throttling"
	// ServiceCall indicates any other vendor failure: status, network,
	// empty completion, non-terminal status.
	ServiceCall Kind = "service_call"
	// StructuredResponse indicates the structured-response engine failed
	// to parse model output into the declared schema.
	StructuredResponse Kind = "structured_response"
	// Timeout indicates an I/O timeout at the transport or an explicit
	// deadline.
	Timeout Kind = "timeout"
)

// Error is the concrete error type carried across the dispatch core
// boundary. Some kinds attach structured fields beyond Message.
type Error struct {
	Kind    Kind
	Message string

	// StructuredResponse fields: the offending raw text and the target
	// schema class name, so a caller (or a higher retry policy) can
	// inspect what the model actually produced.
	XML         string
	ReturnClass string

	// Retryable attempt bookkeeping, populated by the retry wrapper when
	// it gives up on a throttling error.
	Retries int

	// Wrapped is the original vendor/transport error, preserved for
	// errors.Unwrap so callers can still inspect the cause.
	Wrapped error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// New builds a plain Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind that preserves an underlying
// cause for errors.Unwrap/errors.Is/errors.As.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: cause}
}

// NewStructuredResponse builds a structured-response error carrying the
// offending text and the schema class name it failed to parse into.
func NewStructuredResponse(xml, returnClass string, cause error) *Error {
	return &Error{
		Kind:        StructuredResponse,
		Message:     fmt.Sprintf("failed to parse response into %s", returnClass),
		XML:         xml,
		ReturnClass: returnClass,
		Wrapped:     cause,
	}
}

// NewThrottlingExhausted builds the terminal throttling error raised once
// the retry wrapper has exhausted max_retries attempts.
func NewThrottlingExhausted(retries int, elapsedSeconds float64) *Error {
	return &Error{
		Kind:    Throttling,
		Message: fmt.Sprintf("throttled after %d retries (%.2fs elapsed)", retries, elapsedSeconds),
		Retries: retries,
	}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if ok := As(err, &e); ok {
		return e.Kind == kind
	}
	return false
}

// As walks err's single-error Unwrap chain and stores the first *Error it
// finds in target; it is kept local so callers of this package don't need a
// second import for the common case.
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
