package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the request gate. Handlers compare with errors.Is
// and map them to HTTP statuses.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// ValidationError is a malformed request (missing/invalid field). Never
// retryable; the caller must fix the input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func Validation(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

// UpstreamError is a failure talking to the completion endpoint.
// Transient errors (5xx, timeout, connection refused) may be retried by
// callers; configuration errors (bad key, bad model, missing key) may not.
type UpstreamError struct {
	Status    int // HTTP status from upstream, 0 when the call never completed
	Transient bool
	Msg       string
	Err       error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream: %s: %v", e.Msg, e.Err)
	}
	return "upstream: " + e.Msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// UpstreamConfig marks a non-retryable configuration failure, e.g. a
// missing or rejected API key.
func UpstreamConfig(msg string) *UpstreamError {
	return &UpstreamError{Msg: msg, Transient: false}
}

// UpstreamTransient marks a retryable failure: 5xx, timeout, transport.
func UpstreamTransient(msg string, err error) *UpstreamError {
	return &UpstreamError{Msg: msg, Err: err, Transient: true}
}

// ParseError means the completion returned text with no extractable or
// valid JSON payload. Always recoverable through fallback substitution on
// the orchestrated path; single-shot endpoints surface it as a 500.
type ParseError struct {
	Task string
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Task == "" {
		return "generation parse: " + e.Msg
	}
	return fmt.Sprintf("generation parse (%s): %s", e.Task, e.Msg)
}

func Parse(task, msg string) *ParseError {
	return &ParseError{Task: task, Msg: msg}
}

// IsTransientUpstream reports whether err is an upstream failure a caller
// may reasonably retry.
func IsTransientUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Transient
}

// IsConfigUpstream reports whether err is a non-retryable upstream
// configuration failure.
func IsConfigUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && !ue.Transient
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
