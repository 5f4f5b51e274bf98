package docsync

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Make sure the error types satisfy error interface.
var (
	_ error = (*ValidationError)(nil)
	_ error = (*TransportError)(nil)
	_ error = (*TimeoutError)(nil)
)

// ValidationError is an error returned by Upsert functions when the documents
// or bases are malformed.
type ValidationError struct {
	Msg string
}

func (err *ValidationError) Error() string {
	return "docsync: invalid upsert: " + err.Msg
}

// TransportError is an error returned by a remote collection,
// carrying the status code from the remote boundary.
type TransportError struct {
	Status int
	Body   string
}

func (err *TransportError) Error() string {
	if err.Body == "" {
		return fmt.Sprintf("docsync: remote status %d", err.Status)
	}
	return fmt.Sprintf("docsync: remote status %d: %s", err.Status, err.Body)
}

// TimeoutError is an error returned when the remote collection didn't answer
// within the configured deadline.
type TimeoutError struct {
	Timeout time.Duration
}

func (err *TimeoutError) Error() string {
	return fmt.Sprintf("docsync: remote timed out after %v", err.Timeout)
}

// IsValidationError checks whether a given error is ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsTimeoutError checks whether a given error is TimeoutError.
func IsTimeoutError(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

// StatusOf returns the status code carried by a TransportError,
// or 0 if err is not a TransportError.
func StatusOf(err error) int {
	var target *TransportError
	if errors.As(err, &target) {
		return target.Status
	}
	return 0
}

// IsGone checks whether a given error means the document is already deleted
// on the remote side (HTTP 410).
func IsGone(err error) bool {
	return StatusOf(err) == http.StatusGone
}

// IsForbidden checks whether a given error means the caller is not allowed to
// change the document (HTTP 403).
func IsForbidden(err error) bool {
	return StatusOf(err) == http.StatusForbidden
}
