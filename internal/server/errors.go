// errors.go - Upload failure taxonomy and JSON error responses.
//
// Every request failure is classified into one of a small set of
// reasons. The reason decides the HTTP status code and the user-safe
// message; internal detail stays in server logs.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// failReason classifies why a request was refused.
type failReason string

const (
	reasonUnsupportedType failReason = "unsupported_type"
	reasonTooLarge        failReason = "too_large"
	reasonUnexpectedField failReason = "unexpected_field"
	reasonUnauthenticated failReason = "unauthenticated"
	reasonTooManyRequests failReason = "too_many_requests"
	reasonBadRequest      failReason = "bad_request"
	reasonIOFailure       failReason = "io_failure"
	reasonInternal        failReason = "internal_error"
)

// uploadError carries a failure reason plus a user-safe message.
// The wrapped error (if any) is for server-side logs only.
type uploadError struct {
	reason  failReason
	message string
	err     error
}

func (e *uploadError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.reason, e.message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.reason, e.message)
}

func (e *uploadError) Unwrap() error { return e.err }

// status maps a failure reason to its HTTP status code.
func (e *uploadError) status() int {
	switch e.reason {
	case reasonUnsupportedType, reasonUnexpectedField, reasonBadRequest:
		return http.StatusBadRequest
	case reasonTooLarge:
		return http.StatusRequestEntityTooLarge
	case reasonUnauthenticated:
		return http.StatusUnauthorized
	case reasonTooManyRequests:
		return http.StatusTooManyRequests
	case reasonIOFailure, reasonInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func errUnsupportedType(detail string) *uploadError {
	return &uploadError{reason: reasonUnsupportedType, message: "file type not allowed: " + detail}
}

func errTooLarge(limit int64) *uploadError {
	return &uploadError{reason: reasonTooLarge, message: fmt.Sprintf("file too large, limit is %d bytes", limit)}
}

func errUnexpectedField(field string) *uploadError {
	return &uploadError{reason: reasonUnexpectedField, message: "unexpected extra file field: " + field}
}

func errUnauthenticated() *uploadError {
	// One generic message for every auth failure, no oracle for guessing.
	return &uploadError{reason: reasonUnauthenticated, message: "unauthorized"}
}

func errTooManyRequests() *uploadError {
	return &uploadError{reason: reasonTooManyRequests, message: "rate limit exceeded, try again later"}
}

func errBadRequest(msg string) *uploadError {
	return &uploadError{reason: reasonBadRequest, message: msg}
}

func errIOFailure(err error) *uploadError {
	return &uploadError{reason: reasonIOFailure, message: "upload failed", err: err}
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto the {success:false, message} envelope.
// Unclassified errors become a generic 500 without leaking detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ue *uploadError
	if !errors.As(err, &ue) {
		ue = &uploadError{reason: reasonInternal, message: "internal server error", err: err}
	}

	if ue.err != nil || ue.reason == reasonInternal || ue.reason == reasonIOFailure {
		Error("request_failed", map[string]any{
			"rid":    RequestIDFromContext(r.Context()),
			"path":   r.URL.Path,
			"reason": string(ue.reason),
		}, ue.err)
	}

	writeJSON(w, ue.status(), map[string]any{
		"success": false,
		"message": ue.message,
	})
}
