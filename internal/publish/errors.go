// Package publish implements the plugin publish pipeline: the uploaded
// archive is extracted, its manifest parsed and validated, the validated
// assets staged and repackaged, the artifacts uploaded, and the plugin and
// version rows committed in a single transaction.
package publish

import "net/http"

// Error is a publish failure with an HTTP status and a client-facing
// message. The message is returned verbatim in the response body so the CLI
// can print it.
type Error struct {
	Status  int
	Message string
	// Stage names the failing pipeline stage for metrics and logs.
	Stage string
}

func (e *Error) Error() string {
	return e.Message
}

func badRequest(stage, message string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message, Stage: stage}
}

func internal(stage, message string) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: message, Stage: stage}
}
