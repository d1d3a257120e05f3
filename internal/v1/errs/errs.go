// Package errs defines the error taxonomy shared by the HTTP handlers, the
// store, and the chat core, plus the mapping to HTTP status codes.
package errs

import (
	"errors"
	"net/http"
)

// Sentinel errors for the fixed taxonomy entries.
var (
	ErrUnauthorized = errors.New("Unauthorized")
	ErrForbidden    = errors.New("Forbidden")
	ErrNotFound     = errors.New("Not Found")
	ErrInternal     = errors.New("Internal Server Error")

	// ErrSendClosed means a client's outbound channel is gone. It is the only
	// error that terminates a client session from inside event dispatch.
	ErrSendClosed = errors.New("The channel is disconnected")
)

// badRequest carries a human-readable validation message.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

// BadRequest returns a 400-mapped error with the given message.
func BadRequest(msg string) error {
	return &badRequest{msg: msg}
}

// IsBadRequest reports whether err is a validation error.
func IsBadRequest(err error) bool {
	var br *badRequest
	return errors.As(err, &br)
}

// StatusCode maps an error to its HTTP status code. Unknown errors map to 500.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsBadRequest(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
