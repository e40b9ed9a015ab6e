package remote

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// HTTPError is a non-2xx response of the backend.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string { return e.Message }

// newHTTPError reads the message from the `message` or `error` field of body, defaulting to "Status <code>".
func newHTTPError(status int, body []byte) *HTTPError {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)

	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("Status %d", status)
	}
	return &HTTPError{Status: status, Message: msg}
}

// IsStatus reports whether the cause of err is an *HTTPError with the given status.
func IsStatus(err error, status int) bool {
	var hErr *HTTPError
	if !errors.As(err, &hErr) {
		return false
	}
	return hErr.Status == status
}

// IsUnauthorized reports whether the backend rejected the credentials of the request.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusForbidden)
}
