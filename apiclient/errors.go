package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSessionExpired is returned when a 401 could not be recovered by a
	// refresh. The session has been logged out.
	ErrSessionExpired = errors.New("session expired")
	// ErrRefreshFailed is returned by Refresh when the API issued no token.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrInvalidConfig is returned by New for unusable options.
	ErrInvalidConfig = errors.New("invalid api client config")
	// ErrMalformedResponse is returned when a success body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed api response")
)

// APIError is a non-2xx response decoded from the API error envelope
// {"error":{"code","message","details"}}.
type APIError struct {
	Status  int                 `json:"-"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("api %d: %s", e.Status, msg)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
