package nifi

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is returned when the server answers with a non-2xx status.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Message returns the server-provided explanation, falling back to the
// status text.
func (e *APIError) Message() string {
	if e.Body != "" {
		return e.Body
	}
	return http.StatusText(e.StatusCode)
}

// IsConflict reports whether err is a 409, which NiFi uses for stale
// revisions and for components that are still running.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
