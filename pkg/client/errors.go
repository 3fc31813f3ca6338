package client

import (
	"errors"
	"fmt"
)

// ErrRateLimited is returned when the local cooldown guard blocks a
// request before it reaches the upstream API.
var ErrRateLimited = errors.New("request blocked: upstream rate limit cooldown")

// HTTPError is an upstream API error carrying the HTTP status so the
// retry layer can classify it. It propagates unchanged through retry
// exhaustion.
type HTTPError struct {
	StatusCode int
	Status     string
	Endpoint   string
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("upstream %s: %s: %s", e.Endpoint, e.Status, e.Body)
	}
	return fmt.Sprintf("upstream %s: %s", e.Endpoint, e.Status)
}

// HTTPStatus implements retry.StatusCoder.
func (e *HTTPError) HTTPStatus() int {
	return e.StatusCode
}
