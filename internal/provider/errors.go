package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Platform errors. Sources wrap every failure in one of these.
var (
	ErrNotFound     = errors.New("not found on platform")
	ErrUnauthorized = errors.New("platform credentials rejected")
	ErrRateLimited  = errors.New("platform rate limit exceeded")
	ErrUnavailable  = errors.New("platform unavailable")
)

// Classify maps an HTTP status code and the underlying client error to a
// platform error. A zero status means the request never produced a response.
func Classify(status int, err error) error {
	var sentinel error
	switch {
	case status == http.StatusNotFound:
		sentinel = ErrNotFound
	case status == http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case status == http.StatusTooManyRequests:
		sentinel = ErrRateLimited
	case status == http.StatusForbidden:
		sentinel = ErrUnauthorized
	default:
		sentinel = ErrUnavailable
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
