package streamline

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sentinel errors for the streamline domain.
var (
	ErrInvalidOptions = errors.New("invalid options")
	ErrCanceled       = errors.New("request aborted by user")
	ErrTimeout        = errors.New("request timed out")
	ErrHTTPStatus     = errors.New("http error")
	ErrLineTooLong    = errors.New("line too long")
	ErrNotFound       = errors.New("not found")
)

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 4096

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error returns a message including the status code and a body excerpt.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("http error: status %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets errors.Is match ErrHTTPStatus.
func (e *StatusError) Unwrap() error { return ErrHTTPStatus }

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// ParseStatusError reads up to 4KB from the response body and returns a StatusError.
func ParseStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
}

// TimeoutError builds the cancellation cause used when the transfer timer fires.
func TimeoutError(d time.Duration) error {
	return fmt.Errorf("%w after %s", ErrTimeout, d)
}
