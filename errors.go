package mealvoice

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrConfiguration  = errors.New("configuration error")
	ErrRemote         = errors.New("remote analysis failed")
	ErrParse          = errors.New("unparseable analysis response")
	ErrSchema         = errors.New("analysis response has unexpected shape")
	ErrIncompleteData = errors.New("analysis returned incomplete nutrition data")
	ErrRateLimited    = errors.New("daily analysis limit reached")
	ErrContentBlocked = errors.New("analysis blocked by the model's safety filters")
)

// RemoteError describes a failed call to a hosted model.
// StatusCode is zero when no response was received.
type RemoteError struct {
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("remote analysis timed out: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("remote analysis failed with status %d: %v", e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("remote analysis failed: %v", e.Err)
	}
}

func (e *RemoteError) Unwrap() []error {
	return []error{ErrRemote, e.Err}
}

// Retryable reports whether the failure is a throttle or a server-side error.
func (e *RemoteError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// InvalidRequest reports client errors that will not succeed on retry, such as a rejected credential.
func (e *RemoteError) InvalidRequest() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}
