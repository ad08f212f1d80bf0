package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net"

	"mealvoice"
)

// RemoteFailure wraps a failed request to a hosted model. statusCode is zero when no response arrived.
func RemoteFailure(statusCode int, err error) *mealvoice.RemoteError {
	return &mealvoice.RemoteError{StatusCode: statusCode, Timeout: isTimeout(err), Err: err}
}

// Blocked reports a response withheld by the provider's safety filters.
// It carries no status code and is never retried.
func Blocked(detail string) *mealvoice.RemoteError {
	return &mealvoice.RemoteError{Err: fmt.Errorf("%w: %s", mealvoice.ErrContentBlocked, detail)}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
