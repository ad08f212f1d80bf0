package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"mealvoice"
)

// Reason names why a transcript fell back to the local estimate.
type Reason string

const (
	ReasonTimeout     Reason = "timeout"
	ReasonNetwork     Reason = "network"
	ReasonRateLimited Reason = "rate_limited"
	ReasonRemote      Reason = "remote"
	ReasonBlocked     Reason = "blocked"
	ReasonParse       Reason = "parse"
	ReasonSchema      Reason = "schema"
	ReasonIncomplete  Reason = "incomplete"
	ReasonUnknown     Reason = "unknown"
)

const (
	MessageTimeout     = "The request timed out. Please try again."
	MessageNetwork     = "Network connection issue. Please check your internet connection."
	MessageRateLimited = "Daily meal analysis limit reached. Showing an estimate instead."
	MessageParse       = "Invalid response format from meal analysis service."
	MessageSchema      = "The meal analysis service returned an unexpected response."
	MessageIncomplete  = "The meal analysis returned incomplete nutrition data."
	MessageBlocked     = "The meal analysis service declined to analyze this description."
	MessageUnknown     = "Unable to analyze the meal right now. Showing an estimate instead."
)

// Classify maps an analysis error to a fallback reason and the message shown to the user.
func Classify(err error) (Reason, string) {
	var re *mealvoice.RemoteError

	switch {
	case errors.Is(err, mealvoice.ErrRateLimited):
		return ReasonRateLimited, MessageRateLimited
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ReasonTimeout, MessageTimeout
	case errors.Is(err, mealvoice.ErrContentBlocked):
		return ReasonBlocked, MessageBlocked
	case errors.As(err, &re):
		switch {
		case re.Timeout:
			return ReasonTimeout, MessageTimeout
		case re.StatusCode == 0:
			return ReasonNetwork, MessageNetwork
		default:
			return ReasonRemote, fmt.Sprintf("The meal analysis service returned an error (status %d).", re.StatusCode)
		}
	case errors.Is(err, mealvoice.ErrIncompleteData):
		return ReasonIncomplete, MessageIncomplete
	case errors.Is(err, mealvoice.ErrSchema):
		return ReasonSchema, MessageSchema
	case errors.Is(err, mealvoice.ErrParse):
		return ReasonParse, MessageParse
	default:
		return ReasonUnknown, MessageUnknown
	}
}
