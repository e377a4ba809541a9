package app

import (
	"errors"
	"fmt"
	"strings"
)

const (
	msgAlreadyProcessed = "This request has already been processed."
	msgNotFound         = "The requested record could not be found."
	msgConflict         = "The request no longer matches the current state. Please refresh and try again."
	msgRetry            = "Something went wrong on our side. Please try again later."
)

// UserMessage maps err to text that is safe to show to an end user. Internal
// detail is appended only when debug is set; it always goes to the server log.
func UserMessage(err error, debug bool) string {
	if err == nil {
		return ""
	}

	var conflict *DateConflictError
	switch {
	case errors.As(err, &conflict):
		if len(conflict.Conflicts) == 0 {
			return fmt.Sprintf("The dates %s are no longer available.", conflict.Requested)
		}
		ranges := make([]string, len(conflict.Conflicts))
		for i, r := range conflict.Conflicts {
			ranges[i] = r.String()
		}
		return fmt.Sprintf("The dates %s are unavailable: already booked %s.", conflict.Requested, strings.Join(ranges, ", "))
	case errors.Is(err, ErrAlreadyProcessed):
		return msgAlreadyProcessed
	case errors.Is(err, ErrValidation):
		return "Invalid request: " + validationDetail(err)
	case errors.Is(err, ErrNotFound):
		return msgNotFound
	case errors.Is(err, ErrConflict):
		return msgConflict
	}

	if debug {
		return msgRetry + " (" + err.Error() + ")"
	}
	return msgRetry
}

// validationDetail strips everything up to and including the kind prefix.
func validationDetail(err error) string {
	msg := err.Error()
	prefix := ErrValidation.Error() + ": "
	if i := strings.LastIndex(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}
