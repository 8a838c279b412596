package reliability

import (
	"context"
	"errors"
)

// FailureClass labels why a background memory or summary cycle was aborted.
type FailureClass string

const (
	FailureNone        FailureClass = "none"
	FailureTransport   FailureClass = "transport"
	FailureMalformed   FailureClass = "malformed"
	FailurePersistence FailureClass = "persistence"
)

// ErrMalformedOutput marks model output that could not be parsed into the
// expected shape. It is a soft failure: the cycle aborts with no store
// mutation and nothing propagates to the chat path.
var ErrMalformedOutput = errors.New("malformed model output")

// ErrPersistence marks a storage read/write failure inside a background
// cycle.
var ErrPersistence = errors.New("persistence failure")

// Classify maps an aborted cycle's error onto the failure taxonomy.
// Anything that is neither malformed output nor a persistence failure is
// treated as a transport/provider error, including timeouts.
func Classify(err error) FailureClass {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrMalformedOutput):
		return FailureMalformed
	case errors.Is(err, ErrPersistence):
		return FailurePersistence
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return FailureTransport
	default:
		return FailureTransport
	}
}
