package broadcast

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a nil or non-comparable subscriber is registered.
	ErrInvalidArgument = errors.New("broadcast: invalid argument")

	// ErrClosed is returned by Publish once Shutdown has been called.
	ErrClosed = errors.New("broadcast: closed")

	// ErrOverloaded is returned when the dispatch queue is full.
	ErrOverloaded = errors.New("broadcast: dispatch pool overloaded")

	// ErrSubscriberFailure marks a subscriber that returned an error or panicked.
	ErrSubscriberFailure = errors.New("broadcast: subscriber failure")

	// ErrNotifyTimeout marks a notification abandoned after the notify timeout.
	ErrNotifyTimeout = errors.New("broadcast: notification timed out")

	// ErrShutdownTimeout is returned when Shutdown gave up waiting for in-flight notifications.
	ErrShutdownTimeout = errors.New("broadcast: shutdown timeout exceeded")
)

// SubscriberError describes a failed notification. It is only ever handed to
// the logger and the error handler, never to the publisher.
type SubscriberError struct {
	Symbol string
	Value  float64
	Err    error
	Panic  any
}

func (e *SubscriberError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("subscriber panicked on %s=%g: %v", e.Symbol, e.Value, e.Panic)
	}
	return fmt.Sprintf("subscriber failed on %s=%g: %v", e.Symbol, e.Value, e.Err)
}

func (e *SubscriberError) Unwrap() error { return e.Err }

func (e *SubscriberError) Is(target error) bool {
	return target == ErrSubscriberFailure
}
