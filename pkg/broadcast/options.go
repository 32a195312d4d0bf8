package broadcast

import "time"

const (
	DefaultWorkers         = 8
	DefaultQueueSize       = 1024
	DefaultShutdownTimeout = 30 * time.Second
)

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithWorkers sets the number of dispatch workers. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithQueueSize bounds the number of notifications waiting for a worker
// (per lane when ordered delivery is on). Once full, Publish drops and
// returns ErrOverloaded instead of queuing.
func WithQueueSize(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithOrderedDelivery pins every subscriber to a single worker lane so that
// it observes events in publish order. Off by default: delivery is unordered.
func WithOrderedDelivery(ordered bool) Option {
	return func(b *Broadcaster) {
		b.ordered = ordered
	}
}

// WithNotifyTimeout bounds a single OnEvent call. When it expires the call is
// abandoned, reported with ErrNotifyTimeout and not retried. Zero disables it.
func WithNotifyTimeout(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d >= 0 {
			b.notifyTimeout = d
		}
	}
}

// WithShutdownTimeout bounds how long Shutdown waits for scheduled notifications.
func WithShutdownTimeout(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d > 0 {
			b.shutdownTimeout = d
		}
	}
}

func WithLogger(logger Logger) Option {
	return func(b *Broadcaster) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithErrorHandler receives every subscriber failure in addition to the log record.
func WithErrorHandler(fn func(error)) Option {
	return func(b *Broadcaster) {
		b.onError = fn
	}
}

// WithRegistry shares an existing registry instead of creating a new one.
func WithRegistry(r *Registry) Option {
	return func(b *Broadcaster) {
		if r != nil {
			b.registry = r
		}
	}
}
