// Package broadcast fans out price updates to a dynamic set of subscribers.
//
// A Broadcaster owns a Registry and a bounded worker pool. Publish takes a
// snapshot of the registry and schedules one notification per subscriber,
// then returns without waiting:
//
//	b := broadcast.New(broadcast.WithWorkers(4), broadcast.WithLogger(logger))
//	defer b.Shutdown(context.Background())
//
//	_ = b.AddObserver(trader)
//	if err := b.Publish("AAPL", 150.00); err != nil {
//		// ErrClosed or ErrOverloaded
//	}
//
// Delivery is best-effort and at most once per event per subscriber. There
// is no ordering across subscribers; WithOrderedDelivery keeps each
// subscriber's own events in publish order. A subscriber that returns an
// error or panics is logged and handed to the error handler, and never
// affects other subscribers or the publisher.
//
// The registry is copy-on-write, so adding or removing subscribers never
// waits on dispatch. A subscriber removed while an event is being published
// may still receive that event.
package broadcast
