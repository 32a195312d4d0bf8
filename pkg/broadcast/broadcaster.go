package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// State is the lifecycle phase of a Broadcaster.
type State int32

const (
	StateRunning State = iota
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Stats is a point-in-time view of the dispatch counters.
type Stats struct {
	Published int64
	Delivered int64
	Failed    int64
	Dropped   int64
	TimedOut  int64
	Active    int32
	Queued    int
	// Abandoned counts timed out or cancelled calls whose subscriber has not
	// returned yet. Each one holds a goroutine.
	Abandoned int64
}

// Broadcaster fans out price events to every registered subscriber on a
// bounded worker pool. Publish never waits for subscribers.
type Broadcaster struct {
	registry *Registry
	pool     *pool
	logger   Logger
	onError  func(error)

	workers         int
	queueSize       int
	ordered         bool
	notifyTimeout   time.Duration
	shutdownTimeout time.Duration

	// mu orders Publish against Shutdown so nothing is submitted to a closed pool.
	mu      sync.RWMutex
	state   atomic.Int32
	stopped chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	published atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
	timedOut  atomic.Int64
	active    atomic.Int32
	abandoned atomic.Int64
}

// New creates a running Broadcaster and starts its workers.
func New(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		workers:         DefaultWorkers,
		queueSize:       DefaultQueueSize,
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          zap.NewNop(),
		stopped:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.registry == nil {
		b.registry = NewRegistry()
	}

	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.pool = newPool(b.workers, b.queueSize, b.ordered)

	b.logger.Info("Broadcaster Started",
		zap.Int("workers", b.workers),
		zap.Int("queue_size", b.queueSize),
		zap.Bool("ordered", b.ordered),
		zap.Duration("notify_timeout", b.notifyTimeout))

	return b
}

// AddObserver registers s for future events.
func (b *Broadcaster) AddObserver(s Subscriber) error {
	return b.registry.Add(s)
}

// RemoveObserver unregisters s. Notifications already scheduled for s still run.
func (b *Broadcaster) RemoveObserver(s Subscriber) {
	b.registry.Remove(s)
}

func (b *Broadcaster) Registry() *Registry { return b.registry }

func (b *Broadcaster) State() State { return State(b.state.Load()) }

// Publish schedules one notification per current subscriber and returns.
//
// Subscribers registered after the snapshot is taken do not see this event;
// subscribers removed after it may still see it. If the queue fills up the
// remaining notifications for this event are dropped and the returned error
// wraps ErrOverloaded.
func (b *Broadcaster) Publish(symbol string, value float64) error {
	return b.PublishEvent(Event{Symbol: symbol, Value: value})
}

func (b *Broadcaster) PublishEvent(evt Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.State() != StateRunning {
		return ErrClosed
	}

	b.published.Add(1)
	subs := b.registry.view()

	dropped := 0
	for _, e := range subs {
		sub := e.sub
		if err := b.pool.submit(e.id, func() { b.notify(sub, evt) }); err != nil {
			dropped++
			b.dropped.Add(1)
			b.logger.Warn("Dropping notification", zap.String("symbol", evt.Symbol), zap.Uint64("subscriber_id", e.id))
		}
	}

	if dropped > 0 {
		return fmt.Errorf("%w: dropped %d of %d notifications for %s", ErrOverloaded, dropped, len(subs), evt.Symbol)
	}

	b.logger.Debug("Published", zap.String("symbol", evt.Symbol), zap.Float64("value", evt.Value), zap.Int("subscribers", len(subs)))
	return nil
}

// Shutdown stops accepting events and waits for scheduled notifications,
// bounded by ctx and the shutdown timeout. Notifications still pending
// after that are abandoned and ErrShutdownTimeout is returned. Calling it
// again is safe and returns nil once the broadcaster has stopped.
func (b *Broadcaster) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	first := b.State() == StateRunning
	if first {
		b.state.Store(int32(StateDraining))
		b.pool.close()
	}
	b.mu.Unlock()

	if !first {
		select {
		case <-b.stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	b.logger.Info("Shutdown requested, draining notifications...", zap.Int("queued", b.pool.pending()))

	graceCtx, cancel := context.WithTimeout(ctx, b.shutdownTimeout)
	defer cancel()

	var result error
	if err := b.pool.wait(graceCtx); err != nil {
		result = fmt.Errorf("%w: %d active, %d queued", ErrShutdownTimeout, b.active.Load(), b.pool.pending())
		b.logger.Warn("Shutdown grace period exceeded, abandoning notifications",
			zap.Int32("active", b.active.Load()),
			zap.Int("queued", b.pool.pending()))
	}

	// Cancels in-flight calls and makes workers skip anything still queued.
	b.cancel()

	b.state.Store(int32(StateStopped))
	close(b.stopped)

	b.logger.Info("Broadcaster stopped",
		zap.Int64("delivered", b.delivered.Load()),
		zap.Int64("failed", b.failed.Load()),
		zap.Int64("dropped", b.dropped.Load()))
	return result
}

func (b *Broadcaster) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
		Failed:    b.failed.Load(),
		Dropped:   b.dropped.Load(),
		TimedOut:  b.timedOut.Load(),
		Active:    b.active.Load(),
		Queued:    b.pool.pending(),
		Abandoned: b.abandoned.Load(),
	}
}

func (b *Broadcaster) notify(sub Subscriber, evt Event) {
	if b.ctx.Err() != nil {
		b.dropped.Add(1)
		return
	}

	b.active.Add(1)
	defer b.active.Add(-1)

	if b.notifyTimeout <= 0 {
		b.report(evt, invoke(b.ctx, sub, evt))
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.notifyTimeout)
	defer cancel()

	const (
		callRunning int32 = iota
		callFinished
		callAbandoned
	)
	var call atomic.Int32

	done := make(chan error, 1)
	go func() {
		err := invoke(ctx, sub, evt)
		if !call.CompareAndSwap(callRunning, callFinished) {
			b.abandoned.Add(-1)
		}
		done <- err
	}()

	select {
	case err := <-done:
		b.report(evt, err)
	case <-ctx.Done():
		b.abandoned.Add(1)
		if !call.CompareAndSwap(callRunning, callAbandoned) {
			// Returned in the same instant; treat it as a normal result.
			b.abandoned.Add(-1)
			b.report(evt, <-done)
			return
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			b.timedOut.Add(1)
			b.report(evt, &SubscriberError{Symbol: evt.Symbol, Value: evt.Value, Err: ErrNotifyTimeout})
			return
		}
		b.dropped.Add(1)
		b.logger.Debug("Notification abandoned on shutdown", zap.String("symbol", evt.Symbol))
	}
}

func (b *Broadcaster) report(evt Event, err error) {
	if err == nil {
		b.delivered.Add(1)
		return
	}

	b.failed.Add(1)
	b.logger.Error("Subscriber failure", zap.String("symbol", evt.Symbol), zap.Float64("value", evt.Value), zap.Error(err))

	if b.onError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Error handler panicked", zap.Any("panic", r))
		}
	}()
	b.onError(err)
}

func invoke(ctx context.Context, sub Subscriber, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SubscriberError{Symbol: evt.Symbol, Value: evt.Value, Panic: r}
		}
	}()

	if e := sub.OnEvent(ctx, evt.Symbol, evt.Value); e != nil {
		return &SubscriberError{Symbol: evt.Symbol, Value: evt.Value, Err: e}
	}
	return nil
}
