package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
)

// pool is a fixed set of workers fed through bounded queues.
//
// Unordered: one shared queue drained by every worker.
// Ordered: one queue per worker, tasks are pinned to a lane by key so tasks
// with the same key run one at a time in submission order.
type pool struct {
	queues    []chan func()
	wg        sync.WaitGroup
	closeOnce sync.Once

	// inflight counts accepted tasks that have not finished yet.
	inflight atomic.Int64
}

func newPool(workers, queueSize int, ordered bool) *pool {
	p := &pool{}

	if ordered {
		p.queues = make([]chan func(), workers)
		for i := range p.queues {
			p.queues[i] = make(chan func(), queueSize)
			p.wg.Add(1)
			go p.worker(p.queues[i])
		}
		return p
	}

	q := make(chan func(), queueSize)
	p.queues = []chan func(){q}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(q)
	}
	return p
}

func (p *pool) worker(tasks <-chan func()) {
	defer p.wg.Done()
	for task := range tasks {
		task()
		p.inflight.Add(-1)
	}
}

// submit enqueues without blocking. Callers must not submit after close.
func (p *pool) submit(key uint64, task func()) error {
	q := p.queues[key%uint64(len(p.queues))]
	p.inflight.Add(1)
	select {
	case q <- task:
		return nil
	default:
		p.inflight.Add(-1)
		return ErrOverloaded
	}
}

// close stops intake. Queued tasks are still run.
func (p *pool) close() {
	p.closeOnce.Do(func() {
		for _, q := range p.queues {
			close(q)
		}
	})
}

// wait blocks until every worker has exited or ctx is done. After close, an
// idle pool counts as done even if ctx already is.
func (p *pool) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if p.idle() {
			return nil
		}
		return ctx.Err()
	}
}

func (p *pool) idle() bool {
	return p.inflight.Load() == 0
}

func (p *pool) pending() int {
	n := 0
	for _, q := range p.queues {
		n += len(q)
	}
	return n
}
