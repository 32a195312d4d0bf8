package broadcast

import (
	"reflect"
	"sync"
	"sync/atomic"
)

type entry struct {
	id  uint64
	sub Subscriber
}

// Registry is a copy-on-write set of subscribers. Writers serialize on a
// mutex and swap in a fresh slice; readers load the current slice without
// locking. A published slice is never mutated.
type Registry struct {
	mu      sync.Mutex
	entries atomic.Pointer[[]entry]
	nextID  uint64
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.entries.Store(&[]entry{})
	return r
}

// Add registers s. Adding a subscriber that is already present is a no-op.
func (r *Registry) Add(s Subscriber) error {
	if !valid(s) {
		return ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.load()
	for _, e := range cur {
		if e.sub == s {
			return nil
		}
	}

	r.nextID++
	next := make([]entry, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, entry{id: r.nextID, sub: s})
	r.entries.Store(&next)
	return nil
}

// Remove unregisters s. Removing an unknown subscriber is a no-op.
// Notifications already scheduled for s still run.
func (r *Registry) Remove(s Subscriber) {
	if !valid(s) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.load()
	idx := -1
	for i, e := range cur {
		if e.sub == s {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	next := make([]entry, 0, len(cur)-1)
	next = append(next, cur[:idx]...)
	next = append(next, cur[idx+1:]...)
	r.entries.Store(&next)
}

// Snapshot returns the subscribers registered at the moment of the call, in
// registration order.
func (r *Registry) Snapshot() []Subscriber {
	cur := r.load()
	out := make([]Subscriber, len(cur))
	for i, e := range cur {
		out[i] = e.sub
	}
	return out
}

func (r *Registry) Contains(s Subscriber) bool {
	if !valid(s) {
		return false
	}
	for _, e := range r.load() {
		if e.sub == s {
			return true
		}
	}
	return false
}

func (r *Registry) Len() int {
	return len(r.load())
}

// view returns the live immutable slice for dispatch.
func (r *Registry) view() []entry {
	return r.load()
}

func (r *Registry) load() []entry {
	p := r.entries.Load()
	if p == nil {
		return nil
	}
	return *p
}

// valid rejects nil interfaces, typed nil pointers and values that would
// panic when compared with ==.
func valid(s Subscriber) bool {
	if s == nil {
		return false
	}
	// Value, not type: a comparable struct can still hold a slice in an
	// interface field.
	v := reflect.ValueOf(s)
	if !v.Comparable() {
		return false
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.Slice:
		return !v.IsNil()
	}
	return true
}
