// Package fake
// Author: momentics <momentics@gmail.com>
//
// Recording reactor double; tests trigger readiness callbacks directly.

package fake

import "sync"

// Reactor records fd registrations and lets tests trigger readiness.
type Reactor struct {
	mu  sync.Mutex
	cbs map[uintptr]func()

	Adds    int
	Removes int
}

// NewReactor creates an empty fake reactor.
func NewReactor() *Reactor {
	return &Reactor{cbs: make(map[uintptr]func())}
}

// AddFD implements api.Reactor.
func (r *Reactor) AddFD(fd uintptr, cb func()) error {
	r.mu.Lock()
	r.cbs[fd] = cb
	r.Adds++
	r.mu.Unlock()
	return nil
}

// RemoveFD implements api.Reactor.
func (r *Reactor) RemoveFD(fd uintptr) error {
	r.mu.Lock()
	delete(r.cbs, fd)
	r.Removes++
	r.mu.Unlock()
	return nil
}

// Trigger runs the callback registered for fd, as a readiness wakeup would.
func (r *Reactor) Trigger(fd uintptr) bool {
	r.mu.Lock()
	cb := r.cbs[fd]
	r.mu.Unlock()
	if cb == nil {
		return false
	}
	cb()
	return true
}

// Registered reports whether fd currently has a callback.
func (r *Reactor) Registered(fd uintptr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cbs[fd]
	return ok
}
