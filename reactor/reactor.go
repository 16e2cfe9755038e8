// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness reactor for driving device event flushes from
// a host event loop.

package reactor

import "github.com/momentics/drmseq/api"

// Reactor waits for fd readiness and runs the registered callbacks on the
// polling thread. It satisfies api.Reactor for wakeup registration.
type Reactor interface {
	api.Reactor

	// Poll waits up to timeoutMs for readiness and runs callbacks.
	// timeoutMs < 0 blocks indefinitely. Returns callbacks run.
	Poll(timeoutMs int) (int, error)

	// Close cleans up resources (epfd).
	Close() error
}

// New creates the platform reactor.
func New() (Reactor, error) {
	return newPlatformReactor()
}
