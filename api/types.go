// File: api/types.go
// Package api defines shared types for the drmseq coordination core.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// QueueFlag controls how a vblank target counter is interpreted.
type QueueFlag uint32

const (
	// QueueAbsolute requests notification at exactly the target counter.
	QueueAbsolute QueueFlag = 0
	// QueueRelative interprets the target as an offset from the current counter.
	QueueRelative QueueFlag = 1 << 0
	// QueueNextOnMiss re-targets an already-elapsed counter to the next vblank
	// instead of failing.
	QueueNextOnMiss QueueFlag = 1 << 1
)

// HandlerProc is invoked once when a tracked request completes.
// frame is the CRTC-domain frame counter, usec the event timestamp in
// microseconds, data the payload supplied at allocation.
type HandlerProc func(frame uint64, usec uint64, data any)

// AbortProc is invoked once when a tracked request is aborted instead of
// completing.
type AbortProc func(data any)

// FlipHandler receives the true presentation timestamp of a completed
// page flip, taken from the reference pipe.
type FlipHandler func(frame uint64, usec uint64, event any)

// FlipAbort is invoked when an accepted page flip will never complete.
type FlipAbort func(event any)

// MatchProc selects tracked requests during a predicate abort sweep.
type MatchProc func(data any) bool
