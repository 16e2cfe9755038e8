// File: api/events.go
// Package api defines kernel event types delivered by an EventSource.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// EventKind discriminates decoded kernel events.
type EventKind uint8

const (
	// EventVBlank is a legacy vblank notification with a 32-bit counter.
	EventVBlank EventKind = iota + 1
	// EventFlipComplete is a page-flip completion with a 32-bit counter.
	EventFlipComplete
	// EventSequence is a CRTC sequence notification with a 64-bit counter.
	EventSequence
)

// Event is one decoded notification from the device. User carries the
// tracking sequence supplied at submission; Frame is the hardware counter
// in the width implied by Kind (Is64 for dispatch convenience); Usec is
// the event timestamp in microseconds.
type Event struct {
	Kind  EventKind
	User  uint64
	Frame uint64
	Usec  uint64
}

// Is64 reports whether Frame carries a full 64-bit hardware counter.
func (e Event) Is64() bool {
	return e.Kind == EventSequence
}
