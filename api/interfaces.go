// File: api/interfaces.go
// Package api defines the core contracts of drmseq.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Output abstracts one display pipe (CRTC/connector pairing) capable of
// independent flip scheduling. Implementations live outside this core;
// the core only queries state and keys per-output bookkeeping off the
// interface value.
type Output interface {
	// Pipe returns the vblank pipe index used for legacy wait-vblank calls.
	Pipe() int

	// CRTCID returns the kernel CRTC object id.
	CRTCID() uint32

	// Active reports whether the pipe currently drives a live mode.
	Active() bool

	// Name identifies the output in diagnostics.
	Name() string
}

// EventSource is the kernel-side of the core: request submission and
// event delivery for one mode-setting device fd.
type EventSource interface {
	// QueueSequence asks for a notification at an absolute 64-bit hardware
	// sequence value. Returns the sequence actually queued.
	QueueSequence(crtc uint32, flags uint32, sequence uint64, user uint64) (uint64, error)

	// GetSequence reads the current 64-bit hardware sequence and its
	// timestamp in nanoseconds. active reports whether the CRTC is lit.
	GetSequence(crtc uint32) (sequence uint64, ns int64, active bool, err error)

	// WaitVBlank is the legacy 32-bit vblank interface. With the event flag
	// set it queues a notification; without it, it queries the current
	// counter. Returns the reply sequence and timestamp in microseconds.
	WaitVBlank(pipe int, flags uint32, target uint32, user uint64) (uint32, uint64, error)

	// PageFlip submits a legacy per-CRTC buffer flip.
	PageFlip(crtc uint32, fb uint32, flags uint32, user uint64) error

	// AtomicCommit flips fb onto every listed CRTC in one atomic request.
	AtomicCommit(crtcs []uint32, fb uint32, flags uint32, user uint64) error

	// ReadEvents drains currently buffered kernel events without blocking.
	// An empty result is not an error.
	ReadEvents() ([]Event, error)

	// FD exposes the device descriptor for readiness registration.
	FD() uintptr

	// SetMaster / DropMaster track display-master session ownership.
	SetMaster() error
	DropMaster() error

	// Close releases the device.
	Close() error
}

// Buffer is an opaque scanout buffer handle owned by the caller. The core
// never touches pixel data; it only resolves buffers to framebuffer ids
// through a RenderBridge.
type Buffer interface {
	// Size returns width and height in pixels, used only for diagnostics.
	Size() (width, height uint32)
}

// RenderBridge is the rendering-backend capability table. Present and
// absent backends are distinct implementations rather than nil slots.
type RenderBridge interface {
	// Supported reports whether buffer import is available at all.
	Supported() bool

	// ImportFramebuffer binds buf to the display device and returns the
	// framebuffer id to flip to.
	ImportFramebuffer(buf Buffer) (uint32, error)
}

// Reactor integrates the device fd into the host event loop. The core
// registers exactly one readiness callback per driver instance lifetime.
type Reactor interface {
	// AddFD registers fd for read-readiness; cb runs on the control thread.
	AddFD(fd uintptr, cb func()) error

	// RemoveFD deregisters fd. Removing an unknown fd is a no-op.
	RemoveFD(fd uintptr) error
}
