// File: api/drm.go
// Package api carries the kernel uAPI flag values EventSource methods accept.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Flags for EventSource.QueueSequence (DRM_CRTC_SEQUENCE_*).
const (
	SequenceRelative   uint32 = 1 << 0
	SequenceNextOnMiss uint32 = 1 << 1
)

// Flags for EventSource.WaitVBlank (_DRM_VBLANK_*). Absolute targeting is
// the zero value. The high-CRTC bits select pipes beyond the first two.
const (
	VBlankRelative     uint32 = 1 << 0
	VBlankEvent        uint32 = 1 << 26
	VBlankNextOnMiss   uint32 = 1 << 28
	VBlankSecondary    uint32 = 1 << 29
	VBlankHighCrtcMask uint32 = 0x0000003e
)

// VBlankHighCrtcShift positions a pipe index inside the wait-vblank type
// field for pipes >= 2.
const VBlankHighCrtcShift = 1

// Flags for EventSource.PageFlip (DRM_MODE_PAGE_FLIP_*).
const (
	PageFlipEvent uint32 = 1 << 0
	PageFlipAsync uint32 = 1 << 1
)

// Flags for EventSource.AtomicCommit (DRM_MODE_ATOMIC_*).
const (
	AtomicTestOnly     uint32 = 0x0100
	AtomicNonBlock     uint32 = 0x0200
	AtomicAllowModeset uint32 = 0x0400
)
