// File: vblank/counter.go
// Package vblank reconciles kernel frame counters with the per-output
// software counter baseline.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package vblank

import (
	"sync"

	"github.com/momentics/drmseq/api"
)

// FrameCounter maps 32-bit kernel vblank counters onto a monotonically
// increasing 64-bit CRTC counter. The legacy wait-vblank interface hands
// back 32-bit values which wrap; each wrap adds one epoch.
type FrameCounter struct {
	high uint64 // accumulated wrap epochs, multiples of 2^32
	prev uint32 // last 32-bit kernel counter seen
}

// KernelToCRTC converts a kernel counter into the CRTC domain. 64-bit
// sequence counters pass through unchanged. For 32-bit counters a large
// backwards step is a wraparound; small regressions are event reordering
// and keep the current epoch.
func (c *FrameCounter) KernelToCRTC(kernel uint64, is64 bool) uint64 {
	if is64 {
		return kernel
	}
	seq := uint32(kernel)
	if seq < c.prev && c.prev-seq > 1<<31 {
		c.high += 1 << 32
	}
	if seq > c.prev || c.prev-seq > 1<<31 {
		c.prev = seq
	}
	return c.high + uint64(seq)
}

// CRTCToKernel32 converts a CRTC-domain counter into the 32-bit kernel
// domain for legacy wait-vblank targets.
func (c *FrameCounter) CRTCToKernel32(msc uint64) uint32 {
	return uint32(msc - c.high)
}

// Counters owns the per-output frame counter state for one driver
// instance and implements the queue package's FrameMapper.
type Counters struct {
	mu  sync.Mutex
	per map[api.Output]*FrameCounter
}

// NewCounters creates an empty per-output counter registry.
func NewCounters() *Counters {
	return &Counters{per: make(map[api.Output]*FrameCounter)}
}

// ForOutput returns the counter state for out, creating it on first use.
func (cs *Counters) ForOutput(out api.Output) *FrameCounter {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	fc, ok := cs.per[out]
	if !ok {
		fc = &FrameCounter{}
		cs.per[out] = fc
	}
	return fc
}

// KernelToCRTC implements queue.FrameMapper.
func (cs *Counters) KernelToCRTC(out api.Output, kernel uint64, is64 bool) uint64 {
	cs.mu.Lock()
	fc, ok := cs.per[out]
	if !ok {
		fc = &FrameCounter{}
		cs.per[out] = fc
	}
	cs.mu.Unlock()
	return fc.KernelToCRTC(kernel, is64)
}

// Forget drops the state for out, used when an output is torn down.
func (cs *Counters) Forget(out api.Output) {
	cs.mu.Lock()
	delete(cs.per, out)
	cs.mu.Unlock()
}
