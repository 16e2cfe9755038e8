// File: vblank/vblank.go
// Package vblank schedules frame-counter notifications against the display
// event source, with capability probing and legacy fallback.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package vblank

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/momentics/drmseq/api"
)

// Scheduler submits vblank notification requests for tracked sequences.
// The first submission per instance probes whether the kernel supports the
// 64-bit CRTC sequence interface; the result is cached for the lifetime of
// the instance and an unsupported kernel falls back to the legacy 32-bit
// wait-vblank event style without re-probing.
type Scheduler struct {
	src      api.EventSource
	counters *Counters
	log      zerolog.Logger

	mu       sync.Mutex
	tried    bool
	hasQueue bool
}

// NewScheduler creates a scheduler over src using cs for counter mapping.
func NewScheduler(src api.EventSource, cs *Counters, log zerolog.Logger) *Scheduler {
	return &Scheduler{src: src, counters: cs, log: log}
}

// SupportsQueueSequence probes the CRTC sequence capability on first call
// and returns the cached result afterwards.
func (s *Scheduler) SupportsQueueSequence(out api.Output) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.tried {
		s.tried = true
		_, _, _, err := s.src.GetSequence(out.CRTCID())
		s.hasQueue = err == nil
		s.log.Debug().Bool("queue_sequence", s.hasQueue).Msg("probed crtc sequence capability")
	}
	return s.hasQueue
}

// QueueVBlank asks for a notification when out's frame counter reaches the
// target resolved from flag. It returns the CRTC-domain counter actually
// queued, which differs from the requested target when QueueNextOnMiss
// re-targeted a stale request. On error nothing was submitted; the caller
// owns unwinding the tracked sequence.
func (s *Scheduler) QueueVBlank(out api.Output, flag api.QueueFlag, target uint64, seq uint32) (uint64, error) {
	if !out.Active() {
		return 0, api.ErrOutputInactive
	}
	if s.SupportsQueueSequence(out) {
		return s.queueSequence(out, flag, target, seq)
	}
	return s.queueLegacy(out, flag, target, seq)
}

func (s *Scheduler) queueSequence(out api.Output, flag api.QueueFlag, target uint64, seq uint32) (uint64, error) {
	cur, _, _, err := s.src.GetSequence(out.CRTCID())
	if err != nil {
		return 0, fmt.Errorf("get sequence: %w", err)
	}
	msc := resolveTarget(flag, target, cur)
	var kflags uint32
	if flag&api.QueueNextOnMiss != 0 {
		// The counter can advance between the read above and the submission;
		// the kernel flag covers that window, the local bump keeps the
		// returned counter current for targets already known stale.
		kflags |= api.SequenceNextOnMiss
		if msc <= cur {
			msc = cur + 1
		}
	}
	queued, err := s.src.QueueSequence(out.CRTCID(), kflags, msc, uint64(seq))
	if err != nil {
		return 0, fmt.Errorf("queue sequence: %w", err)
	}
	return queued, nil
}

func (s *Scheduler) queueLegacy(out api.Output, flag api.QueueFlag, target uint64, seq uint32) (uint64, error) {
	fc := s.counters.ForOutput(out)
	curRaw, _, err := s.src.WaitVBlank(out.Pipe(), pipeFlags(out.Pipe(), api.VBlankRelative), 0, 0)
	if err != nil {
		return 0, fmt.Errorf("query vblank counter: %w", err)
	}
	cur := fc.KernelToCRTC(uint64(curRaw), false)
	msc := resolveTarget(flag, target, cur)

	flags := pipeFlags(out.Pipe(), api.VBlankEvent)
	if flag&api.QueueNextOnMiss != 0 {
		flags |= api.VBlankNextOnMiss
	}
	replySeq, _, err := s.src.WaitVBlank(out.Pipe(), flags, fc.CRTCToKernel32(msc), uint64(seq))
	if err != nil {
		return 0, fmt.Errorf("queue vblank event: %w", err)
	}
	return fc.KernelToCRTC(uint64(replySeq), false), nil
}

// CurrentUstMsc reports out's current frame counter and its timestamp in
// microseconds. An inactive pipe reports zeros without error, matching the
// behavior consumers expect from a dark output.
func (s *Scheduler) CurrentUstMsc(out api.Output) (ust uint64, msc uint64, err error) {
	if !out.Active() {
		return 0, 0, nil
	}
	if s.SupportsQueueSequence(out) {
		seq, ns, _, err := s.src.GetSequence(out.CRTCID())
		if err != nil {
			return 0, 0, fmt.Errorf("get sequence: %w", err)
		}
		return uint64(ns) / 1000, seq, nil
	}
	fc := s.counters.ForOutput(out)
	raw, usec, err := s.src.WaitVBlank(out.Pipe(), pipeFlags(out.Pipe(), api.VBlankRelative), 0, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("query vblank counter: %w", err)
	}
	return usec, fc.KernelToCRTC(uint64(raw), false), nil
}

// resolveTarget turns a flagged target into an absolute CRTC counter.
func resolveTarget(flag api.QueueFlag, target, cur uint64) uint64 {
	if flag&api.QueueRelative != 0 {
		return cur + target
	}
	return target
}

// pipeFlags folds the pipe index into the wait-vblank type bits.
func pipeFlags(pipe int, flags uint32) uint32 {
	if pipe > 1 {
		flags |= (uint32(pipe) << api.VBlankHighCrtcShift) & api.VBlankHighCrtcMask
	} else if pipe == 1 {
		flags |= api.VBlankSecondary
	}
	return flags
}
