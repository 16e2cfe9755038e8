// Package fake
// Author: momentics <momentics@gmail.com>
//
// Scripted event source for testing: controllable per-CRTC frame counters,
// pending-request maturation and failure injection.

package fake

import (
	"sync"

	equeue "github.com/eapache/queue"

	"github.com/momentics/drmseq/api"
)

// pendingReq is one queued notification waiting for its counter to mature.
type pendingReq struct {
	crtc   uint32
	target uint64
	user   uint64
	legacy bool
}

// Source is a scripted api.EventSource. Tests drive it by advancing per-CRTC
// counters and completing flips; matured notifications buffer until
// ReadEvents drains them, mimicking the kernel's event fd.
type Source struct {
	mu sync.Mutex

	// QueueSequenceOK controls the CRTC sequence capability probe.
	QueueSequenceOK bool

	counters map[uint32]uint64 // per-CRTC hardware frame counter
	pipes    map[int]uint32    // legacy pipe index to CRTC binding
	usec     uint64            // synthetic clock, microseconds
	pending  []pendingReq
	seqFlags []uint32 // flags of each accepted sequence submission
	delivery *equeue.Queue // matured api.Event values
	flips    []FlipRecord
	master   bool
	closed   bool

	// FailPageFlip, when non-nil, rejects PageFlip for the listed CRTCs.
	FailPageFlip map[uint32]error
	// FailQueue, when non-nil, rejects every queue submission.
	FailQueue error
	// AtomicOK enables the atomic commit path.
	AtomicOK bool
}

// FlipRecord captures one accepted flip submission.
type FlipRecord struct {
	CRTC   uint32
	FB     uint32
	Flags  uint32
	User   uint64
	Atomic bool
}

// NewSource creates a source with the sequence capability enabled.
func NewSource() *Source {
	return &Source{
		QueueSequenceOK: true,
		counters:        make(map[uint32]uint64),
		pipes:           make(map[int]uint32),
		delivery:        equeue.New(),
		usec:            1000,
	}
}

// BindPipe maps a legacy vblank pipe index onto a CRTC so both interfaces
// observe the same hardware counter. Unbound pipes alias CRTC ids directly.
func (s *Source) BindPipe(pipe int, crtc uint32) {
	s.mu.Lock()
	s.pipes[pipe] = crtc
	s.mu.Unlock()
}

// SetCounter pins the hardware counter for crtc without delivering events.
func (s *Source) SetCounter(crtc uint32, value uint64) {
	s.mu.Lock()
	s.counters[crtc] = value
	s.mu.Unlock()
}

// Advance moves crtc's counter to value and matures every pending request
// whose target has been reached, buffering their events for ReadEvents.
func (s *Source) Advance(crtc uint32, value uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[crtc] = value
	s.usec += 16000
	rest := s.pending[:0]
	for _, p := range s.pending {
		if p.crtc == crtc && p.target <= value {
			ev := api.Event{User: p.user, Usec: s.usec}
			if p.legacy {
				ev.Kind = api.EventVBlank
				ev.Frame = uint64(uint32(p.target))
			} else {
				ev.Kind = api.EventSequence
				ev.Frame = p.target
			}
			s.delivery.Add(ev)
		} else {
			rest = append(rest, p)
		}
	}
	s.pending = rest
}

// CompleteFlip delivers a flip-complete event for the oldest recorded flip
// on crtc at the current counter.
func (s *Source) CompleteFlip(crtc uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.flips {
		if f.CRTC == crtc {
			s.usec += 16000
			s.delivery.Add(api.Event{
				Kind:  api.EventFlipComplete,
				User:  f.User,
				Frame: uint64(uint32(s.counters[crtc])),
				Usec:  s.usec,
			})
			s.flips = append(s.flips[:i], s.flips[i+1:]...)
			return true
		}
	}
	return false
}

// AbandonFlip drops the oldest recorded flip on crtc without an event,
// simulating a kernel that never reports it.
func (s *Source) AbandonFlip(crtc uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.flips {
		if f.CRTC == crtc {
			s.flips = append(s.flips[:i], s.flips[i+1:]...)
			return true
		}
	}
	return false
}

// Post injects a raw event, for stray and duplicate delivery scenarios.
func (s *Source) Post(ev api.Event) {
	s.mu.Lock()
	s.delivery.Add(ev)
	s.mu.Unlock()
}

// Flips returns the currently outstanding flip submissions.
func (s *Source) Flips() []FlipRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FlipRecord, len(s.flips))
	copy(out, s.flips)
	return out
}

// PendingRequests reports queued notifications not yet matured.
func (s *Source) PendingRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// PendingLegacy reports how many pending notifications came through the
// legacy wait-vblank interface, for fallback-path assertions.
func (s *Source) PendingLegacy() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.pending {
		if p.legacy {
			n++
		}
	}
	return n
}

// QueueSequence implements api.EventSource. The kernel-side next-on-miss
// re-targeting is modeled when the flag is set.
func (s *Source) QueueSequence(crtc uint32, flags uint32, sequence uint64, user uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.QueueSequenceOK {
		return 0, api.ErrNotSupported
	}
	if s.FailQueue != nil {
		return 0, s.FailQueue
	}
	s.seqFlags = append(s.seqFlags, flags)
	if flags&api.SequenceNextOnMiss != 0 && sequence <= s.counters[crtc] {
		sequence = s.counters[crtc] + 1
	}
	s.pending = append(s.pending, pendingReq{crtc: crtc, target: sequence, user: user})
	return sequence, nil
}

// SequenceFlags returns the flags carried by each accepted sequence
// submission, oldest first.
func (s *Source) SequenceFlags() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint32, len(s.seqFlags))
	copy(out, s.seqFlags)
	return out
}

// GetSequence implements api.EventSource.
func (s *Source) GetSequence(crtc uint32) (uint64, int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.QueueSequenceOK {
		return 0, 0, false, api.ErrNotSupported
	}
	return s.counters[crtc], int64(s.usec) * 1000, true, nil
}

// WaitVBlank implements api.EventSource. Without the event flag it is a
// counter query; with it, it queues a legacy notification. The kernel-side
// next-on-miss adjustment is modeled here.
func (s *Source) WaitVBlank(pipe int, flags uint32, target uint32, user uint64) (uint32, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	crtc, bound := s.pipes[pipe]
	if !bound {
		crtc = uint32(pipe)
	}
	cur := s.counters[crtc]
	if flags&api.VBlankEvent == 0 {
		return uint32(cur), s.usec, nil
	}
	if s.FailQueue != nil {
		return 0, 0, s.FailQueue
	}
	t := uint64(target)
	if flags&api.VBlankNextOnMiss != 0 && t <= cur {
		t = cur + 1
	}
	s.pending = append(s.pending, pendingReq{crtc: crtc, target: t, user: user, legacy: true})
	return uint32(t), s.usec, nil
}

// PageFlip implements api.EventSource.
func (s *Source) PageFlip(crtc uint32, fb uint32, flags uint32, user uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailPageFlip[crtc]; err != nil {
		return err
	}
	s.flips = append(s.flips, FlipRecord{CRTC: crtc, FB: fb, Flags: flags, User: user})
	return nil
}

// AtomicCommit implements api.EventSource.
func (s *Source) AtomicCommit(crtcs []uint32, fb uint32, flags uint32, user uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.AtomicOK {
		return api.ErrNotSupported
	}
	for _, crtc := range crtcs {
		if err := s.FailPageFlip[crtc]; err != nil {
			return err
		}
	}
	for _, crtc := range crtcs {
		s.flips = append(s.flips, FlipRecord{CRTC: crtc, FB: fb, Flags: flags, User: user, Atomic: true})
	}
	return nil
}

// ReadEvents implements api.EventSource: drains the delivery buffer.
func (s *Source) ReadEvents() ([]api.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delivery.Length() == 0 {
		return nil, nil
	}
	out := make([]api.Event, 0, s.delivery.Length())
	for s.delivery.Length() > 0 {
		out = append(out, s.delivery.Remove().(api.Event))
	}
	return out, nil
}

// FD implements api.EventSource.
func (s *Source) FD() uintptr { return 42 }

// SetMaster implements api.EventSource.
func (s *Source) SetMaster() error {
	s.mu.Lock()
	s.master = true
	s.mu.Unlock()
	return nil
}

// DropMaster implements api.EventSource.
func (s *Source) DropMaster() error {
	s.mu.Lock()
	s.master = false
	s.mu.Unlock()
	return nil
}

// Close implements api.EventSource.
func (s *Source) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
