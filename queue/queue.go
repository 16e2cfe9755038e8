// File: queue/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pending-request registry and sequence allocator. Every queued vblank or
// page-flip request is resolved exactly once, by completion or by abort.

package queue

import (
	"container/list"
	"sync"

	"github.com/rs/zerolog"

	"github.com/momentics/drmseq/api"
)

// FrameMapper converts a kernel-domain frame counter into the CRTC-domain
// counter for the output a request was bound to. The vblank package provides
// the implementation; tests may substitute an identity mapper.
type FrameMapper interface {
	KernelToCRTC(out api.Output, kernel uint64, is64 bool) uint64
}

// IdentityMapper passes kernel counters through unchanged.
type IdentityMapper struct{}

// KernelToCRTC returns kernel as-is.
func (IdentityMapper) KernelToCRTC(_ api.Output, kernel uint64, _ bool) uint64 {
	return kernel
}

// entry is one tracked request awaiting a kernel completion or an abort.
type entry struct {
	seq     uint32
	output  api.Output
	data    any
	handler api.HandlerProc
	abort   api.AbortProc
}

// outcome is the single delivery result for an entry. Exactly one outcome
// reaches each entry, always after the entry has left the registry.
type outcome struct {
	completed bool
	frame     uint64
	usec      uint64
}

func (e *entry) deliver(o outcome) {
	if o.completed {
		if e.handler != nil {
			e.handler(o.frame, o.usec, e.data)
		}
		return
	}
	if e.abort != nil {
		e.abort(e.data)
	}
}

// Queue is the per-driver-instance request registry. Entries keep insertion
// order so predicate sweeps visit them deterministically. The registry is
// unbounded; outstanding requests are inherently self-limiting.
type Queue struct {
	mu      sync.Mutex
	next    uint64 // widened counter; low 32 bits become sequence ids
	order   *list.List
	bySeq   map[uint32]*list.Element
	mapper  FrameMapper
	log     zerolog.Logger
	strays  uint64
	aborted uint64
	done    uint64
}

// New creates an empty registry dispatching CRTC-domain counters through m.
func New(m FrameMapper, log zerolog.Logger) *Queue {
	if m == nil {
		m = IdentityMapper{}
	}
	return &Queue{
		order:  list.New(),
		bySeq:  make(map[uint32]*list.Element),
		mapper: m,
		log:    log,
	}
}

// Alloc registers a new tracked request bound to out and returns its
// sequence id. The id is non-zero and distinct from every id still
// outstanding, across 32-bit wraparound.
func (q *Queue) Alloc(out api.Output, data any, handler api.HandlerProc, abort api.AbortProc) uint32 {
	q.mu.Lock()
	defer q.mu.Unlock()

	var seq uint32
	for {
		q.next++
		seq = uint32(q.next)
		if seq == 0 {
			continue
		}
		if _, live := q.bySeq[seq]; !live {
			break
		}
		// Wrapped onto a still-outstanding id; keep scanning.
	}

	e := &entry{seq: seq, output: out, data: data, handler: handler, abort: abort}
	q.bySeq[seq] = q.order.PushBack(e)
	return seq
}

// Dispatch resolves a kernel completion against the registry. The matched
// handler runs with the CRTC-domain frame counter. Unknown sequences are
// strays from the event source's point of view and are discarded silently.
// Reports whether a tracked request was resolved.
func (q *Queue) Dispatch(seq uint32, kernelFrame uint64, usec uint64, is64 bool) bool {
	q.mu.Lock()
	el, ok := q.bySeq[seq]
	if !ok {
		q.strays++
		q.mu.Unlock()
		q.log.Debug().Uint32("seq", seq).Msg("stray completion event discarded")
		return false
	}
	e := q.remove(el)
	q.done++
	q.mu.Unlock()

	frame := q.mapper.KernelToCRTC(e.output, kernelFrame, is64)
	e.deliver(outcome{completed: true, frame: frame, usec: usec})
	return true
}

// AbortSeq aborts one tracked request by sequence id. Aborting an id that
// already completed or was already aborted is a no-op.
func (q *Queue) AbortSeq(seq uint32) {
	q.mu.Lock()
	el, ok := q.bySeq[seq]
	if !ok {
		q.mu.Unlock()
		return
	}
	e := q.remove(el)
	q.aborted++
	q.mu.Unlock()

	e.deliver(outcome{})
}

// Abort sweeps the registry, aborting every entry whose payload matches.
// Matching entries leave the registry before any abort handler runs, so a
// handler may allocate new requests without being revisited by the sweep.
// Handlers run in insertion order.
func (q *Queue) Abort(match api.MatchProc) {
	q.mu.Lock()
	var hit []*entry
	for el := q.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry)
		if match(e.data) {
			hit = append(hit, q.remove(el))
			q.aborted++
		}
		el = next
	}
	q.mu.Unlock()

	for _, e := range hit {
		e.deliver(outcome{})
	}
}

// AbortOutput aborts every entry bound to out, regardless of payload.
func (q *Queue) AbortOutput(out api.Output) {
	q.mu.Lock()
	var hit []*entry
	for el := q.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry)
		if e.output == out {
			hit = append(hit, q.remove(el))
			q.aborted++
		}
		el = next
	}
	q.mu.Unlock()

	for _, e := range hit {
		e.deliver(outcome{})
	}
}

// Discard removes a tracked request without delivering any outcome. Only
// valid while the request was never submitted to the kernel: it unwinds a
// synchronously failed submission so the caller keeps payload ownership.
func (q *Queue) Discard(seq uint32) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	el, ok := q.bySeq[seq]
	if !ok {
		return false
	}
	q.remove(el)
	return true
}

// Len returns the number of outstanding requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.order.Len()
}

// OutstandingForOutput counts outstanding requests bound to out.
func (q *Queue) OutstandingForOutput(out api.Output) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for el := q.order.Front(); el != nil; el = el.Next() {
		if el.Value.(*entry).output == out {
			n++
		}
	}
	return n
}

// Stats reports dispatch counters for the control surface.
func (q *Queue) Stats() (completed, aborted, strays uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.done, q.aborted, q.strays
}

// remove unlinks el and returns its entry. Caller holds q.mu.
func (q *Queue) remove(el *list.Element) *entry {
	e := q.order.Remove(el).(*entry)
	delete(q.bySeq, e.seq)
	return e
}
