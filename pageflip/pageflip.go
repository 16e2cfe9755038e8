// File: pageflip/pageflip.go
// Package pageflip orchestrates buffer swaps across display pipes and
// reports the true presentation timestamp from the reference pipe.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pageflip

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/momentics/drmseq/api"
	drmq "github.com/momentics/drmseq/queue"
)

// FlipState is the per-output flip lifecycle.
type FlipState int

const (
	FlipIdle FlipState = iota
	FlipRequested
)

// Session answers whether the device currently owns the display.
type Session interface {
	IsMaster() bool
}

// Orchestrator submits page flips through the tracked-request machinery.
// One DoPageFlip call fans out to every active target output; all per-CRTC
// requests share one refcounted flip record, and exactly one of the
// caller's handler or abort callbacks fires once the last reference drops.
type Orchestrator struct {
	src     api.EventSource
	q       *drmq.Queue
	bridge  api.RenderBridge
	session Session
	log     zerolog.Logger

	mu     sync.Mutex
	atomic bool
	states map[api.Output]FlipState
}

// NewOrchestrator wires the flip path. atomicModeset enables the atomic
// commit submission style; the orchestrator drops back to legacy per-CRTC
// flips if the source reports atomic unsupported.
func NewOrchestrator(src api.EventSource, q *drmq.Queue, bridge api.RenderBridge, session Session, atomicModeset bool, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		src:     src,
		q:       q,
		bridge:  bridge,
		session: session,
		log:     log,
		atomic:  atomicModeset,
		states:  make(map[api.Output]FlipState),
	}
}

// flipData is the shared record for one accepted DoPageFlip call.
type flipData struct {
	event    any
	handler  api.FlipHandler
	abortFn  api.FlipAbort
	refs     int
	frame    uint64
	usec     uint64
	refSeen  bool
	canceled bool
}

// crtcFlip is the per-output payload registered in the queue.
type crtcFlip struct {
	fd     *flipData
	output api.Output
	onRef  bool
}

// State reports the flip state for out.
func (o *Orchestrator) State(out api.Output) FlipState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.states[out]
}

// DoPageFlip swaps newFront onto every active output in outputs, taking the
// completion timestamp from the output whose pipe index equals refPipe.
// async requests immediate replacement without waiting for a vblank
// boundary. Synchronous failure leaves no tracked request and no state
// change; on success exactly one of handler or abort fires later.
func (o *Orchestrator) DoPageFlip(outputs []api.Output, newFront api.Buffer, event any, refPipe int, async bool, handler api.FlipHandler, abortFn api.FlipAbort) error {
	if !o.session.IsMaster() {
		return api.ErrNotMaster
	}
	if !o.bridge.Supported() {
		return api.ErrNotSupported
	}

	var targets []api.Output
	for _, out := range outputs {
		if out.Active() {
			targets = append(targets, out)
		}
	}
	if len(targets) == 0 {
		return api.ErrOutputInactive
	}

	o.mu.Lock()
	for _, out := range targets {
		if o.states[out] == FlipRequested {
			o.mu.Unlock()
			return api.ErrFlipPending
		}
	}
	o.mu.Unlock()

	fb, err := o.bridge.ImportFramebuffer(newFront)
	if err != nil {
		return api.NewError(api.ErrCodeBufferIncompatible, "framebuffer import rejected").
			Wrap(api.ErrBufferIncompatible).
			WithContext("reason", err.Error())
	}

	// The call itself holds one reference until submission settles, so an
	// inline abort of a rejected CRTC can never deliver the caller outcome
	// while DoPageFlip is still deciding whether to fail synchronously.
	fd := &flipData{event: event, handler: handler, abortFn: abortFn, refs: 1}
	refFailed := false
	submitted := 0

	// The timestamp reference falls back to the first target when refPipe
	// names no active pipe, so some completion always carries it.
	refIdx := 0
	for i, out := range targets {
		if out.Pipe() == refPipe {
			refIdx = i
			break
		}
	}

	for i, out := range targets {
		onRef := i == refIdx
		cf := &crtcFlip{fd: fd, output: out, onRef: onRef}
		seq := o.q.Alloc(out, cf, o.onFlipDone, o.onFlipAbort)

		o.mu.Lock()
		fd.refs++
		o.states[out] = FlipRequested
		o.mu.Unlock()

		if err := o.submit(out, fb, async, seq); err != nil {
			o.log.Debug().Str("output", out.Name()).Err(err).Msg("flip submission rejected")
			o.q.AbortSeq(seq)
			if cf.onRef {
				refFailed = true
			}
			continue
		}
		submitted++
	}

	if submitted == 0 || refFailed {
		// The reference pipe never took the flip: the call fails. Flips
		// already in flight stay tracked, but their shared record is
		// canceled so no caller callback fires for this request.
		o.mu.Lock()
		fd.canceled = true
		o.mu.Unlock()
		o.unref(fd)
		return api.NewError(api.ErrCodeInternal, "page flip rejected on reference pipe").
			WithContext("ref_pipe", refPipe)
	}
	o.unref(fd)
	return nil
}

// submit issues one CRTC's flip, atomically when enabled and synchronized.
func (o *Orchestrator) submit(out api.Output, fb uint32, async bool, seq uint32) error {
	o.mu.Lock()
	useAtomic := o.atomic && !async
	o.mu.Unlock()

	if useAtomic {
		err := o.src.AtomicCommit([]uint32{out.CRTCID()}, fb, api.AtomicNonBlock|api.PageFlipEvent, uint64(seq))
		if err == nil {
			return nil
		}
		if !errors.Is(err, api.ErrNotSupported) {
			return err
		}
		o.mu.Lock()
		o.atomic = false
		o.mu.Unlock()
		o.log.Debug().Msg("atomic commit unsupported, using legacy flips")
	}

	flags := api.PageFlipEvent
	if async {
		flags |= api.PageFlipAsync
	}
	return o.src.PageFlip(out.CRTCID(), fb, flags, uint64(seq))
}

// onFlipDone is the queue completion handler for one CRTC's flip.
func (o *Orchestrator) onFlipDone(frame uint64, usec uint64, data any) {
	cf := data.(*crtcFlip)
	o.mu.Lock()
	o.states[cf.output] = FlipIdle
	if cf.onRef {
		cf.fd.refSeen = true
		cf.fd.frame = frame
		cf.fd.usec = usec
	}
	o.mu.Unlock()
	o.unref(cf.fd)
}

// onFlipAbort is the queue abort handler for one CRTC's flip.
func (o *Orchestrator) onFlipAbort(data any) {
	cf := data.(*crtcFlip)
	o.mu.Lock()
	o.states[cf.output] = FlipIdle
	o.mu.Unlock()
	o.unref(cf.fd)
}

// unref drops one reference; the last reference delivers the caller's
// outcome unless the request was canceled at submission time.
func (o *Orchestrator) unref(fd *flipData) {
	o.mu.Lock()
	fd.refs--
	done := fd.refs == 0
	canceled := fd.canceled
	refSeen := fd.refSeen
	frame, usec := fd.frame, fd.usec
	o.mu.Unlock()

	if !done || canceled {
		return
	}
	if refSeen {
		if fd.handler != nil {
			fd.handler(frame, usec, fd.event)
		}
		return
	}
	if fd.abortFn != nil {
		fd.abortFn(fd.event)
	}
}
