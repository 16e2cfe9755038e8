// File: driver/driver.go
// Package driver assembles the event coordination core for one display
// device instance: registry, scheduler, dispatcher, flip orchestrator and
// VRR state behind a single facade.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package driver

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/momentics/drmseq/api"
	"github.com/momentics/drmseq/control"
	"github.com/momentics/drmseq/device"
	"github.com/momentics/drmseq/pageflip"
	drmq "github.com/momentics/drmseq/queue"
	"github.com/momentics/drmseq/vblank"
)

// Driver is one display-driver instance. All registry and dispatch work is
// driven from the host's control thread; submissions return immediately and
// outcomes arrive through Flush, invoked from the fd readiness callback.
type Driver struct {
	dev      *device.Device
	queue    *drmq.Queue
	counters *vblank.Counters
	sched    *vblank.Scheduler
	flip     *pageflip.Orchestrator
	vrr      *pageflip.VRRState
	log      zerolog.Logger
	metrics  *control.MetricsRegistry
	probes   *control.DebugProbes

	mu        sync.Mutex
	closed    bool
	wakeupOn  bool
	wakeupGen uint64
	reactor   api.Reactor
}

// Open constructs a driver instance over source. The instance owns the
// source until Close.
func Open(source api.EventSource, opts ...Option) (*Driver, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	d := &Driver{
		log:      cfg.log,
		counters: vblank.NewCounters(),
		metrics:  control.NewMetricsRegistry(),
		probes:   control.NewDebugProbes(),
		vrr:      pageflip.NewVRRState(cfg.vrrCapable),
	}
	d.queue = drmq.New(d.counters, cfg.log)
	d.dev = device.New(source, d.queue, cfg.log)
	d.sched = vblank.NewScheduler(source, d.counters, cfg.log)
	d.flip = pageflip.NewOrchestrator(source, d.queue, cfg.bridge, d.dev, cfg.atomicModeset, cfg.log)

	d.probes.RegisterProbe("queue.depth", func() any { return d.queue.Len() })
	d.probes.RegisterProbe("vrr.enabled", func() any { return d.vrr.Enabled() })
	return d, nil
}

// QueueVBlank registers a tracked request and submits a vblank notification
// for it. Returns the sequence id for targeted aborts and the CRTC counter
// actually queued, so callers can detect a re-targeted miss. On error no
// request remains registered and neither callback will fire.
func (d *Driver) QueueVBlank(out api.Output, flag api.QueueFlag, target uint64, data any, handler api.HandlerProc, abort api.AbortProc) (uint32, uint64, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, 0, api.ErrDeviceClosed
	}
	d.mu.Unlock()

	seq := d.queue.Alloc(out, data, handler, abort)
	queued, err := d.sched.QueueVBlank(out, flag, target, seq)
	if err != nil {
		d.queue.Discard(seq)
		return 0, 0, err
	}
	return seq, queued, nil
}

// DoPageFlip submits a buffer swap across outputs; see
// pageflip.Orchestrator.DoPageFlip for the contract.
func (d *Driver) DoPageFlip(outputs []api.Output, newFront api.Buffer, event any, refPipe int, async bool, handler api.FlipHandler, abort api.FlipAbort) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return api.ErrDeviceClosed
	}
	d.mu.Unlock()

	err := d.flip.DoPageFlip(outputs, newFront, event, refPipe, async, handler, abort)
	if err == nil {
		d.metrics.Inc(control.MetricFlips, 1)
	}
	return err
}

// FlipState reports the flip state machine position for out.
func (d *Driver) FlipState(out api.Output) pageflip.FlipState {
	return d.flip.State(out)
}

// Flush drains and dispatches all currently available device events. Used
// by consumers needing up-to-date state before acting, and by the wakeup
// callback.
func (d *Driver) Flush() (int, error) {
	n, err := d.dev.Flush()
	if err != nil {
		return n, err
	}
	completed, aborted, strays := d.queue.Stats()
	d.metrics.Inc(control.MetricFlushes, 1)
	d.metrics.Set(control.MetricCompletions, completed)
	d.metrics.Set(control.MetricAborts, aborted)
	d.metrics.Set(control.MetricStrays, strays)
	return n, nil
}

// CurrentUstMsc reports out's current frame counter and timestamp.
func (d *Driver) CurrentUstMsc(out api.Output) (uint64, uint64, error) {
	return d.sched.CurrentUstMsc(out)
}

// AbortSeq aborts one outstanding request; idempotent.
func (d *Driver) AbortSeq(seq uint32) {
	d.queue.AbortSeq(seq)
}

// Abort runs a predicate abort sweep over outstanding requests.
func (d *Driver) Abort(match api.MatchProc) {
	d.queue.Abort(match)
}

// AbortOutput aborts every request bound to out and forgets its counter
// baseline. Called from the output teardown path.
func (d *Driver) AbortOutput(out api.Output) {
	d.queue.AbortOutput(out)
	d.counters.Forget(out)
}

// Outstanding reports the registry depth.
func (d *Driver) Outstanding() int {
	return d.queue.Len()
}

// RegisterWakeup hooks the device fd into r for generation gen. Readiness
// triggers Flush. A second registration within the same generation fails
// with ErrAlreadyRegistered; a new generation supersedes the old hook.
func (d *Driver) RegisterWakeup(gen uint64, r api.Reactor) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return api.ErrDeviceClosed
	}
	if d.wakeupOn {
		if d.wakeupGen == gen {
			return api.ErrAlreadyRegistered
		}
		if err := d.reactor.RemoveFD(d.dev.FD()); err != nil {
			return err
		}
		d.wakeupOn = false
	}
	if err := r.AddFD(d.dev.FD(), func() { _, _ = d.Flush() }); err != nil {
		return err
	}
	d.reactor = r
	d.wakeupOn = true
	d.wakeupGen = gen
	return nil
}

// DeregisterWakeup unhooks the device fd; idempotent.
func (d *Driver) DeregisterWakeup() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.wakeupOn {
		return nil
	}
	d.wakeupOn = false
	return d.reactor.RemoveFD(d.dev.FD())
}

// SetMaster acquires the display session.
func (d *Driver) SetMaster() error { return d.dev.SetMaster() }

// DropMaster releases the display session.
func (d *Driver) DropMaster() error { return d.dev.DropMaster() }

// WindowHasVariableRefresh reports whether win currently drives VRR.
func (d *Driver) WindowHasVariableRefresh(win any) bool {
	return d.vrr.WindowHasVariableRefresh(win)
}

// SetScreenVRR transitions VRR enablement; negotiated capability is fixed.
func (d *Driver) SetScreenVRR(enabled bool) {
	d.vrr.SetEnabled(enabled)
}

// SetFlipWindow records the presentation target window; the Present
// collaborator calls this as flips retarget.
func (d *Driver) SetFlipWindow(win any) {
	d.vrr.SetFlipWindow(win)
}

// VRRCapable reports negotiated capability.
func (d *Driver) VRRCapable() bool { return d.vrr.Capable() }

// Stats snapshots the metrics registry.
func (d *Driver) Stats() map[string]uint64 {
	completed, aborted, strays := d.queue.Stats()
	d.metrics.Set(control.MetricCompletions, completed)
	d.metrics.Set(control.MetricAborts, aborted)
	d.metrics.Set(control.MetricStrays, strays)
	return d.metrics.GetSnapshot()
}

// DumpState runs all registered debug probes.
func (d *Driver) DumpState() map[string]any {
	return d.probes.DumpState()
}

// Close tears the instance down: wakeup deregistered, every outstanding
// request aborted, master dropped, device released. Subsequent submissions
// fail with ErrDeviceClosed. No request survives the instance.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	_ = d.DeregisterWakeup()
	d.queue.Abort(func(any) bool { return true })
	_ = d.dev.DropMaster()
	d.log.Info().Msg("driver instance closed")
	return d.dev.Close()
}
