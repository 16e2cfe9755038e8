// File: device/device.go
// Package device owns the display device session: master state, the decoded
// event staging queue, and the flush-pending-events operation.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package device

import (
	"sync"

	equeue "github.com/eapache/queue"
	"github.com/rs/zerolog"

	"github.com/momentics/drmseq/api"
	drmq "github.com/momentics/drmseq/queue"
)

// Device wraps one EventSource for the lifetime of a driver instance.
// Reads are non-blocking; decoded events stage through a FIFO so that a
// handler re-entering Flush never observes an event twice.
type Device struct {
	src api.EventSource
	q   *drmq.Queue
	log zerolog.Logger

	mu      sync.Mutex
	staged  *equeue.Queue
	master  bool
	closed  bool
	flushed uint64
}

// New binds src to the tracked-request registry q.
func New(src api.EventSource, q *drmq.Queue, log zerolog.Logger) *Device {
	return &Device{
		src:    src,
		q:      q,
		log:    log,
		staged: equeue.New(),
	}
}

// FD exposes the device descriptor for readiness registration.
func (d *Device) FD() uintptr {
	return d.src.FD()
}

// Source returns the underlying event source for request submission.
func (d *Device) Source() api.EventSource {
	return d.src
}

// SetMaster acquires the display-master session.
func (d *Device) SetMaster() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return api.ErrDeviceClosed
	}
	if err := d.src.SetMaster(); err != nil {
		return err
	}
	d.master = true
	return nil
}

// DropMaster releases the display-master session.
func (d *Device) DropMaster() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return api.ErrDeviceClosed
	}
	d.master = false
	return d.src.DropMaster()
}

// IsMaster reports whether the session currently owns the display.
func (d *Device) IsMaster() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.master
}

// Flush drains all currently buffered kernel events and dispatches them
// against the registry. It blocks only for the non-blocking reads needed
// to empty the kernel buffer; absence of events is not an error. Returns
// the number of events that resolved a tracked request.
func (d *Device) Flush() (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, api.ErrDeviceClosed
	}
	for {
		evs, err := d.src.ReadEvents()
		if err != nil {
			d.mu.Unlock()
			return 0, err
		}
		if len(evs) == 0 {
			break
		}
		for _, ev := range evs {
			d.staged.Add(ev)
		}
	}
	d.mu.Unlock()

	handled := 0
	for {
		d.mu.Lock()
		if d.staged.Length() == 0 {
			d.flushed += uint64(handled)
			d.mu.Unlock()
			return handled, nil
		}
		ev := d.staged.Remove().(api.Event)
		d.mu.Unlock()

		if d.q.Dispatch(uint32(ev.User), ev.Frame, ev.Usec, ev.Is64()) {
			handled++
		}
	}
}

// Close marks the device closed and releases the event source. Outstanding
// requests are the driver facade's responsibility to sweep first.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.src.Close()
}
