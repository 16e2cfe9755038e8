package device_test

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/momentics/drmseq/api"
	"github.com/momentics/drmseq/device"
	"github.com/momentics/drmseq/fake"
	"github.com/momentics/drmseq/queue"
)

func TestFlushDispatchesBufferedEvents(t *testing.T) {
	src := fake.NewSource()
	q := queue.New(queue.IdentityMapper{}, zerolog.Nop())
	dev := device.New(src, q, zerolog.Nop())
	out := fake.NewOutput(0, 10, "a")

	fired := 0
	seq := q.Alloc(out, nil, func(frame, _ uint64, _ any) {
		fired++
		if frame != 42 {
			t.Errorf("frame = %d, want 42", frame)
		}
	}, nil)

	src.Post(api.Event{Kind: api.EventSequence, User: uint64(seq), Frame: 42, Usec: 100})
	n, err := dev.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if n != 1 || fired != 1 {
		t.Errorf("(handled, fired) = (%d, %d), want (1, 1)", n, fired)
	}

	// Nothing buffered: flush is a cheap no-op, not an error.
	n, err = dev.Flush()
	if err != nil || n != 0 {
		t.Errorf("empty Flush = (%d, %v), want (0, nil)", n, err)
	}
}

func TestFlushDiscardsStrays(t *testing.T) {
	src := fake.NewSource()
	q := queue.New(queue.IdentityMapper{}, zerolog.Nop())
	dev := device.New(src, q, zerolog.Nop())

	src.Post(api.Event{Kind: api.EventVBlank, User: 999, Frame: 1, Usec: 1})
	n, err := dev.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if n != 0 {
		t.Errorf("handled = %d, want 0 for a stray", n)
	}
}

func TestFlushAfterClose(t *testing.T) {
	src := fake.NewSource()
	q := queue.New(queue.IdentityMapper{}, zerolog.Nop())
	dev := device.New(src, q, zerolog.Nop())

	if err := dev.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := dev.Flush(); !errors.Is(err, api.ErrDeviceClosed) {
		t.Errorf("Flush after close = %v, want ErrDeviceClosed", err)
	}
	if err := dev.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestMasterTracking(t *testing.T) {
	src := fake.NewSource()
	q := queue.New(queue.IdentityMapper{}, zerolog.Nop())
	dev := device.New(src, q, zerolog.Nop())

	if dev.IsMaster() {
		t.Error("fresh device claims master")
	}
	if err := dev.SetMaster(); err != nil {
		t.Fatalf("SetMaster: %v", err)
	}
	if !dev.IsMaster() {
		t.Error("SetMaster not recorded")
	}
	if err := dev.DropMaster(); err != nil {
		t.Fatalf("DropMaster: %v", err)
	}
	if dev.IsMaster() {
		t.Error("DropMaster not recorded")
	}
}
