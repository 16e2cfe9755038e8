package vblank_test

import (
	"testing"

	"github.com/momentics/drmseq/fake"
	"github.com/momentics/drmseq/vblank"
)

func TestKernelToCRTCPassesThrough64Bit(t *testing.T) {
	var fc vblank.FrameCounter
	if got := fc.KernelToCRTC(1<<40+7, true); got != 1<<40+7 {
		t.Errorf("64-bit mapping = %d, want %d", got, uint64(1<<40+7))
	}
}

func TestKernelToCRTCWrapsAt32Bits(t *testing.T) {
	var fc vblank.FrameCounter

	if got := fc.KernelToCRTC(0xfffffffe, false); got != 0xfffffffe {
		t.Fatalf("pre-wrap = %#x, want 0xfffffffe", got)
	}
	// Counter wraps back to a small value: one epoch added.
	if got := fc.KernelToCRTC(1, false); got != 1<<32+1 {
		t.Errorf("post-wrap = %#x, want %#x", got, uint64(1<<32+1))
	}
	// Monotonic continuation inside the new epoch.
	if got := fc.KernelToCRTC(2, false); got != 1<<32+2 {
		t.Errorf("continuation = %#x, want %#x", got, uint64(1<<32+2))
	}
}

func TestKernelToCRTCToleratesSmallRegression(t *testing.T) {
	var fc vblank.FrameCounter

	fc.KernelToCRTC(1000, false)
	// A slightly older event is reordering, not a wrap.
	if got := fc.KernelToCRTC(998, false); got != 998 {
		t.Errorf("reordered event mapped to %#x, want 998", got)
	}
	if got := fc.KernelToCRTC(1001, false); got != 1001 {
		t.Errorf("forward event mapped to %#x, want 1001", got)
	}
}

func TestCRTCToKernel32Roundtrip(t *testing.T) {
	var fc vblank.FrameCounter
	fc.KernelToCRTC(0xfffffff0, false)
	fc.KernelToCRTC(5, false) // wrap: epoch 1

	msc := uint64(1<<32 + 100)
	if got := fc.CRTCToKernel32(msc); got != 100 {
		t.Errorf("CRTCToKernel32(%#x) = %d, want 100", msc, got)
	}
}

func TestCountersPerOutputIsolation(t *testing.T) {
	cs := vblank.NewCounters()
	outA := fake.NewOutput(0, 10, "a")
	outB := fake.NewOutput(1, 11, "b")

	cs.KernelToCRTC(outA, 0xffffffff, false)
	cs.KernelToCRTC(outA, 1, false) // outA wrapped

	if got := cs.KernelToCRTC(outB, 1, false); got != 1 {
		t.Errorf("outB inherited outA's epoch: %#x", got)
	}
	if got := cs.KernelToCRTC(outA, 2, false); got != 1<<32+2 {
		t.Errorf("outA epoch lost: %#x", got)
	}

	cs.Forget(outA)
	if got := cs.KernelToCRTC(outA, 3, false); got != 3 {
		t.Errorf("Forget did not reset outA state: %#x", got)
	}
}
