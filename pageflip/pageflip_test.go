package pageflip_test

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/momentics/drmseq/api"
	"github.com/momentics/drmseq/fake"
	"github.com/momentics/drmseq/pageflip"
	"github.com/momentics/drmseq/queue"
)

type session struct{ master bool }

func (s *session) IsMaster() bool { return s.master }

type rig struct {
	src    *fake.Source
	q      *queue.Queue
	bridge *fake.Bridge
	sess   *session
	orch   *pageflip.Orchestrator
}

func newRig(atomicModeset bool) *rig {
	r := &rig{
		src:    fake.NewSource(),
		bridge: fake.NewBridge(),
		sess:   &session{master: true},
	}
	r.q = queue.New(queue.IdentityMapper{}, zerolog.Nop())
	r.orch = pageflip.NewOrchestrator(r.src, r.q, r.bridge, r.sess, atomicModeset, zerolog.Nop())
	return r
}

// deliver resolves the oldest submitted flip on crtc as completed.
func (r *rig) deliver(t *testing.T, crtc uint32, frame, usec uint64) {
	t.Helper()
	for _, f := range r.src.Flips() {
		if f.CRTC == crtc {
			r.src.AbandonFlip(crtc)
			if !r.q.Dispatch(uint32(f.User), frame, usec, false) {
				t.Fatalf("flip completion for crtc %d resolved nothing", crtc)
			}
			return
		}
	}
	t.Fatalf("no submitted flip on crtc %d", crtc)
}

func TestFlipCompletesWithReferenceTimestamp(t *testing.T) {
	r := newRig(false)
	ref := fake.NewOutput(0, 10, "ref")
	aux := fake.NewOutput(1, 11, "aux")

	done := 0
	var frame, usec uint64
	err := r.orch.DoPageFlip([]api.Output{ref, aux}, &fake.Buffer{W: 1920, H: 1080}, "ev", 0, false,
		func(f, u uint64, ev any) {
			done++
			frame, usec = f, u
			if ev != "ev" {
				t.Errorf("event payload = %v, want ev", ev)
			}
		},
		func(any) { t.Error("abort fired for a completing flip") })
	if err != nil {
		t.Fatalf("DoPageFlip: %v", err)
	}
	if got := len(r.src.Flips()); got != 2 {
		t.Fatalf("submitted flips = %d, want 2", got)
	}
	if r.orch.State(ref) != pageflip.FlipRequested || r.orch.State(aux) != pageflip.FlipRequested {
		t.Fatal("outputs not in FlipRequested after submission")
	}

	// Non-reference pipe completes first; the caller must not hear yet.
	r.deliver(t, 11, 200, 9999)
	if done != 0 {
		t.Fatal("handler fired before the reference pipe completed")
	}
	r.deliver(t, 10, 150, 5000)
	if done != 1 {
		t.Fatalf("handler fired %d times, want 1", done)
	}
	if frame != 150 || usec != 5000 {
		t.Errorf("timestamp = (%d, %d), want reference pipe's (150, 5000)", frame, usec)
	}
	if r.orch.State(ref) != pageflip.FlipIdle || r.orch.State(aux) != pageflip.FlipIdle {
		t.Error("outputs not back to FlipIdle")
	}
	if r.q.Len() != 0 {
		t.Errorf("registry depth = %d, want 0", r.q.Len())
	}
}

func TestFlipWhilePendingFailsSynchronously(t *testing.T) {
	r := newRig(false)
	out := fake.NewOutput(0, 10, "a")
	outs := []api.Output{out}

	if err := r.orch.DoPageFlip(outs, &fake.Buffer{}, nil, 0, false, nil, nil); err != nil {
		t.Fatalf("first DoPageFlip: %v", err)
	}
	depth := r.q.Len()

	err := r.orch.DoPageFlip(outs, &fake.Buffer{}, nil, 0, false, nil, nil)
	if !errors.Is(err, api.ErrFlipPending) {
		t.Fatalf("err = %v, want ErrFlipPending", err)
	}
	if r.q.Len() != depth {
		t.Errorf("registry depth changed: %d -> %d", depth, r.q.Len())
	}
}

func TestFlipAbortPath(t *testing.T) {
	r := newRig(false)
	out := fake.NewOutput(0, 10, "a")

	aborted := 0
	err := r.orch.DoPageFlip([]api.Output{out}, &fake.Buffer{}, "ev", 0, false,
		func(_, _ uint64, _ any) { t.Error("handler fired for an aborted flip") },
		func(ev any) {
			aborted++
			if ev != "ev" {
				t.Errorf("abort payload = %v, want ev", ev)
			}
		})
	if err != nil {
		t.Fatalf("DoPageFlip: %v", err)
	}

	r.q.AbortOutput(out)
	if aborted != 1 {
		t.Fatalf("abort fired %d times, want 1", aborted)
	}
	if r.orch.State(out) != pageflip.FlipIdle {
		t.Error("output stuck out of FlipIdle after abort")
	}
}

func TestFlipBufferImportFailure(t *testing.T) {
	r := newRig(false)
	r.bridge.FailImport = errors.New("bad modifier")
	out := fake.NewOutput(0, 10, "a")

	err := r.orch.DoPageFlip([]api.Output{out}, &fake.Buffer{}, nil, 0, false, nil, nil)
	if !errors.Is(err, api.ErrBufferIncompatible) {
		t.Fatalf("err = %v, want ErrBufferIncompatible", err)
	}
	var se *api.Error
	if !errors.As(err, &se) || se.Code != api.ErrCodeBufferIncompatible {
		t.Errorf("err = %#v, want structured ErrCodeBufferIncompatible", err)
	} else if se.Context["reason"] == nil {
		t.Error("import failure carries no reason context")
	}
	if r.q.Len() != 0 {
		t.Error("failed import left a tracked request")
	}
	if r.orch.State(out) != pageflip.FlipIdle {
		t.Error("failed import changed flip state")
	}
}

func TestFlipRequiresMaster(t *testing.T) {
	r := newRig(false)
	r.sess.master = false
	out := fake.NewOutput(0, 10, "a")

	err := r.orch.DoPageFlip([]api.Output{out}, &fake.Buffer{}, nil, 0, false, nil, nil)
	if !errors.Is(err, api.ErrNotMaster) {
		t.Errorf("err = %v, want ErrNotMaster", err)
	}
}

func TestFlipAbsentBridge(t *testing.T) {
	r := newRig(false)
	r.bridge.Absent = true
	out := fake.NewOutput(0, 10, "a")

	err := r.orch.DoPageFlip([]api.Output{out}, &fake.Buffer{}, nil, 0, false, nil, nil)
	if !errors.Is(err, api.ErrNotSupported) {
		t.Errorf("err = %v, want ErrNotSupported", err)
	}
}

func TestFlipReferencePipeRejection(t *testing.T) {
	r := newRig(false)
	r.src.FailPageFlip = map[uint32]error{10: errors.New("busy")}
	ref := fake.NewOutput(0, 10, "ref")
	aux := fake.NewOutput(1, 11, "aux")

	err := r.orch.DoPageFlip([]api.Output{ref, aux}, &fake.Buffer{}, nil, 0, false,
		func(_, _ uint64, _ any) { t.Error("handler fired for a failed flip") },
		func(any) { t.Error("abort fired for a synchronously failed flip") })
	if err == nil {
		t.Fatal("DoPageFlip succeeded with the reference pipe rejecting")
	}

	// The aux pipe's flip went in before the failure; its completion must
	// resolve quietly without reaching the caller.
	if len(r.src.Flips()) != 1 {
		t.Fatalf("in-flight flips = %d, want 1", len(r.src.Flips()))
	}
	r.deliver(t, 11, 300, 1000)
	if r.q.Len() != 0 {
		t.Errorf("registry depth = %d, want 0", r.q.Len())
	}
	if r.orch.State(aux) != pageflip.FlipIdle {
		t.Error("aux not back to FlipIdle")
	}
}

func TestFlipUnknownReferencePipeFallsBackToFirst(t *testing.T) {
	r := newRig(false)
	out := fake.NewOutput(0, 10, "solo")

	// refPipe 5 matches nothing; the first target must carry the timestamp
	// so the completed flip still reaches the handler.
	done := 0
	err := r.orch.DoPageFlip([]api.Output{out}, &fake.Buffer{}, "ev", 5, false,
		func(frame, usec uint64, _ any) {
			done++
			if frame != 77 || usec != 4000 {
				t.Errorf("timestamp = (%d, %d), want (77, 4000)", frame, usec)
			}
		},
		func(any) { t.Error("abort fired for a completed flip") })
	if err != nil {
		t.Fatalf("DoPageFlip: %v", err)
	}

	r.deliver(t, 10, 77, 4000)
	if done != 1 {
		t.Fatalf("handler fired %d times, want 1", done)
	}
	if r.orch.State(out) != pageflip.FlipIdle {
		t.Error("output not back to FlipIdle")
	}
}

func TestAsyncFlipSetsAsyncFlag(t *testing.T) {
	r := newRig(false)
	out := fake.NewOutput(0, 10, "a")

	if err := r.orch.DoPageFlip([]api.Output{out}, &fake.Buffer{}, nil, 0, true, nil, nil); err != nil {
		t.Fatalf("DoPageFlip: %v", err)
	}
	flips := r.src.Flips()
	if len(flips) != 1 {
		t.Fatalf("flips = %d, want 1", len(flips))
	}
	if flips[0].Flags&api.PageFlipAsync == 0 {
		t.Error("async flip missing PageFlipAsync flag")
	}
}

func TestAtomicFallsBackToLegacyOnce(t *testing.T) {
	r := newRig(true) // atomic requested, but the fake rejects it
	out := fake.NewOutput(0, 10, "a")

	if err := r.orch.DoPageFlip([]api.Output{out}, &fake.Buffer{}, nil, 0, false, nil, nil); err != nil {
		t.Fatalf("DoPageFlip: %v", err)
	}
	flips := r.src.Flips()
	if len(flips) != 1 || flips[0].Atomic {
		t.Fatalf("expected one legacy flip, got %+v", flips)
	}
}

func TestAtomicSubmission(t *testing.T) {
	r := newRig(true)
	r.src.AtomicOK = true
	out := fake.NewOutput(0, 10, "a")

	if err := r.orch.DoPageFlip([]api.Output{out}, &fake.Buffer{}, nil, 0, false, nil, nil); err != nil {
		t.Fatalf("DoPageFlip: %v", err)
	}
	flips := r.src.Flips()
	if len(flips) != 1 || !flips[0].Atomic {
		t.Fatalf("expected one atomic flip, got %+v", flips)
	}
}

func TestFlipSkipsInactiveOutputs(t *testing.T) {
	r := newRig(false)
	live := fake.NewOutput(0, 10, "live")
	dark := fake.NewOutput(1, 11, "dark")
	dark.SetActive(false)

	if err := r.orch.DoPageFlip([]api.Output{live, dark}, &fake.Buffer{}, nil, 0, false, nil, nil); err != nil {
		t.Fatalf("DoPageFlip: %v", err)
	}
	if len(r.src.Flips()) != 1 {
		t.Errorf("flips = %d, want 1 (dark output skipped)", len(r.src.Flips()))
	}

	dark.SetActive(true)
	r2 := newRig(false)
	bothDark := fake.NewOutput(0, 12, "d")
	bothDark.SetActive(false)
	err := r2.orch.DoPageFlip([]api.Output{bothDark}, &fake.Buffer{}, nil, 0, false, nil, nil)
	if !errors.Is(err, api.ErrOutputInactive) {
		t.Errorf("all-dark err = %v, want ErrOutputInactive", err)
	}
}
