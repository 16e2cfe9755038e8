package queue_test

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/momentics/drmseq/fake"
	"github.com/momentics/drmseq/queue"
)

// Force the allocator to the 32-bit boundary and verify wrapped ids skip
// zero and every still-outstanding value.
func TestAllocSkipsZeroAndOutstandingOnWrap(t *testing.T) {
	q := queue.New(queue.IdentityMapper{}, zerolog.Nop())
	out := fake.NewOutput(0, 10, "wrap")

	queue.SeedNext(q, (1<<32)-2)
	last := q.Alloc(out, "old", nil, nil)
	if last != 0xffffffff {
		t.Fatalf("pre-wrap sequence = %#x, want 0xffffffff", last)
	}

	// Next increment lands on low-32 zero, which is reserved.
	seq := q.Alloc(out, nil, nil, nil)
	if seq == 0 {
		t.Fatal("allocator handed out reserved sequence 0")
	}
	if seq != 1 {
		t.Fatalf("post-wrap sequence = %d, want 1", seq)
	}

	// Park the counter so the next allocation would collide with a live id.
	queue.SeedNext(q, (1<<32)+uint64(last)-1)
	seq = q.Alloc(out, nil, nil, nil)
	if seq == last {
		t.Fatalf("allocator reissued outstanding sequence %#x", last)
	}
	if q.Len() != 3 {
		t.Errorf("registry depth = %d, want 3", q.Len())
	}
}
