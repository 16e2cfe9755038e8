// Package queue
// Author: momentics <momentics@gmail.com>
//
// Pending-event registry and sequence allocator for drmseq.
// Tracks vblank and page-flip requests from allocation to completion or
// abort, guaranteeing exactly-once resolution and insertion-ordered sweeps.
// See queue.go for implementation details.
package queue
