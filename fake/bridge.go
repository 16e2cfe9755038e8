// Package fake
// Author: momentics <momentics@gmail.com>
//
// Recording render bridge double with import failure injection.

package fake

import (
	"sync"

	"github.com/momentics/drmseq/api"
)

// Buffer is a trivial api.Buffer.
type Buffer struct {
	W, H uint32
}

// Size implements api.Buffer.
func (b *Buffer) Size() (uint32, uint32) { return b.W, b.H }

// Bridge is a recording api.RenderBridge handing out sequential
// framebuffer ids.
type Bridge struct {
	mu sync.Mutex

	// FailImport, when non-nil, rejects every import.
	FailImport error
	// Absent makes the bridge report import unsupported.
	Absent bool

	nextFB   uint32
	imported int
}

// NewBridge creates a present bridge.
func NewBridge() *Bridge {
	return &Bridge{nextFB: 100}
}

// Supported implements api.RenderBridge.
func (b *Bridge) Supported() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.Absent
}

// ImportFramebuffer implements api.RenderBridge.
func (b *Bridge) ImportFramebuffer(_ api.Buffer) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailImport != nil {
		return 0, b.FailImport
	}
	b.nextFB++
	b.imported++
	return b.nextFB, nil
}

// Imported reports how many buffers were bound.
func (b *Bridge) Imported() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.imported
}
