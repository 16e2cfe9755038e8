// Package fake
// Author: momentics <momentics@gmail.com>
//
// Static output double with switchable active state.

package fake

import "sync"

// Output is a static api.Output whose active state tests can toggle.
type Output struct {
	mu     sync.Mutex
	pipe   int
	crtc   uint32
	name   string
	active bool
}

// NewOutput creates an active output.
func NewOutput(pipe int, crtc uint32, name string) *Output {
	return &Output{pipe: pipe, crtc: crtc, name: name, active: true}
}

// Pipe implements api.Output.
func (o *Output) Pipe() int { return o.pipe }

// CRTCID implements api.Output.
func (o *Output) CRTCID() uint32 { return o.crtc }

// Name implements api.Output.
func (o *Output) Name() string { return o.name }

// Active implements api.Output.
func (o *Output) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// SetActive toggles the pipe's live state.
func (o *Output) SetActive(on bool) {
	o.mu.Lock()
	o.active = on
	o.mu.Unlock()
}
