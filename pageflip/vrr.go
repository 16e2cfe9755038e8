// File: pageflip/vrr.go
// Package pageflip - variable refresh rate state tracking.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pageflip

import "sync"

// VRRState tracks variable-refresh negotiation and use for one driver
// instance. The driver owns it exclusively; consumers query and request
// changes through the driver surface.
type VRRState struct {
	mu         sync.Mutex
	capable    bool
	enabled    bool
	flipWindow any
}

// NewVRRState records whether the connected display negotiated VRR.
// Capability is fixed at connector probe time.
func NewVRRState(capable bool) *VRRState {
	return &VRRState{capable: capable}
}

// Capable reports negotiated VRR capability.
func (v *VRRState) Capable() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.capable
}

// Enabled reports whether VRR has been turned on.
func (v *VRRState) Enabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enabled
}

// SetEnabled transitions the enabled flag. It never touches negotiated
// capability.
func (v *VRRState) SetEnabled(on bool) {
	v.mu.Lock()
	v.enabled = on
	v.mu.Unlock()
}

// SetFlipWindow records the window currently considered the presentation
// target for refresh-rate purposes.
func (v *VRRState) SetFlipWindow(win any) {
	v.mu.Lock()
	v.flipWindow = win
	v.mu.Unlock()
}

// FlipWindow returns the current presentation target.
func (v *VRRState) FlipWindow() any {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.flipWindow
}

// WindowHasVariableRefresh reports whether win drives the refresh rate:
// VRR must be negotiated, enabled, and win must be the current flip target.
func (v *VRRState) WindowHasVariableRefresh(win any) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.capable && v.enabled && win != nil && win == v.flipWindow
}
