// File: api/bridge.go
// Package api - absent render bridge implementation.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// NopBridge is the render bridge used when no rendering backend is bound.
// Flips against it fail up front instead of dereferencing nil capability
// slots.
type NopBridge struct{}

// Supported implements RenderBridge.
func (NopBridge) Supported() bool { return false }

// ImportFramebuffer implements RenderBridge.
func (NopBridge) ImportFramebuffer(Buffer) (uint32, error) {
	return 0, ErrNotSupported
}
