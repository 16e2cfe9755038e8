// File: driver/options.go
// Package driver defines functional options for driver construction.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package driver

import (
	"github.com/rs/zerolog"

	"github.com/momentics/drmseq/api"
)

type config struct {
	log           zerolog.Logger
	bridge        api.RenderBridge
	atomicModeset bool
	vrrCapable    bool
}

func defaultConfig() *config {
	return &config{
		log:    zerolog.Nop(),
		bridge: api.NopBridge{},
	}
}

// Option customizes driver initialization.
type Option func(*config)

// WithLogger attaches a structured logger; the default discards.
func WithLogger(log zerolog.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// WithRenderBridge binds the rendering backend used to import flip buffers.
func WithRenderBridge(b api.RenderBridge) Option {
	return func(c *config) {
		if b != nil {
			c.bridge = b
		}
	}
}

// WithAtomicModeset enables atomic commit submission for synchronized
// flips.
func WithAtomicModeset(on bool) Option {
	return func(c *config) {
		c.atomicModeset = on
	}
}

// WithVRRCapable records the connector's negotiated VRR capability.
func WithVRRCapable(on bool) Option {
	return func(c *config) {
		c.vrrCapable = on
	}
}
