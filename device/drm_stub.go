//go:build !linux
// +build !linux

// File: device/drm_stub.go
// Package device - stub event source for platforms without KMS.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package device

import (
	"github.com/momentics/drmseq/api"
)

// Open is unavailable off Linux; mode-setting devices are a Linux concept.
func Open(string) (api.EventSource, error) {
	return nil, api.ErrNotSupported
}
