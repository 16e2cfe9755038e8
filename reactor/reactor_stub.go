//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub reactor for platforms without epoll.

package reactor

import "fmt"

func newPlatformReactor() (Reactor, error) {
	return nil, fmt.Errorf("reactor not supported on this platform")
}
