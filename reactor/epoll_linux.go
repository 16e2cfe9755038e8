//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// epollReactor implements Reactor using Linux epoll.
type epollReactor struct {
	epfd      int
	mu        sync.Mutex
	callbacks map[uintptr]func()
}

func newPlatformReactor() (Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epollReactor{
		epfd:      epfd,
		callbacks: make(map[uintptr]func()),
	}, nil
}

// AddFD registers fd for read readiness.
func (r *epollReactor) AddFD(fd uintptr, cb func()) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	r.mu.Lock()
	r.callbacks[fd] = cb
	r.mu.Unlock()
	return nil
}

// RemoveFD unregisters fd; unknown fds are a no-op.
func (r *epollReactor) RemoveFD(fd uintptr) error {
	r.mu.Lock()
	_, known := r.callbacks[fd]
	delete(r.callbacks, fd)
	r.mu.Unlock()
	if !known {
		return nil
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(fd), nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Poll waits for readiness and dispatches callbacks.
func (r *epollReactor) Poll(timeoutMs int) (int, error) {
	var events [32]unix.EpollEvent
	n, err := unix.EpollWait(r.epfd, events[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	ran := 0
	for i := 0; i < n; i++ {
		r.mu.Lock()
		cb := r.callbacks[uintptr(events[i].Fd)]
		r.mu.Unlock()
		if cb != nil {
			cb()
			ran++
		}
	}
	return ran, nil
}

// Close releases the epoll descriptor.
func (r *epollReactor) Close() error {
	return unix.Close(r.epfd)
}
