//go:build !linux

package eventloop

import (
	"fmt"
	"runtime"
	"time"
)

// EpollPoller is unavailable outside Linux; epoll is a Linux-specific
// facility and this overlay targets Linux hosts.
type EpollPoller struct{}

func NewEpollPoller(socketFd, deviceFd int) (*EpollPoller, error) {
	return nil, fmt.Errorf("eventloop: epoll unsupported on %s (Linux required)", runtime.GOOS)
}

func (p *EpollPoller) Wait(timeout time.Duration) ([]int, error) {
	return nil, fmt.Errorf("eventloop: epoll unsupported")
}

func (p *EpollPoller) Close() error { return nil }
