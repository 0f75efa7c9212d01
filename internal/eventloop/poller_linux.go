//go:build linux

package eventloop

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// EpollPoller is the Linux readiness multiplexer, registering exactly the
// socket and device descriptors under their fixed tags.
type EpollPoller struct {
	epfd int
}

// NewEpollPoller creates an epoll instance and registers socketFd under
// socketTag and deviceFd under deviceTag for read readiness.
func NewEpollPoller(socketFd, deviceFd int) (*EpollPoller, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("eventloop: epoll_create1: %w", err)
	}
	p := &EpollPoller{epfd: epfd}
	if err := p.add(socketFd, socketTag); err != nil {
		unix.Close(epfd)
		return nil, err
	}
	if err := p.add(deviceFd, deviceTag); err != nil {
		unix.Close(epfd)
		return nil, err
	}
	return p, nil
}

func (p *EpollPoller) add(fd, tag int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(tag)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("eventloop: epoll_ctl add fd=%d tag=%d: %w", fd, tag, err)
	}
	return nil
}

// Wait blocks up to timeout for readiness, returning the tags that fired.
func (p *EpollPoller) Wait(timeout time.Duration) ([]int, error) {
	var events [2]unix.EpollEvent
	n, err := unix.EpollWait(p.epfd, events[:], int(timeout/time.Millisecond))
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("eventloop: epoll_wait: %w", err)
	}
	tags := make([]int, 0, n)
	for i := 0; i < n; i++ {
		tags = append(tags, int(events[i].Fd))
	}
	return tags, nil
}

// Close releases the epoll instance.
func (p *EpollPoller) Close() error {
	return unix.Close(p.epfd)
}
