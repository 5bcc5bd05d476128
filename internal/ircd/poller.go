package ircd

import (
	"golang.org/x/sys/unix"
)

// poller wraps a Linux epoll set. It is the readiness table from spec.md
// §3/§4.1: every fd we care about (the listener, every client, and a wakeup
// eventfd) is registered here, and one blocking EpollWait call per loop
// iteration tells us which of them are ready.
type poller struct {
	epfd   int
	events []unix.EpollEvent
}

func newPoller() (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	return &poller{
		epfd:   epfd,
		events: make([]unix.EpollEvent, 256),
	}, nil
}

func (p *poller) close() error {
	return unix.Close(p.epfd)
}

// add registers fd for read readiness, and also write readiness if
// wantWrite is set (spec.md §4.1 step 1: WRITE is only requested when the
// client's output queue is non-empty).
func (p *poller) add(fd int, wantWrite bool) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: readyMask(wantWrite),
		Fd:     int32(fd),
	})
}

// modify changes the requested event mask for an already-registered fd.
func (p *poller) modify(fd int, wantWrite bool) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: readyMask(wantWrite),
		Fd:     int32(fd),
	})
}

// remove deregisters fd. It is not an error if the fd was already closed out
// from under epoll (closing a fd implicitly removes it).
func (p *poller) remove(fd int) {
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// wait blocks (with timeoutMS, or indefinitely if timeoutMS < 0) until one or
// more registered fds are ready, returning the ready subset. EINTR is the
// caller's responsibility to retry (spec.md §4.1 step 3).
func (p *poller) wait(timeoutMS int) ([]unix.EpollEvent, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMS)
	if err != nil {
		return nil, err
	}
	return p.events[:n], nil
}

func readyMask(wantWrite bool) uint32 {
	mask := uint32(unix.EPOLLIN)
	if wantWrite {
		mask |= unix.EPOLLOUT
	}
	return mask
}
