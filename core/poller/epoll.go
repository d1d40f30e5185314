//go:build linux
// +build linux

package poller

import (
	"golang.org/x/sys/unix"
)

const defaultMaxEvents = 1024

// EpollReactor is the Linux Reactor backend. Registration takes an
// arbitrary caller-supplied event mask so the server can drive its
// read/write interest state machine through Modify.
type EpollReactor struct {
	epfd   int
	events []unix.EpollEvent
}

// NewReactor creates an epoll-backed Reactor. maxEventsHint bounds how
// many ready descriptors a single Wait call can report; it defaults to
// 1024 when zero or negative.
func NewReactor(maxEventsHint int) (Reactor, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	if maxEventsHint <= 0 {
		maxEventsHint = defaultMaxEvents
	}
	return &EpollReactor{
		epfd:   epfd,
		events: make([]unix.EpollEvent, maxEventsHint),
	}, nil
}

func (p *EpollReactor) Add(fd int, mask uint32) error {
	ev := unix.EpollEvent{Events: mask, Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *EpollReactor) Modify(fd int, mask uint32) error {
	ev := unix.EpollEvent{Events: mask, Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *EpollReactor) Remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *EpollReactor) Wait(timeoutMS int) (int, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (p *EpollReactor) EventFD(i int) int { return int(p.events[i].Fd) }

func (p *EpollReactor) EventMask(i int) uint32 { return p.events[i].Events }

func (p *EpollReactor) Close() error { return unix.Close(p.epfd) }

// SetNonblock marks fd non-blocking. The listen socket and every
// accepted connection must be non-blocking before any I/O is issued
// on them, since the reactor only ever reports readiness, never
// performs the I/O itself.
func SetNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}
