//go:build darwin
// +build darwin

package poller

import (
	"golang.org/x/sys/unix"
)

const defaultMaxEvents = 1024

// KqueueReactor is the darwin Reactor backend, kept for portability
// when developing off Linux. It translates the epoll-style mask bits
// in Reactor's contract (In/Out/ET/OneShot) onto kqueue's EVFILT_READ
// / EVFILT_WRITE / EV_CLEAR / EV_ONESHOT equivalents.
type KqueueReactor struct {
	kqfd   int
	events []unix.Kevent_t
}

// NewReactor creates a kqueue-backed Reactor.
func NewReactor(maxEventsHint int) (Reactor, error) {
	kqfd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	if maxEventsHint <= 0 {
		maxEventsHint = defaultMaxEvents
	}
	return &KqueueReactor{
		kqfd:   kqfd,
		events: make([]unix.Kevent_t, maxEventsHint),
	}, nil
}

func kqueueFlags(mask uint32) uint16 {
	flags := uint16(unix.EV_ADD | unix.EV_ENABLE)
	if mask&ET != 0 {
		flags |= unix.EV_CLEAR
	}
	if mask&OneShot != 0 {
		flags |= unix.EV_ONESHOT
	}
	return flags
}

func (p *KqueueReactor) register(fd int, mask uint32, flags uint16) error {
	var changes []unix.Kevent_t
	if mask&In != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if mask&Out != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kqfd, changes, nil, nil)
	return err
}

func (p *KqueueReactor) Add(fd int, mask uint32) error {
	return p.register(fd, mask, kqueueFlags(mask))
}

func (p *KqueueReactor) Modify(fd int, mask uint32) error {
	// kqueue has no in-place modify; clear both filters then re-add
	// the ones the new mask wants.
	_ = p.Remove(fd)
	return p.register(fd, mask, kqueueFlags(mask))
}

func (p *KqueueReactor) Remove(fd int) error {
	del := uint16(unix.EV_DELETE)
	_, errRead := unix.Kevent(p.kqfd, []unix.Kevent_t{{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: del}}, nil, nil)
	_, errWrite := unix.Kevent(p.kqfd, []unix.Kevent_t{{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: del}}, nil, nil)
	if errRead != nil {
		return errRead
	}
	return errWrite
}

func (p *KqueueReactor) Wait(timeoutMS int) (int, error) {
	var ts *unix.Timespec
	if timeoutMS >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMS / 1000),
			Nsec: int64((timeoutMS % 1000) * 1000000),
		}
	}
	n, err := unix.Kevent(p.kqfd, nil, p.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (p *KqueueReactor) EventFD(i int) int { return int(p.events[i].Ident) }

func (p *KqueueReactor) EventMask(i int) uint32 {
	ev := p.events[i]
	var mask uint32
	switch ev.Filter {
	case unix.EVFILT_READ:
		mask |= In
	case unix.EVFILT_WRITE:
		mask |= Out
	}
	if ev.Flags&unix.EV_EOF != 0 {
		mask |= RDHup
	}
	if ev.Flags&unix.EV_ERROR != 0 {
		mask |= Err
	}
	return mask
}

func (p *KqueueReactor) Close() error { return unix.Close(p.kqfd) }

// SetNonblock marks fd non-blocking.
func SetNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}
