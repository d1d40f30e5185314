// Package poller wraps the OS readiness facility behind a small
// Reactor interface: register/modify/remove a descriptor with an
// event mask, block until events occur or a timeout elapses, and
// enumerate the ready descriptors and their event bits after Wait
// returns. Wait is the only suspension point on the server's I/O
// thread.
package poller

// Event bits, aliased from the epoll constants so callers don't need
// to import golang.org/x/sys/unix themselves.
const (
	In      = 0x001 // EPOLLIN
	Out     = 0x004 // EPOLLOUT
	RDHup   = 0x2000
	HUp     = 0x010
	Err     = 0x008
	ET      = 1 << 31 // EPOLLET
	OneShot = 1 << 30 // EPOLLONESHOT
)

// Reactor is the readiness-notification interface every poller
// backend implements.
type Reactor interface {
	// Add registers fd for the event classes in mask.
	Add(fd int, mask uint32) error
	// Modify changes fd's registered event mask.
	Modify(fd int, mask uint32) error
	// Remove stops watching fd.
	Remove(fd int) error
	// Wait blocks until at least one descriptor is ready or timeoutMS
	// elapses (-1 blocks indefinitely), returning the number of ready
	// descriptors. Results are retrieved with EventFD/EventMask.
	Wait(timeoutMS int) (int, error)
	// EventFD returns the descriptor of the i'th ready event from the
	// most recent Wait.
	EventFD(i int) int
	// EventMask returns the event bits of the i'th ready event from
	// the most recent Wait.
	EventMask(i int) uint32
	// Close releases the underlying OS resource.
	Close() error
}
