// Package server implements the reactor main loop, the
// accept/dispatch/keep-alive state machine, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/searchktools/webserver/core/conn"
	"github.com/searchktools/webserver/core/httpx"
	"github.com/searchktools/webserver/core/poller"
	"github.com/searchktools/webserver/core/sqlpool"
	"github.com/searchktools/webserver/core/timer"
	"github.com/searchktools/webserver/core/workerpool"
)

// MaxFD is the process-wide live-connection cap enforced at accept
// time.
const MaxFD = 65536

// busyMessage is sent verbatim to a peer rejected for being over
// MaxFD.
const busyMessage = "Server busy!"

// maxPollMS bounds how long a single reactor Wait call blocks so
// Run's shutdown check stays responsive even with no live timers.
const maxPollMS = 1000

// Config holds the server's constructor parameters.
type Config struct {
	Port           int
	TrigMode       int // 0: LT both, 1: ET conn only, 2: ET listen only, 3: ET both
	TimeoutMS      int
	OpenLinger     bool
	SrcDir         string
	MaxEvents      int
	ThreadPoolSize int
}

// Server owns the reactor, timer heap, worker pool, and the
// fd->Connection map.
type Server struct {
	cfg Config

	reactor poller.Reactor
	timer   *timer.Heap
	pool    *workerpool.Pool
	sqlPool *sqlpool.Pool // optional, for Stats only
	verify  httpx.Verifier

	listenFD    int
	listenEvent uint32
	connEvent   uint32
	connET      bool

	mu    sync.Mutex
	conns map[int]*conn.Conn

	shuttingDown int32
}

// New constructs a Server and binds its listen socket. verify may be
// nil when auth is disabled (e.g. no database configured).
func New(cfg Config, verify httpx.Verifier) (*Server, error) {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = 1024
	}
	reactor, err := poller.NewReactor(cfg.MaxEvents)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		reactor: reactor,
		timer:   timer.New(),
		pool:    workerpool.New(cfg.ThreadPoolSize),
		verify:  verify,
		conns:   make(map[int]*conn.Conn),
	}
	s.initEventMode(cfg.TrigMode)

	if err := s.initSocket(); err != nil {
		reactor.Close()
		return nil, err
	}
	log.Printf("server: listening on port %d (timeout=%dms, openLinger=%v, ET listen=%v conn=%v)",
		cfg.Port, cfg.TimeoutMS, cfg.OpenLinger,
		s.listenEvent&poller.ET != 0, s.connEvent&poller.ET != 0)
	return s, nil
}

// SetSQLPool attaches a SQL handle pool for Stats reporting only; the
// server core never queries it directly (that's core/auth's job).
func (s *Server) SetSQLPool(p *sqlpool.Pool) { s.sqlPool = p }

// initEventMode sets the listen/connection event masks per trigMode.
// Unknown modes fall back to ET on both.
func (s *Server) initEventMode(trigMode int) {
	s.listenEvent = poller.RDHup
	s.connEvent = poller.OneShot | poller.RDHup

	switch trigMode {
	case 0:
	case 1:
		s.connEvent |= poller.ET
	case 2:
		s.listenEvent |= poller.ET
	default:
		s.connEvent |= poller.ET
		s.listenEvent |= poller.ET
	}
	s.connET = s.connEvent&poller.ET != 0
}

// initSocket creates, binds, and registers the listen socket.
func (s *Server) initSocket() error {
	if s.cfg.Port < 1024 || s.cfg.Port > 65535 {
		return errors.New("server: port out of range 1024-65535")
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return err
	}

	if s.cfg.OpenLinger {
		if err := unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 1, Linger: 1}); err != nil {
			unix.Close(fd)
			return err
		}
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return err
	}

	addr := &unix.SockaddrInet4{Port: s.cfg.Port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return err
	}
	if err := unix.Listen(fd, 6); err != nil {
		unix.Close(fd)
		return err
	}
	if err := s.reactor.Add(fd, s.listenEvent|poller.In); err != nil {
		unix.Close(fd)
		return err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return err
	}

	s.listenFD = fd
	return nil
}

// Run drives the reactor main loop until ctx is cancelled or Shutdown
// is called. It returns after every open connection has been closed
// and the worker pool has drained.
func (s *Server) Run(ctx context.Context) error {
	for atomic.LoadInt32(&s.shuttingDown) == 0 {
		select {
		case <-ctx.Done():
			s.Shutdown()
			continue
		default:
		}

		timeout := s.timer.NextTickMS()
		if timeout < 0 || timeout > maxPollMS {
			timeout = maxPollMS
		}
		n, err := s.reactor.Wait(timeout)
		if err != nil {
			log.Printf("server: reactor wait error: %v", err)
			continue
		}
		for i := 0; i < n; i++ {
			s.dispatch(s.reactor.EventFD(i), s.reactor.EventMask(i))
		}
	}
	s.drain()
	return nil
}

func (s *Server) dispatch(fd int, mask uint32) {
	if fd == s.listenFD {
		s.acceptLoop()
		return
	}

	s.mu.Lock()
	c, ok := s.conns[fd]
	s.mu.Unlock()
	if !ok {
		return
	}

	switch {
	case mask&(poller.RDHup|poller.HUp|poller.Err) != 0:
		s.closeConn(fd)
	case mask&poller.In != 0:
		s.extendDeadline(fd)
		s.pool.Submit(func() { s.onRead(c) })
	case mask&poller.Out != 0:
		s.extendDeadline(fd)
		s.pool.Submit(func() { s.onWrite(c) })
	}
}

// acceptLoop accepts pending connections, looping under edge-triggered
// listen semantics and stopping after one accept otherwise.
func (s *Server) acceptLoop() {
	for {
		fd, sa, err := unix.Accept(s.listenFD)
		if err != nil {
			if !errors.Is(err, unix.EAGAIN) {
				log.Printf("server: accept error: %v", err)
			}
			return
		}

		if conn.LiveCount() >= MaxFD {
			unix.Write(fd, []byte(busyMessage))
			unix.Close(fd)
			log.Printf("server: rejecting connection, live count at cap (%d)", MaxFD)
		} else {
			s.addClient(fd, sa)
		}

		if s.listenEvent&poller.ET == 0 {
			return
		}
	}
}

func (s *Server) addClient(fd int, sa unix.Sockaddr) {
	addr := sockaddrToAddr(sa)
	c := conn.New(fd, addr, s.connET, s.verify)

	if s.cfg.TimeoutMS > 0 {
		timeout := time.Duration(s.cfg.TimeoutMS) * time.Millisecond
		s.timer.Add(fd, timeout, func() { s.closeConn(fd) })
	}

	if err := s.reactor.Add(fd, s.connEvent|poller.In); err != nil {
		log.Printf("server: reactor add error for fd %d: %v", fd, err)
		unix.Close(fd)
		return
	}
	unix.SetNonblock(fd, true)

	s.mu.Lock()
	s.conns[fd] = c
	s.mu.Unlock()
	log.Printf("server: client[%d](%s:%d) connected", fd, addr.IP, addr.Port)
}

func (s *Server) extendDeadline(fd int) {
	if s.cfg.TimeoutMS > 0 {
		s.timer.Adjust(fd, time.Duration(s.cfg.TimeoutMS)*time.Millisecond)
	}
}

func (s *Server) onRead(c *conn.Conn) {
	n, err := c.Read()
	if n <= 0 && !errors.Is(err, unix.EAGAIN) {
		s.closeConn(c.FD())
		return
	}
	s.onProcess(c)
}

func (s *Server) onProcess(c *conn.Conn) {
	if c.Process(s.cfg.SrcDir) {
		s.reactor.Modify(c.FD(), s.connEvent|poller.Out)
	} else {
		s.reactor.Modify(c.FD(), s.connEvent|poller.In)
	}
}

func (s *Server) onWrite(c *conn.Conn) {
	_, err := c.Write()
	if c.ToWriteBytes() == 0 {
		if c.IsKeepAlive() {
			s.onProcess(c)
			return
		}
	} else if errors.Is(err, unix.EAGAIN) {
		s.reactor.Modify(c.FD(), s.connEvent|poller.Out)
		return
	}
	s.closeConn(c.FD())
}

// closeConn removes fd from the reactor and the connection map as one
// unit, then closes the descriptor. Calling it twice for the same fd
// (e.g. once from a hangup event and once from the fd's timer) is a
// harmless no-op the second time.
func (s *Server) closeConn(fd int) {
	s.mu.Lock()
	c, ok := s.conns[fd]
	if ok {
		delete(s.conns, fd)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.timer.Cancel(fd)
	s.reactor.Remove(fd)
	if err := c.Close(); err != nil {
		log.Printf("server: close fd %d: %v", fd, err)
	}
}

// Shutdown requests the main loop to stop accepting new readiness
// events. Safe to call more than once and from any goroutine.
func (s *Server) Shutdown() {
	if !atomic.CompareAndSwapInt32(&s.shuttingDown, 0, 1) {
		return
	}
	s.reactor.Remove(s.listenFD)
	unix.Close(s.listenFD)
}

// drain closes every still-open connection, clears the timer heap,
// stops the worker pool, and releases the reactor.
func (s *Server) drain() {
	s.mu.Lock()
	fds := make([]int, 0, len(s.conns))
	for fd := range s.conns {
		fds = append(fds, fd)
	}
	s.mu.Unlock()

	for _, fd := range fds {
		s.closeConn(fd)
	}
	s.timer.Clear()
	s.pool.Close()
	if err := s.reactor.Close(); err != nil {
		log.Printf("server: reactor close: %v", err)
	}
	log.Printf("server: shutdown complete")
}

func sockaddrToAddr(sa unix.Sockaddr) conn.Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return conn.Addr{IP: net.IP(v.Addr[:]).String(), Port: v.Port}
	case *unix.SockaddrInet6:
		return conn.Addr{IP: net.IP(v.Addr[:]).String(), Port: v.Port}
	default:
		return conn.Addr{}
	}
}

// Stats is a diagnostic snapshot of the server's pool occupancy.
type Stats struct {
	Connections  int
	Worker       workerpool.Stats
	TimerPending int
	SQLFree      int
	SQLSize      int
}

// Stats returns a point-in-time snapshot across the connection map,
// worker pool, timer heap, and (if attached) SQL pool.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	conns := len(s.conns)
	s.mu.Unlock()

	st := Stats{
		Connections:  conns,
		Worker:       s.pool.Stats(),
		TimerPending: s.timer.Len(),
	}
	if s.sqlPool != nil {
		st.SQLFree = s.sqlPool.Free()
		st.SQLSize = s.sqlPool.Size()
	}
	return st
}
