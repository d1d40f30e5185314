// Package conn implements the per-peer connection object: read and
// write buffers, the HTTP request/response pair, and the two-segment
// writev vector.
package conn

import (
	"errors"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/searchktools/webserver/core/buffer"
	"github.com/searchktools/webserver/core/httpx"
)

// liveCount is the process-wide count of connected peers.
var liveCount int64

// LiveCount returns the number of currently open connections.
func LiveCount() int64 { return atomic.LoadInt64(&liveCount) }

// Addr is a connection's peer address, kept independent of net.Addr
// since the connection owns a raw fd rather than a net.Conn.
type Addr struct {
	IP   string
	Port int
}

// Conn is one accepted TCP peer's full per-connection state.
type Conn struct {
	fd     int
	addr   Addr
	closed bool

	et bool // edge-triggered read/write loop

	readBuf  *buffer.Buffer
	writeBuf *buffer.Buffer

	request  *httpx.Request
	response *httpx.Response
	verify   httpx.Verifier

	iovBase [2][]byte
	iovLen  int
}

// New wraps fd (already accept()'d by the caller, which is also
// responsible for making it non-blocking before any Read or Write)
// into a Conn. verify is threaded through to the request
// parser for the two auth-bearing form posts.
func New(fd int, addr Addr, et bool, verify httpx.Verifier) *Conn {
	atomic.AddInt64(&liveCount, 1)
	return &Conn{
		fd:       fd,
		addr:     addr,
		et:       et,
		readBuf:  buffer.New(1024),
		writeBuf: buffer.New(1024),
		request:  httpx.NewRequest(),
		response: httpx.NewResponse(),
		verify:   verify,
	}
}

// FD returns the connection's socket descriptor.
func (c *Conn) FD() int { return c.fd }

// Addr returns the connection's peer address.
func (c *Conn) Addr() Addr { return c.addr }

// IsKeepAlive reports whether the most recently parsed request asked
// to keep the connection open.
func (c *Conn) IsKeepAlive() bool { return c.request.IsKeepAlive() }

// ToWriteBytes returns how many bytes remain unwritten across both
// iovec segments.
func (c *Conn) ToWriteBytes() int {
	total := 0
	for i := 0; i < c.iovLen; i++ {
		total += len(c.iovBase[i])
	}
	return total
}

var errClosed = errors.New("conn: use of closed connection")

// Read drains the socket into the read buffer. Under edge-triggered
// semantics it loops until a read returns <= 0 bytes (EAGAIN or EOF);
// under level-triggered, a single readiness notification only
// warrants one read.
func (c *Conn) Read() (int, error) {
	if c.closed {
		return 0, errClosed
	}
	// Only the most recent call's (n, err) is returned, even though
	// earlier iterations already landed bytes in the read buffer. A
	// fatal error on a later iteration must still surface so the
	// caller closes the connection, even if previous reads in this
	// same drain succeeded.
	var n int
	var err error
	for {
		n, err = c.readBuf.ReadFromFD(c.fd)
		if n <= 0 {
			return n, err
		}
		if !c.et {
			return n, nil
		}
	}
}

// Write issues writev calls from the two-segment vector until either
// both segments are drained, a write fails, or (level-triggered only)
// at most 10240 bytes remain.
func (c *Conn) Write() (int, error) {
	if c.closed {
		return 0, errClosed
	}
	var total int
	for {
		iov := make([][]byte, 0, 2)
		for i := 0; i < c.iovLen; i++ {
			if len(c.iovBase[i]) > 0 {
				iov = append(iov, c.iovBase[i])
			}
		}
		if len(iov) == 0 {
			return total, nil
		}

		n, err := unix.Writev(c.fd, iov)
		if n > 0 {
			total += n
			c.advanceIov(n)
		}
		if err != nil {
			return total, err
		}
		if c.ToWriteBytes() == 0 {
			return total, nil
		}
		if !c.et && c.ToWriteBytes() <= 10240 {
			return total, nil
		}
	}
}

// advanceIov walks n written bytes off the front of the iovec,
// consuming the write buffer as segment 0 drains.
func (c *Conn) advanceIov(n int) {
	seg0 := len(c.iovBase[0])
	if n > seg0 {
		rem := n - seg0
		if seg0 > 0 {
			c.writeBuf.RetrieveAll()
			c.iovBase[0] = nil
		}
		c.iovBase[1] = c.iovBase[1][rem:]
	} else {
		c.iovBase[0] = c.iovBase[0][n:]
		c.writeBuf.Retrieve(n)
	}
}

// Process parses whatever is in the read buffer, builds a response
// into the write buffer, and arms the iovec for the next Write. It
// returns true iff there was data to process.
func (c *Conn) Process(srcDir string) bool {
	c.request.Reset()
	if c.readBuf.ReadableBytes() <= 0 {
		return false
	}

	if c.request.Parse(c.readBuf, c.verify) {
		c.response.Init(srcDir, c.request.Path, c.request.IsKeepAlive(), 200)
	} else {
		c.response.Init(srcDir, c.request.Path, false, 400)
	}

	c.response.MakeResponse(c.writeBuf)

	c.iovBase[0] = c.writeBuf.Peek()
	c.iovLen = 1
	if body := c.response.File(); len(body) > 0 {
		c.iovBase[1] = body
		c.iovLen = 2
	} else {
		c.iovBase[1] = nil
	}
	return true
}

// Close unmaps the response's file, decrements the live connection
// count, and closes the descriptor. Idempotent.
func (c *Conn) Close() error {
	c.response.Unmap()
	if c.closed {
		return nil
	}
	c.closed = true
	atomic.AddInt64(&liveCount, -1)
	return unix.Close(c.fd)
}
