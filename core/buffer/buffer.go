// Package buffer implements the growable read/write byte region used by
// every connection's read and write paths.
//
// The layout is a single backing slice with independent read and write
// cursors, a readable window [r,w), and a scatter-read fast path that
// reads up to ~64KiB from a descriptor in one syscall regardless of
// how much space is currently free.
package buffer

import (
	"errors"

	"golang.org/x/sys/unix"
)

// scratchSize is the size of the on-stack overflow segment used by
// ReadFromFD's scatter read. 65535 bytes is large enough that a single
// readv drains a typical request regardless of the buffer's current
// writable window.
const scratchSize = 65535

// Buffer is a growable byte store with independent read and write
// cursors. The zero value is not usable; construct with New.
type Buffer struct {
	buf []byte
	r   int
	w   int
}

// New creates a Buffer with the given initial capacity.
func New(initialCap int) *Buffer {
	if initialCap <= 0 {
		initialCap = 1024
	}
	return &Buffer{buf: make([]byte, initialCap)}
}

// ReadableBytes returns the number of bytes available to read.
func (b *Buffer) ReadableBytes() int { return b.w - b.r }

// WritableBytes returns the number of bytes that can be written without
// growing the buffer.
func (b *Buffer) WritableBytes() int { return len(b.buf) - b.w }

// PrependableBytes returns the number of bytes already retrieved at the
// front of the buffer, available to be reclaimed by a slide.
func (b *Buffer) PrependableBytes() int { return b.r }

// Peek returns the current readable window without consuming it.
func (b *Buffer) Peek() []byte { return b.buf[b.r:b.w] }

// BeginWrite returns the writable window at the current write cursor.
func (b *Buffer) BeginWrite() []byte { return b.buf[b.w:] }

// EnsureWritable guarantees at least n writable bytes, sliding or
// reallocating the backing slice as needed.
func (b *Buffer) EnsureWritable(n int) {
	if b.WritableBytes() < n {
		b.makeSpace(n)
	}
}

// HasWritten advances the write cursor by n, as if n bytes had just
// been appended directly into BeginWrite's window.
func (b *Buffer) HasWritten(n int) { b.w += n }

// Retrieve consumes n bytes from the readable window.
func (b *Buffer) Retrieve(n int) {
	if n > b.ReadableBytes() {
		n = b.ReadableBytes()
	}
	b.r += n
}

// RetrieveUntil consumes bytes up to (but not including) the given
// offset into the readable window, measured from Peek()'s start.
func (b *Buffer) RetrieveUntil(offset int) {
	b.Retrieve(offset)
}

// RetrieveAll resets both cursors to zero, discarding any readable
// bytes without copying them.
func (b *Buffer) RetrieveAll() {
	b.r = 0
	b.w = 0
}

// RetrieveAllToString drains the entire readable window into a string
// and resets the buffer.
func (b *Buffer) RetrieveAllToString() string {
	s := string(b.Peek())
	b.RetrieveAll()
	return s
}

// Append appends p to the writable region, growing the buffer if
// necessary.
func (b *Buffer) Append(p []byte) {
	b.EnsureWritable(len(p))
	copy(b.buf[b.w:], p)
	b.HasWritten(len(p))
}

// AppendString is a convenience wrapper around Append.
func (b *Buffer) AppendString(s string) {
	b.Append([]byte(s))
}

var errBadFD = errors.New("buffer: invalid file descriptor")

// ReadFromFD performs a two-segment scatter read: segment 0 is the
// current writable window, segment 1 is a 65535-byte scratch buffer.
// A single readv reads up to ~64KiB regardless of how much space
// segment 0 currently has; bytes that overflow segment 0 are appended,
// forcing growth.
func (b *Buffer) ReadFromFD(fd int) (int, error) {
	if fd < 0 {
		return 0, errBadFD
	}
	var scratch [scratchSize]byte
	writable := b.WritableBytes()

	n, err := unix.Readv(fd, [][]byte{b.buf[b.w:], scratch[:]})
	if err != nil {
		return 0, err
	}
	if n <= writable {
		b.w += n
	} else {
		b.w = len(b.buf)
		b.Append(scratch[:n-writable])
	}
	return n, nil
}

// WriteToFD issues a single direct write from the readable window and
// advances the read cursor by the amount written.
func (b *Buffer) WriteToFD(fd int) (int, error) {
	if fd < 0 {
		return 0, errBadFD
	}
	n, err := unix.Write(fd, b.Peek())
	if err != nil {
		return n, err
	}
	b.r += n
	return n, nil
}

// makeSpace implements the buffer's growth policy: slide the readable
// window to offset 0 if there's enough combined writable+prependable
// room, otherwise reallocate to at least w+n+1 bytes.
func (b *Buffer) makeSpace(n int) {
	if b.WritableBytes()+b.PrependableBytes() < n {
		grown := make([]byte, b.w+n+1)
		copy(grown, b.buf)
		b.buf = grown
		return
	}
	readable := b.ReadableBytes()
	copy(b.buf, b.buf[b.r:b.w])
	b.r = 0
	b.w = readable
}
