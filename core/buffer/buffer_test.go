package buffer

import (
	"os"
	"testing"
)

func TestAppendAndRetrieve(t *testing.T) {
	b := New(8)
	b.AppendString("hello")
	if got := b.ReadableBytes(); got != 5 {
		t.Fatalf("ReadableBytes() = %d, want 5", got)
	}
	if string(b.Peek()) != "hello" {
		t.Fatalf("Peek() = %q, want hello", b.Peek())
	}
	b.Retrieve(5)
	if b.ReadableBytes() != 0 {
		t.Fatalf("ReadableBytes() after Retrieve = %d, want 0", b.ReadableBytes())
	}
}

func TestGrowthPolicy(t *testing.T) {
	b := New(4)
	b.AppendString("ab")
	b.Retrieve(2) // r=2, w=2, nothing readable but prependable space exists

	b.AppendString("abcdefgh") // forces either slide or reallocate
	if b.ReadableBytes() != 8 {
		t.Fatalf("ReadableBytes() = %d, want 8", b.ReadableBytes())
	}
	if string(b.Peek()) != "abcdefgh" {
		t.Fatalf("Peek() = %q, want abcdefgh", b.Peek())
	}
}

func TestRetrieveAllToString(t *testing.T) {
	b := New(16)
	b.AppendString("payload")
	s := b.RetrieveAllToString()
	if s != "payload" {
		t.Fatalf("RetrieveAllToString() = %q, want payload", s)
	}
	if b.ReadableBytes() != 0 {
		t.Fatalf("buffer not empty after RetrieveAllToString")
	}
}

// TestScatterReadRoundTrip: writing N <= 65535 bytes to a pipe and
// reading once yields exactly N bytes readable, regardless of initial
// buffer capacity.
func TestScatterReadRoundTrip(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe() error: %v", err)
	}
	defer r.Close()
	defer w.Close()

	payload := make([]byte, 40000)
	for i := range payload {
		payload[i] = byte(i)
	}

	// 40000 bytes fit in the pipe's buffer, so this completes without a
	// concurrent reader and the readv below sees the whole payload.
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("write error: %v", err)
	}

	b := New(1024)
	n, err := b.ReadFromFD(int(r.Fd()))
	if err != nil {
		t.Fatalf("ReadFromFD() error: %v", err)
	}

	if n != len(payload) {
		t.Fatalf("ReadFromFD() = %d, want %d", n, len(payload))
	}
	if b.ReadableBytes() != len(payload) {
		t.Fatalf("ReadableBytes() = %d, want %d", b.ReadableBytes(), len(payload))
	}
	if cap(b.buf) <= 1024 {
		t.Fatalf("expected buffer to grow beyond initial capacity")
	}
}
