package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func startTestServer(t *testing.T, srcDir string) (*Server, int) {
	t.Helper()
	port := freePort(t)
	cfg := Config{
		Port:           port,
		TrigMode:       0, // level-triggered: simplest to reason about in a test
		TimeoutMS:      0, // no eviction timer for these tests
		SrcDir:         srcDir,
		MaxEvents:      32,
		ThreadPoolSize: 2,
	}
	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		s.Shutdown()
		<-done
	})

	// Give Run's loop a moment to start waiting on the reactor.
	time.Sleep(20 * time.Millisecond)
	return s, port
}

func TestServerServesStaticFileEndToEnd(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index2.html"), []byte("<html>hi</html>"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	_, port := startTestServer(t, dir)

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	req := "GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	body, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	resp := string(body)
	if !strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("response status line = %q", resp)
	}
	if !strings.HasSuffix(resp, "<html>hi</html>") {
		t.Fatalf("response body missing, got %q", resp)
	}
}

func TestServerMissingFileReturns404(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "404.html"), []byte("nope"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	_, port := startTestServer(t, dir)

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	req := "GET /nope.html HTTP/1.1\r\nConnection: close\r\n\r\n"
	conn.Write([]byte(req))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	body, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if !strings.HasPrefix(string(body), "HTTP/1.1 404 Not Found") {
		t.Fatalf("response = %q, want 404", body)
	}
}

func TestServerKeepAliveServesTwoRequests(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index2.html"), []byte("one"), 0o644)

	_, port := startTestServer(t, dir)

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	req := "GET / HTTP/1.1\r\nConnection: keep-alive\r\n\r\n"

	readOneResponse := func() string {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, 4096)
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("Read() error: %v", err)
		}
		return string(buf[:n])
	}

	conn.Write([]byte(req))
	first := readOneResponse()
	if !strings.Contains(first, "Connection: keep-alive") {
		t.Fatalf("first response missing keep-alive: %q", first)
	}

	conn.Write([]byte(req))
	second := readOneResponse()
	if !strings.HasPrefix(second, "HTTP/1.1 200 OK") {
		t.Fatalf("second response on same connection = %q", second)
	}
}

func TestServerMalformedRequestLineReturns400(t *testing.T) {
	dir := t.TempDir()
	_, port := startTestServer(t, dir)

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("GET / HTTP/1.1 extra\r\nConnection: close\r\n\r\n"))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	body, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if !strings.HasPrefix(string(body), "HTTP/1.1 400 Bad Request") {
		t.Fatalf("response = %q, want 400", body)
	}
}

func TestServerStats(t *testing.T) {
	dir := t.TempDir()
	s, _ := startTestServer(t, dir)

	st := s.Stats()
	if st.Connections != 0 {
		t.Fatalf("Stats().Connections = %d, want 0 before any client connects", st.Connections)
	}
}
