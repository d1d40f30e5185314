package sqlpool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"testing"
	"time"
)

// fakeDriver is a minimal database/sql/driver implementation so the
// pool's acquire/release/semaphore mechanics can be tested without a
// real MySQL server.
type fakeDriver struct{}

type fakeConn struct{}

func (fakeDriver) Open(name string) (driver.Conn, error) { return fakeConn{}, nil }

func (fakeConn) Prepare(query string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (fakeConn) Close() error                              { return nil }
func (fakeConn) Begin() (driver.Tx, error)                 { return nil, driver.ErrSkip }

var registerOnce sync.Once

func registerFakeDriver() {
	registerOnce.Do(func() {
		sql.Register("sqlpool_fake", fakeDriver{})
	})
}

func newTestPool(t *testing.T, size int) *Pool {
	t.Helper()
	registerFakeDriver()
	p, err := Open(context.Background(), Config{
		Host: "localhost", Port: 3306, User: "u", Password: "p", DBName: "db",
		PoolSize:   size,
		DriverName: "sqlpool_fake",
	})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return p
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := newTestPool(t, 2)
	defer p.Close()

	if p.Free() != 2 {
		t.Fatalf("Free() = %d, want 2", p.Free())
	}

	conn, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	if p.Free() != 1 {
		t.Fatalf("Free() after Acquire = %d, want 1", p.Free())
	}

	p.Release(conn)
	if p.Free() != 2 {
		t.Fatalf("Free() after Release = %d, want 2", p.Free())
	}
}

func TestAcquireBlocksWhenExhausted(t *testing.T) {
	p := newTestPool(t, 1)
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(ctx); err == nil {
		t.Fatalf("Acquire() on exhausted pool = nil error, want context deadline error")
	}

	p.Release(conn)
	conn2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() after Release error: %v", err)
	}
	p.Release(conn2)
}

func TestGuardReleasesOnClose(t *testing.T) {
	p := newTestPool(t, 1)
	defer p.Close()

	g, err := AcquireGuard(context.Background(), p)
	if err != nil {
		t.Fatalf("AcquireGuard() error: %v", err)
	}
	if p.Free() != 0 {
		t.Fatalf("Free() while guard held = %d, want 0", p.Free())
	}
	g.Close()
	if p.Free() != 1 {
		t.Fatalf("Free() after guard Close = %d, want 1", p.Free())
	}
}

func TestPoolSize(t *testing.T) {
	p := newTestPool(t, 4)
	defer p.Close()
	if p.Size() != 4 {
		t.Fatalf("Size() = %d, want 4", p.Size())
	}
}
