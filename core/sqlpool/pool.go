// Package sqlpool implements a fixed-size SQL handle pool: a bounded
// set of pre-opened database handles guarded by a counting semaphore,
// so callers block instead of opening unbounded new connections under
// load.
//
// database/sql already keeps its own internal connection pool, but the
// contract here is stronger: a caller either holds one of a fixed N
// handles or waits, with no handle ever created on demand. That is
// modeled with a buffered channel of *sql.Conn acting as both the
// queue and the semaphore.
package sqlpool

import (
	"context"
	"database/sql"
	"fmt"
)

// Pool is a fixed-size pool of pre-opened *sql.Conn handles.
type Pool struct {
	db    *sql.DB
	conns chan *sql.Conn
	size  int
}

// Config holds the connection parameters for the pool's handles.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	PoolSize int

	// DriverName overrides the database/sql driver name, defaulting to
	// "mysql". Tests substitute a fake driver here.
	DriverName string
}

// Open opens Config.PoolSize handles against the given MySQL database
// and returns a ready-to-use Pool. If any handle fails to open, every
// handle opened so far is closed before returning the error.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	driver := cfg.DriverName
	if driver == "" {
		driver = "mysql"
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.PoolSize)

	p := &Pool{db: db, conns: make(chan *sql.Conn, cfg.PoolSize), size: cfg.PoolSize}
	for i := 0; i < cfg.PoolSize; i++ {
		conn, err := db.Conn(ctx)
		if err != nil {
			p.closeOpened(i)
			db.Close()
			return nil, err
		}
		p.conns <- conn
	}
	return p, nil
}

func (p *Pool) closeOpened(n int) {
	for i := 0; i < n; i++ {
		c := <-p.conns
		c.Close()
	}
}

// Acquire blocks until a handle is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	select {
	case c := <-p.conns:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a handle to the pool.
func (p *Pool) Release(conn *sql.Conn) {
	p.conns <- conn
}

// Free returns the number of currently idle handles.
func (p *Pool) Free() int { return len(p.conns) }

// Size returns the pool's fixed capacity.
func (p *Pool) Size() int { return p.size }

// Close drains every handle and closes the underlying *sql.DB.
func (p *Pool) Close() error {
	for i := 0; i < p.size; i++ {
		c := <-p.conns
		c.Close()
	}
	return p.db.Close()
}

// Guard is a scope-bound handle acquisition: acquire on construction,
// release exactly once on Close.
type Guard struct {
	pool *Pool
	conn *sql.Conn
}

// AcquireGuard acquires a handle and wraps it in a Guard.
func AcquireGuard(ctx context.Context, p *Pool) (*Guard, error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Guard{pool: p, conn: conn}, nil
}

// Conn returns the held handle.
func (g *Guard) Conn() *sql.Conn { return g.conn }

// Close returns the handle to its pool. Safe to call at most once.
func (g *Guard) Close() {
	g.pool.Release(g.conn)
}
