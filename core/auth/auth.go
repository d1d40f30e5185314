// Package auth implements the username/password verification and
// registration step behind the login and register forms. All SQL uses
// placeholder parameters; user input never reaches the query text.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/searchktools/webserver/core/sqlpool"
)

// Service verifies login attempts and registers new accounts against
// the user(username, password) table, borrowing a handle from a
// sqlpool.Pool for the duration of each call.
type Service struct {
	pool    *sqlpool.Pool
	timeout time.Duration
}

// New returns a Service backed by pool. timeout bounds how long a
// single verify call waits to acquire a handle and run its query;
// zero means no bound beyond the caller's context.
func New(pool *sqlpool.Pool, timeout time.Duration) *Service {
	return &Service{pool: pool, timeout: timeout}
}

// Verify checks (name, pwd) against the user table. For a login
// attempt (isLogin true), it succeeds only if the row exists and the
// password matches. For a registration attempt (isLogin false), it
// succeeds by inserting a new row if the username is free, and fails
// if it's already taken. SQL errors, an empty name, or an empty
// password all report failure rather than propagating an error.
func (s *Service) Verify(ctx context.Context, name, pwd string, isLogin bool) bool {
	if name == "" || pwd == "" {
		return false
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	guard, err := sqlpool.AcquireGuard(ctx, s.pool)
	if err != nil {
		return false
	}
	defer guard.Close()
	conn := guard.Conn()

	var stored string
	err = conn.QueryRowContext(ctx, "SELECT password FROM user WHERE username = ?", name).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if isLogin {
			return false
		}
		_, err := conn.ExecContext(ctx, "INSERT INTO user(username, password) VALUES (?, ?)", name, pwd)
		return err == nil
	case err != nil:
		return false
	case isLogin:
		return pwd == stored
	default:
		// Registration against an already-taken username.
		return false
	}
}

// VerifierFunc adapts Verify to httpx.Verifier's signature
// (func(name, pwd string, isLogin bool) bool), binding a background
// context so core/httpx never needs to know about contexts or the SQL
// pool directly.
func (s *Service) VerifierFunc() func(name, pwd string, isLogin bool) bool {
	return func(name, pwd string, isLogin bool) bool {
		return s.Verify(context.Background(), name, pwd, isLogin)
	}
}
