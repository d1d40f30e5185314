// Package app wires configuration, the SQL handle pool, auth, and the
// server core into one runnable application with signal-driven
// graceful shutdown.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/searchktools/webserver/config"
	"github.com/searchktools/webserver/core/auth"
	"github.com/searchktools/webserver/core/server"
	"github.com/searchktools/webserver/core/sqlpool"
)

// App owns the configuration, the optional SQL pool backing auth, and
// the server core.
type App struct {
	cfg     *config.Config
	sqlPool *sqlpool.Pool
	srv     *server.Server
}

// New builds an App from cfg. If the SQL pool can't be opened (no
// database reachable at startup), auth is disabled for the lifetime
// of the process and every login/register attempt fails closed,
// rather than treating it as a fatal startup error. Failing to create
// the source directory, the reactor, or the listen socket is fatal.
func New(cfg *config.Config) (*App, error) {
	if err := os.MkdirAll(cfg.SrcDir, 0o755); err != nil {
		return nil, fmt.Errorf("app: prepare src dir: %w", err)
	}

	var verify func(name, pwd string, isLogin bool) bool
	pool, err := sqlpool.Open(context.Background(), sqlpool.Config{
		Host:     cfg.SQLHost,
		Port:     cfg.SQLPort,
		User:     cfg.SQLUser,
		Password: cfg.SQLPassword,
		DBName:   cfg.DBName,
		PoolSize: cfg.SQLPoolSize,
	})
	if err != nil {
		log.Printf("app: SQL pool unavailable (%v), auth disabled", err)
		pool = nil
	} else {
		svc := auth.New(pool, 2*time.Second)
		verify = svc.VerifierFunc()
	}

	srv, err := server.New(server.Config{
		Port:           cfg.Port,
		TrigMode:       cfg.TrigMode,
		TimeoutMS:      cfg.TimeoutMS,
		OpenLinger:     cfg.OpenLinger,
		SrcDir:         cfg.SrcDir,
		MaxEvents:      cfg.MaxEvents,
		ThreadPoolSize: cfg.ThreadPoolSize,
	}, verify)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, fmt.Errorf("app: server init: %w", err)
	}
	if pool != nil {
		srv.SetSQLPool(pool)
	}

	return &App{cfg: cfg, sqlPool: pool, srv: srv}, nil
}

// Run starts the server core and blocks until a shutdown signal
// arrives or ctx is cancelled by the caller, then drains connections
// and closes the SQL pool before returning.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.awaitSignal(cancel)

	log.Printf("app: starting on port %d, srcDir=%s, sqlPool=%v", a.cfg.Port, a.cfg.SrcDir, a.sqlPool != nil)
	err := a.srv.Run(ctx)

	if a.sqlPool != nil {
		if closeErr := a.sqlPool.Close(); closeErr != nil {
			log.Printf("app: closing SQL pool: %v", closeErr)
		}
	}
	return err
}

// Stats exposes the server core's diagnostics snapshot.
func (a *App) Stats() server.Stats { return a.srv.Stats() }

func (a *App) awaitSignal(cancel context.CancelFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("app: signal received: %v, shutting down", sig)
	cancel()
}
