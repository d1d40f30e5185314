/*
Package webserver is a single-node HTTP/1.1 serving engine built
directly on the OS readiness-notification facility (epoll on Linux,
kqueue on macOS). It accepts TCP connections, parses HTTP
requests, serves static files via memory-mapped I/O, performs
form-based user authentication against a MySQL database, and evicts
idle connections with a timer heap. A fixed-size thread pool executes
per-connection work off the reactor's I/O thread.

Quick start

	cfg := config.New()
	application, err := app.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	log.Fatal(application.Run(context.Background()))

Packages

  - core/buffer: growable read/write byte region with scatter-read I/O
  - core/poller: the Reactor interface and its epoll/kqueue backends
  - core/timer: the indexed min-heap driving idle-connection eviction
  - core/sqlpool: fixed-size pool of pre-opened MySQL handles
  - core/workerpool: fixed worker-count thread pool, single FIFO queue
  - core/httpx: the HTTP/1.1 request parser and mmap-backed response builder
  - core/auth: username/password verification and registration
  - core/conn: per-peer connection state (buffers, iovec, request/response)
  - core/server: the reactor main loop, accept/dispatch state machine, and graceful shutdown
  - core/optimize: length-gated hot-path string comparison
  - config, app: configuration loading and application wiring
  - cmd/webserver: the runnable server binary
*/
package webserver
