// Package config builds the server's configuration from command-line
// flags, with PORT, SQL_* and DB_NAME environment variables able to
// override the flag defaults (see manager.go).
package config

import (
	"flag"
	"strconv"
)

// Config holds the server's constructor parameters plus the auth
// database's connection settings.
type Config struct {
	Port       int
	TrigMode   int
	TimeoutMS  int
	OpenLinger bool
	SrcDir     string
	MaxEvents  int

	ThreadPoolSize int

	SQLHost     string
	SQLPort     int
	SQLUser     string
	SQLPassword string
	DBName      string
	SQLPoolSize int
}

// New parses command-line flags into a Config, then applies any
// PORT/SQL_*/DB_NAME environment variable overrides via a Manager.
func New() *Config {
	cfg := &Config{}

	flag.IntVar(&cfg.Port, "port", 1316, "listen port (1024-65535)")
	flag.IntVar(&cfg.TrigMode, "trig-mode", 3, "epoll trigger mode: 0 LT/LT, 1 ET conn, 2 ET listen, 3 ET/ET")
	flag.IntVar(&cfg.TimeoutMS, "timeout-ms", 60000, "idle connection timeout in milliseconds, 0 disables eviction")
	flag.BoolVar(&cfg.OpenLinger, "open-linger", false, "enable SO_LINGER graceful close on the listen socket")
	flag.StringVar(&cfg.SrcDir, "src-dir", defaultSrcDir(), "static resource root directory")
	flag.IntVar(&cfg.MaxEvents, "max-events", 1024, "max ready events returned per reactor Wait call")
	flag.IntVar(&cfg.ThreadPoolSize, "thread-pool-size", 6, "worker pool size")

	flag.StringVar(&cfg.SQLHost, "sql-host", "localhost", "MySQL host")
	flag.IntVar(&cfg.SQLPort, "sql-port", 3306, "MySQL port")
	flag.StringVar(&cfg.SQLUser, "sql-user", "root", "MySQL user")
	flag.StringVar(&cfg.SQLPassword, "sql-password", "", "MySQL password")
	flag.StringVar(&cfg.DBName, "db-name", "webserver", "MySQL database name")
	flag.IntVar(&cfg.SQLPoolSize, "sql-pool-size", 10, "SQL handle pool size")

	if !flag.Parsed() {
		flag.Parse()
	}

	m := NewManager()
	m.LoadFromEnv("")
	cfg.applyEnvOverrides(m)
	return cfg
}

// applyEnvOverrides reads the operator-facing overrides (PORT, the
// SQL_* family, and DB_NAME), leaving every other flag to the command
// line.
func (c *Config) applyEnvOverrides(m *Manager) {
	if v, ok := m.Get("port"); ok {
		if n, err := strconv.Atoi(v.(string)); err == nil {
			c.Port = n
		}
	}
	if v, ok := m.Get("sql.host"); ok {
		c.SQLHost = v.(string)
	}
	if v, ok := m.Get("sql.port"); ok {
		if n, err := strconv.Atoi(v.(string)); err == nil {
			c.SQLPort = n
		}
	}
	if v, ok := m.Get("sql.user"); ok {
		c.SQLUser = v.(string)
	}
	if v, ok := m.Get("sql.password"); ok {
		c.SQLPassword = v.(string)
	}
	if v, ok := m.Get("db.name"); ok {
		c.DBName = v.(string)
	}
	if v, ok := m.Get("sql.pool.size"); ok {
		if n, err := strconv.Atoi(v.(string)); err == nil {
			c.SQLPoolSize = n
		}
	}
}

func defaultSrcDir() string {
	return "./resources"
}
