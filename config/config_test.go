package config

import "testing"

// New registers its flags on the global flag.CommandLine, so this is
// the only test in the package allowed to call it; a second call
// would panic on a duplicate flag registration.
func TestNewAppliesSQLEnvOverride(t *testing.T) {
	t.Setenv("SQL_HOST", "override-host")
	t.Setenv("PORT", "9090")

	cfg := New()

	if cfg.SQLHost != "override-host" {
		t.Fatalf("SQLHost = %q, want override-host", cfg.SQLHost)
	}
	if cfg.Port != 9090 {
		t.Fatalf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.ThreadPoolSize != 6 {
		t.Fatalf("ThreadPoolSize = %d, want default 6", cfg.ThreadPoolSize)
	}
}
