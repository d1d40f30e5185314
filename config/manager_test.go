package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestManagerSetGetRoundTrip(t *testing.T) {
	m := NewManager()
	m.Set("sql.host", "db.internal")
	if got := m.GetString("sql.host"); got != "db.internal" {
		t.Fatalf("GetString() = %q, want db.internal", got)
	}
	if _, ok := m.Get("missing"); ok {
		t.Fatal("Get() on missing key reported present")
	}
}

func TestManagerGetIntAndBoolCoercion(t *testing.T) {
	m := NewManager()
	m.Set("port", "8080")
	if got := m.GetInt("port"); got != 8080 {
		t.Fatalf("GetInt() = %d, want 8080", got)
	}
	m.Set("linger", "yes")
	if !m.GetBool("linger") {
		t.Fatal("GetBool() = false, want true for \"yes\"")
	}
	if got := m.GetInt("nope", 42); got != 42 {
		t.Fatalf("GetInt() default = %d, want 42", got)
	}
}

func TestManagerLoadFromEnv(t *testing.T) {
	t.Setenv("SQL_HOST", "env-host")
	t.Setenv("SQL_POOL_SIZE", "20")

	m := NewManager()
	m.LoadFromEnv("")

	if got := m.GetString("sql.host"); got != "env-host" {
		t.Fatalf("GetString(sql.host) = %q, want env-host", got)
	}
	if got := m.GetInt("sql.pool.size"); got != 20 {
		t.Fatalf("GetInt(sql.pool.size) = %d, want 20", got)
	}
}

func TestManagerLoadFromJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"sql": {"host": "json-host", "port": 3307}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	m := NewManager()
	if err := m.LoadFromJSON(path); err != nil {
		t.Fatalf("LoadFromJSON() error: %v", err)
	}
	if got := m.GetString("sql.host"); got != "json-host" {
		t.Fatalf("GetString(sql.host) = %q, want json-host", got)
	}
	if got := m.GetInt("sql.port"); got != 3307 {
		t.Fatalf("GetInt(sql.port) = %d, want 3307", got)
	}
}
