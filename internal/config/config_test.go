// ABOUTME: Tests for configuration loading, env expansion, and validation
// ABOUTME: Uses temp files to exercise the YAML parsing paths

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const validConfig = `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/mock.db"
auth:
  jwt_secret: "test-secret"
  access_ttl: "30m"
  refresh_ttl: "168h"
logging:
  level: "debug"
  format: "json"
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.HTTPAddr != "localhost:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "localhost:8080")
	}
	if cfg.Database.Path != "/tmp/mock.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/mock.db")
	}
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "test-secret")
	}
	if cfg.Auth.AccessTTL != 30*time.Minute {
		t.Errorf("Auth.AccessTTL = %v, want %v", cfg.Auth.AccessTTL, 30*time.Minute)
	}
	if cfg.Auth.RefreshTTL != 168*time.Hour {
		t.Errorf("Auth.RefreshTTL = %v, want %v", cfg.Auth.RefreshTTL, 168*time.Hour)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "from-env")

	cfg, err := Load(writeConfig(t, `
server:
  http_addr: "localhost:9090"
database:
  path: "/tmp/db.sqlite"
auth:
  jwt_secret: "${TEST_JWT_SECRET}"
`))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "from-env")
	}
}

func TestLoad_UnsetEnvVarFailsValidation(t *testing.T) {
	os.Unsetenv("TOOLBENCH_TEST_UNSET_VAR")

	_, err := Load(writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/db.sqlite"
auth:
  jwt_secret: "${TOOLBENCH_TEST_UNSET_VAR}"
`))
	if err == nil {
		t.Fatal("Load() expected error for unset env var secret, got nil")
	}
	if !strings.Contains(err.Error(), "jwt_secret") {
		t.Errorf("Load() error = %v, want mention of jwt_secret", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	if err == nil {
		t.Fatal("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/db.sqlite"
auth:
  jwt_secret: "secret"
  access_ttl: "not-a-duration"
`))
	if err == nil {
		t.Fatal("Load() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "access_ttl") {
		t.Errorf("Load() error = %v, want mention of access_ttl", err)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing http_addr", func(c *Config) { c.Server.HTTPAddr = "" }, "server.http_addr"},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"missing jwt_secret", func(c *Config) { c.Auth.JWTSecret = "" }, "auth.jwt_secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server:   ServerConfig{HTTPAddr: "localhost:8080"},
				Database: DatabaseConfig{Path: "/tmp/db.sqlite"},
				Auth:     AuthConfig{JWTSecret: "secret"},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}
