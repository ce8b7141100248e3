package config

import (
	"testing"
	"time"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 6543 {
		t.Fatalf("env override not applied: %+v", cfg.Database)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Fatalf("expected shutdown timeout 10s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		t.Fatalf("tracing should be off by default, got %q", cfg.Telemetry.OTLPEndpoint)
	}
	want := "host=db.internal port=6543 user=folioops password= dbname=folioops sslmode=disable"
	if got := cfg.Database.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without jwt.secret")
	}
}
