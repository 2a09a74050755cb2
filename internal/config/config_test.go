package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jacentio/storefront/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != config.BackendMemory {
		t.Errorf("expected memory backend, got %q", cfg.Backend)
	}
	if cfg.SettleDelay != 1500*time.Millisecond {
		t.Errorf("expected 1.5s settle delay, got %s", cfg.SettleDelay)
	}
	if cfg.MaxItemAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.MaxItemAttempts)
	}
	rc := cfg.Record()
	if rc.Services != "services" || rc.OwnerField != "shop_id" {
		t.Errorf("unexpected collections: %+v", rc)
	}
	if cfg.MediaEnabled() {
		t.Error("expected media disabled without a bucket")
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STOREFRONT_BACKEND", "dynamo")
	t.Setenv("STOREFRONT_SERVICES_COLLECTION", "shop_services")
	t.Setenv("STOREFRONT_SETTLE_DELAY", "0s")
	t.Setenv("STOREFRONT_MEDIA_BUCKET", "media")
	t.Setenv("AWS_REGION", "eu-west-1")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != config.BackendDynamo {
		t.Errorf("expected dynamo backend, got %q", cfg.Backend)
	}
	if got := cfg.Provision(); got.Collections.Services != "shop_services" || got.SettleDelay != 0 {
		t.Errorf("unexpected provision config: %+v", got)
	}
	if m := cfg.Media(); m.Bucket != "media" || m.Region != "eu-west-1" {
		t.Errorf("expected media region to default to AWS region, got %+v", m)
	}
}

func TestLoad_DotenvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("STOREFRONT_STAFF_COLLECTION=team\nSTOREFRONT_KEY_TABLE=keys\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("STOREFRONT_STAFF_COLLECTION")
		os.Unsetenv("STOREFRONT_KEY_TABLE")
	})

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Staff != "team" {
		t.Errorf("expected staff collection from .env, got %q", cfg.Staff)
	}
	if cfg.KeyTable != "keys" {
		t.Errorf("expected key table from .env, got %q", cfg.KeyTable)
	}
}

func TestValidate(t *testing.T) {
	base := func() config.Config {
		return config.Config{Backend: "memory", MaxItemAttempts: 3, LogLevel: "info", LogFormat: "text"}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*config.Config) {}},
		{name: "unknown backend", mutate: func(c *config.Config) { c.Backend = "mongo" }, wantErr: "unknown backend"},
		{name: "postgres without dsn", mutate: func(c *config.Config) { c.Backend = "postgres" }, wantErr: "DATABASE_URL"},
		{name: "postgres with dsn", mutate: func(c *config.Config) { c.Backend = "postgres"; c.DatabaseURL = "postgres://x" }},
		{name: "zero attempts", mutate: func(c *config.Config) { c.MaxItemAttempts = 0 }, wantErr: "attempts"},
		{name: "negative settle", mutate: func(c *config.Config) { c.SettleDelay = -time.Second }, wantErr: "settle"},
		{name: "bad level", mutate: func(c *config.Config) { c.LogLevel = "loud" }, wantErr: "log level"},
		{name: "bad format", mutate: func(c *config.Config) { c.LogFormat = "xml" }, wantErr: "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{LogLevel: "warn", LogFormat: "json"}
	logger := cfg.Logger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "shopID", "s1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("expected info to be filtered at warn level")
	}
	if !strings.Contains(out, `"shopID":"s1"`) {
		t.Errorf("expected JSON output, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "Warn", "error"} {
		if _, err := config.ParseLevel(s); err != nil {
			t.Errorf("ParseLevel(%q): unexpected error %v", s, err)
		}
	}
	if _, err := config.ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}
