package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"gatherly/internal/config"
)

func TestDefaults(t *testing.T) {
	cfg := config.Default()
	if cfg.Server.Addr != "127.0.0.1:5000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Server.BasePath != "/v1" {
		t.Fatalf("unexpected base path %q", cfg.Server.BasePath)
	}
	if cfg.Auth.TokenTTLHours != 24 {
		t.Fatalf("unexpected ttl %d", cfg.Auth.TokenTTLHours)
	}
}

func TestGeneratedDefaultParses(t *testing.T) {
	cfg, err := config.FromYAML([]byte(config.GenerateDefault()))
	if err != nil {
		t.Fatalf("generated default does not parse: %v", err)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 {
		t.Fatalf("unexpected origins %+v", cfg.CORS.AllowedOrigins)
	}
}

func TestFromYAMLOverridesAndValidates(t *testing.T) {
	cfg, err := config.FromYAML([]byte("server:\n  addr: 0.0.0.0:8080\nauth:\n  jwt_secret: s3cret\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:8080" || cfg.Auth.JWTSecret != "s3cret" {
		t.Fatalf("overrides lost: %+v", cfg)
	}
	if cfg.Server.BasePath != "/v1" {
		t.Fatal("defaults must fill unset fields")
	}

	if _, err := config.FromYAML([]byte("auth:\n  token_ttl_hours: -1\n")); err == nil {
		t.Fatal("negative ttl must be rejected")
	}
	if _, err := config.FromYAML([]byte("cors:\n  allowed_origins:\n    - \"\"\n")); err == nil {
		t.Fatal("empty origin must be rejected")
	}
	if _, err := config.FromYAML([]byte("server: [not a map]")); err == nil {
		t.Fatal("invalid yaml must be rejected")
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadOptional(dir)
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:5000" {
		t.Fatal("missing file must yield defaults")
	}

	if err := os.WriteFile(filepath.Join(dir, "gatherly.yml"), []byte("server:\n  addr: 127.0.0.1:9999\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err = config.LoadOptional(dir)
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Fatalf("file not honoured: %q", cfg.Server.Addr)
	}
}
