package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.ListenAddr)
	}
	if cfg.MaxRoomMessages != 500 {
		t.Fatalf("expected 500, got %d", cfg.MaxRoomMessages)
	}
	if cfg.HistoryPageSize != 25 {
		t.Fatalf("expected 25, got %d", cfg.HistoryPageSize)
	}
	if cfg.MaxAttachmentBytes != 2<<20 {
		t.Fatalf("expected 2MiB, got %d", cfg.MaxAttachmentBytes)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("expected empty redis addr, got %s", cfg.RedisAddr)
	}
}

func TestYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("listen_addr: \":9090\"\nmax_room_messages: 100\nlog_level: debug\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("expected :9090, got %s", cfg.ListenAddr)
	}
	if cfg.MaxRoomMessages != 100 {
		t.Fatalf("expected 100, got %d", cfg.MaxRoomMessages)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected debug, got %s", cfg.LogLevel)
	}
	// Untouched fields keep their defaults.
	if cfg.HistoryPageSize != 25 {
		t.Fatalf("expected 25, got %d", cfg.HistoryPageSize)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: \":9090\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LISTEN_ADDR", ":7070")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Fatalf("env should win over file, got %s", cfg.ListenAddr)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("expected redis addr from env, got %s", cfg.RedisAddr)
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestInvalidValuesRejected(t *testing.T) {
	t.Setenv("MAX_ROOM_MESSAGES", "-1")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
