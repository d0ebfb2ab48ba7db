package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ziadkadry99/productassist/internal/config"
	"github.com/ziadkadry99/productassist/internal/session"
)

func TestJanitorInterval(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want time.Duration
	}{
		{0, 0},
		{-time.Hour, 0},
		{5 * time.Minute, time.Minute},
		{24 * time.Hour, 144 * time.Minute},
	}
	for _, tt := range tests {
		if got := janitorInterval(tt.ttl); got != tt.want {
			t.Errorf("janitorInterval(%s) = %s, want %s", tt.ttl, got, tt.want)
		}
	}
}

func TestOpenStoreBackends(t *testing.T) {
	ctx := context.Background()

	cfg := config.DefaultConfig()
	store, err := openStore(ctx, cfg)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	if _, ok := store.(*session.MemoryStore); !ok {
		t.Errorf("default backend = %T, want *session.MemoryStore", store)
	}
	store.Close()

	cfg.Sessions.Backend = config.BackendSQLite
	cfg.Sessions.SQLitePath = filepath.Join(t.TempDir(), "nested", "sessions.db")
	store, err = openStore(ctx, cfg)
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*session.SQLiteStore); !ok {
		t.Errorf("sqlite backend = %T, want *session.SQLiteStore", store)
	}
	if _, err := os.Stat(cfg.Sessions.SQLitePath); err != nil {
		t.Errorf("sqlite file not created: %v", err)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	if err := os.WriteFile(path, []byte("provider: gemini\n"), 0644); err != nil {
		t.Fatal(err)
	}

	prev := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = prev })

	_, err := loadConfig()
	if err == nil {
		t.Fatal("expected an error for an unknown provider")
	}
	if !strings.Contains(err.Error(), "invalid provider") {
		t.Errorf("error = %v", err)
	}
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	prev := cfgFile
	cfgFile = filepath.Join(t.TempDir(), "missing.yml")
	t.Cleanup(func() { cfgFile = prev })

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("port = %d, want default 8000", cfg.Server.Port)
	}
}
