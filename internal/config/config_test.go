package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("owner.id", "owner-a")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8085" {
		t.Fatalf("unexpected http address: %s", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "lenden.db" {
		t.Fatalf("unexpected database path: %s", cfg.DatabasePath)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected log level: %s", cfg.LogLevel)
	}
	if cfg.SyncBackoff != 30*time.Second {
		t.Fatalf("unexpected backoff: %s", cfg.SyncBackoff)
	}
	if cfg.SyncMaxRetries != 5 {
		t.Fatalf("unexpected retry budget: %d", cfg.SyncMaxRetries)
	}
}

func TestLoadRequiresOwnerID(t *testing.T) {
	if _, err := Load(NewViper()); err == nil {
		t.Fatal("expected missing owner id to be rejected")
	}
}

func TestLoadOverrides(t *testing.T) {
	configViper := NewViper()
	configViper.Set("owner.id", "owner-a")
	configViper.Set("http.address", "127.0.0.1:9000")
	configViper.Set("sync.backoff_seconds", 5)
	configViper.Set("sync.max_retries", 2)

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != "127.0.0.1:9000" {
		t.Fatalf("unexpected http address: %s", cfg.HTTPAddress)
	}
	if cfg.SyncBackoff != 5*time.Second {
		t.Fatalf("unexpected backoff: %s", cfg.SyncBackoff)
	}
	if cfg.SyncMaxRetries != 2 {
		t.Fatalf("unexpected retry budget: %d", cfg.SyncMaxRetries)
	}
}

func TestLoadRejectsNonPositivePolicy(t *testing.T) {
	configViper := NewViper()
	configViper.Set("owner.id", "owner-a")
	configViper.Set("sync.backoff_seconds", 0)

	if _, err := Load(configViper); err == nil {
		t.Fatal("expected zero backoff to be rejected")
	}
}
