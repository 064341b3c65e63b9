package config

import "testing"

func TestLoadAppCombinesConcerns(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadApp()
	if err != nil {
		t.Fatalf("LoadApp() error = %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("Log.Level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Server.StoreDriver != "memory" {
		t.Fatalf("Server.StoreDriver = %q, want memory", cfg.Server.StoreDriver)
	}
}

func TestLoadAppKeepsLogConfigOnServerError(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadApp()
	if err == nil {
		t.Fatal("LoadApp() expected error, got nil")
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}
