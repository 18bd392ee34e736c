package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if len(cfg.ChatModels) != 2 {
		t.Fatalf("ChatModels = %v, want two candidates", cfg.ChatModels)
	}
	if cfg.HistoryWindow != 5 {
		t.Fatalf("HistoryWindow = %d, want 5", cfg.HistoryWindow)
	}
	if cfg.GenerateTimeout != 60*time.Second {
		t.Fatalf("GenerateTimeout = %v, want 60s", cfg.GenerateTimeout)
	}
	if cfg.MaxTokens != 500 {
		t.Fatalf("MaxTokens = %d, want 500", cfg.MaxTokens)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHAT_MODELS", "org/model-a, org/model-b ,org/model-c")
	t.Setenv("APP_HISTORY_WINDOW", "8")
	t.Setenv("APP_TEMPERATURE", "0.2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.ChatModels) != 3 || cfg.ChatModels[1] != "org/model-b" {
		t.Fatalf("ChatModels = %v, want trimmed three-entry list", cfg.ChatModels)
	}
	if cfg.HistoryWindow != 8 {
		t.Fatalf("HistoryWindow = %d, want 8", cfg.HistoryWindow)
	}
	if cfg.Temperature != 0.2 {
		t.Fatalf("Temperature = %v, want 0.2", cfg.Temperature)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("APP_HISTORY_WINDOW", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() with zero history window should fail")
	}
}

func TestOriginAllowed(t *testing.T) {
	cfg := Config{AllowedOrigins: []string{"http://localhost:5173"}}
	if !cfg.OriginAllowed("http://localhost:5173") {
		t.Fatalf("configured origin should be allowed")
	}
	if cfg.OriginAllowed("http://evil.example") {
		t.Fatalf("unknown origin should be rejected")
	}

	wild := Config{AllowedOrigins: []string{"*"}}
	if !wild.OriginAllowed("http://anything.example") {
		t.Fatalf("wildcard should allow any origin")
	}
}
