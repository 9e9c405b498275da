package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	loader := &Loader{
		filePath: filepath.Join(t.TempDir(), "config.json"),
	}

	cfg, err := loader.Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.LLM.Provider != "openai" {
		t.Fatalf("expected openai, got %s", cfg.LLM.Provider)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Fatalf("expected 3 retries, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.InitialDelayMS != 1000 || cfg.Retry.MaxDelayMS != 10000 || cfg.Retry.TimeoutMS != 30000 {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Retry)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	loader := &Loader{filePath: path}

	cfg := Defaults()
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.APIKey = "test-key"
	cfg.Retry.MaxRetries = 5

	if err := loader.Save(cfg); err != nil {
		t.Fatal(err)
	}

	// Verify file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	// Load back
	loaded, err := loader.Load()
	if err != nil {
		t.Fatal(err)
	}

	if loaded.LLM.Provider != "anthropic" {
		t.Fatalf("expected anthropic, got %s", loaded.LLM.Provider)
	}
	if loaded.LLM.APIKey != "test-key" {
		t.Fatalf("expected test-key, got %s", loaded.LLM.APIKey)
	}
	if loaded.Retry.MaxRetries != 5 {
		t.Fatalf("expected 5 retries, got %d", loaded.Retry.MaxRetries)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPENCODE_NEXUS_PROVIDER", "anthropic")
	t.Setenv("OPENCODE_NEXUS_API_KEY", "env-key")

	loader := &Loader{
		filePath: filepath.Join(t.TempDir(), "config.json"),
	}
	cfg, err := loader.Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.LLM.Provider != "anthropic" {
		t.Fatalf("env should override provider, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("env should override api key, got %s", cfg.LLM.APIKey)
	}
}

func TestGetAndFilePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	loader := &Loader{filePath: path}

	if loader.FilePath() != path {
		t.Fatalf("expected %s, got %s", path, loader.FilePath())
	}

	// Before Load, Get falls back to defaults.
	if got := loader.Get(); got.LLM.Provider != "openai" {
		t.Fatalf("expected default provider, got %s", got.LLM.Provider)
	}

	cfg := Defaults()
	cfg.LLM.Provider = "anthropic"
	if err := loader.Save(cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := loader.Load(); err != nil {
		t.Fatal(err)
	}
	if got := loader.Get(); got.LLM.Provider != "anthropic" {
		t.Fatalf("expected anthropic after load, got %s", got.LLM.Provider)
	}
}
