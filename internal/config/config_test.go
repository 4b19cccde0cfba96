package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Provider.Model != DefaultModel {
		t.Errorf("Model = %q, want %q", cfg.Provider.Model, DefaultModel)
	}
	if cfg.Listening.DefaultMode != "smart-listening" {
		t.Errorf("DefaultMode = %q, want smart-listening", cfg.Listening.DefaultMode)
	}
	if cfg.Listening.DefaultThreshold != 0.6 {
		t.Errorf("DefaultThreshold = %v, want 0.6", cfg.Listening.DefaultThreshold)
	}
	if cfg.Discord.CommandPrefix != "!" {
		t.Errorf("CommandPrefix = %q, want !", cfg.Discord.CommandPrefix)
	}
	if cfg.TTS.Format != "opus" {
		t.Errorf("TTS format = %q, want opus", cfg.TTS.Format)
	}
}

func TestLoadConfigFrom_Missing(t *testing.T) {
	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadConfigFrom error: %v", err)
	}
	if cfg.Gateway.HistoryLimit != DefaultHistoryLimit {
		t.Errorf("HistoryLimit = %d, want %d", cfg.Gateway.HistoryLimit, DefaultHistoryLimit)
	}
}

func TestLoadConfigFrom_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := map[string]any{
		"provider": map[string]any{"apiKey": "sk-test", "model": "custom-model"},
		"discord":  map[string]any{"enabled": true, "token": "tok", "commandPrefix": "?"},
	}
	data, _ := json.Marshal(raw)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom error: %v", err)
	}
	if cfg.Provider.Model != "custom-model" {
		t.Errorf("Model = %q, want custom-model", cfg.Provider.Model)
	}
	if cfg.Discord.CommandPrefix != "?" {
		t.Errorf("CommandPrefix = %q, want ?", cfg.Discord.CommandPrefix)
	}
	// Unset fields still pick up defaults.
	if cfg.Provider.MaxTokens != DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", cfg.Provider.MaxTokens, DefaultMaxTokens)
	}
	// TTS key falls back to provider key.
	if cfg.TTS.APIKey != "sk-test" {
		t.Errorf("TTS APIKey = %q, want sk-test", cfg.TTS.APIKey)
	}
}

func TestLoadConfigFrom_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFrom(path); err == nil {
		t.Error("expected error for malformed config")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when API key missing")
	}

	cfg.Provider.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.Discord.Enabled = true
	cfg.Discord.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when discord enabled without token")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SONANT_API_KEY", "sk-env")
	t.Setenv("SONANT_MODEL", "env-model")

	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadConfigFrom error: %v", err)
	}
	if cfg.Provider.APIKey != "sk-env" {
		t.Errorf("APIKey = %q, want sk-env", cfg.Provider.APIKey)
	}
	if cfg.Provider.Model != "env-model" {
		t.Errorf("Model = %q, want env-model", cfg.Provider.Model)
	}
}
