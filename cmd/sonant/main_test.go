package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sonantlabs/sonant/internal/config"
)

func TestMaskKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", "not set"},
		{"short", "set"},
		{"sk-abcdefghijklmnop", "sk-a...mnop"},
	}
	for _, tt := range tests {
		if got := maskKey(tt.key); got != tt.want {
			t.Errorf("maskKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestRunOnboard_CreatesConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := runOnboard(onboardCmd, nil); err != nil {
		t.Fatalf("runOnboard: %v", err)
	}

	if _, err := os.Stat(config.ConfigPath()); err != nil {
		t.Errorf("config not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(config.ConfigDir(), "data")); err != nil {
		t.Errorf("data dir not created: %v", err)
	}

	// Second run leaves the existing config alone.
	if err := runOnboard(onboardCmd, nil); err != nil {
		t.Fatalf("runOnboard (second): %v", err)
	}
}

func TestRunServe_MissingAPIKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SONANT_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	if err := runServe(serveCmd, nil); err == nil {
		t.Error("serve without API key should fail validation")
	}
}

func TestRunStatus_NoConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SONANT_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	// Status degrades gracefully with nothing on disk.
	if err := runStatus(statusCmd, nil); err != nil {
		t.Errorf("runStatus: %v", err)
	}
}
