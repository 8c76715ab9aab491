package app

import (
	"path/filepath"
	"testing"

	"github.com/vovakirdan/wirechat-client/internal/config"
)

func TestFileCredentialsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wirechat.yaml")
	creds := NewFileCredentials(path, "", "")

	if err := creds.Save("alice", "tok-1"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if name, token := creds.Load(); name != "alice" || token != "tok-1" {
		t.Fatalf("Load = %q %q", name, token)
	}
	cfg, _, err := config.Load(nil, path)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if cfg.Token != "tok-1" {
		t.Fatalf("token not written to file, got %q", cfg.Token)
	}

	if err := creds.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if name, token := creds.Load(); name != "alice" || token != "" {
		t.Fatalf("after Clear: %q %q", name, token)
	}
	cfg, _, err = config.Load(nil, path)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if cfg.Token != "" || cfg.Username != "alice" {
		t.Fatalf("file after Clear: %q %q", cfg.Username, cfg.Token)
	}
}
