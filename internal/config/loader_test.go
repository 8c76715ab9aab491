package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wirechat.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("expected path %s, got %s", path, resolved)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	def := Default()
	if cfg.APIURL != def.APIURL || cfg.WSURL != def.WSURL {
		t.Fatalf("unexpected urls: %+v", cfg)
	}
	if cfg.RequestTimeout != def.RequestTimeout {
		t.Fatalf("expected request timeout %v, got %v", def.RequestTimeout, cfg.RequestTimeout)
	}
	if !cfg.Reconnect.Enabled || !cfg.Reconnect.Resync {
		t.Fatalf("expected reconnect defaults to be on: %+v", cfg.Reconnect)
	}
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	data := []byte(`
api_url: http://chat.example/api/v1
request_timeout: 3s
reconnect:
  enabled: false
  backoff: 250ms
filter:
  extra_words: [darn, heck]
devserver:
  addr: ":9999"
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("WIRECHAT_WS_URL", "ws://env.example/ws")
	t.Setenv("WIRECHAT_RECONNECT_RESYNC", "false")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.APIURL != "http://chat.example/api/v1" {
		t.Errorf("api_url from file not applied: %s", cfg.APIURL)
	}
	if cfg.WSURL != "ws://env.example/ws" {
		t.Errorf("ws_url from env not applied: %s", cfg.WSURL)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %v", cfg.RequestTimeout)
	}
	if cfg.Reconnect.Enabled {
		t.Errorf("reconnect.enabled should be false")
	}
	if cfg.Reconnect.Resync {
		t.Errorf("reconnect.resync should be false from env")
	}
	if cfg.Reconnect.Backoff != 250*time.Millisecond {
		t.Errorf("expected 250ms backoff, got %v", cfg.Reconnect.Backoff)
	}
	if len(cfg.Filter.ExtraWords) != 2 || cfg.Filter.ExtraWords[0] != "darn" {
		t.Errorf("unexpected extra words: %v", cfg.Filter.ExtraWords)
	}
	if cfg.DevServer.Addr != ":9999" {
		t.Errorf("unexpected devserver addr: %s", cfg.DevServer.Addr)
	}
	if cfg.DevServer.JWTIssuer != Default().DevServer.JWTIssuer {
		t.Errorf("nested default lost: %s", cfg.DevServer.JWTIssuer)
	}
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{
		Token:     "abc",
		Reconnect: ReconnectConfig{Backoff: 2 * time.Second},
		DevServer: DevServerConfig{Addr: ":1"},
	})

	if cfg.Token != "abc" {
		t.Errorf("token not merged")
	}
	if cfg.Reconnect.Backoff != 2*time.Second {
		t.Errorf("backoff not merged")
	}
	if cfg.Reconnect.MaxBackoff != Default().Reconnect.MaxBackoff {
		t.Errorf("zero value should not overwrite")
	}
	if cfg.DevServer.Addr != ":1" || cfg.APIURL != Default().APIURL {
		t.Errorf("unexpected merge result: %+v", cfg)
	}
}
