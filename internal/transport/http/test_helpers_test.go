package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/auth"
	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/store"
	"github.com/vovakirdan/wirechat-client/internal/store/sqlite"
)

type testEnv struct {
	ts          *httptest.Server
	store       store.Store
	auth        *auth.Service
	broadcaster *Broadcaster
}

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(st store.Store, jwtSecret string) *auth.Service {
	return auth.NewService(st, &auth.JWTConfig{
		Secret: []byte(jwtSecret),
		Issuer: "test",
		TTL:    24 * time.Hour,
	})
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	disabledLogger := zerolog.New(nil)
	st := createTestStore(t)
	authService := createTestAuthService(st, "test-secret")
	broadcaster := NewBroadcaster(0, &disabledLogger)

	ts := httptest.NewServer(NewRouter(st, authService, broadcaster, &disabledLogger))
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, auth: authService, broadcaster: broadcaster}
}

func (e *testEnv) signup(t *testing.T, username string) string {
	t.Helper()

	var resp proto.AuthResponse
	status := e.do(t, http.MethodPost, "/api/v1/signup", "", proto.Credentials{Username: username, Password: "password123"}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("signup %s: status %d", username, status)
	}
	return resp.Token
}

// do sends a JSON request and decodes the JSON response into out when out is non-nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}
