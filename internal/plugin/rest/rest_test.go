package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sigmos/internal/plugin"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()

	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":         chi.URLParam(r, "id"),
			"verbose":    r.URL.Query().Get("verbose"),
			"request_id": r.Header.Get("X-Request-ID"),
			"trace":      r.Header.Get("X-Trace"),
			"agent":      r.Header.Get("User-Agent"),
		})
	})
	r.Post("/users", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	})
	r.Delete("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/text", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain text"))
	})
	r.Get("/auth", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("Authorization")))
	})
	r.Get("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/redirect", http.StatusFound)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(t *testing.T, modify func(*Config)) *Provider {
	t.Helper()
	srv := newTestServer(t)
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	if modify != nil {
		modify(&cfg)
	}
	p, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, p.Initialize())
	return p
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"default", func(c *Config) {}, ""},
		{"empty name", func(c *Config) { c.Name = "" }, "name cannot be empty"},
		{"empty base url", func(c *Config) { c.BaseURL = "" }, "base_url cannot be empty"},
		{"bad scheme", func(c *Config) { c.BaseURL = "ftp://x" }, "must start with http"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"negative redirects", func(c *Config) { c.MaxRedirects = -1 }, "max_redirects"},
		{"token and jwt", func(c *Config) { c.AuthToken = "t"; c.JWT.Secret = "s"; c.JWT.TTL = time.Minute }, "mutually exclusive"},
		{"jwt without ttl", func(c *Config) { c.JWT.Secret = "s" }, "jwt.ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, plugin.ErrInvalidConfiguration)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProvider_NotInitialized(t *testing.T) {
	p, err := New(DefaultConfig())
	require.NoError(t, err)
	_, err = p.Execute("get", nil)
	assert.ErrorIs(t, err, plugin.ErrNotInitialized)
}

func TestProvider_Get(t *testing.T) {
	p := newProvider(t, nil)

	result, err := p.Execute("get", map[string]any{
		"path":    "/users/42",
		"params":  map[string]any{"verbose": "yes"},
		"headers": map[string]any{"X-Trace": "abc"},
	})
	require.NoError(t, err)

	resp := result.(map[string]any)
	assert.Equal(t, 200.0, resp["status"])
	assert.Equal(t, "GET", resp["method"])
	assert.True(t, strings.HasSuffix(resp["url"].(string), "/users/42?verbose=yes"))

	body := resp["body"].(map[string]any)
	assert.Equal(t, "42", body["id"])
	assert.Equal(t, "yes", body["verbose"])
	assert.Equal(t, "abc", body["trace"])
	assert.Equal(t, "SIGMOS-REST-Plugin/1.0", body["agent"])
	assert.Equal(t, resp["request_id"], body["request_id"])
	assert.Len(t, body["request_id"], 36)

	headers := resp["headers"].(map[string]any)
	assert.Equal(t, "application/json", headers["content-type"])
}

func TestProvider_PostAndDelete(t *testing.T) {
	p := newProvider(t, nil)

	result, err := p.Execute("post", map[string]any{
		"arg_0": "users",
		"arg_1": map[string]any{"name": "Ann"},
	})
	require.NoError(t, err)
	resp := result.(map[string]any)
	assert.Equal(t, 201.0, resp["status"])
	assert.Equal(t, map[string]any{"name": "Ann"}, resp["body"])

	result, err = p.Execute("request", map[string]any{"method": "DELETE", "path": "users/1"})
	require.NoError(t, err)
	resp = result.(map[string]any)
	assert.Equal(t, 204.0, resp["status"])
	assert.Equal(t, "", resp["body"])
}

func TestProvider_TextBody(t *testing.T) {
	p := newProvider(t, nil)

	result, err := p.Execute("get", map[string]any{"path": "text"})
	require.NoError(t, err)
	assert.Equal(t, "plain text", result.(map[string]any)["body"])
}

func TestProvider_StaticToken(t *testing.T) {
	p := newProvider(t, func(c *Config) { c.AuthToken = "secret-token" })
	assert.True(t, p.Capabilities().RequiresAuth)

	result, err := p.Execute("get", map[string]any{"path": "auth"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", result.(map[string]any)["body"])
}

func TestProvider_JWT(t *testing.T) {
	p := newProvider(t, func(c *Config) {
		c.JWT = JWTConfig{Secret: "shh", Issuer: "sigmos", Subject: "agent", TTL: time.Minute}
	})

	result, err := p.Execute("get", map[string]any{"path": "auth"})
	require.NoError(t, err)
	resp := result.(map[string]any)

	header := resp["body"].(string)
	require.True(t, strings.HasPrefix(header, "Bearer "))

	signer := NewTokenSigner("shh", "sigmos", "agent", time.Minute)
	claims, err := signer.Verify(strings.TrimPrefix(header, "Bearer "))
	require.NoError(t, err)
	assert.Equal(t, "sigmos", claims.Issuer)
	assert.Equal(t, "agent", claims.Subject)
	assert.Equal(t, resp["request_id"], claims.ID)

	_, err = NewTokenSigner("other", "", "", time.Minute).Verify(strings.TrimPrefix(header, "Bearer "))
	assert.Error(t, err)
}

func TestTokenSigner_Expired(t *testing.T) {
	signer := NewTokenSigner("k", "", "", time.Minute)
	issued := time.Now().Add(-time.Hour)
	signer.now = func() time.Time { return issued }
	token, err := signer.Sign("id")
	require.NoError(t, err)

	_, err = NewTokenSigner("k", "", "", time.Minute).Verify(token)
	assert.Error(t, err)
}

func TestProvider_Errors(t *testing.T) {
	p := newProvider(t, func(c *Config) { c.MaxRedirects = 2 })

	_, err := p.Execute("get", map[string]any{"path": "redirect"})
	assert.ErrorIs(t, err, plugin.ErrNetwork)

	_, err = p.Execute("request", map[string]any{"method": "TRACE"})
	assert.ErrorIs(t, err, plugin.ErrExecutionFailed)

	_, err = p.Execute("request", nil)
	assert.ErrorIs(t, err, plugin.ErrExecutionFailed)

	_, err = p.Execute("connect", nil)
	assert.ErrorIs(t, err, plugin.ErrMethodNotFound)

	_, err = p.Execute("get", map[string]any{"headers": "nope"})
	assert.ErrorIs(t, err, plugin.ErrExecutionFailed)
}

func TestProvider_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "http://127.0.0.1:1"
	cfg.Timeout = time.Second
	p, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, p.Initialize())

	_, err = p.Execute("get", nil)
	assert.ErrorIs(t, err, plugin.ErrNetwork)
}
