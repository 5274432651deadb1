package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/sigmos/internal/cli/config"
	"github.com/copyleftdev/sigmos/internal/history"
)

const greeter = `spec "Greeter" v1.2 {
  inputs:
    name: string
    token: string secret optional
    enabled: bool default(true)
  computed:
    greeting: -> "Hello ${name}"
  constraints:
    ensure: enabled
}`

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Plugins.Enabled = []string{"cache"}
	cfg.History.Keep = 10

	s, err := New(cfg, opts...)
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC) }
	return s
}

func withHistory(t *testing.T) Option {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return WithHistory(store)
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestNewRejectsInvalidPluginConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Plugins.Enabled = []string{"gopher"}

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var body map[string]any
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["history"])
}

func TestRequestIDIsPropagated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	newTestServer(t).Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}

func TestPlugins(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/plugins", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Plugins []struct {
			Metadata struct {
				Name    string   `json:"name"`
				Methods []string `json:"methods"`
			} `json:"metadata"`
		} `json:"plugins"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Plugins, 2)
	assert.Equal(t, "builtin", body.Plugins[0].Metadata.Name)
	assert.Equal(t, "cache", body.Plugins[1].Metadata.Name)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		source string
		status int
		code   string
	}{
		{"valid", greeter, http.StatusOK, ""},
		{"syntax error", `spec "Broken" v1.0 { inputs: name }`, http.StatusUnprocessableEntity, "GRM002"},
		{"lexical error", `spec "Broken" v1.0 { # }`, http.StatusUnprocessableEntity, "GRM001"},
	}

	s := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/validate", SourceRequest{Source: tt.source, File: "greeter.sigmos"})
			assert.Equal(t, tt.status, rec.Code)

			var body ValidateResponse
			decodeBody(t, rec, &body)
			if tt.code == "" {
				assert.True(t, body.Valid)
				assert.Equal(t, "Greeter", body.Spec)
				assert.Equal(t, "1.2", body.Version)
				return
			}
			assert.False(t, body.Valid)
			require.NotEmpty(t, body.Errors)
			assert.Equal(t, tt.code, string(body.Errors[0].Code))
			assert.Equal(t, "greeter.sigmos", body.Errors[0].File)
		})
	}
}

func TestValidateRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/validate", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/validate", `{"source": "x", "extra": true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "bad_request", body.Error)
	assert.Equal(t, "invalid_request", body.Code)
}

func TestTranspile(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/transpile", TranspileRequest{SourceRequest: SourceRequest{Source: greeter}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	var doc map[string]any
	decodeBody(t, rec, &doc)
	assert.Equal(t, "Greeter", doc["name"])

	rec = do(t, s, http.MethodPost, "/transpile", TranspileRequest{SourceRequest: SourceRequest{Source: greeter}, Format: "yml"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/yaml")
	doc = nil
	require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "1.2", doc["version"])

	rec = do(t, s, http.MethodPost, "/transpile", TranspileRequest{SourceRequest: SourceRequest{Source: greeter}, Format: "xml"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/transpile", TranspileRequest{SourceRequest: SourceRequest{Source: "spec"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body ErrorResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "invalid_spec", body.Code)
	assert.NotNil(t, body.Details)
}

func TestExecute(t *testing.T) {
	s := newTestServer(t, withHistory(t))

	rec := do(t, s, http.MethodPost, "/execute", ExecuteRequest{
		SourceRequest:    SourceRequest{Source: greeter},
		Inputs:           map[string]any{"name": "Ada", "token": "s3cr3t"},
		CheckConstraints: true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body ExecuteResponse
	decodeBody(t, rec, &body)
	require.NotNil(t, body.Execution)
	assert.Empty(t, body.Errors)
	assert.Equal(t, "completed", body.Execution.State)
	assert.Equal(t, "Hello Ada", body.Execution.Computed["greeting"])
	assert.True(t, strings.HasPrefix(body.Execution.Inputs["token"].(string), history.DigestPrefix))

	rec = do(t, s, http.MethodGet, "/executions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Executions []history.Record `json:"executions"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Executions, 1)
	assert.Equal(t, body.Execution.ID, list.Executions[0].ID)

	rec = do(t, s, http.MethodGet, "/executions/"+body.Execution.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodDelete, "/executions/"+body.Execution.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, "/executions/"+body.Execution.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var errBody ErrorResponse
	decodeBody(t, rec, &errBody)
	assert.Equal(t, "execution_not_found", errBody.Code)
}

func TestExecuteReportsConstraintFailure(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/execute", ExecuteRequest{
		SourceRequest:    SourceRequest{Source: greeter},
		Inputs:           map[string]any{"name": "Ada", "enabled": false},
		CheckConstraints: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body ExecuteResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "failed", body.Execution.State)
	require.NotEmpty(t, body.Errors)
	assert.NotEmpty(t, body.Errors[0].Message)
}

func TestExecuteRejectsUnknownInput(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodPost, "/execute", ExecuteRequest{
		SourceRequest: SourceRequest{Source: greeter},
		Inputs:        map[string]any{"nmae": "Ada"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "unknown_input", body.Code)
}

func TestExecutionsRequireHistory(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/executions", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body ErrorResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "history_disabled", body.Code)
}

func TestListExecutionsRejectsBadLimit(t *testing.T) {
	rec := do(t, newTestServer(t, withHistory(t)), http.MethodGet, "/executions?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "route_not_found", body.Code)

	rec = do(t, s, http.MethodGet, "/validate", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRecoveryRendersJSON(t *testing.T) {
	handler := RequestID(Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "internal_server_error", body.Error)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, WithShutdownTimeout(time.Second))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listener) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
