package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomcp-clock/internal/clock"
	"gomcp-clock/internal/config"
	"gomcp-clock/internal/mcpbridge"
	"gomcp-clock/internal/metrics"
)

const stamp = "2024-05-01T12:34:56.789012"

func newTestServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	at := time.Date(2024, 5, 1, 12, 34, 56, 789012000, time.UTC)
	m := metrics.New()
	bridge := mcpbridge.New(mcpbridge.Options{
		Clock:   clock.New(time.UTC, func() time.Time { return at }),
		Metrics: m,
	})
	srv := New(cfg, bridge, mcpbridge.NewServer(cfg, bridge), m)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, token string, body any) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			r = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.AuthToken = "secret" })

	resp, body := do(t, http.MethodGet, ts.URL+"/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
}

func TestListTools(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := do(t, http.MethodGet, ts.URL+"/tools/list", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var tools []ToolDescriptor
	require.NoError(t, json.Unmarshal([]byte(body), &tools))
	require.Len(t, tools, 1)
	assert.Equal(t, "time/now", tools[0].Name)
	assert.NotEmpty(t, tools[0].Description)
}

func TestCallTool(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := do(t, http.MethodPost, ts.URL+"/tools/call", "", map[string]any{"tool": "time/now"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var out callResponse
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, "time/now", out.Tool)
	assert.Equal(t, stamp, out.Result)
}

func TestCallToolErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, _ := do(t, http.MethodPost, ts.URL+"/tools/call", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/tools/call", "", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/tools/call", "", map[string]any{"tool": "time/later"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.AuthToken = "secret" })

	resp, _ := do(t, http.MethodGet, ts.URL+"/tools/list", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/tools/list", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/tools/list", "secret", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/mcp", "", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	do(t, http.MethodPost, ts.URL+"/tools/call", "", map[string]any{"tool": "time/now"})

	resp, body := do(t, http.MethodGet, ts.URL+"/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, `clock_tool_calls_total{status="success",tool="time/now"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := config.Default()
	bridge := mcpbridge.New(mcpbridge.Options{})
	ts := httptest.NewServer(New(cfg, bridge, nil, nil).Handler())
	defer ts.Close()

	resp, _ := do(t, http.MethodGet, ts.URL+"/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type rpcReply struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestStatelessMCPEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := do(t, http.MethodPost, ts.URL+"/mcp", "",
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	assert.Empty(t, resp.Header.Get("Mcp-Session-Id"))

	var initReply rpcReply
	require.NoError(t, json.Unmarshal([]byte(body), &initReply))
	require.Nil(t, initReply.Error)
	assert.Contains(t, string(initReply.Result), `"name":"clock"`)

	// No session header: every request stands alone.
	resp, body = do(t, http.MethodPost, ts.URL+"/mcp", "",
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"time/now","arguments":{}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var callReply rpcReply
	require.NoError(t, json.Unmarshal([]byte(body), &callReply))
	require.Nil(t, callReply.Error)
	assert.Equal(t, 2, callReply.ID)

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(callReply.Result, &result))
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	assert.Equal(t, stamp, result.Content[0].Text)
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := config.Default()
	bridge := mcpbridge.New(mcpbridge.Options{})
	srv := New(cfg, bridge, mcpbridge.NewServer(cfg, bridge), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}

func TestStartBindFailure(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := config.Default()
	cfg.Port = ln.Addr().(*net.TCPAddr).Port
	srv := New(cfg, mcpbridge.New(mcpbridge.Options{}), nil, nil)

	err = srv.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}
