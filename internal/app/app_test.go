package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomcp-clock/internal/config"
	"gomcp-clock/internal/logger"
	"gomcp-clock/internal/mcpbridge"
	"gomcp-clock/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	cfg := config.Default()
	cfg.AuditPath = filepath.Join(dir, "calls.db")
	cfg.LogPath = filepath.Join(dir, "clock.log")
	cfg.LogLevel = "debug"
	t.Cleanup(func() { logger.Set(nil) })
	return cfg
}

func callTimeNow(t *testing.T, rt *runtime) {
	t.Helper()
	tool, ok := rt.bridge.Lookup(mcpbridge.ToolTimeNow)
	require.True(t, ok)
	req := mcp.CallToolRequest{}
	req.Params.Name = mcpbridge.ToolTimeNow
	res, err := tool.Handler(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.IsError)
}

func TestRuntimeWiresAuditAndMetrics(t *testing.T) {
	cfg := testConfig(t)

	var seen []store.Call
	rt, err := newRuntime(cfg, runOptions{onCall: func(c store.Call) { seen = append(seen, c) }})
	require.NoError(t, err)

	require.NotNil(t, rt.store)
	require.NotNil(t, rt.metrics)
	require.NotNil(t, rt.mcp)

	callTimeNow(t, rt)
	rt.Close()

	require.Len(t, seen, 1)
	assert.Equal(t, "time/now", seen[0].Tool)
	assert.Equal(t, "success", seen[0].Status)

	calls, err := RecentCalls(context.Background(), cfg, 10)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, seen[0].ID, calls[0].ID)
	assert.Equal(t, seen[0].Result, calls[0].Result)
}

func TestRuntimeWithoutAuditOrMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.AuditPath = ""
	cfg.Metrics = false

	rt, err := newRuntime(cfg, runOptions{})
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.store)
	assert.Nil(t, rt.metrics)
	callTimeNow(t, rt)
}

func TestRuntimeBadLocation(t *testing.T) {
	cfg := testConfig(t)
	cfg.Location = "Not/AZone"

	_, err := newRuntime(cfg, runOptions{})
	assert.Error(t, err)
}

func TestRecentCallsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.AuditPath = ""

	_, err := RecentCalls(context.Background(), cfg, 5)
	assert.Error(t, err)
}

func TestRunHeadlessStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Port 0 binds an ephemeral port; a cancelled context shuts down at once.
	assert.NoError(t, RunHeadless(ctx, cfg))
}
