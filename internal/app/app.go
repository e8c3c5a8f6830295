package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"gomcp-clock/internal/clock"
	"gomcp-clock/internal/config"
	"gomcp-clock/internal/logger"
	"gomcp-clock/internal/mcpbridge"
	"gomcp-clock/internal/metrics"
	"gomcp-clock/internal/server"
	"gomcp-clock/internal/store"
	"gomcp-clock/internal/tui"
)

// runtime holds everything one process needs to serve the clock tools.
type runtime struct {
	cfg     *config.Config
	store   *store.Store
	metrics *metrics.Metrics
	bridge  *mcpbridge.Bridge
	mcp     *mcpserver.MCPServer
}

type runOptions struct {
	tui    bool
	onCall func(store.Call)
}

func newRuntime(cfg *config.Config, opts runOptions) (*runtime, error) {
	if err := logger.InitLogger(logger.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogPath,
		TUI:   opts.tui,
	}); err != nil {
		return nil, err
	}

	loc, err := clock.LoadLocation(cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("location %q: %w", cfg.Location, err)
	}

	rt := &runtime{cfg: cfg}
	bopts := mcpbridge.Options{
		Clock:  clock.New(loc, nil),
		OnCall: opts.onCall,
	}

	if cfg.AuditPath != "" {
		st, err := store.Open(cfg.AuditPath)
		if err != nil {
			return nil, err
		}
		rt.store = st
		bopts.Recorder = st
	}
	if cfg.Metrics {
		rt.metrics = metrics.New()
		bopts.Metrics = rt.metrics
	}

	rt.bridge = mcpbridge.New(bopts)
	rt.mcp = mcpbridge.NewServer(cfg, rt.bridge)

	logger.L().Info("clock ready",
		zap.String("name", cfg.Name),
		zap.String("location", loc.String()),
		zap.Bool("audit", rt.store != nil),
		zap.Bool("metrics", rt.metrics != nil))
	return rt, nil
}

func (rt *runtime) httpServer() *server.Server {
	return server.New(rt.cfg, rt.bridge, rt.mcp, rt.metrics)
}

func (rt *runtime) Close() {
	if err := rt.store.Close(); err != nil {
		logger.L().Warn("close audit store", zap.Error(err))
	}
	logger.Sync()
}

// RunHeadless serves HTTP until ctx is cancelled.
func RunHeadless(ctx context.Context, cfg *config.Config) error {
	rt, err := newRuntime(cfg, runOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.L().Info("Running in Headless Mode. Press Ctrl+C to stop.", zap.String("url", cfg.URL()))
	return rt.httpServer().Start(ctx)
}

// RunTUI serves HTTP in the background and blocks on the dashboard.
func RunTUI(ctx context.Context, cfg *config.Config) error {
	rt, err := newRuntime(cfg, runOptions{tui: true, onCall: tui.PushCall})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- rt.httpServer().Start(ctx)
	}()

	var tools []tui.ToolInfo
	for _, t := range rt.bridge.Tools() {
		tools = append(tools, tui.ToolInfo{Name: t.Tool.Name, Description: t.Tool.Description})
	}

	var fetcher tui.RecentFetcher
	if rt.store != nil {
		fetcher = func(tool string, limit int) ([]store.Call, error) {
			calls, err := rt.store.RecentCalls(ctx, limit)
			if err != nil {
				return nil, err
			}
			out := calls[:0]
			for _, c := range calls {
				if c.Tool == tool {
					out = append(out, c)
				}
			}
			return out, nil
		}
	}

	p := tea.NewProgram(tui.InitialModel(cfg.Addr(), tools, fetcher),
		tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	go func() {
		if err := <-srvErr; err != nil {
			logger.L().Error("HTTP server failed", zap.Error(err))
			p.Quit()
		}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// RunStdio serves MCP over stdin/stdout. Logs stay on stderr and the log file.
func RunStdio(ctx context.Context, cfg *config.Config) error {
	rt, err := newRuntime(cfg, runOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	stdio := mcpserver.NewStdioServer(rt.mcp)
	stdio.SetContextFunc(mcpbridge.StdioContext)

	logger.L().Info("stdio MCP server ready (connect with MCP-compatible client)")
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// RecentCalls opens the audit log and returns up to limit calls, newest first.
func RecentCalls(ctx context.Context, cfg *config.Config, limit int) ([]store.Call, error) {
	if cfg.AuditPath == "" {
		return nil, fmt.Errorf("audit log disabled (audit_path is empty)")
	}
	st, err := store.Open(cfg.AuditPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.RecentCalls(ctx, limit)
}

// WithSignals wraps a context with SIGINT/SIGTERM cancellation.
func WithSignals() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
