package mcpbridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"gomcp-clock/internal/clock"
	"gomcp-clock/internal/config"
	"gomcp-clock/internal/logger"
	"gomcp-clock/internal/metrics"
	"gomcp-clock/internal/store"
)

// ToolTimeNow is the name clients call to read the clock.
const ToolTimeNow = "time/now"

// Version is reported in the MCP initialize response. Set with -ldflags.
var Version = "0.1.0"

// Recorder persists audited calls. *store.Store satisfies it.
type Recorder interface {
	RecordCall(ctx context.Context, c store.Call) error
}

// Options wires the optional collaborators of the tool handlers.
type Options struct {
	Clock    *clock.Clock
	Recorder Recorder
	Metrics  *metrics.Metrics
	// OnCall sees every finished call, after it has been recorded.
	OnCall func(store.Call)
}

// Bridge owns the tool catalogue shared by the MCP and REST surfaces.
type Bridge struct {
	opts  Options
	tools []server.ServerTool
}

func New(opts Options) *Bridge {
	if opts.Clock == nil {
		opts.Clock = clock.New(nil, nil)
	}
	b := &Bridge{opts: opts}

	timeNow := mcp.NewTool(ToolTimeNow,
		mcp.WithDescription("Return the current local date and time in ISO-8601 format."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
	b.tools = append(b.tools, server.ServerTool{
		Tool:    timeNow,
		Handler: b.instrument(ToolTimeNow, b.handleTimeNow),
	})
	return b
}

// Tools returns the instrumented catalogue.
func (b *Bridge) Tools() []server.ServerTool {
	out := make([]server.ServerTool, len(b.tools))
	copy(out, b.tools)
	return out
}

// Lookup finds a tool by exact name.
func (b *Bridge) Lookup(name string) (server.ServerTool, bool) {
	for _, t := range b.tools {
		if t.Tool.Name == name {
			return t, true
		}
	}
	return server.ServerTool{}, false
}

func (b *Bridge) handleTimeNow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(b.opts.Clock.Now()), nil
}

// instrument times a handler and reports the call to logs, metrics and the audit log.
// None of those can fail the call.
func (b *Bridge) instrument(name string, next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := next(ctx, req)
		duration := time.Since(start)

		call := store.Call{
			ID:         uuid.NewString(),
			Tool:       name,
			Transport:  TransportFrom(ctx),
			Arguments:  encodeArgs(req.GetRawArguments()),
			Status:     "success",
			DurationMs: duration.Milliseconds(),
			CreatedAt:  start,
		}
		switch {
		case err != nil:
			call.Status = "error"
			call.Error = err.Error()
		case res != nil && res.IsError:
			call.Status = "error"
			call.Error = resultText(res)
		default:
			call.Result = resultText(res)
		}

		log := logger.L().With(
			zap.String("tool", name),
			zap.String("transport", call.Transport),
			zap.Duration("duration", duration),
		)
		if call.Status == "error" {
			log.Warn("tool call failed", zap.String("error", call.Error))
		} else {
			log.Info("tool call", zap.String("result", call.Result))
		}

		b.opts.Metrics.ObserveCall(name, call.Status, duration)

		if b.opts.Recorder != nil {
			if rerr := b.opts.Recorder.RecordCall(context.WithoutCancel(ctx), call); rerr != nil {
				log.Error("record call", zap.Error(rerr))
			}
		}
		if b.opts.OnCall != nil {
			b.opts.OnCall(call)
		}
		return res, err
	}
}

// NewServer builds the MCP server and registers the catalogue of b.
func NewServer(cfg *config.Config, b *Bridge) *server.MCPServer {
	s := server.NewMCPServer(
		cfg.Name,
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.AddTools(b.Tools()...)
	return s
}

func encodeArgs(args any) string {
	if args == nil {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return string(data)
}

func resultText(res *mcp.CallToolResult) string {
	if res == nil || len(res.Content) == 0 {
		return ""
	}
	if txt, ok := res.Content[0].(mcp.TextContent); ok {
		return txt.Text
	}
	return "[non-text content]"
}
