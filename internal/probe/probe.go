package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"gomcp-clock/internal/logger"
	"gomcp-clock/internal/mcpbridge"
)

const defaultTimeout = 5 * time.Second

// Options selects the server to probe. Command wins over URL when both are set.
type Options struct {
	URL       string
	AuthToken string
	Command   string
	Args      []string
	Tool      string
	Timeout   time.Duration
}

// Result is what a healthy clock server reported.
type Result struct {
	ServerName      string        `json:"server_name"`
	ServerVersion   string        `json:"server_version"`
	ProtocolVersion string        `json:"protocol_version"`
	Tools           []string      `json:"tools"`
	Tool            string        `json:"tool"`
	Output          string        `json:"output"`
	Latency         time.Duration `json:"latency"`
}

// Check connects, runs the initialize handshake, lists tools and calls the
// clock tool once.
func Check(ctx context.Context, opts Options) (*Result, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Tool == "" {
		opts.Tool = mcpbridge.ToolTimeNow
	}

	cl, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cl.Close() }()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if err := cl.Start(ctx); err != nil {
		return nil, fmt.Errorf("start client: %w", err)
	}

	initReq := mcp.InitializeRequest{
		Request: mcp.Request{Method: string(mcp.MethodInitialize)},
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "clock-check",
				Version: mcpbridge.Version,
			},
		},
	}
	initRes, err := cl.Initialize(ctx, initReq)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	tools, err := cl.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	res := &Result{
		ServerName:      initRes.ServerInfo.Name,
		ServerVersion:   initRes.ServerInfo.Version,
		ProtocolVersion: initRes.ProtocolVersion,
		Tool:            opts.Tool,
	}
	found := false
	for _, t := range tools.Tools {
		res.Tools = append(res.Tools, t.Name)
		if t.Name == opts.Tool {
			found = true
		}
	}
	if !found {
		return res, fmt.Errorf("tool %s not advertised", opts.Tool)
	}

	callReq := mcp.CallToolRequest{
		Request: mcp.Request{Method: string(mcp.MethodToolsCall)},
	}
	callReq.Params.Name = opts.Tool

	start := time.Now()
	callRes, err := cl.CallTool(ctx, callReq)
	res.Latency = time.Since(start)
	if err != nil {
		return res, fmt.Errorf("call %s: %w", opts.Tool, err)
	}
	if len(callRes.Content) == 0 {
		return res, errors.New("empty tool result")
	}
	txt, ok := callRes.Content[0].(mcp.TextContent)
	if !ok {
		return res, fmt.Errorf("unexpected content %T", callRes.Content[0])
	}
	res.Output = txt.Text
	if callRes.IsError {
		return res, fmt.Errorf("tool error: %s", txt.Text)
	}

	logger.L().Info("probe ok",
		zap.String("server", res.ServerName),
		zap.String("protocol", res.ProtocolVersion),
		zap.String("output", res.Output),
		zap.Duration("latency", res.Latency))
	return res, nil
}

func newClient(opts Options) (*client.Client, error) {
	if opts.Command != "" {
		commandFunc := func(ctx context.Context, cmd string, env []string, args []string) (*exec.Cmd, error) {
			c := exec.CommandContext(ctx, cmd, args...)
			c.Env = append(os.Environ(), env...)
			return c, nil
		}
		stdio := transport.NewStdioWithOptions(opts.Command, nil, opts.Args, transport.WithCommandFunc(commandFunc))
		return client.NewClient(stdio), nil
	}
	if opts.URL == "" {
		return nil, errors.New("either a URL or a command is required")
	}

	var httpOpts []transport.StreamableHTTPCOption
	if opts.AuthToken != "" {
		httpOpts = append(httpOpts, transport.WithHTTPHeaders(map[string]string{
			"Authorization": "Bearer " + opts.AuthToken,
		}))
	}
	cl, err := client.NewStreamableHttpClient(opts.URL, httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("new http client: %w", err)
	}
	return cl, nil
}
