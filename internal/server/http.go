package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"gomcp-clock/internal/config"
	"gomcp-clock/internal/logger"
	"gomcp-clock/internal/mcpbridge"
	"gomcp-clock/internal/metrics"
)

const (
	callTimeout     = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server exposes the MCP endpoint plus plain HTTP helpers for the same tools.
type Server struct {
	cfg       *config.Config
	bridge    *mcpbridge.Bridge
	mcpServer *mcpserver.MCPServer
	metrics   *metrics.Metrics
}

// New wires the HTTP surface. m may be nil when metrics are disabled.
func New(cfg *config.Config, bridge *mcpbridge.Bridge, mcpServer *mcpserver.MCPServer, m *metrics.Metrics) *Server {
	return &Server{cfg: cfg, bridge: bridge, mcpServer: mcpServer, metrics: m}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/tools/list", s.handleListTools).Methods(http.MethodGet)
	api.HandleFunc("/tools/call", s.handleCallTool).Methods(http.MethodPost)

	if s.metrics != nil {
		api.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	if s.mcpServer != nil {
		streamable := mcpserver.NewStreamableHTTPServer(
			s.mcpServer,
			mcpserver.WithEndpointPath(s.cfg.Endpoint),
			mcpserver.WithStateLess(s.cfg.Stateless),
			mcpserver.WithHTTPContextFunc(mcpbridge.HTTPContext),
			mcpserver.WithLogger(logger.L().Sugar()),
		)
		endpoint := strings.TrimSuffix(s.cfg.Endpoint, "/")
		if endpoint == "" {
			api.PathPrefix("/").Handler(streamable)
		} else {
			api.Handle(endpoint, streamable)
			api.Handle(endpoint+"/", streamable)
		}
	}
	return r
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.L().Error("http shutdown", zap.Error(err))
		}
	}()

	logger.L().Info("HTTP listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("endpoint", s.cfg.Endpoint),
		zap.Bool("stateless", s.cfg.Stateless),
		zap.Bool("json_response", s.cfg.JSONResponse))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ToolDescriptor is returned to HTTP clients when listing tools.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema,omitempty"`
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	tools := s.bridge.Tools()
	out := make([]ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolDescriptor{
			Name:        t.Tool.Name,
			Description: t.Tool.Description,
			InputSchema: t.Tool.InputSchema,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type callPayload struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type callResponse struct {
	Tool   string `json:"tool"`
	Result string `json:"result"`
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	var payload callPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if payload.Tool == "" {
		http.Error(w, "tool is required", http.StatusBadRequest)
		return
	}
	tool, ok := s.bridge.Lookup(payload.Tool)
	if !ok {
		http.Error(w, fmt.Sprintf("tool %s not found", payload.Tool), http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
	defer cancel()
	ctx = mcpbridge.WithTransport(ctx, mcpbridge.TransportREST)

	req := mcp.CallToolRequest{}
	req.Params.Name = payload.Tool
	req.Params.Arguments = payload.Arguments

	res, err := tool.Handler(ctx, req)
	if err != nil {
		http.Error(w, fmt.Sprintf("call failed: %v", err), http.StatusBadGateway)
		return
	}
	text := ""
	if res != nil && len(res.Content) > 0 {
		if txt, ok := res.Content[0].(mcp.TextContent); ok {
			text = txt.Text
		}
	}
	if res != nil && res.IsError {
		http.Error(w, fmt.Sprintf("call failed: %s", text), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, callResponse{Tool: payload.Tool, Result: text})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.cfg.AuthToken == "" {
		return next
	}
	expected := "Bearer " + s.cfg.AuthToken
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != expected {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L().Warn("write json", zap.Error(err))
	}
}
