package mcpbridge

import (
	"context"
	"net/http"
)

// Transport names used in logs, metrics and audit records.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
	TransportREST  = "rest"
)

type transportKey struct{}

func WithTransport(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, transportKey{}, name)
}

// TransportFrom reports the transport stored in ctx, or "unknown".
func TransportFrom(ctx context.Context) string {
	if v, ok := ctx.Value(transportKey{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// HTTPContext tags streamable HTTP requests. It matches server.HTTPContextFunc.
func HTTPContext(ctx context.Context, _ *http.Request) context.Context {
	return WithTransport(ctx, TransportHTTP)
}

// StdioContext tags stdio requests. It matches server.StdioContextFunc.
func StdioContext(ctx context.Context) context.Context {
	return WithTransport(ctx, TransportStdio)
}
