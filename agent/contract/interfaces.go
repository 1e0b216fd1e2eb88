package contract

import "context"

// Conn is one request/response channel to the tool-execution endpoint.
type Conn interface {
	EnsureConnected(ctx context.Context) error
	Invoke(ctx context.Context, req ToolRequest) (map[string]any, error)
}

// ConnPool hands out a Conn for the duration of fn and always takes it back.
type ConnPool interface {
	Do(ctx context.Context, fn func(Conn) error) error
}

type ToolCaller interface {
	Call(ctx context.Context, tool string, args map[string]any) ToolResult
}
