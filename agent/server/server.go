package server

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	toolx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/tool"
)

const (
	defaultName    = "dental-office-tools"
	defaultVersion = "1.0.0"
)

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithImplementation(name, version string) Option {
	return func(s *Server) {
		if name != "" {
			s.name = name
		}
		if version != "" {
			s.version = version
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// Server is the tool-execution endpoint. Every MCP tool call is run through
// the compiled dispatch graph.
type Server struct {
	exec      toolx.Executor
	validator *toolx.Validator
	mcp       *mcp.Server
	dispatch  compose.Runnable[DispatchInput, DispatchOutput]

	name    string
	version string
	logger  zerolog.Logger
	now     func() time.Time
}

func New(ctx context.Context, exec toolx.Executor, validator *toolx.Validator, opts ...Option) (*Server, error) {
	if exec == nil {
		return nil, errors.New("tool executor is required")
	}
	if validator == nil {
		return nil, errors.New("tool validator is required")
	}

	s := &Server{
		exec:      exec,
		validator: validator,
		name:      defaultName,
		version:   defaultVersion,
		logger:    log.Logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	runner, err := s.compileDispatchGraph(ctx)
	if err != nil {
		return nil, err
	}
	s.dispatch = runner

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: s.name, Version: s.version}, nil)
	for _, name := range toolx.Names() {
		s.mcp.AddTool(&mcp.Tool{
			Name:        name,
			Description: toolx.Description(name),
			InputSchema: toolx.InputSchema(name),
		}, s.handler(name))
	}
	return s, nil
}

func (s *Server) handler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := s.Dispatch(ctx, name, req.Params.Arguments)
		if err != nil {
			return nil, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: out.Text}},
			IsError: out.IsError,
		}, nil
	}
}

// Dispatch runs one tool request through validation, execution and encoding.
func (s *Server) Dispatch(ctx context.Context, toolName string, raw json.RawMessage) (DispatchOutput, error) {
	return s.dispatch.Invoke(ctx, DispatchInput{Tool: toolName, Raw: raw})
}

func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// Connect serves one session over t and returns immediately.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}

// Run serves t until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	s.logger.Info().Str("server", s.name).Strs("tools", toolx.Names()).Msg("tool_server_started")
	return s.mcp.Run(ctx, t)
}
