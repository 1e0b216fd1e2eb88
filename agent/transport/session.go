package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/contract"
)

const clientVersion = "v1.0.0"

type Config struct {
	Command           string        `split_words:"true"`
	Args              []string      `split_words:"true"`
	PoolSize          int           `split_words:"true" default:"1"`
	TerminateDuration time.Duration `split_words:"true" default:"5s"`
}

// Connector produces a fresh MCP transport for every (re)connect.
type Connector func(ctx context.Context) (mcp.Transport, error)

// CommandConnector spawns the tool server as a subprocess speaking MCP over stdio.
func CommandConnector(cfg Config) Connector {
	return func(ctx context.Context) (mcp.Transport, error) {
		command := strings.TrimSpace(cfg.Command)
		if command == "" {
			return nil, errors.New("tool server command is required")
		}
		cmd := exec.Command(command, cfg.Args...)
		cmd.Stderr = os.Stderr
		return &mcp.CommandTransport{
			Command:           cmd,
			TerminateDuration: cfg.TerminateDuration,
		}, nil
	}
}

type Option func(*Session)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// Session owns one MCP client session. It is not meant to be shared by
// concurrent callers; every method serializes on the session mutex.
type Session struct {
	mu      sync.Mutex
	name    string
	connect Connector
	client  *mcp.Client
	session *mcp.ClientSession
	logger  zerolog.Logger
}

var _ contractx.Conn = (*Session)(nil)

func NewSession(name string, connect Connector, opts ...Option) *Session {
	s := &Session{
		name:    name,
		connect: connect,
		client:  mcp.NewClient(&mcp.Implementation{Name: name, Version: clientVersion}, nil),
		logger:  log.Logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Connect is a no-op when the session is already connected.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

func (s *Session) EnsureConnected(ctx context.Context) error {
	return s.Connect(ctx)
}

func (s *Session) connectLocked(ctx context.Context) error {
	if s.session != nil {
		return nil
	}
	if s.connect == nil {
		return fmt.Errorf("%w: %s: no connector configured", contractx.ErrConnection, s.name)
	}

	t, err := s.connect(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", contractx.ErrConnection, s.name, err)
	}
	cs, err := s.client.Connect(ctx, t, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", contractx.ErrConnection, s.name, err)
	}

	s.session = cs
	s.logger.Debug().Str("endpoint", s.name).Msg("mcp_session_connected")
	return nil
}

// Invoke sends one tool call and decodes the first content item as a JSON object.
// Any failure drops the underlying session so the next EnsureConnected reconnects.
func (s *Session) Invoke(ctx context.Context, req contractx.ToolRequest) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, fmt.Errorf("%w: %s: session not connected", contractx.ErrTransport, s.name)
	}

	res, err := s.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      req.Tool,
		Arguments: req.Args,
	})
	if err != nil {
		s.dropLocked()
		return nil, fmt.Errorf("%w: call %s: %v", contractx.ErrTransport, req.Tool, err)
	}

	payload, err := decodePayload(res)
	if err != nil {
		s.dropLocked()
		return nil, err
	}
	return payload, nil
}

// Disconnect is safe to call on a disconnected session.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	err := s.session.Close()
	s.session = nil
	if err != nil {
		return fmt.Errorf("close %s session: %w", s.name, err)
	}
	return nil
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

func (s *Session) dropLocked() {
	if s.session == nil {
		return
	}
	if err := s.session.Close(); err != nil {
		s.logger.Debug().Str("endpoint", s.name).Err(err).Msg("mcp_session_close_failed")
	}
	s.session = nil
}

func decodePayload(res *mcp.CallToolResult) (map[string]any, error) {
	if res == nil || len(res.Content) == 0 {
		return nil, fmt.Errorf("%w: empty response", contractx.ErrProtocol)
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected content type %T", contractx.ErrProtocol, res.Content[0])
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		if res.IsError {
			return map[string]any{"error": text.Text}, nil
		}
		return nil, fmt.Errorf("%w: malformed response: %v", contractx.ErrProtocol, err)
	}
	if payload == nil {
		return nil, fmt.Errorf("%w: response is not an object", contractx.ErrProtocol)
	}
	if res.IsError {
		if _, ok := payload["error"]; !ok {
			payload["error"] = text.Text
		}
	}
	return payload, nil
}
