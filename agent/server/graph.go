package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/contract"
	toolx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/tool"
)

type DispatchInput struct {
	Tool string
	Raw  json.RawMessage
}

// DispatchOutput is the text content returned to the caller. IsError marks
// an {"error": ...} payload.
type DispatchOutput struct {
	Text    string
	IsError bool
}

type dispatchState struct {
	tool    string
	args    map[string]any
	result  contractx.ToolResult
	done    bool
	started time.Time
}

func (s *Server) compileDispatchGraph(
	ctx context.Context,
) (compose.Runnable[DispatchInput, DispatchOutput], error) {
	graph := compose.NewGraph[DispatchInput, DispatchOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in DispatchInput) (*dispatchState, error) {
			return s.validateRequest(in), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("execute_tool",
		compose.InvokableLambda(func(ctx context.Context, in *dispatchState) (*dispatchState, error) {
			return s.executeTool(ctx, in), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node execute_tool: %w", err)
	}

	if err := graph.AddLambdaNode("encode_result",
		compose.InvokableLambda(func(ctx context.Context, in *dispatchState) (DispatchOutput, error) {
			return s.encodeResult(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node encode_result: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "execute_tool"},
		{"execute_tool", "encode_result"},
		{"encode_result", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("server.dispatch_tool"))
	if err != nil {
		return nil, fmt.Errorf("compile dispatch graph: %w", err)
	}
	return runner, nil
}

// validateRequest leaves unknown tools to the executor fallback.
func (s *Server) validateRequest(in DispatchInput) *dispatchState {
	st := &dispatchState{tool: in.Tool, started: s.now()}
	if !toolx.Known(in.Tool) {
		return st
	}
	args, err := s.validator.ValidateRaw(in.Tool, in.Raw)
	if err != nil {
		st.result = contractx.Failure(in.Tool, err)
		st.done = true
		return st
	}
	st.args = args
	return st
}

func (s *Server) executeTool(ctx context.Context, st *dispatchState) *dispatchState {
	if st.done {
		return st
	}
	res, err := s.exec(ctx, st.tool, st.args)
	if err != nil {
		res = contractx.Failure(st.tool, err)
	}
	st.result = res
	st.done = true
	return st
}

func (s *Server) encodeResult(st *dispatchState) (DispatchOutput, error) {
	elapsed := s.now().Sub(st.started)
	if !st.result.OK() {
		s.logger.Warn().
			Str("tool", st.tool).
			Str("error", st.result.Error).
			Dur("elapsed", elapsed).
			Msg("tool_request_rejected")
		raw, err := json.Marshal(map[string]any{"error": st.result.Error})
		if err != nil {
			return DispatchOutput{}, fmt.Errorf("encode error payload: %w", err)
		}
		return DispatchOutput{Text: string(raw), IsError: true}, nil
	}

	payload := st.result.Result
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return DispatchOutput{}, fmt.Errorf("encode %s result: %w", st.tool, err)
	}
	s.logger.Debug().Str("tool", st.tool).Dur("elapsed", elapsed).Msg("tool_request_served")
	return DispatchOutput{Text: string(raw)}, nil
}
