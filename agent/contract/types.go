package contract

import "errors"

type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult is either a success carrying Result, or a failure carrying Error.
// Err keeps the typed cause of a failure for errors.Is/As and is never serialized.
type ToolResult struct {
	Tool   string         `json:"tool"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
	Err    error          `json:"-"`
}

func Success(tool string, payload map[string]any) ToolResult {
	return ToolResult{Tool: tool, Result: payload}
}

func Failure(tool string, err error) ToolResult {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return ToolResult{Tool: tool, Error: err.Error(), Err: err}
}

func (r ToolResult) OK() bool {
	return r.Error == ""
}
