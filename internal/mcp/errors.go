package mcp

import "errors"

type ErrorKind string

const (
	KindInvalidJSON     ErrorKind = "invalid_json"
	KindInvalidRequest  ErrorKind = "invalid_request_schema"
	KindRequestFailed   ErrorKind = "request_failed"
	KindUnknownTool     ErrorKind = "unknown_tool"
	KindInvalidParams   ErrorKind = "invalid_params"
	KindExecutionFailed ErrorKind = "tool_execution_failed"
)

// DispatchError is a request the envelope could not turn into a tool result.
type DispatchError struct {
	Kind      ErrorKind
	Tool      string
	Available []string
	Err       error
}

func (e *DispatchError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *DispatchError) Unwrap() error { return e.Err }

func (e *DispatchError) ErrorCode() string { return string(e.Kind) }

// ErrorPayload renders err as the JSON object returned to callers. Errors that
// are not a DispatchError are reported as a failed request.
func ErrorPayload(err error) map[string]any {
	var de *DispatchError
	if !errors.As(err, &de) {
		de = &DispatchError{Kind: KindRequestFailed, Err: err}
	}

	switch de.Kind {
	case KindInvalidJSON:
		return map[string]any{
			"error":   "Invalid JSON",
			"details": details(de.Err),
			"hint":    "Send valid JSON with 'method' and 'params'",
		}
	case KindInvalidRequest:
		return map[string]any{
			"error":   "Invalid MCP request format",
			"details": details(de.Err),
			"hint":    "Required fields: method (str), params (dict)",
		}
	case KindUnknownTool:
		available := de.Available
		if available == nil {
			available = []string{}
		}
		return map[string]any{
			"error":           "Unknown tool: " + de.Tool,
			"available_tools": available,
		}
	case KindInvalidParams:
		return map[string]any{
			"error":   "Invalid parameters for tool '" + de.Tool + "'",
			"details": details(de.Err),
		}
	case KindExecutionFailed:
		return map[string]any{
			"error":   "Tool execution failed",
			"tool":    de.Tool,
			"details": details(de.Err),
		}
	default:
		return map[string]any{
			"error":   "Request processing failed",
			"details": details(de.Err),
		}
	}
}

func details(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
