package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orchestrai/orchestrai/internal/core"
	"github.com/orchestrai/orchestrai/internal/telemetry"
)

type ctxKey string

const ctxKeyTraceID ctxKey = "trace_id"

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKeyTraceID, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyTraceID).(string)
	return v
}

// Agent owns a named tool registry. Tools are registered during construction;
// Register must not run concurrently with Dispatch.
type Agent struct {
	name   string
	tools  map[string]Tool
	order  []string
	logger *slog.Logger
}

func NewAgent(name string, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		name:   name,
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

func (a *Agent) Name() string { return a.name }

// Register stores tool under its name. A second registration with the same
// name replaces the handler and keeps the original listing position.
func (a *Agent) Register(tool Tool) {
	if tool.InputSchema.Type == "" {
		tool.InputSchema.Type = "object"
	}
	if _, exists := a.tools[tool.Name]; !exists {
		a.order = append(a.order, tool.Name)
	}
	a.tools[tool.Name] = tool
	a.logger.Info("registered tool", "agent", a.name, "tool", tool.Name)
}

// ToolNames lists registered tools in registration order.
func (a *Agent) ToolNames() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

func (a *Agent) Definitions() []Tool {
	out := make([]Tool, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.tools[name])
	}
	return out
}

// Dispatch decodes body, runs the named tool and returns either its result or
// an error payload. It never fails; every outcome is a JSON-encodable value.
func (a *Agent) Dispatch(ctx context.Context, body []byte) any {
	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.New().String()
		ctx = ContextWithTraceID(ctx, traceID)
	}

	req, err := ParseRequest(body)
	if err != nil {
		a.logger.Warn("invalid mcp request", "agent", a.name, "trace_id", traceID, "err", err)
		return ErrorPayload(err)
	}

	result, err := a.Call(ctx, req.Method, req.Params)
	if err != nil {
		return ErrorPayload(err)
	}
	return result
}

// Call runs the tool named by method, with an optional "tools/" prefix.
func (a *Agent) Call(ctx context.Context, method string, params json.RawMessage) (any, error) {
	name := strings.TrimPrefix(method, "tools/")
	traceID := TraceIDFromContext(ctx)

	tool, ok := a.tools[name]
	if !ok {
		telemetry.IncToolCall("unknown", string(KindUnknownTool))
		a.logger.Warn("unknown tool", "agent", a.name, "tool", name, "trace_id", traceID)
		return nil, &DispatchError{Kind: KindUnknownTool, Tool: name, Available: a.ToolNames()}
	}

	start := time.Now()
	result, err := a.invoke(ctx, tool, params)
	elapsed := time.Since(start)
	telemetry.ObserveToolDuration(name, elapsed)
	telemetry.IncToolCall(name, core.ErrorCode(err))

	if err != nil {
		a.logger.Error("tool call failed",
			"agent", a.name,
			"tool", name,
			"trace_id", traceID,
			"error_code", core.ErrorCode(err),
			"err", err,
		)
		return nil, err
	}
	a.logger.Info("tool call completed",
		"agent", a.name,
		"tool", name,
		"trace_id", traceID,
		"duration_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

func (a *Agent) invoke(ctx context.Context, tool Tool, raw json.RawMessage) (result any, err error) {
	var params map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, &DispatchError{Kind: KindInvalidParams, Tool: tool.Name, Err: err}
		}
	}
	if err := tool.InputSchema.check(params); err != nil {
		return nil, &DispatchError{Kind: KindInvalidParams, Tool: tool.Name, Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &DispatchError{Kind: KindExecutionFailed, Tool: tool.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	result, err = tool.Handler(ctx, raw)
	if err != nil {
		var pe *ParamsError
		if errors.As(err, &pe) {
			return nil, &DispatchError{Kind: KindInvalidParams, Tool: tool.Name, Err: pe}
		}
		return nil, &DispatchError{Kind: KindExecutionFailed, Tool: tool.Name, Err: err}
	}
	return result, nil
}
