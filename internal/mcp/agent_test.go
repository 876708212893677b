package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/orchestrai/orchestrai/internal/core"
)

type echoParams struct {
	Text  string `json:"text"`
	Times *int   `json:"times"`
}

func newTestAgent() *Agent {
	a := NewAgent("Test", slog.New(slog.NewJSONHandler(io.Discard, nil)))
	a.Register(Tool{
		Name:        "echo",
		Description: "Echo text back",
		InputSchema: ObjectSchema(map[string]Property{
			"text":  {Type: "string"},
			"times": {Type: "integer"},
		}, "text"),
		Handler: Bind(func(ctx context.Context, p echoParams) (any, error) {
			n := 1
			if p.Times != nil {
				n = *p.Times
			}
			return map[string]any{"echo": strings.Repeat(p.Text, n)}, nil
		}),
	})
	a.Register(Tool{
		Name:        "fail",
		InputSchema: ObjectSchema(map[string]Property{}),
		Handler: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return nil, errors.New("boom")
		},
	})
	a.Register(Tool{
		Name:        "panic",
		InputSchema: ObjectSchema(map[string]Property{}),
		Handler: func(ctx context.Context, _ json.RawMessage) (any, error) {
			panic("unexpected state")
		},
	})
	return a
}

func dispatchMap(t *testing.T, a *Agent, body string) map[string]any {
	t.Helper()
	out := a.Dispatch(context.Background(), []byte(body))
	b, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal dispatch result: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal dispatch result: %v", err)
	}
	return m
}

func TestDispatchReturnsHandlerResultUnmodified(t *testing.T) {
	a := newTestAgent()
	got := a.Dispatch(context.Background(), []byte(`{"method":"echo","params":{"text":"ab","times":2},"id":1}`))
	want := map[string]any{"echo": "abab"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestDispatchStripsToolsPrefix(t *testing.T) {
	a := newTestAgent()
	got := dispatchMap(t, a, `{"method":"tools/echo","params":{"text":"x"}}`)
	if got["echo"] != "x" {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestDispatchInvalidJSON(t *testing.T) {
	a := newTestAgent()
	for _, body := range []string{``, `{`, `not json`, "{\"method\":\"echo\",\"params\":{\"text\":\"\xff\"}}"} {
		got := dispatchMap(t, a, body)
		if got["error"] != "Invalid JSON" {
			t.Fatalf("body %q: error = %v", body, got["error"])
		}
		if got["hint"] != "Send valid JSON with 'method' and 'params'" {
			t.Fatalf("body %q: hint = %v", body, got["hint"])
		}
		if d, _ := got["details"].(string); d == "" {
			t.Fatalf("body %q: details missing", body)
		}
	}
}

func TestDispatchInvalidRequestFormat(t *testing.T) {
	a := newTestAgent()
	cases := map[string]string{
		"array":          `[1,2]`,
		"null":           `null`,
		"missing method": `{"params":{}}`,
		"numeric method": `{"method":5,"params":{}}`,
		"missing params": `{"method":"echo"}`,
		"list params":    `{"method":"echo","params":[]}`,
		"string id":      `{"method":"echo","params":{},"id":"abc"}`,
		"fractional id":  `{"method":"echo","params":{},"id":1.5}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			got := dispatchMap(t, a, body)
			if got["error"] != "Invalid MCP request format" {
				t.Fatalf("error = %v", got["error"])
			}
			if got["hint"] != "Required fields: method (str), params (dict)" {
				t.Fatalf("hint = %v", got["hint"])
			}
		})
	}
}

func TestDispatchUnknownToolListsRegisteredTools(t *testing.T) {
	a := newTestAgent()
	got := dispatchMap(t, a, `{"method":"tools/nope","params":{}}`)
	if got["error"] != "Unknown tool: nope" {
		t.Fatalf("error = %v", got["error"])
	}
	tools, _ := got["available_tools"].([]any)
	want := []any{"echo", "fail", "panic"}
	if !reflect.DeepEqual(tools, want) {
		t.Fatalf("available_tools = %v, want %v", tools, want)
	}
}

func TestDispatchUnknownToolOnEmptyAgent(t *testing.T) {
	a := NewAgent("Empty", slog.New(slog.NewJSONHandler(io.Discard, nil)))
	got := dispatchMap(t, a, `{"method":"x","params":{}}`)
	tools, ok := got["available_tools"].([]any)
	if !ok || len(tools) != 0 {
		t.Fatalf("available_tools = %#v, want empty list", got["available_tools"])
	}
}

func TestDispatchInvalidParameters(t *testing.T) {
	a := newTestAgent()
	cases := map[string]string{
		"missing":    `{"method":"echo","params":{}}`,
		"unexpected": `{"method":"echo","params":{"text":"a","loud":true}}`,
		"mistyped":   `{"method":"echo","params":{"text":"a","times":"two"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			got := dispatchMap(t, a, body)
			if got["error"] != "Invalid parameters for tool 'echo'" {
				t.Fatalf("error = %v", got["error"])
			}
			if d, _ := got["details"].(string); d == "" {
				t.Fatal("details missing")
			}
		})
	}
}

func TestDispatchToolExecutionFailed(t *testing.T) {
	a := newTestAgent()
	for _, tool := range []string{"fail", "panic"} {
		got := dispatchMap(t, a, `{"method":"`+tool+`","params":{}}`)
		if got["error"] != "Tool execution failed" || got["tool"] != tool {
			t.Fatalf("%s: unexpected payload %v", tool, got)
		}
	}
}

func TestRegisterOverwritesKeepingOrder(t *testing.T) {
	a := newTestAgent()
	a.Register(Tool{
		Name:        "echo",
		InputSchema: ObjectSchema(map[string]Property{"text": {Type: "string"}}, "text"),
		Handler: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return "replaced", nil
		},
	})
	if got := a.ToolNames(); !reflect.DeepEqual(got, []string{"echo", "fail", "panic"}) {
		t.Fatalf("ToolNames() = %v", got)
	}
	if got := a.Dispatch(context.Background(), []byte(`{"method":"echo","params":{"text":"a"}}`)); got != "replaced" {
		t.Fatalf("last registration should win, got %v", got)
	}
}

func TestCallErrorsCarryCodes(t *testing.T) {
	a := newTestAgent()
	_, err := a.Call(context.Background(), "fail", json.RawMessage(`{}`))
	if code := core.ErrorCode(err); code != string(KindExecutionFailed) {
		t.Fatalf("ErrorCode = %q", code)
	}
	_, err = a.Call(context.Background(), "missing", nil)
	if code := core.ErrorCode(err); code != string(KindUnknownTool) {
		t.Fatalf("ErrorCode = %q", code)
	}
}

func TestErrorPayloadForPlainError(t *testing.T) {
	got := ErrorPayload(errors.New("read failed"))
	if got["error"] != "Request processing failed" || got["details"] != "read failed" {
		t.Fatalf("unexpected payload %v", got)
	}
}

func TestTraceIDRoundTrip(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), "abc")
	if got := TraceIDFromContext(ctx); got != "abc" {
		t.Fatalf("TraceIDFromContext = %q", got)
	}
	if got := TraceIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty trace id, got %q", got)
	}
}
