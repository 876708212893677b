package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/orchestrai/orchestrai/internal/core"
	"github.com/orchestrai/orchestrai/internal/mcp"
)

type greetParams struct {
	Name string `json:"name"`
}

func newTestServer(t *testing.T, serveIndex bool) *Server {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	agent := mcp.NewAgent("Risks", logger)
	agent.Register(mcp.Tool{
		Name:        "greet",
		Description: "Say hello",
		InputSchema: mcp.ObjectSchema(map[string]mcp.Property{"name": {Type: "string"}}, "name"),
		Handler: mcp.Bind(func(ctx context.Context, p greetParams) (any, error) {
			return map[string]any{"greeting": "hello " + p.Name, "trace": mcp.TraceIDFromContext(ctx)}, nil
		}),
	})
	profile := &core.AgentProfile{Name: "risks", Title: "Risks", ServeIndex: serveIndex}
	return NewServer("127.0.0.1:0", agent, profile, logger)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return got
}

func TestHealthReportsAgentName(t *testing.T) {
	s := newTestServer(t, false)
	rr := doRequest(s, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	got := decodeBody(t, rr)
	if got["status"] != "ok" || got["agent"] != "Risks" {
		t.Fatalf("unexpected health payload: %v", got)
	}
}

func TestMCPReturnsToolResult(t *testing.T) {
	s := newTestServer(t, false)
	rr := doRequest(s, http.MethodPost, "/mcp", `{"method":"tools/greet","params":{"name":"ops"},"id":7}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	got := decodeBody(t, rr)
	if got["greeting"] != "hello ops" {
		t.Fatalf("unexpected result: %v", got)
	}
	traceID := rr.Header().Get("X-Trace-Id")
	if traceID == "" || got["trace"] != traceID {
		t.Fatalf("trace id not propagated: header %q, handler saw %v", traceID, got["trace"])
	}
}

func TestMCPErrorsStayHTTP200(t *testing.T) {
	s := newTestServer(t, false)
	cases := map[string]string{
		"{oops":                                    "Invalid JSON",
		`{"params":{}}`:                            "Invalid MCP request format",
		`{"method":"missing","params":{}}`:         "Unknown tool: missing",
		`{"method":"greet","params":{"nick":"x"}}`: "Invalid parameters for tool 'greet'",
	}
	for body, wantErr := range cases {
		rr := doRequest(s, http.MethodPost, "/mcp", body)
		if rr.Code != http.StatusOK {
			t.Fatalf("body %q: expected status 200, got %d", body, rr.Code)
		}
		if got := decodeBody(t, rr); got["error"] != wantErr {
			t.Fatalf("body %q: error = %v, want %q", body, got["error"], wantErr)
		}
	}
}

func TestMCPOversizedBodyIsRequestFailure(t *testing.T) {
	s := newTestServer(t, false)
	body := `{"method":"greet","params":{"name":"` + strings.Repeat("a", maxRequestBodyBytes) + `"}}`
	rr := doRequest(s, http.MethodPost, "/mcp", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := decodeBody(t, rr); got["error"] != "Request processing failed" {
		t.Fatalf("unexpected payload: %v", got)
	}
}

func TestIndexOnlyWhenProfileServesIt(t *testing.T) {
	with := newTestServer(t, true)
	rr := doRequest(with, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	got := decodeBody(t, rr)
	if got["message"] != "Multi-agent-devops-assistant Agent is running!" || got["docs"] != "/docs" {
		t.Fatalf("unexpected index payload: %v", got)
	}
	tools, _ := got["available_tools"].([]any)
	if len(tools) != 1 || tools[0] != "greet" {
		t.Fatalf("available_tools = %v", got["available_tools"])
	}

	without := newTestServer(t, false)
	if rr := doRequest(without, http.MethodGet, "/", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without index, got %d", rr.Code)
	}
}

func TestDocsListsToolDefinitions(t *testing.T) {
	s := newTestServer(t, false)
	got := decodeBody(t, doRequest(s, http.MethodGet, "/docs", ""))
	tools, _ := got["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools = %v", got["tools"])
	}
	def := tools[0].(map[string]any)
	if def["name"] != "greet" {
		t.Fatalf("unexpected definition: %v", def)
	}
	schema := def["inputSchema"].(map[string]any)
	if req, _ := schema["required"].([]any); len(req) != 1 || req[0] != "name" {
		t.Fatalf("unexpected schema: %v", schema)
	}
}

func TestMetricsEndpointRendersToolCalls(t *testing.T) {
	s := newTestServer(t, false)
	doRequest(s, http.MethodPost, "/mcp", `{"method":"greet","params":{"name":"a"}}`)

	rr := doRequest(s, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `orchestrai_tool_calls_total{tool="greet",status="ok"}`) {
		t.Fatalf("metrics missing tool call counter:\n%s", rr.Body.String())
	}
}
