// Package agents implements the tool handlers served by each agent profile.
package agents

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/orchestrai/orchestrai/internal/core"
	"github.com/orchestrai/orchestrai/internal/jira"
	"github.com/orchestrai/orchestrai/internal/llm"
	"github.com/orchestrai/orchestrai/internal/mcp"
)

// LLM is the completion backend used by every handler.
type LLM interface {
	Chat(ctx context.Context, prompt string) llm.Reply
}

// Tracker is the issue tracker used by the planner and progress agents.
type Tracker interface {
	CreateTask(ctx context.Context, in jira.TaskInput) jira.TaskResult
	ProjectIssues(ctx context.Context, projectKey string, maxResults int) []jira.Issue
	MockMode() bool
	ProjectKey() string
}

type Deps struct {
	LLM     LLM
	Tracker Tracker
	// Policy filters the registered tools; nil registers all of them.
	Policy *core.Policy
	Logger *slog.Logger
	Now    func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Build constructs the agent for profile with its tools registered.
func Build(profile *core.AgentProfile, deps Deps) (*mcp.Agent, error) {
	if profile == nil {
		return nil, fmt.Errorf("agent profile is required")
	}
	deps = deps.withDefaults()
	if deps.LLM == nil {
		return nil, fmt.Errorf("agent %s: llm gateway is required", profile.Name)
	}

	logger := deps.Logger.With("agent", profile.Title)
	agent := mcp.NewAgent(profile.Title, logger)

	var tools []mcp.Tool
	switch profile.Name {
	case core.AgentPlanner:
		if deps.Tracker == nil {
			return nil, fmt.Errorf("agent %s: tracker is required", profile.Name)
		}
		tools = NewPlanner(deps.LLM, deps.Tracker, logger, deps.Now).Tools()
	case core.AgentProgress:
		if deps.Tracker == nil {
			return nil, fmt.Errorf("agent %s: tracker is required", profile.Name)
		}
		tools = NewProgress(deps.LLM, deps.Tracker, logger, deps.Now).Tools()
	case core.AgentImage:
		tools = NewImageReviewer(deps.LLM, logger, deps.Now).Tools()
	case core.AgentDigest:
		tools = NewDigest(deps.LLM, logger, deps.Now).Tools()
	case core.AgentRisks:
		tools = NewRiskAnalyzer(deps.LLM, logger, deps.Now).Tools()
	default:
		return nil, fmt.Errorf("unknown agent profile %q", profile.Name)
	}

	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
		if err := deps.Policy.CheckTool(t.Name); err != nil {
			logger.Info("tool disabled by policy", "tool", t.Name)
			continue
		}
		agent.Register(t)
	}
	if unknown := deps.Policy.Unknown(names); len(unknown) > 0 {
		logger.Warn("tool allowlist names unknown tools", "tools", unknown)
	}
	logger.Info("agent initialized", "tools", agent.ToolNames())
	return agent, nil
}

func errorData(err error) map[string]any {
	return map[string]any{"error": err.Error()}
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// preview returns at most n runes of s.
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
