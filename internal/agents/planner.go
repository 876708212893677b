package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/orchestrai/orchestrai/internal/core"
	"github.com/orchestrai/orchestrai/internal/jira"
	"github.com/orchestrai/orchestrai/internal/mcp"
)

var fallbackSubtasks = []string{
	"Research requirements and constraints",
	"Design solution architecture",
	"Implement core functionality",
	"Add validation and error handling",
	"Write tests and documentation",
}

var (
	errorIndicators = []string{
		"llm error",
		"unauthorized",
		"401",
		"client error",
		"for more information check",
		"status/401",
		"connection error",
		"timeout",
	}
	stubIndicators = []string{
		"[stub]",
		"you are a senior project planner",
		"return only a numbered list",
		"break down this task",
		"each subtask should be",
	}
)

const manualPlanning = "Manual planning required"

type Planner struct {
	llm     LLM
	tracker Tracker
	logger  *slog.Logger
	now     func() time.Time
}

func NewPlanner(l LLM, tracker Tracker, logger *slog.Logger, now func() time.Time) *Planner {
	return &Planner{llm: l, tracker: tracker, logger: logger, now: now}
}

type planParams struct {
	Description string `json:"description"`
}

type planWithJiraParams struct {
	Description string  `json:"description"`
	ProjectKey  *string `json:"project_key"`
}

type PlanResult struct {
	Task      string               `json:"task"`
	Subtasks  []string             `json:"subtasks"`
	Reasoning []core.ReasoningStep `json:"reasoning"`
}

type PlanFailure struct {
	Task             string               `json:"task"`
	Error            string               `json:"error"`
	Reasoning        []core.ReasoningStep `json:"reasoning"`
	FallbackSubtasks []string             `json:"fallback_subtasks"`
}

type PlanWithJiraResult struct {
	Task       string               `json:"task"`
	Subtasks   []string             `json:"subtasks"`
	JiraIssues []any                `json:"jira_issues"`
	JiraMode   string               `json:"jira_mode"`
	Reasoning  []core.ReasoningStep `json:"reasoning"`
}

func (p *Planner) Tools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "plan",
			Description: "Break a task description into 3-5 concrete, actionable subtasks",
			InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
				"description": {Type: "string", Description: "Task to plan"},
			}, "description"),
			Handler: mcp.Bind(func(ctx context.Context, in planParams) (any, error) {
				return p.Plan(ctx, in.Description), nil
			}),
		},
		{
			Name:        "plan_with_jira",
			Description: "Plan a task, then create an epic and one issue per subtask in Jira",
			InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
				"description": {Type: "string", Description: "Task to plan"},
				"project_key": {Type: "string", Description: "Jira project key, defaults to JIRA_PROJECT_KEY"},
			}, "description"),
			Handler: mcp.Bind(func(ctx context.Context, in planWithJiraParams) (any, error) {
				return p.PlanWithJira(ctx, in.Description, in.ProjectKey), nil
			}),
		},
	}
}

// Plan returns a *PlanResult, or a *PlanFailure when the call was aborted.
func (p *Planner) Plan(ctx context.Context, description string) any {
	trace := core.NewTrace(p.now)
	subtasks, err := p.plan(ctx, description, trace)
	if err != nil {
		return &PlanFailure{
			Task:             description,
			Error:            err.Error(),
			Reasoning:        trace.Steps(),
			FallbackSubtasks: []string{manualPlanning},
		}
	}
	return &PlanResult{Task: description, Subtasks: subtasks, Reasoning: trace.Steps()}
}

func (p *Planner) plan(ctx context.Context, description string, trace *core.Trace) ([]string, error) {
	trace.Add("Received task for planning", map[string]any{"description": description}, nil)

	prompt := planPrompt(description)
	trace.Add("Generated prompt for LLM planning", nil, nil)

	reply := p.llm.Chat(ctx, prompt)
	if err := ctx.Err(); err != nil {
		p.logger.Error("planning failed critically", "task", description, "err", err)
		trace.Add("Critical planning failure", nil, errorData(err))
		return nil, err
	}

	subtasks := parseSubtasks(reply.Text)
	llmStatus := "real"
	if reply.Failed() || isInvalidResponse(subtasks) {
		llmStatus = "fallback"
		out := map[string]any{
			"fallback_used":             true,
			"original_response_preview": preview(reply.Text, 200),
		}
		if reply.Failed() {
			out["error"] = reply.Err.Error()
		}
		trace.Add("Detected LLM stub/error response, using safe fallback subtasks", nil, out)
		subtasks = append([]string(nil), fallbackSubtasks...)
	} else {
		trace.Add("Successfully parsed subtasks from LLM response", nil, map[string]any{
			"subtasks_count": len(subtasks),
			"subtasks":       subtasks,
		})
	}

	p.logger.Info("planning completed", "task", description, "subtasks_count", len(subtasks), "llm_status", llmStatus)
	return subtasks, nil
}

// PlanWithJira plans description and files the result as one epic plus one
// issue per subtask. Tracker failures are recorded inline and never abort
// the call; issues created before a failure are kept.
func (p *Planner) PlanWithJira(ctx context.Context, description string, projectKey *string) any {
	trace := core.NewTrace(p.now)
	trace.Add("Received task for planning with Jira integration", map[string]any{
		"description": description,
		"project_key": optional(projectKey),
	}, nil)

	nested := core.NewTrace(p.now)
	subtasks, err := p.plan(ctx, description, nested)
	trace.Extend(nested.Steps())
	if err != nil {
		return &PlanFailure{
			Task:             description,
			Error:            err.Error(),
			Reasoning:        trace.Steps(),
			FallbackSubtasks: []string{manualPlanning},
		}
	}

	trace.Add("Planning phase completed, initiating Jira integration", nil, map[string]any{
		"subtasks_count": len(subtasks),
	})

	key := valueOr(projectKey, "")
	issues := make([]any, 0, len(subtasks)+1)
	var failures []string

	epic := p.tracker.CreateTask(ctx, jira.TaskInput{
		Summary:     "[Epic] " + description,
		Description: fmt.Sprintf("Auto-generated by OrchestrAI\nSubtasks planned: %d", len(subtasks)),
		ProjectKey:  key,
	})
	issues = append(issues, epic)
	if epic.Status == jira.StatusError {
		failures = append(failures, epic.Error)
	}
	trace.Add("Created Epic in Jira", nil, map[string]any{"epic": epic})

	for i, subtask := range subtasks {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err.Error())
			issues = append(issues, map[string]any{"status": jira.StatusError, "details": err.Error()})
			break
		}
		res := p.tracker.CreateTask(ctx, jira.TaskInput{
			Summary:     fmt.Sprintf("[Subtask %d] %s", i+1, subtask),
			Description: "Part of epic: " + description,
			ProjectKey:  key,
		})
		issues = append(issues, res)
		if res.Status == jira.StatusError {
			failures = append(failures, res.Error)
		}
	}

	if len(failures) > 0 {
		p.logger.Error("jira integration failed", "task", description, "failed", len(failures), "err", failures[0])
		trace.Add("Jira task creation failed", nil, map[string]any{
			"error":          failures[0],
			"failed_count":   len(failures),
			"issues_created": len(issues) - len(failures),
		})
	} else {
		p.logger.Info("plan with jira completed", "task", description, "issues_count", len(issues))
		trace.Add("Successfully created all Jira issues", nil, map[string]any{
			"total_issues_created": len(issues),
		})
	}

	return &PlanWithJiraResult{
		Task:       description,
		Subtasks:   subtasks,
		JiraIssues: issues,
		JiraMode:   jiraMode(p.tracker),
		Reasoning:  trace.Steps(),
	}
}

func planPrompt(description string) string {
	return "You are a senior project planner.\n" +
		"Break down this task into 3-5 concrete, actionable subtasks:\n" +
		description + "\n\n" +
		"Return ONLY a numbered list, one subtask per line.\n" +
		"Each subtask should be clear and specific."
}

// parseSubtasks keeps lines that open with a list marker and strips it. When
// no line does, the first five non-empty lines are used verbatim.
func parseSubtasks(response string) []string {
	lines := strings.Split(response, "\n")

	var out []string
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" || !strings.ContainsRune("0123456789.-", rune(t[0])) {
			continue
		}
		if s := strings.TrimLeft(t, "0123456789.-) "); s != "" {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, line := range lines {
		if t := strings.TrimSpace(line); t != "" {
			out = append(out, t)
			if len(out) == 5 {
				break
			}
		}
	}
	return out
}

// isInvalidResponse reports whether subtasks look like a stub echo or an
// upstream error rather than a real plan.
func isInvalidResponse(subtasks []string) bool {
	if len(subtasks) == 0 {
		return true
	}
	text := strings.ToLower(strings.Join(subtasks, " "))
	for _, ind := range errorIndicators {
		if strings.Contains(text, ind) {
			return true
		}
	}
	for _, ind := range stubIndicators {
		if strings.Contains(text, ind) {
			return true
		}
	}
	return false
}

func jiraMode(t Tracker) string {
	if t.MockMode() {
		return "mock"
	}
	return "real"
}
