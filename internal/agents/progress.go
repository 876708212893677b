package agents

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/orchestrai/orchestrai/internal/core"
	"github.com/orchestrai/orchestrai/internal/jira"
	"github.com/orchestrai/orchestrai/internal/mcp"
)

const (
	progressFallback = "Manual review needed"
	velocityFallback = "Velocity analysis unavailable"
)

var doneStatuses = map[string]bool{"done": true, "closed": true, "resolved": true}

type Progress struct {
	llm     LLM
	tracker Tracker
	logger  *slog.Logger
	now     func() time.Time
}

func NewProgress(l LLM, tracker Tracker, logger *slog.Logger, now func() time.Time) *Progress {
	return &Progress{llm: l, tracker: tracker, logger: logger, now: now}
}

type analyzeProgressParams struct {
	Commits []string `json:"commits"`
}

type jiraVelocityParams struct {
	ProjectKey *string `json:"project_key"`
}

type ProgressResult struct {
	CommitsCount int                  `json:"commits_count"`
	Commits      []string             `json:"commits"`
	Summary      string               `json:"summary"`
	Reasoning    []core.ReasoningStep `json:"reasoning"`
}

type ProgressFailure struct {
	CommitsCount int                  `json:"commits_count"`
	Error        string               `json:"error"`
	Reasoning    []core.ReasoningStep `json:"reasoning"`
	Fallback     string               `json:"fallback"`
}

type VelocityResult struct {
	Project         string               `json:"project"`
	TotalIssues     int                  `json:"total_issues"`
	DoneIssues      int                  `json:"done_issues"`
	CompletionRate  float64              `json:"completion_rate"`
	VelocityStatus  string               `json:"velocity_status"`
	StatusBreakdown map[string]int       `json:"status_breakdown"`
	JiraMode        string               `json:"jira_mode"`
	Reasoning       []core.ReasoningStep `json:"reasoning"`
}

type VelocityFailure struct {
	Error     string               `json:"error"`
	JiraMode  string               `json:"jira_mode"`
	Reasoning []core.ReasoningStep `json:"reasoning"`
	Fallback  string               `json:"fallback"`
}

func (p *Progress) Tools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "analyze_progress",
			Description: "Summarize achievements and velocity from a list of commit messages",
			InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
				"commits": {Type: "array", Description: "Commit messages", Items: &mcp.Property{Type: "string"}},
			}, "commits"),
			Handler: mcp.Bind(func(ctx context.Context, in analyzeProgressParams) (any, error) {
				return p.AnalyzeProgress(ctx, in.Commits), nil
			}),
		},
		{
			Name:        "jira_velocity",
			Description: "Compute completion rate and velocity status from the project's Jira issues",
			InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
				"project_key": {Type: "string", Description: "Jira project key, defaults to JIRA_PROJECT_KEY"},
			}),
			Handler: mcp.Bind(func(ctx context.Context, in jiraVelocityParams) (any, error) {
				return p.JiraVelocity(ctx, in.ProjectKey), nil
			}),
		},
	}
}

func (p *Progress) AnalyzeProgress(ctx context.Context, commits []string) any {
	if commits == nil {
		commits = []string{}
	}
	trace := core.NewTrace(p.now)
	trace.Add("Received commits for progress analysis", map[string]any{"commits_count": len(commits)}, nil)

	prompt := progressPrompt(commits)
	trace.Add("Generated prompt for progress summary", nil, nil)

	reply := p.llm.Chat(ctx, prompt)
	if reply.Failed() {
		p.logger.Error("progress analysis failed", "err", reply.Err)
		trace.Add("Progress analysis failed", nil, errorData(reply.Err))
		return &ProgressFailure{
			CommitsCount: len(commits),
			Error:        reply.Err.Error(),
			Reasoning:    trace.Steps(),
			Fallback:     progressFallback,
		}
	}

	trace.Add("Received progress summary from LLM", nil, map[string]any{"summary_length": runeLen(reply.Text)})
	p.logger.Info("progress analysis completed", "commits_count", len(commits))

	return &ProgressResult{
		CommitsCount: len(commits),
		Commits:      commits,
		Summary:      reply.Text,
		Reasoning:    trace.Steps(),
	}
}

func (p *Progress) JiraVelocity(ctx context.Context, projectKey *string) any {
	project := valueOr(projectKey, p.tracker.ProjectKey())
	trace := core.NewTrace(p.now)
	trace.Add("Jira velocity analysis requested", map[string]any{"project_key": project}, nil)

	issues := p.tracker.ProjectIssues(ctx, project, jira.DefaultMaxResults)
	if err := ctx.Err(); err != nil {
		p.logger.Error("jira velocity analysis failed", "project", project, "err", err)
		trace.Add("Jira velocity analysis failed", nil, errorData(err))
		return &VelocityFailure{
			Error:     err.Error(),
			JiraMode:  "error",
			Reasoning: trace.Steps(),
			Fallback:  velocityFallback,
		}
	}
	trace.Add("Retrieved issues from Jira", nil, map[string]any{"issues_count": len(issues)})

	if len(issues) == 0 {
		trace.Add("No issues found, reporting no velocity data", nil, nil)
		return &VelocityResult{
			Project:         project,
			StatusBreakdown: map[string]int{},
			VelocityStatus:  "no_data",
			JiraMode:        jiraMode(p.tracker),
			Reasoning:       trace.Steps(),
		}
	}

	v := computeVelocity(issues)
	trace.Add("Calculated project velocity", nil, map[string]any{
		"total_issues":    v.total,
		"done_count":      v.done,
		"completion_rate": v.rate,
		"velocity_status": v.status,
	})
	p.logger.Info("jira velocity calculated", "project", project, "completion_rate", v.rate, "velocity_status", v.status)

	return &VelocityResult{
		Project:         project,
		TotalIssues:     v.total,
		DoneIssues:      v.done,
		CompletionRate:  v.rate,
		VelocityStatus:  v.status,
		StatusBreakdown: v.breakdown,
		JiraMode:        jiraMode(p.tracker),
		Reasoning:       trace.Steps(),
	}
}

type velocity struct {
	total     int
	done      int
	rate      float64
	status    string
	breakdown map[string]int
}

func computeVelocity(issues []jira.Issue) velocity {
	v := velocity{total: len(issues), breakdown: make(map[string]int)}
	for _, is := range issues {
		v.breakdown[is.Fields.Status.Name]++
	}
	for status, n := range v.breakdown {
		if doneStatuses[strings.ToLower(status)] {
			v.done += n
		}
	}
	if v.total > 0 {
		v.rate = math.Round(float64(v.done)/float64(v.total)*1000) / 10
	}
	v.status = velocityStatus(v.rate)
	return v
}

func velocityStatus(rate float64) string {
	switch {
	case rate >= 80:
		return "excellent"
	case rate >= 60:
		return "good"
	case rate >= 30:
		return "at_risk"
	default:
		return "critical"
	}
}

func progressPrompt(commits []string) string {
	var sb strings.Builder
	sb.WriteString("You are a progress tracking agent.\n")
	sb.WriteString("Analyze these commits and summarize achievements and velocity:\n")
	for i, c := range commits {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- " + c)
	}
	sb.WriteString("\n\nBe concise and positive.")
	return sb.String()
}
