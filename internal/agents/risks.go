package agents

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/orchestrai/orchestrai/internal/core"
	"github.com/orchestrai/orchestrai/internal/mcp"
)

const (
	risksFallback = "Manual risk assessment required"

	maxDetectedRisks = 10
	minRiskRunes     = 20
	riskMarkerChars  = "-*•0123456789. "
)

var riskLinePrefixes = []string{"- ", "* ", "• ", "1.", "2.", "3.", "4.", "5."}

type RiskAnalyzer struct {
	llm    LLM
	logger *slog.Logger
	now    func() time.Time
}

func NewRiskAnalyzer(l LLM, logger *slog.Logger, now func() time.Time) *RiskAnalyzer {
	return &RiskAnalyzer{llm: l, logger: logger, now: now}
}

type analyzeRisksParams struct {
	Feature string `json:"feature"`
}

type RisksResult struct {
	Feature       string               `json:"feature"`
	RiskAnalysis  string               `json:"risk_analysis"`
	DetectedRisks []string             `json:"detected_risks"`
	TotalRisks    int                  `json:"total_risks"`
	Reasoning     []core.ReasoningStep `json:"reasoning"`
}

type RisksFailure struct {
	Feature   string               `json:"feature"`
	Error     string               `json:"error"`
	Reasoning []core.ReasoningStep `json:"reasoning"`
	Fallback  string               `json:"fallback"`
}

func (r *RiskAnalyzer) Tools() []mcp.Tool {
	return []mcp.Tool{{
		Name:        "analyze_risks",
		Description: "Analyze security, performance, technical debt and compliance risks of a feature",
		InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
			"feature": {Type: "string", Description: "Feature to assess"},
		}, "feature"),
		Handler: mcp.Bind(func(ctx context.Context, in analyzeRisksParams) (any, error) {
			return r.AnalyzeRisks(ctx, in.Feature), nil
		}),
	}}
}

func (r *RiskAnalyzer) AnalyzeRisks(ctx context.Context, feature string) any {
	trace := core.NewTrace(r.now)
	trace.Add("Risk analysis requested", map[string]any{"feature": feature}, nil)

	prompt := risksPrompt(feature)
	trace.Add("Generated risk analysis prompt", nil, nil)

	reply := r.llm.Chat(ctx, prompt)
	if reply.Failed() {
		r.logger.Error("risk analysis failed", "err", reply.Err)
		trace.Add("Risk analysis failed", nil, errorData(reply.Err))
		return &RisksFailure{Feature: feature, Error: reply.Err.Error(), Reasoning: trace.Steps(), Fallback: risksFallback}
	}

	risks := extractRisks(reply.Text)
	trace.Add("Risk analysis completed", nil, map[string]any{
		"risks_count":     len(risks),
		"analysis_length": runeLen(reply.Text),
	})
	r.logger.Info("risk analysis completed", "feature", feature, "risks_found", len(risks))

	return &RisksResult{
		Feature:       feature,
		RiskAnalysis:  reply.Text,
		DetectedRisks: risks,
		TotalRisks:    len(risks),
		Reasoning:     trace.Steps(),
	}
}

// extractRisks picks list items and lines mentioning risk, strips their
// markers and keeps those longer than minRiskRunes, at most maxDetectedRisks.
func extractRisks(analysis string) []string {
	risks := []string{}
	for _, line := range strings.Split(analysis, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || !looksLikeRisk(t) {
			continue
		}
		clean := strings.TrimSpace(strings.TrimLeft(t, riskMarkerChars))
		if runeLen(clean) <= minRiskRunes {
			continue
		}
		risks = append(risks, clean)
		if len(risks) == maxDetectedRisks {
			break
		}
	}
	return risks
}

func looksLikeRisk(line string) bool {
	for _, p := range riskLinePrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(line), "risk")
}

func risksPrompt(feature string) string {
	return "Analyze risks for implementing: " + feature + "\n\n" +
		"Provide a concise risk analysis covering:\n" +
		"1. Security risks (top 2-3)\n" +
		"2. Performance risks (top 2)\n" +
		"3. Technical debt risks (top 2)\n" +
		"4. Compliance risks (if applicable)\n\n" +
		"For each risk, provide:\n" +
		"- Risk name (brief)\n" +
		"- Impact (High/Medium/Low)\n" +
		"- Quick mitigation strategy (1 sentence)\n\n" +
		"Keep total response under 500 words. Use bullet points."
}
