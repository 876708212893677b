package agents

import (
	"context"
	"log/slog"
	"time"

	"github.com/orchestrai/orchestrai/internal/core"
	"github.com/orchestrai/orchestrai/internal/mcp"
)

const (
	digestFallback = "No updates today"
	dateLayout     = "2006-01-02"
)

type Digest struct {
	llm    LLM
	logger *slog.Logger
	now    func() time.Time
}

func NewDigest(l LLM, logger *slog.Logger, now func() time.Time) *Digest {
	return &Digest{llm: l, logger: logger, now: now}
}

type dailyDigestParams struct {
	Date *string `json:"date"`
}

type DigestResult struct {
	Date        string               `json:"date"`
	Summary     string               `json:"summary"`
	GeneratedAt string               `json:"generated_at"`
	Reasoning   []core.ReasoningStep `json:"reasoning"`
}

type DigestFailure struct {
	Date      string               `json:"date"`
	Error     string               `json:"error"`
	Reasoning []core.ReasoningStep `json:"reasoning"`
	Fallback  string               `json:"fallback"`
}

func (d *Digest) Tools() []mcp.Tool {
	return []mcp.Tool{{
		Name:        "daily_digest",
		Description: "Generate a concise daily project digest",
		InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
			"date": {Type: "string", Description: "Digest date as YYYY-MM-DD, defaults to today (UTC)"},
		}),
		Handler: mcp.Bind(func(ctx context.Context, in dailyDigestParams) (any, error) {
			return d.DailyDigest(ctx, in.Date), nil
		}),
	}}
}

// DailyDigest uses the current UTC date when date is nil or empty. The first
// reasoning step records whether the date was filled in automatically.
func (d *Digest) DailyDigest(ctx context.Context, date *string) any {
	day := valueOr(date, "")
	autoDate := day == ""
	if autoDate {
		day = d.now().UTC().Format(dateLayout)
		d.logger.Info("date not provided, using current date", "date", day)
	}

	trace := core.NewTrace(d.now)
	trace.Add("Daily digest requested", map[string]any{"date": day, "auto_date": autoDate}, nil)

	prompt := digestPrompt(day)
	trace.Add("Generated digest prompt", nil, nil)

	reply := d.llm.Chat(ctx, prompt)
	if reply.Failed() {
		d.logger.Error("daily digest failed", "err", reply.Err)
		trace.Add("Digest generation failed", nil, errorData(reply.Err))
		return &DigestFailure{Date: day, Error: reply.Err.Error(), Reasoning: trace.Steps(), Fallback: digestFallback}
	}

	trace.Add("Daily digest generated", nil, map[string]any{
		"digest_length": runeLen(reply.Text),
		"date_used":     day,
	})
	d.logger.Info("daily digest completed", "date", day, "length", runeLen(reply.Text))

	return &DigestResult{
		Date:        day,
		Summary:     reply.Text,
		GeneratedAt: d.now().UTC().Format(time.RFC3339Nano),
		Reasoning:   trace.Steps(),
	}
}

func digestPrompt(date string) string {
	return "Generate a concise daily project digest for " + date + ".\n\n" +
		"Structure:\n" +
		"📅 Date: " + date + "\n\n" +
		"✅ Key Achievements (2-3 items):\n" +
		"- [List main accomplishments]\n\n" +
		"🚧 Current Blockers (if any):\n" +
		"- [List or write 'None']\n\n" +
		"👥 Team Status:\n" +
		"- [Brief mood/productivity note]\n\n" +
		"📊 Progress Summary:\n" +
		"- [1-2 sentences on overall progress]\n\n" +
		"Keep it positive, actionable, and under 150 words total."
}
