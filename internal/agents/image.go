package agents

import (
	"context"
	"log/slog"
	"time"

	"github.com/orchestrai/orchestrai/internal/core"
	"github.com/orchestrai/orchestrai/internal/mcp"
)

const imageFallback = "Manual design review required"

type ImageReviewer struct {
	llm    LLM
	logger *slog.Logger
	now    func() time.Time
}

func NewImageReviewer(l LLM, logger *slog.Logger, now func() time.Time) *ImageReviewer {
	return &ImageReviewer{llm: l, logger: logger, now: now}
}

type analyzeImageParams struct {
	ImageURL    *string `json:"image_url"`
	ImageBase64 *string `json:"image_base64"`
	Context     *string `json:"context"`
}

type ImageResult struct {
	Summary   string               `json:"summary"`
	Reasoning []core.ReasoningStep `json:"reasoning"`
}

type ImageFailure struct {
	Error     string               `json:"error"`
	Reasoning []core.ReasoningStep `json:"reasoning"`
	Fallback  string               `json:"fallback,omitempty"`
}

func (r *ImageReviewer) Tools() []mcp.Tool {
	return []mcp.Tool{{
		Name:        "analyze_image",
		Description: "Review a UI or system design image and return structured feedback",
		InputSchema: mcp.ObjectSchema(map[string]mcp.Property{
			"image_url":    {Type: "string", Description: "Public URL of the image"},
			"image_base64": {Type: "string", Description: "Base64-encoded image data"},
			"context":      {Type: "string", Description: "What the image shows or what to focus on"},
		}),
		Handler: mcp.Bind(func(ctx context.Context, in analyzeImageParams) (any, error) {
			return r.AnalyzeImage(ctx, in.ImageURL, in.ImageBase64, in.Context), nil
		}),
	}}
}

// AnalyzeImage requires at least one of imageURL or imageBase64. The image
// itself is not forwarded; the review is driven by the context text.
func (r *ImageReviewer) AnalyzeImage(ctx context.Context, imageURL, imageBase64, reviewContext *string) any {
	trace := core.NewTrace(r.now)
	trace.Add("Image analysis requested", map[string]any{
		"image_url":  optional(imageURL),
		"has_base64": imageBase64 != nil,
		"context":    optional(reviewContext),
	}, nil)

	if valueOr(imageURL, "") == "" && valueOr(imageBase64, "") == "" {
		return &ImageFailure{Error: "No image provided", Reasoning: trace.Steps()}
	}

	prompt := imagePrompt(valueOr(reviewContext, "Not provided"))
	trace.Add("Generated image analysis prompt", nil, nil)

	reply := r.llm.Chat(ctx, prompt)
	if reply.Failed() {
		r.logger.Error("image analysis failed", "err", reply.Err)
		trace.Add("Image analysis failed", nil, errorData(reply.Err))
		return &ImageFailure{Error: reply.Err.Error(), Reasoning: trace.Steps(), Fallback: imageFallback}
	}

	trace.Add("Image analysis completed", nil, map[string]any{"analysis_length": runeLen(reply.Text)})
	r.logger.Info("image analysis completed", "analysis_length", runeLen(reply.Text))
	return &ImageResult{Summary: reply.Text, Reasoning: trace.Steps()}
}

func imagePrompt(reviewContext string) string {
	return "You are a senior UX and system design reviewer.\n" +
		"Analyze the provided image and give structured feedback.\n\n" +
		"Context: " + reviewContext + "\n\n" +
		"Provide:\n" +
		"1. Short summary\n" +
		"2. Detected issues (type + severity)\n" +
		"3. Improvement suggestions\n" +
		"Keep it concise and structured."
}
