package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/orchestrai/orchestrai/internal/telemetry"
)

const (
	ProviderStub = "stub"
	ProviderGroq = "groq"

	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	DefaultGroqModel   = "llama-3.3-70b-versatile"

	Temperature    = 0.7
	MaxTokens      = 1024
	RequestTimeout = 30 * time.Second

	StubPrefix        = "[stub] "
	ErrorPrefix       = "[LLM error] "
	UnsupportedPrefix = "[unsupported provider] "
)

// ErrUnsupportedProvider marks replies from a gateway configured with an unknown provider.
var ErrUnsupportedProvider = errors.New("unsupported llm provider")

type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Reply is the outcome of one chat call. Text is always set; on upstream
// failure it carries the "[LLM error] " prefix and Err holds the cause.
type Reply struct {
	Text  string
	Usage *Usage
	Err   error
}

func (r Reply) Failed() bool { return r.Err != nil }

// Gateway turns a prompt into a single completion from the provider chosen at
// construction. It is safe for concurrent use.
type Gateway struct {
	provider string
	model    string
	client   *openai.Client
	logger   *slog.Logger
}

func NewGateway(cfg Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderStub
	}
	g := &Gateway{provider: provider, logger: logger}

	if provider != ProviderGroq {
		if provider != ProviderStub {
			logger.Warn("unsupported llm provider configured", "provider", provider)
		}
		return g, nil
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq provider requires an api key")
	}
	g.model = cfg.Model
	if g.model == "" {
		g.model = DefaultGroqModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultGroqBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = RequestTimeout
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	g.client = &client
	logger.Info("llm gateway initialized", "provider", provider, "model", g.model)
	return g, nil
}

func (g *Gateway) Provider() string { return g.provider }

func (g *Gateway) Model() string { return g.model }

// Chat never returns a Go error; failures are reported through Reply.Err.
func (g *Gateway) Chat(ctx context.Context, prompt string) Reply {
	switch g.provider {
	case ProviderStub:
		telemetry.IncLLMCall(g.provider, "ok")
		return Reply{Text: StubPrefix + prompt}
	case ProviderGroq:
		return g.chatGroq(ctx, prompt)
	default:
		telemetry.IncLLMCall(g.provider, "unsupported")
		return Reply{
			Text: UnsupportedPrefix + g.provider,
			Err:  fmt.Errorf("%w: %s", ErrUnsupportedProvider, g.provider),
		}
	}
}

func (g *Gateway) chatGroq(ctx context.Context, prompt string) Reply {
	g.logger.Info("llm request started", "provider", g.provider, "model", g.model, "prompt_length", len(prompt))

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(Temperature),
		MaxTokens:   openai.Int(MaxTokens),
	})
	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("llm response contained no choices")
	}
	if err != nil {
		g.logger.Error("llm request failed", "provider", g.provider, "err", err)
		telemetry.IncLLMCall(g.provider, "error")
		return Reply{Text: ErrorPrefix + err.Error(), Err: err}
	}

	text := resp.Choices[0].Message.Content
	usage := &Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	g.logger.Info("llm response received",
		"provider", g.provider,
		"response_length", len(text),
		"total_tokens", usage.TotalTokens,
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
	)
	telemetry.IncLLMCall(g.provider, "ok")
	telemetry.AddLLMTokens(g.provider, usage.TotalTokens)
	return Reply{Text: text, Usage: usage}
}
