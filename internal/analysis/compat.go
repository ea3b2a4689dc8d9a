package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// compatBackend talks to any OpenAI-compatible chat-completions
// endpoint. Both the hosted Moonshot ("kimi") and OpenAI variants ride
// on it; they differ only in base URL, model and reported name.
type compatBackend struct {
	client   openai.Client
	provider string
	model    string
	template string
	timeout  time.Duration
	logger   *zap.Logger
}

func newCompat(provider, apiKey, baseURL, model, template string, timeout time.Duration, logger *zap.Logger) *compatBackend {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &compatBackend{
		client:   openai.NewClient(opts...),
		provider: provider,
		model:    model,
		template: template,
		timeout:  timeout,
		logger:   logger.Named(provider),
	}
}

func (b *compatBackend) Analyze(ctx context.Context, text string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	completion, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(b.template, text)),
		},
		Temperature: openai.Float(0.3),
		MaxTokens:   openai.Int(512),
	})
	if err != nil {
		return Result{}, fmt.Errorf("%s completion: %w", b.provider, err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return Result{}, ErrEmptyResponse
	}

	content := completion.Choices[0].Message.Content
	b.logger.Debug("completion received", zap.Int("content_len", len(content)))
	return parseResponse(content, text, b.provider), nil
}

// HealthCheck sends a one-token completion to verify credentials and
// connectivity. Failures are reported, not fatal.
func (b *compatBackend) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("Hi"),
		},
		MaxTokens: openai.Int(1),
	})
	if err != nil {
		b.logger.Warn("health check failed", zap.Error(err))
		return false
	}
	return true
}

func (b *compatBackend) Name() string {
	return fmt.Sprintf("%s (%s)", b.provider, b.model)
}
