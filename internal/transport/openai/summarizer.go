package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docingest/internal/domain"
	"github.com/kailas-cloud/docingest/internal/metrics"
)

// DefaultSummaryPrompt instructs the model how to summarize a document.
const DefaultSummaryPrompt = "You summarize documents. Reply with a concise plain-text summary " +
	"of the user's document in the document's language. Do not add commentary."

// Summarizer produces summaries through the chat completion API.
type Summarizer struct {
	client    *openai.Client
	model     string
	maxTokens int
	prompt    string
	user      string
	provider  string
	logger    *zap.Logger
}

// NewSummarizer creates an OpenAI-compatible summarizer.
// An empty cfg.Prompt selects DefaultSummaryPrompt.
func NewSummarizer(cfg *Config) *Summarizer {
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = DefaultSummaryPrompt
	}
	return &Summarizer{
		client:    newClient(cfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		prompt:    prompt,
		user:      cfg.User,
		provider:  cfg.Provider,
		logger:    loggerOrNop(cfg.Logger),
	}
}

// Summarize returns the first choice of a chat completion over text.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: s.prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		User: s.user,
	}
	if s.maxTokens > 0 {
		req.MaxTokens = s.maxTokens
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		err = parseAPIError("summarization", err, domain.ErrSummarizationFailure)
		metrics.SummarizerRequestsTotal.WithLabelValues(s.provider, s.model, errorType(err)).Inc()
		s.logger.Warn("Summarization request failed",
			zap.String("provider", s.provider),
			zap.String("model", s.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.SummarizerRequestsTotal.WithLabelValues(s.provider, s.model, "empty_response").Inc()
		return "", fmt.Errorf("empty summarization response: %w", domain.ErrSummarizationFailure)
	}

	metrics.SummarizerRequestsTotal.WithLabelValues(s.provider, s.model, "success").Inc()
	metrics.SummarizerRequestDuration.WithLabelValues(s.provider, s.model).Observe(duration.Seconds())
	s.logger.Debug("Summarization request completed",
		zap.String("provider", s.provider),
		zap.String("model", s.model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (s *Summarizer) HealthCheck(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
