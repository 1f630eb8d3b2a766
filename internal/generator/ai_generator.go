package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/clintrovert/ourstreet/internal/config"
	"github.com/clintrovert/ourstreet/pkg/types"
)

const (
	defaultModel       = "gemini-2.0-flash"
	defaultTemperature = 0.7
	callTimeout        = 30 * time.Second

	moderationUnavailable = "Moderation service unavailable"
)

var errEmptyCompletion = errors.New("no response from AI")

// AIGenerator moderates and writes posts with a chat-completion model.
// Every model failure has a local fallback, so callers never see one.
type AIGenerator struct {
	client      *openai.Client
	breaker     circuitbreaker.CircuitBreaker[string]
	logger      *zap.Logger
	model       string
	temperature float32
}

// NewAIGenerator creates a generator. A missing API key is a hard error.
func NewAIGenerator(cfg config.AIConfig, logger *zap.Logger) (*AIGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	// Consecutive model failures open the breaker so a dead provider costs
	// one fast failure per call instead of a full timeout.
	breaker := circuitbreaker.NewBuilder[string]().
		WithFailureThreshold(5).
		WithDelay(30 * time.Second).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			logger.Warn("AI circuit breaker state change",
				zap.String("from", stateName(e.OldState)),
				zap.String("to", stateName(e.NewState)),
			)
		}).
		Build()

	return &AIGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		breaker:     breaker,
		logger:      logger,
		model:       model,
		temperature: temperature,
	}, nil
}

// ModerateContent asks the model whether the issue may be published.
// Fail-open: if the model cannot answer, the issue is approved.
func (g *AIGenerator) ModerateContent(ctx context.Context, issue *types.Issue) Verdict {
	if issue == nil {
		return Verdict{ShouldPost: false, Reason: ErrNilIssue.Error(), Source: SourceModel}
	}

	answer, err := g.complete(ctx, moderationSystemPrompt, buildModerationPrompt(issue))
	if err != nil {
		g.logger.Error("content moderation failed, approving",
			zap.String("issue_id", issue.ID),
			zap.Error(err),
		)
		return Verdict{ShouldPost: true, Reason: moderationUnavailable, Source: SourceFailOpen}
	}

	verdict := parseVerdict(answer)
	g.logger.Info("moderation result",
		zap.String("issue_id", issue.ID),
		zap.Bool("approved", verdict.ShouldPost),
		zap.String("reason", verdict.Reason),
	)
	return verdict
}

// GenerateTweet writes post text with the model, or with FallbackTweet when
// the model is unavailable or answers with nothing.
func (g *AIGenerator) GenerateTweet(ctx context.Context, issue *types.Issue) (Draft, error) {
	if issue == nil {
		return Draft{}, ErrNilIssue
	}

	answer, err := g.complete(ctx, tweetSystemPrompt, buildTweetPrompt(issue))
	if err == nil {
		if text := cleanTweet(answer); text != "" {
			g.logger.Info("generated tweet",
				zap.String("issue_id", issue.ID),
				zap.Int("chars", Length(text)),
			)
			return Draft{Text: text, Source: SourceAI}, nil
		}
		err = errEmptyCompletion
	}

	g.logger.Warn("tweet generation failed, using template",
		zap.String("issue_id", issue.ID),
		zap.Error(err),
	)
	return Draft{Text: FallbackTweet(issue), Source: SourceTemplate}, nil
}

func (g *AIGenerator) complete(ctx context.Context, system, prompt string) (string, error) {
	return failsafe.With(g.breaker).WithContext(ctx).Get(func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		resp, err := g.client.CreateChatCompletion(
			callCtx,
			openai.ChatCompletionRequest{
				Model: g.model,
				Messages: []openai.ChatCompletionMessage{
					{
						Role:    openai.ChatMessageRoleSystem,
						Content: system,
					},
					{
						Role:    openai.ChatMessageRoleUser,
						Content: prompt,
					},
				},
				Temperature: g.temperature,
			},
		)
		if err != nil {
			return "", fmt.Errorf("failed to create chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", errEmptyCompletion
		}
		return resp.Choices[0].Message.Content, nil
	})
}

func stateName(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.OpenState:
		return "open"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	default:
		return "closed"
	}
}
