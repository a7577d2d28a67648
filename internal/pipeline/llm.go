package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/nlpodyssey/openai-agents-go/modelsettings"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/shared"

	"github.com/polarline/santacall/internal/metrics"
)

// Responder produces Santa's reply text from a persona prompt and the
// child's utterance.
type Responder interface {
	Reply(ctx context.Context, systemPrompt, userText string) (string, error)
}

// AgentResponder runs the reply through the openai-agents-go SDK. The agent
// is rebuilt per call because the persona prompt varies by child.
type AgentResponder struct {
	model       string
	maxTokens   int
	temperature float64
}

// NewAgentResponder creates an agent-backed responder. The SDK reads its
// API key from the environment.
func NewAgentResponder(model string, maxTokens int, temperature float64) *AgentResponder {
	return &AgentResponder{model: model, maxTokens: maxTokens, temperature: temperature}
}

// Reply streams a single-turn completion and returns the accumulated text.
func (r *AgentResponder) Reply(ctx context.Context, systemPrompt, userText string) (string, error) {
	agent := agents.New("santa").
		WithInstructions(systemPrompt).
		WithModel(r.model).
		WithModelSettings(modelsettings.ModelSettings{
			MaxTokens:   param.NewOpt(int64(r.maxTokens)),
			Temperature: param.NewOpt(r.temperature),
		})

	runner := agents.Runner{Config: agents.RunConfig{
		MaxTurns:        1,
		TracingDisabled: true,
	}}

	start := time.Now()

	events, errCh, err := runner.RunStreamedChan(ctx, agent, userText)
	if err != nil {
		metrics.Errors.WithLabelValues("llm", "stream_start").Inc()
		return "", fmt.Errorf("llm stream start: %w", err)
	}

	var text strings.Builder
	for ev := range events {
		raw, ok := ev.(agents.RawResponsesStreamEvent)
		if !ok {
			continue
		}
		if raw.Data.Type != "response.output_text.delta" {
			continue
		}
		text.WriteString(raw.Data.Delta)
	}

	if streamErr := <-errCh; streamErr != nil {
		metrics.Errors.WithLabelValues("llm", "stream").Inc()
		return "", fmt.Errorf("llm stream: %w", streamErr)
	}

	metrics.StageDuration.WithLabelValues("llm").Observe(time.Since(start).Seconds())
	return text.String(), nil
}

// ChatResponder is a direct chat-completions responder for deployments that
// bypass the agents SDK.
type ChatResponder struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewChatResponder creates a chat-completions responder.
func NewChatResponder(apiKey, model string, maxTokens int, temperature float64) *ChatResponder {
	return &ChatResponder{
		client:      openai.NewClient(option.WithAPIKey(apiKey)),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Reply requests a single completion and returns its text.
func (r *ChatResponder) Reply(ctx context.Context, systemPrompt, userText string) (string, error) {
	start := time.Now()

	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userText),
		},
		MaxCompletionTokens: param.NewOpt(int64(r.maxTokens)),
		Temperature:         param.NewOpt(r.temperature),
	})
	if err != nil {
		metrics.Errors.WithLabelValues("llm", "http").Inc()
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		metrics.Errors.WithLabelValues("llm", "empty").Inc()
		return "", fmt.Errorf("chat completion: empty choices")
	}

	metrics.StageDuration.WithLabelValues("llm").Observe(time.Since(start).Seconds())
	return resp.Choices[0].Message.Content, nil
}
