package openai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/ragflow/ai"
	"github.com/tmc/langchaingo/llms"
)

// AnswerSynthesizer implements ai.AnswerSynthesizer using a chat model.
type AnswerSynthesizer struct {
	client llms.Model
	config *ai.Config
	logger *slog.Logger
}

// newAnswerSynthesizer is an internal constructor that returns the concrete type.
func newAnswerSynthesizer(client llms.Model, config *ai.Config) *AnswerSynthesizer {
	return &AnswerSynthesizer{
		client: client,
		config: config,
		logger: slog.Default().With("component", "openai-synthesizer"),
	}
}

// NewAnswerSynthesizer creates a synthesizer on top of an existing model client.
//
// Returns ai.AnswerSynthesizer interface to enforce abstraction.
func NewAnswerSynthesizer(client llms.Model, config *ai.Config) (ai.AnswerSynthesizer, error) {
	if client == nil {
		return nil, errors.New("model client required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newAnswerSynthesizer(client, config), nil
}

// Synthesize writes the final answer.
func (s *AnswerSynthesizer) Synthesize(ctx context.Context, req ai.SynthesisRequest) (*ai.Answer, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, buildSynthesisPrompt(req)),
		llms.TextParts(llms.ChatMessageTypeHuman, req.UserQuery),
	}

	response, err := s.client.GenerateContent(ctx, content,
		llms.WithModel(s.config.SynthesisModel),
		llms.WithTemperature(0.2))
	if err != nil {
		s.logger.Error("synthesis failed", "err", err)
		return nil, err
	}

	answer := &ai.Answer{Usage: usageFromResponse(response, s.config)}
	if len(response.Choices) > 0 && response.Choices[0] != nil {
		answer.Text = response.Choices[0].Content
	}
	if answer.Text == "" {
		s.logger.Warn("model returned an empty answer")
	}
	return answer, nil
}
