package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/ragflow/ai"
	"github.com/tmc/langchaingo/llms"
)

// RelevanceJudge implements ai.RelevanceJudge with a tool-calling chat model.
// The model is offered a single tool for reading full page bodies.
type RelevanceJudge struct {
	client llms.Model
	config *ai.Config
	tools  []llms.Tool
	logger *slog.Logger
}

// newRelevanceJudge is an internal constructor that returns the concrete type.
func newRelevanceJudge(client llms.Model, config *ai.Config) *RelevanceJudge {
	return &RelevanceJudge{
		client: client,
		config: config,
		tools: []llms.Tool{
			{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name:        ai.FetchPageTool,
					Description: "Retrieve the full content of a Confluence page by its page id.",
					Parameters:  fetchPageTool(),
				},
			},
		},
		logger: slog.Default().With("component", "openai-judge"),
	}
}

// NewRelevanceJudge creates a judge on top of an existing model client.
//
// Returns ai.RelevanceJudge interface to enforce abstraction.
func NewRelevanceJudge(client llms.Model, config *ai.Config) (ai.RelevanceJudge, error) {
	if client == nil {
		return nil, errors.New("model client required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newRelevanceJudge(client, config), nil
}

// Judge runs one round. Tool calls for other tools and calls with
// unparseable arguments are dropped with a warning.
func (j *RelevanceJudge) Judge(ctx context.Context, req ai.JudgmentRequest) (*ai.Judgment, error) {
	prompt, err := buildJudgePrompt(req)
	if err != nil {
		return nil, err
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, prompt),
		llms.TextParts(llms.ChatMessageTypeHuman, req.UserQuery),
	}

	response, err := j.client.GenerateContent(ctx, content,
		llms.WithModel(j.config.JudgeModel),
		llms.WithTemperature(0.0),
		llms.WithTools(j.tools))
	if err != nil {
		j.logger.Error("judge call failed", "round", req.Round, "err", err)
		return nil, err
	}

	var (
		text    string
		fetches []ai.FetchRequest
	)
	for _, choice := range response.Choices {
		if choice == nil {
			continue
		}
		text += choice.Content
		for _, call := range choice.ToolCalls {
			fetch, ok := j.parseToolCall(call)
			if ok {
				fetches = append(fetches, fetch)
			}
		}
	}

	judgment := ai.NewJudgment(text, fetches, usageFromResponse(response, j.config))
	j.logger.Debug("judge responded",
		"round", req.Round,
		"kind", judgment.Kind,
		"fetches", len(judgment.Fetches),
		"ignored_fetches", len(judgment.IgnoredFetches))
	return judgment, nil
}

func (j *RelevanceJudge) parseToolCall(call llms.ToolCall) (ai.FetchRequest, bool) {
	if call.FunctionCall == nil || call.FunctionCall.Name != ai.FetchPageTool {
		j.logger.Warn("ignoring unknown tool call", "call", call.ID)
		return ai.FetchRequest{}, false
	}
	fetch, err := parseFetchArguments(call.FunctionCall.Arguments)
	if err != nil {
		j.logger.Warn("ignoring malformed tool call", "arguments", call.FunctionCall.Arguments, "err", err)
		return ai.FetchRequest{}, false
	}
	return fetch, true
}

// parseFetchArguments decodes {"page_id": ..., "title": ...}; page_id may be
// a string or a number.
func parseFetchArguments(arguments string) (ai.FetchRequest, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(arguments)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return ai.FetchRequest{}, err
	}

	var fetch ai.FetchRequest
	switch id := raw["page_id"].(type) {
	case string:
		fetch.ID = id
	case json.Number:
		fetch.ID = id.String()
	}
	if fetch.ID == "" {
		return ai.FetchRequest{}, fmt.Errorf("missing page_id")
	}
	if title, ok := raw["title"].(string); ok {
		fetch.Title = title
	}
	return fetch, nil
}
