package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/ragflow/ai"
	"github.com/poiesic/ragflow/core"
	"github.com/tmc/langchaingo/llms"
)

// ErrNoQueries is returned when the model produced no usable query.
var ErrNoQueries = errors.New("model returned no queries")

// QueryGenerator implements ai.QueryGenerator using an OpenAI-compatible chat model.
type QueryGenerator struct {
	client llms.Model
	config *ai.Config
	logger *slog.Logger
}

type generatedQuery struct {
	CQL           string `json:"cql"`
	Justification string `json:"justification"`
}

type queryResponse struct {
	Queries []generatedQuery `json:"queries"`
}

// newQueryGenerator is an internal constructor that returns the concrete type.
func newQueryGenerator(client llms.Model, config *ai.Config) *QueryGenerator {
	return &QueryGenerator{
		client: client,
		config: config,
		logger: slog.Default().With("component", "openai-query-generator"),
	}
}

// NewQueryGenerator creates a query generator on top of an existing model client.
//
// Returns ai.QueryGenerator interface to enforce abstraction.
func NewQueryGenerator(client llms.Model, config *ai.Config) (ai.QueryGenerator, error) {
	if client == nil {
		return nil, errors.New("model client required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newQueryGenerator(client, config), nil
}

// GenerateQueries asks the model for CQL queries. Malformed JSON is retried
// up to 3 times; usage from every attempt is reported.
func (g *QueryGenerator) GenerateQueries(ctx context.Context, userQuery string) (*ai.GeneratedQueries, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, buildQueryPrompt(g.config.MaxQueries)),
		llms.TextParts(llms.ChatMessageTypeHuman, userQuery),
	}

	var (
		result  queryResponse
		usage   core.Usage
		lastErr error
	)
	for attempt := 0; attempt < 3; attempt++ {
		response, err := g.client.GenerateContent(ctx, content,
			llms.WithModel(g.config.QueryModel),
			llms.WithTemperature(0.0),
			llms.WithJSONMode())
		if err != nil {
			g.logger.Error("failed to generate queries", "attempt", attempt+1, "err", err)
			return nil, err
		}
		usage = usage.Add(usageFromResponse(response, g.config))

		if len(response.Choices) < 1 {
			lastErr = ErrNoQueries
			continue
		}

		responseText := core.RepairJSON(core.StripCodeFence(response.Choices[0].Content))
		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			g.logger.Warn("error parsing query response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		return nil, fmt.Errorf("failed to parse query response after retries: %w", lastErr)
	}

	generated := &ai.GeneratedQueries{Usage: usage}
	seen := make(map[string]struct{}, len(result.Queries))
	for _, q := range result.Queries {
		cql := strings.TrimSpace(q.CQL)
		if cql == "" {
			continue
		}
		if _, dup := seen[cql]; dup {
			continue
		}
		seen[cql] = struct{}{}
		generated.Queries = append(generated.Queries, cql)
		generated.Justifications = append(generated.Justifications, q.Justification)
		if len(generated.Queries) == g.config.MaxQueries {
			break
		}
	}

	if len(generated.Queries) == 0 {
		return nil, ErrNoQueries
	}

	g.logger.Debug("generated queries", "count", len(generated.Queries))
	return generated, nil
}
