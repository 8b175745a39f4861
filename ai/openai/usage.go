package openai

import (
	"github.com/poiesic/ragflow/ai"
	"github.com/poiesic/ragflow/core"
	"github.com/tmc/langchaingo/llms"
)

// usageFromResponse sums the token counts reported in GenerationInfo across
// all choices and prices them with the configured rates.
func usageFromResponse(resp *llms.ContentResponse, config *ai.Config) core.Usage {
	var usage core.Usage
	if resp == nil {
		return usage
	}
	for _, choice := range resp.Choices {
		if choice == nil {
			continue
		}
		usage.InputTokens += intFromInfo(choice.GenerationInfo, "PromptTokens")
		usage.OutputTokens += intFromInfo(choice.GenerationInfo, "CompletionTokens")
		usage.TotalTokens += intFromInfo(choice.GenerationInfo, "TotalTokens")
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}
	usage.Cost = config.Cost(usage.InputTokens, usage.OutputTokens)
	return usage
}

func intFromInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
