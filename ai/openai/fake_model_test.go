package openai

import (
	"context"
	"errors"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// fakeModel is an llms.Model that replays canned responses and records the
// options of every call.
type fakeModel struct {
	mu        sync.Mutex
	responses []*llms.ContentResponse
	err       error
	calls     []llms.CallOptions
	messages  [][]llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	f.calls = append(f.calls, opts)
	f.messages = append(f.messages, messages)

	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, errors.New("fake model: no responses left")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func textResponse(text string, promptTokens, completionTokens int) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content: text,
			GenerationInfo: map[string]any{
				"PromptTokens":     promptTokens,
				"CompletionTokens": completionTokens,
				"TotalTokens":      promptTokens + completionTokens,
			},
		}},
	}
}

func toolResponse(text string, arguments ...string) *llms.ContentResponse {
	resp := textResponse(text, 10, 5)
	for i, args := range arguments {
		resp.Choices[0].ToolCalls = append(resp.Choices[0].ToolCalls, llms.ToolCall{
			ID:   string(rune('a' + i)),
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      "get_page_by_id",
				Arguments: args,
			},
		})
	}
	return resp
}
