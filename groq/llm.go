// Package groq talks to the Groq chat API through its OpenAI-compatible
// endpoint.
package groq

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"healthbot/agent-app/core"
)

const (
	BaseURL      = "https://api.groq.com/openai/v1/"
	DefaultModel = "deepseek-r1-distill-llama-70b"
)

type Groq struct {
	ModelName string
	client    openai.Client
}

// NewGroq builds a client for apiKey. Options are applied after the Groq
// defaults, so they may override the base URL or retry policy.
func NewGroq(apiKey string, modelName string, opts ...option.RequestOption) *Groq {
	if modelName == "" {
		modelName = DefaultModel
	}
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(BaseURL),
	}
	return &Groq{
		ModelName: modelName,
		client:    openai.NewClient(append(base, opts...)...),
	}
}

func (g *Groq) Generate(ctx context.Context, systemContext string, history []core.ChatContent, input core.LLMInput) (core.LLMOutput, error) {
	resp, err := g.client.Chat.Completions.New(ctx, g.params(systemContext, history, input))
	if err != nil {
		return core.LLMOutput{}, err
	}
	if len(resp.Choices) == 0 {
		return core.LLMOutput{}, errors.New("groq: empty completion")
	}
	return core.LLMOutput{
		Text:  resp.Choices[0].Message.Content,
		Stats: usageStats(resp.Usage),
	}, nil
}

func (g *Groq) Stream(ctx context.Context, systemContext string, history []core.ChatContent, input core.LLMInput, onChunk core.ChunkHandler) (core.LLMOutput, error) {
	params := g.params(systemContext, history, input)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	stream := g.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var out core.LLMOutput
	var text []byte
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.TotalTokens > 0 {
			out.Stats = usageStats(chunk.Usage)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		text = append(text, delta...)
		if err := onChunk(delta); err != nil {
			return core.LLMOutput{}, err
		}
	}
	if err := stream.Err(); err != nil {
		return core.LLMOutput{}, err
	}
	out.Text = string(text)
	return out, nil
}

func (g *Groq) params(systemContext string, history []core.ChatContent, input core.LLMInput) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if systemContext != "" {
		messages = append(messages, openai.SystemMessage(systemContext))
	}
	for _, content := range history {
		switch content.Role {
		case "user":
			messages = append(messages, openai.UserMessage(content.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(content.Content))
		}
	}
	if input.Text != "" {
		messages = append(messages, openai.UserMessage(input.Text))
	}
	return openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.ModelName),
		Messages: messages,
	}
}

func usageStats(u openai.CompletionUsage) core.Stats {
	return core.Stats{
		InputTokenCount:  int32(u.PromptTokens),
		OutputTokenCount: int32(u.CompletionTokens),
		TotalTokenCount:  int32(u.TotalTokens),
	}
}
