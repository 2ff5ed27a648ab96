package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
	"healthbot/agent-app/core"
)

const DefaultModel = "gemini-2.0-flash"

type Gemini struct {
	ModelName string
	client    *genai.Client
}

type Option func(*genai.ClientConfig)

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPOptions.BaseURL = url
	}
}

func NewGemini(ctx context.Context, apiKey string, modelName string, opts ...Option) (*Gemini, error) {
	if modelName == "" {
		modelName = DefaultModel
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return &Gemini{
		ModelName: modelName,
		client:    client,
	}, nil
}

func (g *Gemini) Generate(ctx context.Context, systemContext string, history []core.ChatContent, input core.LLMInput) (core.LLMOutput, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.ModelName, buildContents(history, input), buildConfig(systemContext))
	if err != nil {
		return core.LLMOutput{}, err
	}
	return core.LLMOutput{Text: result.Text(), Stats: usageStats(result)}, nil
}

func (g *Gemini) Stream(ctx context.Context, systemContext string, history []core.ChatContent, input core.LLMInput, onChunk core.ChunkHandler) (core.LLMOutput, error) {
	var out core.LLMOutput
	var text []byte
	for chunk, err := range g.client.Models.GenerateContentStream(ctx, g.ModelName, buildContents(history, input), buildConfig(systemContext)) {
		if err != nil {
			return core.LLMOutput{}, err
		}
		part := chunk.Text()
		if part != "" {
			text = append(text, part...)
			if err := onChunk(part); err != nil {
				return core.LLMOutput{}, err
			}
		}
		// usage is cumulative, the last chunk carries the totals
		if chunk.UsageMetadata != nil {
			out.Stats = usageStats(chunk)
		}
	}
	out.Text = string(text)
	return out, nil
}

func buildContents(history []core.ChatContent, input core.LLMInput) []*genai.Content {
	var contents []*genai.Content
	for _, content := range history {
		if content.Role == "user" {
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: content.Content}}})
		} else if content.Role == "assistant" {
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: content.Content}}})
		}
	}
	if input.Text != "" {
		contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: input.Text}}})
	}
	return contents
}

func buildConfig(systemContext string) *genai.GenerateContentConfig {
	if systemContext == "" {
		return nil
	}
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemContext}}},
	}
}

func usageStats(result *genai.GenerateContentResponse) core.Stats {
	if result.UsageMetadata == nil {
		return core.Stats{}
	}
	return core.Stats{
		InputTokenCount:  result.UsageMetadata.PromptTokenCount,
		OutputTokenCount: result.UsageMetadata.CandidatesTokenCount,
		TotalTokenCount:  result.UsageMetadata.TotalTokenCount,
	}
}
