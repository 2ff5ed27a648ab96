package core

import "context"

type LLMInput struct {
	Text   string
	Labels map[string]string
}

type LLMOutput struct {
	Text  string
	Stats Stats
}

type Stats struct {
	InputTokenCount  int32 `json:"input_token_count,omitempty"`
	OutputTokenCount int32 `json:"output_token_count,omitempty"`
	TotalTokenCount  int32 `json:"total_token_count,omitempty"`
}

func (s Stats) Add(other Stats) Stats {
	return Stats{
		InputTokenCount:  s.InputTokenCount + other.InputTokenCount,
		OutputTokenCount: s.OutputTokenCount + other.OutputTokenCount,
		TotalTokenCount:  s.TotalTokenCount + other.TotalTokenCount,
	}
}

type ChatContent struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func NewContent(role string, content string) ChatContent {
	return ChatContent{
		Role:    role,
		Content: content,
	}
}

// ChunkHandler receives streamed model text as it arrives. Returning an error
// aborts the stream.
type ChunkHandler func(chunk string) error

type LLM interface {
	Generate(ctx context.Context, systemContext string, history []ChatContent, input LLMInput) (LLMOutput, error)
	Stream(ctx context.Context, systemContext string, history []ChatContent, input LLMInput, onChunk ChunkHandler) (LLMOutput, error)
}
