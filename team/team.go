// Package team assembles the healthcare agent team: three research members
// and the chatbot agent that coordinates them.
package team

import (
	"context"
	"errors"
	"fmt"

	"healthbot/agent-app/config"
	"healthbot/agent-app/core"
	"healthbot/agent-app/gemini"
	"healthbot/agent-app/groq"
	"healthbot/agent-app/tools"
)

const (
	ToolDuckDuckGo  = "duckduckgo_search"
	ToolWikipedia   = "search_wikipedia"
	ToolGoogle      = "google_search"
	ToolCurrentTime = "get_current_time"
)

var WebSearchAgent = core.AgentConfig{
	Name:        "Healthcare Web Search Agent",
	Description: "Provides healthcare information from web resources.",
	Role:        "Search the web for symptoms, conditions, and treatments.",
	Instructions: []string{
		"Search for reliable healthcare information.",
		"Focus on symptoms, causes, and treatments.",
	},
	Tools:         []string{ToolDuckDuckGo},
	ShowToolCalls: true,
	Markdown:      true,
}

var WikipediaAgent = core.AgentConfig{
	Name:        "Healthcare Wikipedia Agent",
	Description: "Fetches healthcare information from Wikipedia.",
	Instructions: []string{
		"Provide accurate healthcare information from Wikipedia.",
		"Focus on medical conditions and treatments.",
	},
	Tools:         []string{ToolWikipedia},
	ShowToolCalls: true,
	Markdown:      true,
}

var GoogleSearchAgent = core.AgentConfig{
	Name:        "Healthcare Google Search Agent",
	Description: "Searches Google for healthcare-related information.",
	Instructions: []string{
		"Retrieve healthcare information from trusted sources.",
		"Focus on medical conditions, symptoms, and treatments.",
	},
	Tools:         []string{ToolGoogle},
	ShowToolCalls: true,
}

var ChatbotAgent = core.AgentConfig{
	Name:        "Healthcare Chatbot Agent",
	Description: "Answers healthcare questions and provides reliable information.",
	Instructions: []string{
		"Provide concise and accurate healthcare information.",
		"Use reliable sources only.",
	},
	Tools:         []string{ToolCurrentTime},
	ShowToolCalls: true,
	Markdown:      true,
}

// ModelFactory creates the language model for one request from the caller's
// model key.
type ModelFactory func(ctx context.Context, apiKey string) (core.LLM, error)

// NewModelFactory returns the factory for the configured provider.
func NewModelFactory(cfg config.Config) ModelFactory {
	if cfg.Provider == config.ProviderGemini {
		return func(ctx context.Context, apiKey string) (core.LLM, error) {
			return gemini.NewGemini(ctx, apiKey, cfg.Model)
		}
	}
	return func(ctx context.Context, apiKey string) (core.LLM, error) {
		return groq.NewGroq(apiKey, cfg.Model), nil
	}
}

// NewRegistry registers every tool the team uses.
func NewRegistry(cfg config.Config) (*core.ToolRegistry, error) {
	registry := core.NewToolRegistry()
	err := errors.Join(
		registry.RegisterFunc(ToolDuckDuckGo, "Search the web with DuckDuckGo and return result titles, links and snippets.", tools.NewDuckDuckGo(cfg.ToolTimeout).Search),
		registry.RegisterFunc(ToolWikipedia, "Search Wikipedia and return the introduction of the best matching article.", tools.NewWikipedia(cfg.ToolTimeout).Search),
		registry.RegisterFunc(ToolGoogle, "Search Google and return result titles, links and snippets.", tools.NewGoogleSearch(cfg.ToolTimeout).Search),
		registry.RegisterFunc(ToolCurrentTime, "Get the current date and time.", tools.NewClock().CurrentTime),
	)
	if err != nil {
		return nil, err
	}
	return registry, nil
}

// Builder creates a fresh team per request. Credentials only live in the
// models built for that request.
type Builder struct {
	Models        ModelFactory
	Registry      *core.ToolRegistry
	MaxIterations int
}

func NewBuilder(cfg config.Config) (*Builder, error) {
	registry, err := NewRegistry(cfg)
	if err != nil {
		return nil, err
	}
	return &Builder{
		Models:        NewModelFactory(cfg),
		Registry:      registry,
		MaxIterations: cfg.MaxIterations,
	}, nil
}

// Build returns the chatbot agent with its three members attached.
func (b *Builder) Build(ctx context.Context, modelKey string) (*core.Agent, error) {
	llm, err := b.Models(ctx, modelKey)
	if err != nil {
		return nil, fmt.Errorf("create model: %w", err)
	}

	newAgent := func(cfg core.AgentConfig) (*core.Agent, error) {
		if cfg.MaxIterations == 0 {
			cfg.MaxIterations = b.MaxIterations
		}
		return core.NewAgent(cfg, llm, b.Registry)
	}

	leader, err := newAgent(ChatbotAgent)
	if err != nil {
		return nil, err
	}
	for _, cfg := range []core.AgentConfig{WebSearchAgent, WikipediaAgent, GoogleSearchAgent} {
		member, err := newAgent(cfg)
		if err != nil {
			return nil, err
		}
		if err := leader.AddMember(member); err != nil {
			return nil, err
		}
	}
	return leader, nil
}
