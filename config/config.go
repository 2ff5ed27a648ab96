// Package config loads service settings from the environment, after reading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

type Config struct {
	Port          int
	Provider      string
	Model         string
	MaxIterations int
	ToolTimeout   time.Duration
	AgentTimeout  time.Duration
	Debug         bool
	GinMode       string
}

// Default returns baseline config values.
func Default() Config {
	return Config{
		Port:          8501,
		Provider:      ProviderGroq,
		Model:         "deepseek-r1-distill-llama-70b",
		MaxIterations: 10,
		ToolTimeout:   15 * time.Second,
		AgentTimeout:  3 * time.Minute,
	}
}

// Load reads the given .env files (".env" when none are named; missing files
// are ignored) and overlays environment variables onto Default.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from lookup, usually os.Getenv.
func FromEnv(lookup func(string) string) (Config, error) {
	cfg := Default()
	var err error

	if raw := lookup("PORT"); raw != "" {
		if cfg.Port, err = strconv.Atoi(raw); err != nil {
			return Config{}, fmt.Errorf("PORT: %w", err)
		}
	}
	if raw := lookup("MODEL_PROVIDER"); raw != "" {
		cfg.Provider = strings.ToLower(strings.TrimSpace(raw))
		if lookup("MODEL_ID") == "" && cfg.Provider == ProviderGemini {
			cfg.Model = "gemini-2.0-flash"
		}
	}
	if raw := lookup("MODEL_ID"); raw != "" {
		cfg.Model = raw
	}
	if raw := lookup("MAX_ITERATIONS"); raw != "" {
		if cfg.MaxIterations, err = strconv.Atoi(raw); err != nil {
			return Config{}, fmt.Errorf("MAX_ITERATIONS: %w", err)
		}
	}
	if raw := lookup("TOOL_TIMEOUT"); raw != "" {
		if cfg.ToolTimeout, err = time.ParseDuration(raw); err != nil {
			return Config{}, fmt.Errorf("TOOL_TIMEOUT: %w", err)
		}
	}
	if raw := lookup("AGENT_TIMEOUT"); raw != "" {
		if cfg.AgentTimeout, err = time.ParseDuration(raw); err != nil {
			return Config{}, fmt.Errorf("AGENT_TIMEOUT: %w", err)
		}
	}
	cfg.Debug = lookup("DEBUG") != ""
	cfg.GinMode = lookup("GIN_MODE")

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Provider {
	case ProviderGroq, ProviderGemini:
	default:
		return fmt.Errorf("unknown model provider %q", c.Provider)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxIterations <= 0 {
		return errors.New("MAX_ITERATIONS must be positive")
	}
	return nil
}

// ModelKeyLabel is the form label of the model credential.
func (c Config) ModelKeyLabel() string {
	if c.Provider == ProviderGemini {
		return "Enter GEMINI API Key"
	}
	return "Enter GROQ API Key"
}
