package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Default() {
		t.Errorf("cfg = %+v, want %+v", cfg, Default())
	}
	if cfg.ModelKeyLabel() != "Enter GROQ API Key" {
		t.Errorf("label = %q", cfg.ModelKeyLabel())
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"PORT":           "9000",
		"MODEL_PROVIDER": "Gemini",
		"MAX_ITERATIONS": "4",
		"TOOL_TIMEOUT":   "2s",
		"DEBUG":          "1",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9000 || cfg.Provider != ProviderGemini || cfg.Model != "gemini-2.0-flash" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MaxIterations != 4 || cfg.ToolTimeout != 2*time.Second || !cfg.Debug {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ModelKeyLabel() != "Enter GEMINI API Key" {
		t.Errorf("label = %q", cfg.ModelKeyLabel())
	}
}

func TestFromEnvErrors(t *testing.T) {
	bad := []map[string]string{
		{"PORT": "http"},
		{"PORT": "70000"},
		{"MODEL_PROVIDER": "openai"},
		{"MAX_ITERATIONS": "0"},
		{"TOOL_TIMEOUT": "soon"},
		{"AGENT_TIMEOUT": "later"},
	}
	for _, m := range bad {
		if _, err := FromEnv(env(m)); err == nil {
			t.Errorf("FromEnv(%v): expected error", m)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("MODEL_ID=llama-3.3-70b-versatile\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MODEL_ID", "")
	os.Unsetenv("MODEL_ID")

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model != "llama-3.3-70b-versatile" {
		t.Errorf("model = %q", cfg.Model)
	}
}
