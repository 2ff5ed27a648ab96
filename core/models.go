package core

// AgentConfig describes an agent before it is bound to a model and tools.
type AgentConfig struct {
	Name          string   `json:"name" validate:"required"`
	Description   string   `json:"description"`
	Role          string   `json:"role,omitempty"`
	Instructions  []string `json:"instructions,omitempty"`
	Tools         []string `json:"tools,omitempty"`
	ShowToolCalls bool     `json:"show_tool_calls"`
	Markdown      bool     `json:"markdown"`
	MaxIterations int      `json:"max_iterations,omitempty"`
}

type ToolResult struct {
	ToolName string `json:"tool_name"`
	Output   string `json:"output"`
}

type AgentResult struct {
	AgentName string `json:"agent_name"`
	Output    string `json:"output"`
}

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)
