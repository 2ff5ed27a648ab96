package core

import "fmt"

// ToolRegistry holds every tool an agent may be configured with.
type ToolRegistry struct {
	tools map[string]ToolExecutor
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]ToolExecutor)}
}

// RegisterFunc wraps handler with NewInbuiltToolExecutor and registers it.
func (tr *ToolRegistry) RegisterFunc(name string, description string, handler any) error {
	executor, err := NewInbuiltToolExecutor(name, description, handler)
	if err != nil {
		return fmt.Errorf("register tool %s: %w", name, err)
	}
	tr.RegisterTool(name, executor)
	return nil
}

func (tr *ToolRegistry) RegisterTool(name string, executor ToolExecutor) {
	tr.tools[name] = executor
}

func (tr *ToolRegistry) GetTool(name string) ToolExecutor {
	return tr.tools[name]
}
