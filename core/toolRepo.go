package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
)

type ToolExecutor interface {
	GetName() string
	GetDescription() string
	Execute(ctx context.Context, input string) (string, error)
	GetToolDescriptor() ToolDescriptor
}

type AgentExecutor interface {
	GetName() string
	GetDescription() string
	GetAgentDescriptor() AgentDescriptor
	Execute(ctx context.Context, taskHistory *TaskHistory, input LLMInput, out io.Writer) (LLMOutput, error)
}

// AgentHandler runs a team member on behalf of the agent that owns the repo.
type AgentHandler func(ctx context.Context, name string, taskHistory *TaskHistory, input LLMInput, out io.Writer) (LLMOutput, error)

func NewToolRepo(registry *ToolRegistry) *ToolRepo {
	return &ToolRepo{
		registry: registry,
		tools:    make(map[string]ToolExecutor),
		agents:   make(map[string]AgentExecutor),
	}
}

type ToolRepo struct {
	registry *ToolRegistry
	tools    map[string]ToolExecutor
	agents   map[string]AgentExecutor
}

func (repo *ToolRepo) RegisterAgent(desc AgentDescriptor, handler AgentHandler) error {
	if _, ok := repo.agents[desc.Name]; ok {
		return fmt.Errorf("agent %s already registered", desc.Name)
	}
	repo.agents[desc.Name] = &AgentExecutorImpl{
		Desc:    desc,
		Handler: handler,
	}
	return nil
}

func (repo *ToolRepo) RegisterTool(name string) error {
	if repo.registry == nil {
		return fmt.Errorf("tool %s not found", name)
	}
	tool := repo.registry.GetTool(name)
	if tool == nil {
		return fmt.Errorf("tool %s not found", name)
	}
	repo.tools[tool.GetName()] = tool
	return nil
}

// ListToolDescriptors returns descriptors sorted by name so prompts are stable.
func (repo *ToolRepo) ListToolDescriptors() []ToolDescriptor {
	var list []ToolDescriptor
	for _, item := range repo.tools {
		list = append(list, item.GetToolDescriptor())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

func (repo *ToolRepo) ListAgentDescriptors() []AgentDescriptor {
	var list []AgentDescriptor
	for _, item := range repo.agents {
		list = append(list, item.GetAgentDescriptor())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

func (repo *ToolRepo) GetTool(name string) ToolExecutor {
	return repo.tools[name]
}

func (repo *ToolRepo) GetAgent(name string) AgentExecutor {
	return repo.agents[name]
}

// NewInbuiltToolExecutor wraps handler, a func(context.Context, T) (R, error),
// as a tool whose parameters are described by the JSON schema of T.
func NewInbuiltToolExecutor(name string, description string, handler any) (ToolExecutor, error) {
	handlerValue := reflect.ValueOf(handler)
	handlerType := handlerValue.Type()

	if handlerType.Kind() != reflect.Func {
		return nil, fmt.Errorf("handler is not a function")
	}
	if handlerType.NumIn() != 2 {
		return nil, fmt.Errorf("handler function must have two parameters")
	}
	if handlerType.NumOut() != 2 {
		return nil, fmt.Errorf("handler function must have two return values")
	}
	if !handlerType.Out(1).Implements(reflect.TypeOf((*error)(nil)).Elem()) {
		return nil, fmt.Errorf("handler function's second return value must be an error")
	}

	inputType := handlerType.In(1)
	schema, err := GetSchema(reflect.New(inputType).Interface())
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	return &InbuiltToolExecutor{
		toolDescriptor: ToolDescriptor{
			Name:        name,
			Description: description,
			Parameters:  json.RawMessage(b),
		},
		inputType: inputType,
		handler:   handlerValue,
	}, nil
}

type InbuiltToolExecutor struct {
	toolDescriptor ToolDescriptor
	inputType      reflect.Type
	handler        reflect.Value
}

func (i *InbuiltToolExecutor) GetName() string {
	return i.toolDescriptor.Name
}

func (i *InbuiltToolExecutor) GetDescription() string {
	return i.toolDescriptor.Description
}

func (i *InbuiltToolExecutor) GetToolDescriptor() ToolDescriptor {
	return i.toolDescriptor
}

// Execute decodes input into the handler's parameter type and calls it.
// Handler errors are returned as text so the model can react to them.
func (i *InbuiltToolExecutor) Execute(ctx context.Context, input string) (string, error) {
	inputPtr := reflect.New(i.inputType)
	if err := json.Unmarshal([]byte(input), inputPtr.Interface()); err != nil {
		return "", fmt.Errorf("failed to unmarshal JSON input: %w", err)
	}

	results := i.handler.Call([]reflect.Value{reflect.ValueOf(ctx), inputPtr.Elem()})

	if errInterface := results[1].Interface(); errInterface != nil {
		return "error :" + errInterface.(error).Error(), nil
	}
	b, err := json.Marshal(results[0].Interface())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type AgentExecutorImpl struct {
	Desc    AgentDescriptor
	Handler AgentHandler
}

func (a *AgentExecutorImpl) GetAgentDescriptor() AgentDescriptor {
	return a.Desc
}

func (a *AgentExecutorImpl) GetName() string {
	return a.Desc.Name
}

func (a *AgentExecutorImpl) GetDescription() string {
	return a.Desc.Description
}

func (a *AgentExecutorImpl) Execute(ctx context.Context, taskHistory *TaskHistory, input LLMInput, out io.Writer) (LLMOutput, error) {
	return a.Handler(ctx, a.Desc.Name, taskHistory, input, out)
}
