package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

var systemAgentContext = `
You are {{agent_name}}, an AI assistant that answers the user's request and keeps track of whether the current task is finished.

The user request arrives inside <user_input> tags.

Agent specific context:
<agent_system_context>
{{agent_system_context}}
</agent_system_context>

How to work:

1. Read the request in <user_input>.
2. Think it through step by step inside <thinking></thinking> tags.
3. When you need information, call a tool or a team member as described below and wait for the result.
4. When you are ready to answer, write the answer for the user inside <response></response> tags.
5. After the response add a task status, one of:
   - "in_progress": the task needs more interaction with the user.
   - "completed": the task is finished.

Your final reply must look like this:

<response>
[Your answer to the user]
</response>

<task_status>completed</task_status>

Always include both the <response> and the <task_status> tags in the final reply.
`

var ErrMaxIterations = errors.New("agent reached the maximum number of model turns")

const DefaultMaxIterations = 10

var taskStatusRegEx = regexp.MustCompile(`(?s)<task_status>.*?</task_status>`)

func NewTaskHistory() *TaskHistory {
	return &TaskHistory{AgentsHistory: make(map[string]*TaskHistory)}
}

type TaskHistory struct {
	Id            string                  `json:"id" store:"id"`
	TaskId        int64                   `json:"taskId"`
	Contents      []ChatContent           `json:"contents"`
	Status        string                  `json:"status"`
	Stats         Stats                   `json:"stats"`
	AgentsHistory map[string]*TaskHistory `json:"agentsHistory"`
	previousTask  *TaskHistory
}

func (th *TaskHistory) SetPreviousTask(previousTask *TaskHistory) {
	th.previousTask = previousTask
}

func (th *TaskHistory) GetPreviousTask() *TaskHistory {
	return th.previousTask
}

func (th *TaskHistory) branch(name string) *TaskHistory {
	if th.AgentsHistory == nil {
		th.AgentsHistory = make(map[string]*TaskHistory)
	}
	h := th.AgentsHistory[name]
	if h == nil {
		h = NewTaskHistory()
		th.AgentsHistory[name] = h
	}
	return h
}

type Agent struct {
	Name          string
	Description   string
	Role          string
	SystemContext string
	ShowToolCalls bool
	MaxIterations int
	LLM           LLM
	toolRepo      *ToolRepo
}

// NewAgent binds cfg to a model. Tools named in cfg must exist in registry.
func NewAgent(cfg AgentConfig, llm LLM, registry *ToolRegistry) (*Agent, error) {
	if cfg.Name == "" {
		return nil, errors.New("agent name is required")
	}
	if llm == nil {
		return nil, fmt.Errorf("agent %s: model is required", cfg.Name)
	}

	agent := &Agent{
		Name:          cfg.Name,
		Description:   cfg.Description,
		Role:          cfg.Role,
		SystemContext: buildSystemContext(cfg),
		ShowToolCalls: cfg.ShowToolCalls,
		MaxIterations: cfg.MaxIterations,
		LLM:           llm,
		toolRepo:      NewToolRepo(registry),
	}
	for _, tool := range cfg.Tools {
		if err := agent.RegisterTool(tool); err != nil {
			return nil, fmt.Errorf("agent %s: %w", cfg.Name, err)
		}
	}
	return agent, nil
}

func buildSystemContext(cfg AgentConfig) string {
	var b strings.Builder
	if cfg.Description != "" {
		b.WriteString(cfg.Description + "\n")
	}
	if cfg.Role != "" {
		fmt.Fprintf(&b, "Your role: %s\n", cfg.Role)
	}
	if len(cfg.Instructions) > 0 || cfg.Markdown {
		b.WriteString("Instructions:\n")
	}
	for _, instruction := range cfg.Instructions {
		fmt.Fprintf(&b, "- %s\n", instruction)
	}
	if cfg.Markdown {
		b.WriteString("- Use markdown to format your answers.\n")
	}
	return strings.TrimSpace(b.String())
}

func (agent *Agent) GetName() string {
	return agent.Name
}

func (agent *Agent) GetDescription() string {
	return agent.Description
}

func (agent *Agent) RegisterTool(name string) error {
	return agent.toolRepo.RegisterTool(name)
}

// AddMember makes member available to this agent through <agent_call>.
func (agent *Agent) AddMember(member *Agent) error {
	desc := AgentDescriptor{
		Name:        member.Name,
		Description: member.Description,
		Role:        member.Role,
	}
	return agent.toolRepo.RegisterAgent(desc, func(ctx context.Context, _ string, taskHistory *TaskHistory, input LLMInput, out io.Writer) (LLMOutput, error) {
		return member.execute(ctx, taskHistory, input, out, false)
	})
}

// Respond answers query in a fresh task and streams the answer to out.
func (agent *Agent) Respond(ctx context.Context, query string, out io.Writer) error {
	_, err := agent.Run(ctx, NewTaskHistory(), LLMInput{Text: query}, out)
	return err
}

// Run continues taskHistory with input. The final answer is streamed to out
// while it is generated; tool and team panels go to out as well when
// ShowToolCalls is set.
func (agent *Agent) Run(ctx context.Context, taskHistory *TaskHistory, input LLMInput, out io.Writer) (LLMOutput, error) {
	return agent.execute(ctx, taskHistory, input, out, true)
}

type runState struct {
	out    io.Writer
	stream bool
	panels *panelPrinter
}

func (agent *Agent) execute(ctx context.Context, taskHistory *TaskHistory, input LLMInput, out io.Writer, stream bool) (LLMOutput, error) {
	if out == nil {
		out = io.Discard
	}
	systemContext, err := agent.systemPrompt(input.Labels)
	if err != nil {
		return LLMOutput{}, err
	}

	rs := &runState{out: out, stream: stream}
	if agent.ShowToolCalls {
		rs.panels = newPanelPrinter(out)
	}

	input.Text = fmt.Sprintf("<user_input>%s</user_input>", input.Text)
	output, err := agent.run(ctx, systemContext, taskHistory, input, rs)
	if err != nil {
		return LLMOutput{}, err
	}
	taskHistory.Stats = taskHistory.Stats.Add(output.Stats)
	return output, nil
}

func (agent *Agent) systemPrompt(labels map[string]string) (string, error) {
	prompt := ReplaceLabels(systemAgentContext, map[string]string{
		"agent_name":           agent.Name,
		"agent_system_context": ReplaceLabels(agent.SystemContext, labels),
	})
	tools := agent.toolRepo.ListToolDescriptors()
	agents := agent.toolRepo.ListAgentDescriptors()
	if len(tools) == 0 && len(agents) == 0 {
		return prompt, nil
	}
	toolsContext, err := GetToolPrompt(tools, agents)
	if err != nil {
		return "", err
	}
	return prompt + "\n" + toolsContext, nil
}

func (agent *Agent) maxIterations() int {
	if agent.MaxIterations > 0 {
		return agent.MaxIterations
	}
	return DefaultMaxIterations
}

func (agent *Agent) run(ctx context.Context, systemContext string, taskHistory *TaskHistory, input LLMInput, rs *runState) (LLMOutput, error) {
	var stats Stats
	for turn := 0; turn < agent.maxIterations(); turn++ {
		if err := ctx.Err(); err != nil {
			return LLMOutput{}, err
		}

		var chatContents []ChatContent
		if taskHistory.previousTask != nil {
			chatContents = append(chatContents, taskHistory.previousTask.Contents...)
		}
		chatContents = append(chatContents, taskHistory.Contents...)

		var streamer *tagStreamer
		onChunk := func(string) error { return nil }
		if rs.stream {
			streamer = newTagStreamer("response", rs.out)
			onChunk = streamer.Write
		}

		output, err := agent.LLM.Stream(ctx, systemContext, chatContents, input, onChunk)
		if err != nil {
			return LLMOutput{}, fmt.Errorf("%s: %w", agent.Name, err)
		}
		stats = stats.Add(output.Stats)
		if input.Text != "" {
			taskHistory.Contents = append(taskHistory.Contents, NewContent("user", input.Text))
		}
		taskHistory.Contents = append(taskHistory.Contents, NewContent("assistant", output.Text))

		var feedback []string
		toolCalls, err := ExtractToolCalls(output.Text)
		if err != nil {
			feedback = append(feedback, "<tool_result>"+err.Error()+"</tool_result>")
		}
		agentCalls := ExtractAgentCalls(output.Text)
		if streamer != nil && (len(toolCalls) > 0 || len(agentCalls) > 0) {
			if err := endLine(streamer, rs.out); err != nil {
				return LLMOutput{}, err
			}
		}

		if len(toolCalls) > 0 {
			results, err := agent.executeTools(ctx, toolCalls, rs)
			if err != nil {
				return LLMOutput{}, err
			}
			b, err := json.Marshal(results)
			if err != nil {
				return LLMOutput{}, err
			}
			feedback = append(feedback, "<tool_result>"+string(b)+"</tool_result>")
		}
		if len(agentCalls) > 0 {
			results, err := agent.executeAgents(ctx, taskHistory, agentCalls, rs)
			if err != nil {
				return LLMOutput{}, err
			}
			b, err := json.Marshal(results)
			if err != nil {
				return LLMOutput{}, err
			}
			feedback = append(feedback, "<agent_result>"+string(b)+"</agent_result>")
		}
		if len(feedback) > 0 {
			input = LLMInput{Text: strings.Join(feedback, "\n")}
			continue
		}

		response, ok := ExtractTagContent(output.Text, "response")
		if !ok {
			response = StripThinking(taskStatusRegEx.ReplaceAllString(output.Text, ""))
		}
		if streamer != nil {
			if err := agent.finishStream(streamer, rs.out, response); err != nil {
				return LLMOutput{}, err
			}
		}

		status, ok := ExtractTagContent(output.Text, "task_status")
		if !ok || status != StatusInProgress {
			status = StatusCompleted
		}
		taskHistory.Status = status
		slog.DebugContext(ctx, "agent finished", "agent", agent.Name, "turns", turn+1, "status", status)

		return LLMOutput{Text: response, Stats: stats}, nil
	}
	return LLMOutput{}, fmt.Errorf("%s: %w", agent.Name, ErrMaxIterations)
}

// finishStream writes the answer in one piece when the model did not use the
// response tags, and ends the streamed answer with a newline.
func (agent *Agent) finishStream(streamer *tagStreamer, out io.Writer, response string) error {
	if err := streamer.Flush(); err != nil {
		return err
	}
	if !streamer.Emitted() {
		if response == "" {
			return nil
		}
		if _, err := io.WriteString(out, response); err != nil {
			return err
		}
	}
	_, err := io.WriteString(out, "\n")
	return err
}

// endLine terminates text streamed in a turn that goes on to call tools or
// members, so the call panels and the next turn start on their own line.
func endLine(streamer *tagStreamer, out io.Writer) error {
	if err := streamer.Flush(); err != nil {
		return err
	}
	if !streamer.Emitted() {
		return nil
	}
	_, err := io.WriteString(out, "\n")
	return err
}

func (agent *Agent) executeTools(ctx context.Context, calls []ToolCall, rs *runState) ([]ToolResult, error) {
	var results []ToolResult
	for _, call := range calls {
		if rs.panels != nil {
			if err := rs.panels.toolCall(rs.out, agent.Name, call); err != nil {
				return nil, err
			}
		}
		slog.DebugContext(ctx, "tool call", "agent", agent.Name, "tool", call.ToolName)

		out, err := agent.executeTool(ctx, call.ToolName, call.Parameters)
		if err != nil {
			out = err.Error()
		}
		results = append(results, ToolResult{
			ToolName: call.ToolName,
			Output:   out,
		})
	}
	return results, nil
}

func (agent *Agent) executeAgents(ctx context.Context, taskHistory *TaskHistory, calls []AgentCall, rs *runState) ([]AgentResult, error) {
	var results []AgentResult
	for _, call := range calls {
		if rs.panels != nil {
			if err := rs.panels.agentCall(rs.out, agent.Name, call); err != nil {
				return nil, err
			}
		}
		slog.DebugContext(ctx, "agent call", "agent", agent.Name, "member", call.AgentName)

		ret, err := agent.executeAgent(ctx, call.AgentName, taskHistory.branch(call.AgentName), LLMInput{Text: call.Input}, rs.out)
		out := ret.Text
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			out = err.Error()
		}
		results = append(results, AgentResult{
			AgentName: call.AgentName,
			Output:    out,
		})
	}
	return results, nil
}

func (agent *Agent) executeTool(ctx context.Context, name string, input map[string]any) (string, error) {
	executor := agent.toolRepo.GetTool(name)
	if executor == nil {
		return "", fmt.Errorf("tool %s not found", name)
	}
	b, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	return executor.Execute(ctx, string(b))
}

func (agent *Agent) executeAgent(ctx context.Context, name string, taskHistory *TaskHistory, input LLMInput, out io.Writer) (LLMOutput, error) {
	executor := agent.toolRepo.GetAgent(name)
	if executor == nil {
		return LLMOutput{}, fmt.Errorf("agent %s not found", name)
	}
	return executor.Execute(ctx, taskHistory, input, out)
}
