package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/invopop/jsonschema"
)

var systemToolPrompt = `
You can use the tools and team members listed below. Read each description and parameter schema before using one.
<tools>
{{tools}}
</tools>
Tool usage:

1. Pick the tool that best matches what the user asked.
2. Provide every required parameter as JSON that matches the tool schema.
3. If a required value is missing and cannot be inferred, ask the user for it.
4. Invoke a tool with exactly this format and nothing else in the same reply:

<tool_call>
  <tool_name>name_of_the_tool</tool_name>
  <parameters>
    {"param1": "value1"}
  </parameters>
</tool_call>

5. Tool results arrive in a <tool_result> message. Use them in your answer and cite the sources they contain.
6. If a tool fails, say so and try another tool when one fits.

<agents>
{{agents}}
</agents>
Team usage:

1. Decide whether a team member is better suited to answer part of the question.
2. Delegate with exactly this format:

<agent_call>
  <agent_name>name_of_the_agent</agent_name>
  <input>
    natural language request
  </input>
</agent_call>

3. Member answers arrive in an <agent_result> message. Combine them into one answer for the user.
`

type AgentDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Role        string `json:"role,omitempty"`
}

type AgentCall struct {
	AgentName string
	Input     string
}

type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall is a tool invocation parsed from model output.
type ToolCall struct {
	ToolName   string
	Parameters map[string]any
}

func GetToolPrompt(tools []ToolDescriptor, agents []AgentDescriptor) (string, error) {
	toolsStr := []byte("[]")
	if len(tools) > 0 {
		b, err := json.Marshal(tools)
		if err != nil {
			return "", fmt.Errorf("marshal tools: %w", err)
		}
		toolsStr = b
	}
	agentsStr := []byte("[]")
	if len(agents) > 0 {
		b, err := json.Marshal(agents)
		if err != nil {
			return "", fmt.Errorf("marshal agents: %w", err)
		}
		agentsStr = b
	}
	return ReplaceLabels(systemToolPrompt, map[string]string{
		"tools":  string(toolsStr),
		"agents": string(agentsStr),
	}), nil
}

func ReplaceLabels(template string, replacements map[string]string) string {
	for key, value := range replacements {
		placeholder := "{{" + key + "}}"
		template = strings.ReplaceAll(template, placeholder, value)
	}
	return template
}

var toolPattern = `(?s)<tool_call>\s*<tool_name>(.*?)</tool_name>\s*<parameters>\s*(.*?)\s*</parameters>\s*</tool_call>`
var toolRegEx = regexp.MustCompile(toolPattern)

var agentPattern = `(?s)<agent_call>\s*<agent_name>(.*?)</agent_name>\s*<input>\s*(.*?)\s*</input>\s*</agent_call>`
var agentRegEx = regexp.MustCompile(agentPattern)

// ExtractToolCalls extracts tool calls from the given content
func ExtractToolCalls(content string) ([]ToolCall, error) {
	var toolCalls []ToolCall
	for _, match := range toolRegEx.FindAllStringSubmatch(content, -1) {
		toolName := strings.TrimSpace(match[1])
		paramsJSON := strings.TrimSpace(match[2])

		params := map[string]any{}
		if paramsJSON != "" {
			if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
				return nil, fmt.Errorf("failed to parse parameters for tool %s: %w", toolName, err)
			}
		}

		toolCalls = append(toolCalls, ToolCall{
			ToolName:   toolName,
			Parameters: params,
		})
	}
	return toolCalls, nil
}

// ExtractAgentCalls extracts agent calls from the given content
func ExtractAgentCalls(content string) []AgentCall {
	var agentCalls []AgentCall
	for _, match := range agentRegEx.FindAllStringSubmatch(content, -1) {
		agentCalls = append(agentCalls, AgentCall{
			AgentName: strings.TrimSpace(match[1]),
			Input:     strings.TrimSpace(match[2]),
		})
	}
	return agentCalls
}

// ExtractTagContent returns the inner text of every <tag>...</tag> pair in
// content joined by newlines, and whether at least one complete pair was found.
func ExtractTagContent(content, tag string) (string, bool) {
	var results []string
	openTag := "<" + tag + ">"
	closeTag := "</" + tag + ">"
	for {
		start := strings.Index(content, openTag)
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], closeTag)
		if end == -1 {
			break
		}
		results = append(results, strings.TrimSpace(content[start+len(openTag):start+end]))
		content = content[start+end+len(closeTag):]
	}
	return strings.Join(results, "\n"), len(results) > 0
}

var thinkingRegEx = regexp.MustCompile(`(?s)<think(?:ing)?>.*?</think(?:ing)?>`)

// StripThinking drops reasoning blocks that some models emit ahead of the answer.
func StripThinking(content string) string {
	return strings.TrimSpace(thinkingRegEx.ReplaceAllString(content, ""))
}

// GetSchema returns the JSON schema of the struct obj points to.
func GetSchema(obj any) (any, error) {
	if reflect.ValueOf(obj).Kind() != reflect.Ptr {
		return nil, errors.New("object must be a pointer")
	}
	pointsToValue := reflect.Indirect(reflect.ValueOf(obj))
	if pointsToValue.Kind() == reflect.Slice {
		return nil, errors.New("slice not supported as an input")
	}

	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	schema := reflector.Reflect(obj)
	schema.Version = ""
	return schema, nil
}
