package llm

import (
	"encoding/json"
	"fmt"
)

// FunctionCall is a single named function invocation emitted by a model.
type FunctionCall struct {
	Name string `json:"name"`

	// Arguments is the raw JSON argument object as the model produced it.
	// It is not guaranteed to be valid JSON.
	Arguments string `json:"arguments"`
}

// JSON returns the call encoded as a JSON object.
func (f FunctionCall) JSON() string {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Sprintf(`{"name":%q}`, f.Name)
	}
	return string(data)
}

// ToolCall represents a model's request to invoke a tool.
type ToolCall struct {
	// ID is used to match tool results back to the original call.
	ID string `json:"id"`

	Type string `json:"type,omitempty"`

	Function FunctionCall `json:"function"`
}

// ParseArguments parses the tool call arguments into the provided value.
// The value parameter should be a pointer to the struct that will receive the arguments.
func (c *ToolCall) ParseArguments(v any) error {
	if c.Function.Arguments == "" {
		return fmt.Errorf("no arguments to parse")
	}
	return json.Unmarshal([]byte(c.Function.Arguments), v)
}

// Validate checks if the tool call is valid.
func (c *ToolCall) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("tool call ID cannot be empty")
	}
	if c.Function.Name == "" {
		return fmt.Errorf("tool call name cannot be empty")
	}
	if c.Function.Arguments == "" {
		return nil
	}

	var temp any
	if err := json.Unmarshal([]byte(c.Function.Arguments), &temp); err != nil {
		return fmt.Errorf("invalid JSON in arguments: %w", err)
	}

	return nil
}

// ToolDef defines a tool that a model can invoke.
type ToolDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Parameters is a JSON Schema describing the tool's input parameters.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Validate checks if the tool definition is valid.
func (t *ToolDef) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	return nil
}

// ToolChoice represents how the model should use tools.
type ToolChoice string

const (
	// ToolChoiceNone means the model will not use any tools.
	ToolChoiceNone ToolChoice = "none"

	// ToolChoiceAuto means the model decides whether to use tools.
	ToolChoiceAuto ToolChoice = "auto"

	// ToolChoiceRequired means the model must use a tool.
	ToolChoiceRequired ToolChoice = "required"
)

// String returns the string representation of the tool choice.
func (tc ToolChoice) String() string {
	return string(tc)
}

// IsValid checks if the tool choice is valid.
func (tc ToolChoice) IsValid() bool {
	switch tc {
	case ToolChoiceNone, ToolChoiceAuto, ToolChoiceRequired:
		return true
	default:
		return false
	}
}
