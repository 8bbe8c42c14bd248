package llm

import (
	"encoding/json"
	"fmt"
)

// Role represents the role of a message sender in a conversation.
type Role string

const (
	// RoleSystem represents system-level instructions or context.
	RoleSystem Role = "system"

	// RoleUser represents messages from the user.
	RoleUser Role = "user"

	// RoleAssistant represents messages from the model.
	RoleAssistant Role = "assistant"

	// RoleFunction represents the result of a legacy function call.
	RoleFunction Role = "function"

	// RoleTool represents tool execution results.
	RoleTool Role = "tool"
)

// String returns a string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the defined constants.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleFunction, RoleTool:
		return true
	default:
		return false
	}
}

// Message is a single conversation entry. Messages are treated as values:
// code that needs a variant copies and edits the copy.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Name identifies the function or tool that produced a function/tool message.
	Name string `json:"name,omitempty"`

	// FunctionCall is set on assistant messages that invoke a single function.
	FunctionCall *FunctionCall `json:"function_call,omitempty"`

	// ToolCalls holds parallel tool invocations requested by the assistant.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool message back to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Value carries the structured result a validator parsed out of Content.
	// It is never sent to a model.
	Value any `json:"-"`
}

// NewMessage builds a plain text message.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// IsValid validates that the message has appropriate fields set for its role.
func (m Message) IsValid() bool {
	switch m.Role {
	case RoleSystem, RoleUser:
		return m.Content != "" && m.FunctionCall == nil && len(m.ToolCalls) == 0
	case RoleAssistant:
		return m.Content != "" || m.FunctionCall != nil || len(m.ToolCalls) > 0
	case RoleFunction:
		return m.Name != ""
	case RoleTool:
		return m.ToolCallID != ""
	default:
		return false
	}
}

// HasCalls reports whether the message requests any function or tool call.
func (m Message) HasCalls() bool {
	return m.FunctionCall != nil || len(m.ToolCalls) > 0
}

// MessagesFrom converts a value read from memory into a message list.
// Lists that were round-tripped through JSON come back as []any of maps,
// so those are re-decoded. Unknown shapes yield nil.
func MessagesFrom(v any) []Message {
	switch msgs := v.(type) {
	case nil:
		return nil
	case []Message:
		return msgs
	case Message:
		return []Message{msgs}
	case *Message:
		if msgs == nil {
			return nil
		}
		return []Message{*msgs}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out []Message
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// String renders the message the way history sections print it.
func (m Message) String() string {
	if m.FunctionCall != nil {
		return fmt.Sprintf("%s: %s", m.Role, m.FunctionCall.JSON())
	}
	return fmt.Sprintf("%s: %s", m.Role, m.Content)
}
