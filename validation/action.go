package validation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/parser"
	"github.com/zero-day-ai/promptkit/prompt"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

// ActionCall is the validated form of a function or tool call.
type ActionCall struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// ActionOption configures an ActionValidator.
type ActionOption func(*ActionValidator)

// WithOptionalCalls accepts responses that make no call at all.
func WithOptionalCalls() ActionOption {
	return func(v *ActionValidator) {
		v.optional = true
	}
}

// WithNoun sets the word used for actions in feedback. Default: "action".
func WithNoun(noun string) ActionOption {
	return func(v *ActionValidator) {
		v.noun = noun
	}
}

// ActionValidator checks function and tool calls against a table of
// actions. Arguments are validated against the action's parameter schema.
//
// The value of a valid response is an ActionCall for a function call, a
// []ActionCall for tool calls and nil when an optional call was not made.
type ActionValidator struct {
	actions  map[string]prompt.Action
	optional bool
	noun     string
}

// NewActionValidator creates a validator for actions.
func NewActionValidator(actions []prompt.Action, opts ...ActionOption) *ActionValidator {
	v := &ActionValidator{
		actions: make(map[string]prompt.Action, len(actions)),
		noun:    "action",
	}
	for _, a := range actions {
		v.actions[a.Name] = a
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateResponse validates the calls carried by the response message.
func (v *ActionValidator) ValidateResponse(_ context.Context, _ memory.Memory, _ tokenizer.Tokenizer, resp *llm.Response, _ int) (Validation, error) {
	if resp == nil {
		return Validation{}, errors.New("validation: nil response")
	}

	msg := resp.Message
	switch {
	case msg != nil && len(msg.ToolCalls) > 0:
		calls := make([]ActionCall, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			result := v.validateCall(tc.Function)
			if !result.Valid {
				return result, nil
			}
			calls = append(calls, result.Value.(ActionCall))
		}
		return Valid(calls), nil

	case msg != nil && msg.FunctionCall != nil:
		return v.validateCall(*msg.FunctionCall), nil

	case v.optional:
		return Valid(nil), nil
	}
	return Invalid(v.missingNameFeedback()), nil
}

func (v *ActionValidator) validateCall(call llm.FunctionCall) Validation {
	if call.Name == "" {
		return Invalid(v.missingNameFeedback())
	}

	action, ok := v.actions[call.Name]
	if !ok {
		return Invalid(fmt.Sprintf("The %s %q is not a valid %s. Valid %ss are: %s.",
			v.noun, call.Name, v.noun, v.noun, strings.Join(v.names(), ", ")))
	}

	params := map[string]any{}
	if strings.TrimSpace(call.Arguments) != "" {
		obj, ok := parser.ParseJSON(call.Arguments)
		if !ok && !isEmptyObject(call.Arguments) {
			return Invalid(fmt.Sprintf("The arguments for the %q %s are not a valid JSON object. Call %q again with a JSON object of arguments.",
				call.Name, v.noun, call.Name))
		}
		if ok {
			params = obj
		}
	}

	if action.Parameters != nil {
		args := NewJSONValidator(
			WithSchema(*action.Parameters),
			WithSchemaErrorFeedback(fmt.Sprintf("The arguments for the %q %s had errors. Apply these fixes and call %q again:",
				call.Name, v.noun, call.Name)),
		)
		if result := args.validateObjects([]map[string]any{params}); !result.Valid {
			return result
		}
	}
	return Valid(ActionCall{Name: call.Name, Parameters: params})
}

func (v *ActionValidator) missingNameFeedback() string {
	return fmt.Sprintf("No %s was specified. Call one of these %ss by name: %s.",
		v.noun, v.noun, strings.Join(v.names(), ", "))
}

func (v *ActionValidator) names() []string {
	names := make([]string, 0, len(v.actions))
	for name := range v.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isEmptyObject(s string) bool {
	s = strings.Join(strings.Fields(s), "")
	return s == "{}"
}
