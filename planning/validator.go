package planning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/parser"
	"github.com/zero-day-ai/promptkit/tokenizer"
	"github.com/zero-day-ai/promptkit/validation"
)

// DefaultMissingPlanFeedback is sent when a response contains no commands.
const DefaultMissingPlanFeedback = "The response did not contain a plan. Respond with DO and SAY commands or a plan object."

// FromMessage builds a plan from a model message. A plan already attached
// as the message value is returned as is. Tool calls become DO commands,
// followed by the message text as a SAY. Otherwise the text is parsed.
func FromMessage(msg *llm.Message) *Plan {
	if msg == nil {
		return &Plan{}
	}
	if plan, ok := msg.Value.(*Plan); ok {
		return plan
	}

	calls := msg.ToolCalls
	if len(calls) == 0 && msg.FunctionCall != nil {
		calls = []llm.ToolCall{{Function: *msg.FunctionCall}}
	}
	if len(calls) == 0 {
		return ParseResponse(msg.Content)
	}

	plan := &Plan{}
	for _, call := range calls {
		entities := map[string]any{}
		if obj, ok := parser.ParseJSON(call.Function.Arguments); ok {
			entities = obj
		}
		plan.Commands = append(plan.Commands, DoCommand{Action: call.Function.Name, Entities: entities})
	}
	if text := strings.TrimSpace(msg.Content); text != "" {
		plan.Commands = append(plan.Commands, SayCommand{Response: text})
	}
	return plan
}

// Validator accepts responses that carry a non-empty plan whose actions are
// all known. The value of a valid response is the *Plan.
type Validator struct {
	actions map[string]bool
}

// NewValidator creates a plan validator. With no action names, any action
// is accepted.
func NewValidator(actions ...string) *Validator {
	v := &Validator{actions: make(map[string]bool, len(actions))}
	for _, a := range actions {
		v.actions[a] = true
	}
	return v
}

// ValidateResponse parses the plan and checks its actions.
func (v *Validator) ValidateResponse(_ context.Context, _ memory.Memory, _ tokenizer.Tokenizer, resp *llm.Response, _ int) (validation.Validation, error) {
	if resp == nil {
		return validation.Validation{}, errors.New("planning: nil response")
	}

	plan := FromMessage(resp.Message)
	if len(plan.Commands) == 0 {
		return validation.Invalid(DefaultMissingPlanFeedback), nil
	}

	if len(v.actions) > 0 {
		for _, name := range plan.Actions() {
			if !v.actions[name] {
				return validation.Invalid(fmt.Sprintf("The action %q is not a valid action. Valid actions are: %s.",
					name, strings.Join(v.names(), ", "))), nil
			}
		}
	}
	return validation.Valid(plan), nil
}

func (v *Validator) names() []string {
	names := make([]string, 0, len(v.actions))
	for name := range v.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
