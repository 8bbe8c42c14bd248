package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/prompt"
	"github.com/zero-day-ai/promptkit/schema"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

func textResponse(content string) *llm.Response {
	msg := llm.NewMessage(llm.RoleAssistant, content)
	return &llm.Response{Status: llm.StatusSuccess, Message: &msg}
}

func callResponse(name, args string) *llm.Response {
	return &llm.Response{
		Status: llm.StatusSuccess,
		Message: &llm.Message{
			Role:         llm.RoleAssistant,
			FunctionCall: &llm.FunctionCall{Name: name, Arguments: args},
		},
	}
}

func validate(t *testing.T, v Validator, resp *llm.Response) Validation {
	t.Helper()
	result, err := v.ValidateResponse(context.Background(), memory.NewState(), tokenizer.NewWord(), resp, 3)
	require.NoError(t, err)
	return result
}

func TestDefaultValidator(t *testing.T) {
	result := validate(t, DefaultValidator{}, textResponse("anything"))
	assert.True(t, result.Valid)
	assert.Nil(t, result.Value)
	assert.Empty(t, result.Feedback)
}

func TestJSONValidator(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantValid bool
		wantValue map[string]any
	}{
		{
			name:      "object in prose",
			content:   `Sure! Here it is: {"city": "Paris", "days": 3} Let me know.`,
			wantValid: true,
			wantValue: map[string]any{"city": "Paris", "days": float64(3)},
		},
		{
			name:      "unterminated object",
			content:   `{"city": "Paris", "stops": ["Lyon"`,
			wantValid: true,
			wantValue: map[string]any{"city": "Paris", "stops": []any{"Lyon"}},
		},
		{
			name:      "last object wins",
			content:   "{\"thought\": \"thinking\"}\n{\"city\": \"Rome\"}",
			wantValid: true,
			wantValue: map[string]any{"city": "Rome"},
		},
		{
			name:    "no braces",
			content: "I could not find anything.",
		},
		{
			name:    "mismatched closer",
			content: `{"city": "Paris"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validate(t, NewJSONValidator(), textResponse(tt.content))
			assert.Equal(t, tt.wantValid, result.Valid)
			if tt.wantValid {
				assert.Equal(t, tt.wantValue, result.Value)
				assert.Empty(t, result.Feedback)
			} else {
				assert.Equal(t, DefaultMissingJSONFeedback, result.Feedback)
			}
		})
	}
}

func TestJSONValidator_Schema(t *testing.T) {
	s := schema.Object(map[string]schema.JSON{
		"city": schema.String(),
		"days": schema.Int(),
	}, "city")
	v := NewJSONValidator(WithSchema(s))

	t.Run("conforms", func(t *testing.T) {
		result := validate(t, v, textResponse(`{"city": "Oslo", "days": 2}`))
		assert.True(t, result.Valid)
	})

	t.Run("errors from every object", func(t *testing.T) {
		result := validate(t, v, textResponse("{\"days\": 2}\n{\"city\": 5}"))
		assert.False(t, result.Valid)
		assert.Equal(t, DefaultSchemaErrorFeedback+
			"\n$: required property \"city\" is missing"+
			"\n$.city: expected string, got number", result.Feedback)
	})

	t.Run("pretty printed with nested object", func(t *testing.T) {
		profile := NewJSONValidator(WithSchema(schema.Object(map[string]schema.JSON{
			"age":  schema.Int(),
			"user": schema.Object(map[string]schema.JSON{"name": schema.String()}),
		}, "age", "user")))

		result := validate(t, profile, textResponse("Here is the answer:\n{\n  \"user\": {\"name\": \"bob\"},\n  \"age\": 3\n}"))
		require.True(t, result.Valid, result.Feedback)
		assert.Equal(t, map[string]any{"user": map[string]any{"name": "bob"}, "age": float64(3)}, result.Value)
	})

	t.Run("custom feedback", func(t *testing.T) {
		custom := NewJSONValidator(
			WithSchema(s),
			WithMissingJSONFeedback("give me JSON"),
			WithSchemaErrorFeedback("fix it:"),
		)
		assert.Equal(t, "give me JSON", validate(t, custom, textResponse("nope")).Feedback)
		assert.Equal(t, "fix it:\n$.days: expected integer, got number",
			validate(t, custom, textResponse(`{"city": "Oslo", "days": 1.5}`)).Feedback)
	})

	t.Run("nil response", func(t *testing.T) {
		_, err := v.ValidateResponse(context.Background(), memory.NewState(), tokenizer.NewWord(), nil, 0)
		assert.Error(t, err)
	})
}

func bookingActions() []prompt.Action {
	params := schema.Object(map[string]schema.JSON{
		"to":   schema.String(),
		"date": schema.String(),
	}, "to")
	return []prompt.Action{
		{Name: "book_flight", Description: "Books a flight", Parameters: &params},
		{Name: "cancel"},
	}
}

func TestActionValidator(t *testing.T) {
	v := NewActionValidator(bookingActions())

	t.Run("valid call", func(t *testing.T) {
		result := validate(t, v, callResponse("book_flight", `{"to": "Paris"}`))
		require.True(t, result.Valid, result.Feedback)
		assert.Equal(t, ActionCall{Name: "book_flight", Parameters: map[string]any{"to": "Paris"}}, result.Value)
	})

	t.Run("action without parameters", func(t *testing.T) {
		result := validate(t, v, callResponse("cancel", ""))
		require.True(t, result.Valid)
		assert.Equal(t, ActionCall{Name: "cancel", Parameters: map[string]any{}}, result.Value)

		result = validate(t, v, callResponse("cancel", "{ }"))
		assert.True(t, result.Valid)
	})

	t.Run("unknown action", func(t *testing.T) {
		result := validate(t, v, callResponse("book_hotel", `{}`))
		assert.False(t, result.Valid)
		assert.Equal(t, `The action "book_hotel" is not a valid action. Valid actions are: book_flight, cancel.`, result.Feedback)
	})

	t.Run("arguments fail the schema", func(t *testing.T) {
		result := validate(t, v, callResponse("book_flight", `{"date": "tomorrow"}`))
		assert.False(t, result.Valid)
		assert.Contains(t, result.Feedback, `The arguments for the "book_flight" action had errors.`)
		assert.Contains(t, result.Feedback, `required property "to" is missing`)
	})

	t.Run("empty arguments still checked", func(t *testing.T) {
		result := validate(t, v, callResponse("book_flight", ""))
		assert.False(t, result.Valid)
		assert.Contains(t, result.Feedback, "book_flight")
	})

	t.Run("arguments are not JSON", func(t *testing.T) {
		result := validate(t, v, callResponse("book_flight", "to Paris"))
		assert.False(t, result.Valid)
		assert.Contains(t, result.Feedback, "not a valid JSON object")
	})

	t.Run("missing name", func(t *testing.T) {
		result := validate(t, v, callResponse("", `{"to": "Paris"}`))
		assert.False(t, result.Valid)
		assert.Equal(t, "No action was specified. Call one of these actions by name: book_flight, cancel.", result.Feedback)
	})

	t.Run("no call when required", func(t *testing.T) {
		result := validate(t, v, textResponse("I'll book it"))
		assert.False(t, result.Valid)
		assert.Contains(t, result.Feedback, "No action was specified")
	})

	t.Run("no call when optional", func(t *testing.T) {
		optional := NewActionValidator(bookingActions(), WithOptionalCalls())
		result := validate(t, optional, textResponse("Just chatting"))
		assert.True(t, result.Valid)
		assert.Nil(t, result.Value)
	})

	t.Run("tool calls", func(t *testing.T) {
		resp := &llm.Response{
			Status: llm.StatusSuccess,
			Message: &llm.Message{
				Role: llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{
					{ID: "1", Type: "function", Function: llm.FunctionCall{Name: "book_flight", Arguments: `{"to": "Rome"}`}},
					{ID: "2", Type: "function", Function: llm.FunctionCall{Name: "cancel"}},
				},
			},
		}
		result := validate(t, v, resp)
		require.True(t, result.Valid, result.Feedback)
		assert.Equal(t, []ActionCall{
			{Name: "book_flight", Parameters: map[string]any{"to": "Rome"}},
			{Name: "cancel", Parameters: map[string]any{}},
		}, result.Value)

		resp.Message.ToolCalls[1].Function.Name = "explode"
		result = validate(t, v, resp)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Feedback, `"explode"`)
	})

	t.Run("custom noun", func(t *testing.T) {
		fn := NewActionValidator(bookingActions(), WithNoun("function"))
		result := validate(t, fn, callResponse("nope", ""))
		assert.Equal(t, `The function "nope" is not a valid function. Valid functions are: book_flight, cancel.`, result.Feedback)
	})
}

func TestFeedbackError(t *testing.T) {
	err := &FeedbackError{Feedback: "Return JSON."}
	assert.Equal(t, "invalid response: Return JSON.", err.Error())
}
