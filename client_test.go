package promptkit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/model"
	"github.com/zero-day-ai/promptkit/prompt"
	"github.com/zero-day-ai/promptkit/tokenizer"
	"github.com/zero-day-ai/promptkit/validation"
)

// validatorFunc adapts a function to validation.Validator.
type validatorFunc func(remaining int, resp *llm.Response) validation.Validation

func (f validatorFunc) ValidateResponse(_ context.Context, _ memory.Memory, _ tokenizer.Tokenizer, resp *llm.Response, remaining int) (validation.Validation, error) {
	return f(remaining, resp), nil
}

func chatTemplate(t *testing.T) *prompt.Template {
	t.Helper()
	input, err := prompt.NewTemplateSection("{{$temp.input}}", llm.RoleUser)
	require.NoError(t, err)
	return prompt.NewTemplate("chat", prompt.NewPrompt([]prompt.Section{
		prompt.NewTextSection("You are a travel agent.", llm.RoleSystem),
		prompt.NewConversationHistorySection("conversation.history"),
		input,
	}))
}

func newMemory(t *testing.T, input string) *memory.State {
	t.Helper()
	mem := memory.NewState()
	require.NoError(t, mem.Set("temp.input", input))
	return mem
}

func TestNew(t *testing.T) {
	tmpl := chatTemplate(t)
	m := model.NewTestModel()

	_, err := New(nil, tmpl)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(m, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(m, tmpl, WithMaxRepairAttempts(-1))
	assert.ErrorIs(t, err, &Error{Kind: KindConfiguration})

	_, err = New(m, tmpl, WithHistoryVariable("a.b.c"))
	assert.ErrorIs(t, err, memory.ErrInvalidPath)

	c, err := New(m, tmpl)
	require.NoError(t, err)
	assert.Same(t, tmpl, c.Template())
}

func TestClient_CompletePrompt(t *testing.T) {
	ctx := context.Background()
	m := model.NewTestModel(model.TextResponse("Where would you like to go?"))
	c, err := New(m, chatTemplate(t))
	require.NoError(t, err)

	mem := newMemory(t, "I need a flight")
	resp := c.CompletePrompt(ctx, mem, nil)

	require.Equal(t, llm.StatusSuccess, resp.Status, "error: %v", resp.Error)
	assert.NoError(t, resp.Error)
	_, err = uuid.Parse(resp.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Where would you like to go?", resp.Content())
	require.NotNil(t, resp.Input)
	assert.Equal(t, "I need a flight", resp.Input.Content)

	assert.Equal(t, []llm.Message{
		llm.NewMessage(llm.RoleAssistant, "Where would you like to go?"),
		llm.NewMessage(llm.RoleUser, "I need a flight"),
	}, memory.History(mem, "conversation.history"))

	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "chat", calls[0].Template)

	t.Run("next turn sees the history", func(t *testing.T) {
		require.NoError(t, mem.Set("temp.input", "Paris"))
		resp := c.CompletePrompt(ctx, mem, nil)
		require.True(t, resp.Succeeded())

		calls := m.Calls()
		require.Len(t, calls, 2)
		var contents []string
		for _, msg := range calls[1].Messages {
			contents = append(contents, msg.Content)
		}
		assert.Equal(t, []string{
			"You are a travel agent.",
			"I need a flight",
			"Where would you like to go?",
			"Paris",
		}, contents)
		assert.Len(t, memory.History(mem, "conversation.history"), 4)
	})

	t.Run("ids are unique", func(t *testing.T) {
		a := c.CompletePrompt(ctx, newMemory(t, "a"), nil)
		b := c.CompletePrompt(ctx, newMemory(t, "b"), nil)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestClient_RepairIsolation(t *testing.T) {
	ctx := context.Background()
	m := model.NewTestModel(
		model.TextResponse("Sure, here you go!"),
		model.TextResponse(`{"destination": "Paris"}`),
	)
	c, err := New(m, chatTemplate(t), WithValidator(validation.NewJSONValidator()))
	require.NoError(t, err)

	mem := newMemory(t, "Book Paris")
	resp := c.CompletePrompt(ctx, mem, nil)

	require.Equal(t, llm.StatusSuccess, resp.Status, "error: %v", resp.Error)
	assert.Equal(t, map[string]any{"destination": "Paris"}, resp.Message.Value)
	require.NotNil(t, resp.Input)
	assert.Equal(t, "Book Paris", resp.Input.Content)

	// Only the original input and the repaired output reach the real history.
	assert.Equal(t, []llm.Message{
		llm.NewMessage(llm.RoleAssistant, `{"destination": "Paris"}`),
		llm.NewMessage(llm.RoleUser, "Book Paris"),
	}, memory.History(mem, "conversation.history"))
	assert.False(t, mem.Has("conversation.history-repair"))

	calls := m.Calls()
	require.Len(t, calls, 2)
	repair := calls[1].Messages
	require.GreaterOrEqual(t, len(repair), 2)
	assert.Equal(t, llm.NewMessage(llm.RoleAssistant, "Sure, here you go!"), repair[len(repair)-2])
	assert.Equal(t, llm.NewMessage(llm.RoleUser, validation.DefaultMissingJSONFeedback), repair[len(repair)-1])
}

func TestClient_RepairBudgetExhausted(t *testing.T) {
	ctx := context.Background()
	m := model.NewTestModel(model.TextResponse("nope"))

	var remaining []int
	always := validatorFunc(func(r int, _ *llm.Response) validation.Validation {
		remaining = append(remaining, r)
		return validation.Invalid("Answer in French.")
	})

	c, err := New(m, chatTemplate(t), WithValidator(always), WithMaxRepairAttempts(3), WithLogRepairs(true))
	require.NoError(t, err)

	mem := newMemory(t, "Hello")
	resp := c.CompletePrompt(ctx, mem, nil)

	assert.Equal(t, llm.StatusInvalidResponse, resp.Status)
	assert.Equal(t, 4, m.CallCount())
	assert.Equal(t, []int{3, 2, 1, 0}, remaining)

	var feedback *validation.FeedbackError
	require.ErrorAs(t, resp.Error, &feedback)
	assert.Equal(t, "Answer in French.", feedback.Feedback)
	require.NotNil(t, resp.Message)
	assert.Equal(t, "nope", resp.Message.Content)

	assert.False(t, mem.Has("conversation.history"))
	assert.False(t, mem.Has("conversation.history-repair"))

	// The repair history grows with every attempt.
	last := m.Calls()[3].Messages
	feedbackCount := 0
	for _, msg := range last {
		if msg.Content == "Answer in French." {
			feedbackCount++
		}
	}
	assert.Equal(t, 3, feedbackCount)
}

func TestClient_NoRepair(t *testing.T) {
	m := model.NewTestModel(model.TextResponse("plain text"))
	c, err := New(m, chatTemplate(t),
		WithValidator(validation.NewJSONValidator()),
		WithMaxRepairAttempts(0))
	require.NoError(t, err)

	mem := newMemory(t, "Hello")
	resp := c.CompletePrompt(context.Background(), mem, nil)

	assert.Equal(t, llm.StatusInvalidResponse, resp.Status)
	assert.Equal(t, 1, m.CallCount())
	assert.False(t, mem.Has("conversation.history"))
}

func TestClient_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("vendor status is returned as is", func(t *testing.T) {
		m := model.NewTestModel(llm.ErrorResponse(llm.StatusRateLimited, model.ErrRateLimited))
		c, err := New(m, chatTemplate(t), WithValidator(validation.NewJSONValidator()))
		require.NoError(t, err)

		mem := newMemory(t, "Hello")
		resp := c.CompletePrompt(ctx, mem, nil)
		assert.Equal(t, llm.StatusRateLimited, resp.Status)
		assert.ErrorIs(t, resp.Error, model.ErrRateLimited)
		assert.NotEmpty(t, resp.ID)
		assert.Equal(t, 1, m.CallCount())
		assert.False(t, mem.Has("conversation.history"))
	})

	t.Run("too long", func(t *testing.T) {
		tmpl := chatTemplate(t)
		tmpl.Config.Completion.MaxInputTokens = 3
		c, err := New(model.NewTestModel(model.TextResponse("x")), tmpl)
		require.NoError(t, err)

		resp := c.CompletePrompt(ctx, newMemory(t, "Hello"), nil)
		assert.Equal(t, llm.StatusTooLong, resp.Status)
		assert.ErrorIs(t, resp.Error, model.ErrPromptTooLong)
	})

	t.Run("model error", func(t *testing.T) {
		boom := errors.New("connection reset")
		m := model.NewTestModelFunc(func(context.Context, model.TestCall) (*llm.Response, error) {
			return nil, boom
		})
		c, err := New(m, chatTemplate(t))
		require.NoError(t, err)

		resp := c.CompletePrompt(ctx, newMemory(t, "Hello"), nil)
		assert.Equal(t, llm.StatusError, resp.Status)
		assert.ErrorIs(t, resp.Error, boom)
		assert.ErrorIs(t, resp.Error, &Error{Kind: KindExecution})
	})

	t.Run("canceled", func(t *testing.T) {
		m := model.NewTestModelFunc(func(ctx context.Context, _ model.TestCall) (*llm.Response, error) {
			return nil, ctx.Err()
		})
		c, err := New(m, chatTemplate(t))
		require.NoError(t, err)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		resp := c.CompletePrompt(cctx, newMemory(t, "Hello"), nil)
		assert.Equal(t, llm.StatusError, resp.Status)
		assert.ErrorIs(t, resp.Error, context.Canceled)
		assert.ErrorIs(t, resp.Error, &Error{Kind: KindTimeout})
	})

	t.Run("panic", func(t *testing.T) {
		m := model.NewTestModelFunc(func(context.Context, model.TestCall) (*llm.Response, error) {
			panic("vendor exploded")
		})
		c, err := New(m, chatTemplate(t))
		require.NoError(t, err)

		var resp *llm.Response
		require.NotPanics(t, func() {
			resp = c.CompletePrompt(ctx, newMemory(t, "Hello"), nil)
		})
		assert.Equal(t, llm.StatusError, resp.Status)
		assert.ErrorIs(t, resp.Error, &Error{Kind: KindInternal})
		assert.Contains(t, resp.Error.Error(), "vendor exploded")
		assert.NotEmpty(t, resp.ID)
	})

	t.Run("success without message", func(t *testing.T) {
		m := model.NewTestModelFunc(func(context.Context, model.TestCall) (*llm.Response, error) {
			return &llm.Response{Status: llm.StatusSuccess}, nil
		})
		c, err := New(m, chatTemplate(t))
		require.NoError(t, err)

		resp := c.CompletePrompt(ctx, newMemory(t, "Hello"), nil)
		assert.Equal(t, llm.StatusError, resp.Status)
		assert.ErrorIs(t, resp.Error, ErrNoMessage)
	})

	t.Run("nil memory", func(t *testing.T) {
		c, err := New(model.NewTestModel(), chatTemplate(t))
		require.NoError(t, err)
		resp := c.CompletePrompt(ctx, nil, nil)
		assert.Equal(t, llm.StatusError, resp.Status)
	})
}

func TestClient_InputFromMemory(t *testing.T) {
	// Without an input section the prompt does not end with the user's
	// turn, so the client reads it from the input variable.
	tmpl := prompt.NewTemplate("system-only", prompt.NewPrompt([]prompt.Section{
		prompt.NewTextSection("Summarize the weather.", llm.RoleSystem),
	}))
	c, err := New(model.NewTestModel(model.TextResponse("Sunny.")), tmpl,
		WithInputVariable("temp.question"),
		WithHistoryVariable("conversation.log"))
	require.NoError(t, err)

	mem := memory.NewState()
	require.NoError(t, mem.Set("temp.question", "Weather?"))

	resp := c.CompletePrompt(context.Background(), mem, nil)
	require.True(t, resp.Succeeded())
	assert.Equal(t, []llm.Message{
		llm.NewMessage(llm.RoleAssistant, "Sunny."),
		llm.NewMessage(llm.RoleUser, "Weather?"),
	}, memory.History(mem, "conversation.log"))

	t.Run("no input at all", func(t *testing.T) {
		mem := memory.NewState()
		resp := c.CompletePrompt(context.Background(), mem, nil)
		require.True(t, resp.Succeeded())
		assert.Nil(t, resp.Input)
		assert.Equal(t, []llm.Message{llm.NewMessage(llm.RoleAssistant, "Sunny.")},
			memory.History(mem, "conversation.log"))
	})
}

func TestClient_MaxHistoryMessages(t *testing.T) {
	c, err := New(model.NewTestModel(model.TextResponse("ok")), chatTemplate(t), WithMaxHistoryMessages(3))
	require.NoError(t, err)

	mem := memory.NewState()
	for _, input := range []string{"one", "two", "three"} {
		require.NoError(t, mem.Set("temp.input", input))
		require.True(t, c.CompletePrompt(context.Background(), mem, nil).Succeeded())
	}

	history := memory.History(mem, "conversation.history")
	require.Len(t, history, 3)
	assert.Equal(t, "ok", history[0].Content)
	assert.Equal(t, "three", history[1].Content)
	assert.Equal(t, "ok", history[2].Content)
}

func TestClient_Observability(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	usage := llm.TokenUsage{InputTokens: 10, OutputTokens: 2, TotalTokens: 12}
	bad := model.TextResponse("no json")
	bad.Usage = usage
	good := model.TextResponse(`{"a": 1}`)
	good.Usage = usage

	tracker := llm.NewTokenTracker()
	c, err := New(model.NewTestModel(bad, good), chatTemplate(t),
		WithValidator(validation.NewJSONValidator()),
		WithTracer(tp.Tracer("test")),
		WithTokenTracker(tracker))
	require.NoError(t, err)

	resp := c.CompletePrompt(context.Background(), newMemory(t, "Hello"), nil)
	require.True(t, resp.Succeeded())

	assert.Equal(t, llm.TokenUsage{InputTokens: 20, OutputTokens: 4, TotalTokens: 24}, tracker.ByTemplate("chat"))

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Equal(t, []string{"promptkit.repair", "promptkit.complete_prompt"}, names)

	root := recorder.Ended()[1]
	var id, status string
	for _, kv := range root.Attributes() {
		switch kv.Key {
		case "promptkit.completion_id":
			id = kv.Value.AsString()
		case "promptkit.status":
			status = kv.Value.AsString()
		}
	}
	assert.Equal(t, resp.ID, id)
	assert.Equal(t, "success", status)
	assert.Equal(t, root.SpanContext().SpanID(), recorder.Ended()[0].Parent().SpanID())
}
