package planning

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/prompt"
	"github.com/zero-day-ai/promptkit/tokenizer"
	"github.com/zero-day-ai/promptkit/validation"
)

func echo(name string) Handler {
	return func(_ context.Context, _ memory.Memory, entities map[string]any) (string, error) {
		if to, ok := entities["to"].(string); ok {
			return name + " " + to, nil
		}
		return name, nil
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("book", echo("book")))
	require.NoError(t, r.Register("cancel", echo("cancel")))

	err := r.Register("book", echo("again"))
	assert.ErrorIs(t, err, ErrDuplicateAction)

	require.NoError(t, r.RegisterOverride("book", echo("rebook")))
	assert.True(t, r.Has("book"))
	assert.False(t, r.Has("missing"))
	assert.Equal(t, []string{"book", "cancel"}, r.Names())

	assert.Error(t, r.Register("", echo("x")))
	assert.Error(t, r.Register("x", nil))

	results, err := r.Execute(context.Background(), memory.NewState(), &Plan{Commands: []Command{DoCommand{Action: "book"}}})
	require.NoError(t, err)
	assert.Equal(t, []Result{{Type: CommandDo, Action: "book", Output: "rebook"}}, results)
}

func TestRegistry_Execute(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewState()

	var said []string
	r := NewRegistry()
	require.NoError(t, r.Register("book", echo("booked")))
	r.OnSay(func(_ context.Context, _ memory.Memory, text string) error {
		said = append(said, text)
		return nil
	})

	t.Run("runs in order", func(t *testing.T) {
		said = nil
		plan := ParseResponse("DO book to=Paris THEN SAY All set.")
		results, err := r.Execute(ctx, mem, plan)
		require.NoError(t, err)
		assert.Equal(t, []Result{
			{Type: CommandDo, Action: "book", Output: "booked Paris"},
			{Type: CommandSay, Output: "All set."},
		}, results)
		assert.Equal(t, []string{"All set."}, said)
	})

	t.Run("unknown action", func(t *testing.T) {
		plan := &Plan{Commands: []Command{SayCommand{Response: "hi"}, DoCommand{Action: "fly"}}}
		results, err := r.Execute(ctx, mem, plan)
		assert.ErrorIs(t, err, ErrUnknownAction)
		assert.Len(t, results, 1)
	})

	t.Run("handler error", func(t *testing.T) {
		boom := errors.New("boom")
		r2 := NewRegistry()
		require.NoError(t, r2.Register("fail", func(context.Context, memory.Memory, map[string]any) (string, error) {
			return "", boom
		}))
		_, err := r2.Execute(ctx, mem, &Plan{Commands: []Command{DoCommand{Action: "fail"}}})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("stop plan", func(t *testing.T) {
		said = nil
		r2 := NewRegistry()
		r2.OnSay(func(_ context.Context, _ memory.Memory, text string) error {
			said = append(said, text)
			return nil
		})
		require.NoError(t, r2.Register("stop", func(context.Context, memory.Memory, map[string]any) (string, error) {
			return "stopped", ErrStopPlan
		}))

		plan := &Plan{Commands: []Command{DoCommand{Action: "stop"}, SayCommand{Response: "never"}}}
		results, err := r2.Execute(ctx, mem, plan)
		require.NoError(t, err)
		assert.Equal(t, []Result{{Type: CommandDo, Action: "stop", Output: "stopped"}}, results)
		assert.Empty(t, said)
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := r.Execute(cctx, mem, &Plan{Commands: []Command{DoCommand{Action: "book"}}})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("handlers see memory", func(t *testing.T) {
		r2 := NewRegistry()
		require.NoError(t, r2.Register("remember", func(_ context.Context, m memory.Memory, entities map[string]any) (string, error) {
			return "", m.Set("conversation.city", entities["city"])
		}))
		state := memory.NewState()
		_, err := r2.Execute(ctx, state, ParseResponse("DO remember city=Lima"))
		require.NoError(t, err)
		v, ok := state.Get("conversation.city")
		require.True(t, ok)
		assert.Equal(t, "Lima", v)
	})
}

type bookingArgs struct {
	To     string `json:"to" description:"Destination city"`
	Nights int    `json:"nights,omitempty"`
}

func TestRegisterTyped(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	action, err := RegisterTyped(r, "book", "Books a hotel", func(_ context.Context, _ memory.Memory, args bookingArgs) (string, error) {
		return fmt.Sprintf("%s for %d", args.To, args.Nights), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "book", action.Name)
	require.NotNil(t, action.Parameters)
	assert.Equal(t, []string{"to"}, action.Parameters.Required)
	assert.Equal(t, "Destination city", action.Parameters.Properties["to"].Description)

	t.Run("handler gets decoded arguments", func(t *testing.T) {
		plan := &Plan{Commands: []Command{DoCommand{Action: "book", Entities: map[string]any{"to": "Oslo", "nights": 2.0}}}}
		results, err := r.Execute(ctx, memory.NewState(), plan)
		require.NoError(t, err)
		assert.Equal(t, "Oslo for 2", results[0].Output)
	})

	t.Run("undecodable arguments", func(t *testing.T) {
		plan := &Plan{Commands: []Command{DoCommand{Action: "book", Entities: map[string]any{"to": 5.0}}}}
		_, err := r.Execute(ctx, memory.NewState(), plan)
		assert.ErrorContains(t, err, "decode arguments")
	})

	t.Run("action validator checks the derived schema", func(t *testing.T) {
		v := validation.NewActionValidator([]prompt.Action{action})
		call := func(args string) *llm.Response {
			return &llm.Response{Status: llm.StatusSuccess, Message: &llm.Message{
				Role:         llm.RoleAssistant,
				FunctionCall: &llm.FunctionCall{Name: "book", Arguments: args},
			}}
		}

		result, err := v.ValidateResponse(ctx, memory.NewState(), tokenizer.NewWord(), call(`{"nights": 3}`), 1)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Feedback, `required property "to" is missing`)

		result, err = v.ValidateResponse(ctx, memory.NewState(), tokenizer.NewWord(), call(`{"to": "Rome"}`), 1)
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Equal(t, validation.ActionCall{Name: "book", Parameters: map[string]any{"to": "Rome"}}, result.Value)
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := RegisterTyped(r, "book", "", func(context.Context, memory.Memory, bookingArgs) (string, error) {
			return "", nil
		})
		assert.ErrorIs(t, err, ErrDuplicateAction)
	})
}
