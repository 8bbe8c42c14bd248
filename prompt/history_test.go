package prompt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

func bookingHistory(t *testing.T) *memory.State {
	t.Helper()
	state := memory.NewState()
	require.NoError(t, memory.AppendHistory(state, "conversation.history", 0,
		llm.NewMessage(llm.RoleUser, "Hello"),
		llm.NewMessage(llm.RoleAssistant, "Hi! How can I help you?"),
		llm.NewMessage(llm.RoleUser, "I'd like to book a flight"),
	))
	return state
}

func TestConversationHistorySection_Text(t *testing.T) {
	ctx := context.Background()
	tok := tokenizer.NewWord()
	state := bookingHistory(t)

	t.Run("chronological lines", func(t *testing.T) {
		s := NewConversationHistorySection("conversation.history")
		r, err := s.RenderAsText(ctx, state, nil, tok, 50)
		require.NoError(t, err)
		assert.Equal(t, "user: Hello\nassistant: Hi! How can I help you?\nuser: I'd like to book a flight", r.Output)
		assert.Equal(t, 25, r.Length)
		assert.False(t, r.TooLong)
	})

	t.Run("newest lines win", func(t *testing.T) {
		s := NewConversationHistorySection("conversation.history")
		r, err := s.RenderAsText(ctx, state, nil, tok, 12)
		require.NoError(t, err)
		assert.Equal(t, "user: I'd like to book a flight", r.Output)
		assert.Equal(t, 10, r.Length)
		assert.True(t, r.TooLong)
	})

	t.Run("optional section drops a line that does not fit", func(t *testing.T) {
		s := NewConversationHistorySection("conversation.history")
		r, err := s.RenderAsText(ctx, state, nil, tok, 3)
		require.NoError(t, err)
		assert.Empty(t, r.Output)
		assert.Zero(t, r.Length)
		assert.True(t, r.TooLong)
	})

	t.Run("required section keeps a truncated newest line", func(t *testing.T) {
		s := NewConversationHistorySection("conversation.history", WithHistorySection(WithRequired(true)))
		r, err := s.RenderAsText(ctx, state, nil, tok, 3)
		require.NoError(t, err)
		assert.Equal(t, "user: I", r.Output)
		assert.Equal(t, 3, r.Length)
		assert.True(t, r.TooLong)
	})

	t.Run("custom prefixes", func(t *testing.T) {
		s := NewConversationHistorySection("conversation.history",
			WithUserPrefix("Q: "),
			WithAssistantPrefix("A: "),
		)
		r, err := s.RenderAsText(ctx, state, nil, tok, 50)
		require.NoError(t, err)
		assert.Equal(t, "Q: Hello\nA: Hi! How can I help you?\nQ: I'd like to book a flight", r.Output)
	})

	t.Run("missing variable", func(t *testing.T) {
		s := NewConversationHistorySection("conversation.other")
		r, err := s.RenderAsText(ctx, state, nil, tok, 50)
		require.NoError(t, err)
		assert.Equal(t, Rendered[string]{}, r)
	})
}

func TestConversationHistorySection_Messages(t *testing.T) {
	ctx := context.Background()
	tok := tokenizer.NewWord()
	state := bookingHistory(t)
	s := NewConversationHistorySection("conversation.history")

	assert.False(t, s.Required())
	assert.Equal(t, AutoTokens, s.Tokens())
	assert.Equal(t, "conversation.history", s.Variable())

	r, err := s.RenderAsMessages(ctx, state, nil, tok, 50)
	require.NoError(t, err)
	require.Len(t, r.Output, 3)
	assert.Equal(t, "Hello", r.Output[0].Content)
	assert.Equal(t, llm.RoleAssistant, r.Output[1].Role)
	assert.Equal(t, "I'd like to book a flight", r.Output[2].Content)
	assert.Equal(t, 17, r.Length)
	assert.False(t, r.TooLong)

	r, err = s.RenderAsMessages(ctx, state, nil, tok, 9)
	require.NoError(t, err)
	require.Len(t, r.Output, 1)
	assert.Equal(t, "I'd like to book a flight", r.Output[0].Content)
	assert.Equal(t, 8, r.Length)
	assert.True(t, r.TooLong)
}

func TestConversationHistorySection_FunctionCalls(t *testing.T) {
	ctx := context.Background()
	tok := tokenizer.NewWord()
	state := memory.NewState()
	call := &llm.FunctionCall{Name: "lookup", Arguments: `{"id":1}`}
	require.NoError(t, memory.AppendHistory(state, "conversation.history", 0,
		llm.Message{Role: llm.RoleAssistant, FunctionCall: call},
	))

	s := NewConversationHistorySection("conversation.history")
	r, err := s.RenderAsText(ctx, state, nil, tok, 100)
	require.NoError(t, err)
	assert.Equal(t, "assistant: "+call.JSON(), r.Output)
}
