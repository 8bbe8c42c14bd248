package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/promptkit/llm"
)

func TestAppendHistory_NewestFirst(t *testing.T) {
	state := NewState()
	path := "conversation.history"

	in := llm.NewMessage(llm.RoleUser, "hi")
	out := llm.NewMessage(llm.RoleAssistant, "hello")
	require.NoError(t, AppendHistory(state, path, 10, in, out))

	assert.Equal(t, []llm.Message{out, in}, History(state, path))

	in2 := llm.NewMessage(llm.RoleUser, "again")
	require.NoError(t, AppendHistory(state, path, 10, in2))
	assert.Equal(t, []llm.Message{in2, out, in}, History(state, path))
}

func TestAppendHistory_EvictsOldest(t *testing.T) {
	state := NewState()
	path := "conversation.history"

	for _, text := range []string{"1", "2", "3", "4"} {
		require.NoError(t, AppendHistory(state, path, 3, llm.NewMessage(llm.RoleUser, text)))
	}

	got := History(state, path)
	require.Len(t, got, 3)
	assert.Equal(t, "4", got[0].Content)
	assert.Equal(t, "2", got[2].Content)
}

func TestAppendHistory_UnboundedWhenMaxZero(t *testing.T) {
	state := NewState()
	for i := 0; i < 20; i++ {
		require.NoError(t, AppendHistory(state, "h", 0, llm.NewMessage(llm.RoleUser, "x")))
	}
	assert.Len(t, History(state, "h"), 20)
}

func TestAppendHistory_DoesNotAliasPrevious(t *testing.T) {
	state := NewState()
	first := llm.NewMessage(llm.RoleUser, "first")
	require.NoError(t, AppendHistory(state, "h", 5, first))
	before := History(state, "h")

	require.NoError(t, AppendHistory(state, "h", 5, llm.NewMessage(llm.RoleUser, "second")))

	assert.Equal(t, []llm.Message{first}, before)
}

func TestHistory_Missing(t *testing.T) {
	assert.Nil(t, History(NewState(), "conversation.history"))
}
