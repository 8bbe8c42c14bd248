package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/promptkit"
	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/model"
	"github.com/zero-day-ai/promptkit/planning"
	"github.com/zero-day-ai/promptkit/prompt"
	"github.com/zero-day-ai/promptkit/tokenizer"
	"github.com/zero-day-ai/promptkit/validation"
)

const fullConfig = `
model:
  provider: anthropic
  model: claude-test
  api_key_env: TEST_ANTHROPIC_KEY
  base_url: http://localhost:9999
  requests_per_second: 2
  burst: 4
  timeout: 15s
prompts:
  folder: templates
client:
  history_variable: conversation.turns
  input_variable: temp.question
  max_history_messages: 0
  max_repair_attempts: 1
  log_repairs: true
validator:
  type: json
  schema: booking.schema.json
state:
  type: sqlite
  path: data/state.db
  key_prefix: bot
  ttl: 24h
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), fullConfig)

	t.Run("directory", func(t *testing.T) {
		cfg, err := Load(dir)
		require.NoError(t, err)

		assert.Equal(t, ProviderAnthropic, cfg.Model.GetProvider())
		assert.Equal(t, "claude-test", cfg.Model.Model)
		assert.Equal(t, "TEST_ANTHROPIC_KEY", cfg.Model.GetAPIKeyEnv())
		assert.Equal(t, 15*time.Second, cfg.Model.GetTimeout())
		assert.Equal(t, filepath.Join(dir, "templates"), cfg.PromptsFolder())
		assert.Equal(t, 0, cfg.Client.GetMaxHistoryMessages(10))
		assert.Equal(t, 1, cfg.Client.GetMaxRepairAttempts(3))
		assert.Equal(t, ValidatorJSON, cfg.Validator.GetType())
		assert.Equal(t, filepath.Join(dir, "booking.schema.json"), cfg.SchemaPath())
		assert.Equal(t, StateSQLite, cfg.State.GetType())
		assert.Equal(t, filepath.Join(dir, "data", "state.db"), cfg.StatePath())
		assert.Equal(t, 24*time.Hour, cfg.State.GetTTL())
	})

	t.Run("file", func(t *testing.T) {
		cfg, err := Load(filepath.Join(dir, FileName))
		require.NoError(t, err)
		assert.Equal(t, "claude-test", cfg.Model.Model)
	})

	t.Run("yml extension", func(t *testing.T) {
		other := t.TempDir()
		writeFile(t, filepath.Join(other, "promptkit.yml"), "model:\n  provider: test\n")
		cfg, err := Load(other)
		require.NoError(t, err)
		assert.Equal(t, ProviderTest, cfg.Model.GetProvider())
	})

	t.Run("errors", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "missing"))
		assert.ErrorIs(t, err, os.ErrNotExist)

		_, err = Load(t.TempDir())
		assert.Error(t, err)

		bad := t.TempDir()
		writeFile(t, filepath.Join(bad, FileName), "model: [unclosed")
		_, err = Load(bad)
		assert.Error(t, err)

		for name, doc := range map[string]string{
			"provider":  "model:\n  provider: llama\n",
			"validator": "validator:\n  type: regex\n",
			"state":     "state:\n  type: etcd\n",
			"limits":    "client:\n  max_repair_attempts: -1\n",
		} {
			d := t.TempDir()
			writeFile(t, filepath.Join(d, FileName), doc)
			_, err := Load(d)
			assert.Error(t, err, name)
		}
	})
}

func TestDefaults(t *testing.T) {
	var cfg Config

	assert.Equal(t, ProviderOpenAI, cfg.Model.GetProvider())
	assert.Equal(t, "OPENAI_API_KEY", cfg.Model.GetAPIKeyEnv())
	assert.Equal(t, 60*time.Second, cfg.Model.GetTimeout())
	assert.Equal(t, "prompts", cfg.PromptsFolder())
	assert.Equal(t, 10, cfg.Client.GetMaxHistoryMessages(10))
	assert.Equal(t, 3, cfg.Client.GetMaxRepairAttempts(3))
	assert.Equal(t, ValidatorDefault, cfg.Validator.GetType())
	assert.Empty(t, cfg.SchemaPath())
	assert.Equal(t, StateNone, cfg.State.GetType())
	assert.Equal(t, "promptkit.db", cfg.StatePath())
	assert.Zero(t, cfg.State.GetTTL())
	assert.NoError(t, cfg.Validate())

	anthropic := &ModelConfig{Provider: ProviderAnthropic, Timeout: "soon"}
	assert.Equal(t, "ANTHROPIC_API_KEY", anthropic.GetAPIKeyEnv())
	assert.Equal(t, 60*time.Second, anthropic.GetTimeout())

	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	assert.Equal(t, "sk-test", anthropic.APIKey())

	memoryDB := Config{State: &StateConfig{Path: ":memory:"}, dir: "/srv"}
	assert.Equal(t, ":memory:", memoryDB.StatePath())
}

func TestNewModel(t *testing.T) {
	t.Run("test provider", func(t *testing.T) {
		cfg := Config{Model: &ModelConfig{Provider: ProviderTest, Responses: []string{"one", "two"}}}
		m, err := cfg.NewModel(nil)
		require.NoError(t, err)
		require.IsType(t, &model.TestModel{}, m)

		tmpl := prompt.NewTemplate("t", prompt.NewPrompt([]prompt.Section{
			prompt.NewTextSection("hi", llm.RoleUser),
		}))
		for _, want := range []string{"one", "two", "two"} {
			resp, err := m.CompletePrompt(context.Background(), memory.NewState(), nil, tokenizer.NewWord(), tmpl)
			require.NoError(t, err)
			assert.Equal(t, want, resp.Content())
		}
	})

	t.Run("openai needs a key", func(t *testing.T) {
		t.Setenv("PROMPTKIT_TEST_EMPTY_KEY", "")
		cfg := Config{Model: &ModelConfig{APIKeyEnv: "PROMPTKIT_TEST_EMPTY_KEY"}}
		m, err := cfg.NewModel(nil)
		assert.Error(t, err)
		assert.Nil(t, m)
		assert.Contains(t, err.Error(), "PROMPTKIT_TEST_EMPTY_KEY")
	})

	t.Run("openai", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")
		m, err := (&Config{}).NewModel(nil)
		require.NoError(t, err)
		assert.IsType(t, &model.OpenAIModel{}, m)
	})

	t.Run("anthropic", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-test")
		cfg := Config{Model: &ModelConfig{Provider: ProviderAnthropic}}
		m, err := cfg.NewModel(nil)
		require.NoError(t, err)
		assert.IsType(t, &model.AnthropicModel{}, m)
	})
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()
	key := memory.Key{ConversationID: "c1"}

	t.Run("none", func(t *testing.T) {
		store, err := (&Config{}).NewStore()
		require.NoError(t, err)
		assert.Nil(t, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := Config{State: &StateConfig{Type: StateSQLite, Path: "state/db.sqlite"}, dir: t.TempDir()}
		store, err := cfg.NewStore()
		require.NoError(t, err)
		defer promptkit.CloseWithLog(store, nil, "sqlite store")

		state := memory.NewState()
		require.NoError(t, state.Set("conversation.topic", "flights"))
		require.NoError(t, store.Save(ctx, key, state))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		v, ok := loaded.Get("conversation.topic")
		require.True(t, ok)
		assert.Equal(t, "flights", v)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := Config{State: &StateConfig{Type: StateRedis, URL: "redis://" + mr.Addr(), KeyPrefix: "bot"}}
		store, err := cfg.NewStore()
		require.NoError(t, err)
		defer promptkit.CloseWithLog(store, nil, "redis store")

		state := memory.NewState()
		require.NoError(t, state.Set("conversation.topic", "hotels"))
		require.NoError(t, store.Save(ctx, key, state))
		assert.True(t, mr.Exists("bot:conversation:c1"))
	})

	t.Run("redis unreachable", func(t *testing.T) {
		cfg := Config{State: &StateConfig{Type: StateRedis, URL: "redis://127.0.0.1:1"}}
		_, err := cfg.NewStore()
		assert.Error(t, err)
	})
}

func TestNewValidator(t *testing.T) {
	tmpl := prompt.NewTemplate("t", prompt.NewPrompt(nil))
	tmpl.Actions = []prompt.Action{{Name: "book"}, {Name: "cancel"}}

	t.Run("default", func(t *testing.T) {
		v, err := (&Config{}).NewValidator(tmpl)
		require.NoError(t, err)
		assert.IsType(t, validation.DefaultValidator{}, v)
	})

	t.Run("json with schema", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "s.json"), `{
			// comments are fine
			"type": "object",
			"properties": {"city": {"type": "string"}},
			"required": ["city"],
		}`)
		cfg := Config{Validator: &ValidatorConfig{Type: ValidatorJSON, Schema: "s.json"}, dir: dir}
		v, err := cfg.NewValidator(tmpl)
		require.NoError(t, err)

		msg := llm.NewMessage(llm.RoleAssistant, `{"town": "Paris"}`)
		result, err := v.ValidateResponse(context.Background(), memory.NewState(), nil,
			&llm.Response{Status: llm.StatusSuccess, Message: &msg}, 0)
		require.NoError(t, err)
		assert.False(t, result.Valid)
	})

	t.Run("json missing schema file", func(t *testing.T) {
		cfg := Config{Validator: &ValidatorConfig{Type: ValidatorJSON, Schema: "nope.json"}, dir: t.TempDir()}
		_, err := cfg.NewValidator(tmpl)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("action", func(t *testing.T) {
		cfg := Config{Validator: &ValidatorConfig{Type: ValidatorAction, OptionalCalls: true}}
		v, err := cfg.NewValidator(tmpl)
		require.NoError(t, err)
		assert.IsType(t, &validation.ActionValidator{}, v)

		_, err = cfg.NewValidator(prompt.NewTemplate("bare", prompt.NewPrompt(nil)))
		assert.Error(t, err)
	})

	t.Run("plan uses template actions", func(t *testing.T) {
		cfg := Config{Validator: &ValidatorConfig{Type: ValidatorPlan}}
		v, err := cfg.NewValidator(tmpl)
		require.NoError(t, err)
		require.IsType(t, &planning.Validator{}, v)

		msg := llm.NewMessage(llm.RoleAssistant, "DO fly")
		result, err := v.ValidateResponse(context.Background(), memory.NewState(), nil,
			&llm.Response{Status: llm.StatusSuccess, Message: &msg}, 0)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Feedback, "book, cancel")
	})
}

func TestClientOptions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), fullConfig)
	writeFile(t, filepath.Join(dir, "templates", "chat", prompt.PromptFile), "You answer questions.")
	writeFile(t, filepath.Join(dir, "templates", "chat", prompt.ConfigFile), `{"schema": 1.1}`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	tmpl, err := cfg.NewManager().GetTemplate("chat")
	require.NoError(t, err)

	// The configured schema file is absent here; a plain JSON validator is
	// enough to spend the repair budget of one.
	m := model.NewTestModel(model.TextResponse("bad"), model.TextResponse(`{"ok": true}`))
	client, err := promptkit.New(m, tmpl, append(cfg.ClientOptions(),
		promptkit.WithValidator(validation.NewJSONValidator()))...)
	require.NoError(t, err)

	mem := memory.NewState()
	require.NoError(t, mem.Set("temp.question", "Are you there?"))

	resp := client.CompletePrompt(context.Background(), mem, nil)
	require.Equal(t, llm.StatusSuccess, resp.Status, "error: %v", resp.Error)
	assert.Equal(t, 2, m.CallCount())

	history := memory.History(mem, "conversation.turns")
	require.Len(t, history, 2)
	assert.Equal(t, "Are you there?", history[1].Content)
}
