package config

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/zero-day-ai/promptkit"
	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/model"
	"github.com/zero-day-ai/promptkit/planning"
	"github.com/zero-day-ai/promptkit/prompt"
	"github.com/zero-day-ai/promptkit/schema"
	"github.com/zero-day-ai/promptkit/validation"
)

// NewModel builds the configured model. Each call creates its own HTTP
// client.
func (c *Config) NewModel(logger *slog.Logger) (model.Model, error) {
	mc := c.Model
	if mc == nil {
		mc = &ModelConfig{}
	}
	httpClient := &http.Client{Timeout: mc.GetTimeout()}

	switch mc.GetProvider() {
	case ProviderOpenAI:
		m, err := model.NewOpenAIModel(model.OpenAIConfig{
			APIKey:            mc.APIKey(),
			BaseURL:           mc.BaseURL,
			Model:             mc.Model,
			RequestsPerSecond: mc.RequestsPerSecond,
			Burst:             mc.Burst,
			HTTPClient:        httpClient,
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("%s (set %s): %w", ProviderOpenAI, mc.GetAPIKeyEnv(), err)
		}
		return m, nil

	case ProviderAnthropic:
		m, err := model.NewAnthropicModel(model.AnthropicConfig{
			APIKey:            mc.APIKey(),
			BaseURL:           mc.BaseURL,
			Model:             mc.Model,
			RequestsPerSecond: mc.RequestsPerSecond,
			Burst:             mc.Burst,
			HTTPClient:        httpClient,
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("%s (set %s): %w", ProviderAnthropic, mc.GetAPIKeyEnv(), err)
		}
		return m, nil

	case ProviderTest:
		responses := make([]*llm.Response, len(mc.Responses))
		for i, text := range mc.Responses {
			responses[i] = model.TextResponse(text)
		}
		return model.NewTestModel(responses...), nil
	}
	return nil, fmt.Errorf("unknown model provider %q", mc.GetProvider())
}

// NewManager creates a template manager over the prompt folder, using the
// same memory variables as the client.
func (c *Config) NewManager() *prompt.Manager {
	opts := []prompt.ManagerOption{prompt.WithPromptsFolder(c.PromptsFolder())}
	if c.Client != nil && c.Client.HistoryVariable != "" {
		opts = append(opts, prompt.WithHistoryVariable(c.Client.HistoryVariable))
	}
	if c.Client != nil && c.Client.InputVariable != "" {
		opts = append(opts, prompt.WithInputVariable(c.Client.InputVariable))
	}
	return prompt.NewManager(opts...)
}

// NewStore opens the configured state store. It returns nil when state is
// not persisted.
func (c *Config) NewStore() (memory.StateStore, error) {
	opts := memory.StoreOptions{TTL: c.State.GetTTL()}
	if c.State != nil {
		opts.Prefix = c.State.KeyPrefix
	}

	switch c.State.GetType() {
	case StateRedis:
		store, err := memory.NewRedisStore(memory.RedisOptions{URL: c.State.URL, StoreOptions: opts})
		if err != nil {
			return nil, err
		}
		return store, nil
	case StateSQLite:
		store, err := memory.NewSQLiteStore(c.StatePath(), opts)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, nil
}

// NewValidator builds the configured validator for tmpl.
func (c *Config) NewValidator(tmpl *prompt.Template) (validation.Validator, error) {
	switch c.Validator.GetType() {
	case ValidatorJSON:
		path := c.SchemaPath()
		if path == "" {
			return validation.NewJSONValidator(), nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		s, err := schema.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", path, err)
		}
		return validation.NewJSONValidator(validation.WithSchema(s)), nil

	case ValidatorAction:
		if tmpl == nil || len(tmpl.Actions) == 0 {
			return nil, fmt.Errorf("action validator needs a template with actions")
		}
		var opts []validation.ActionOption
		if c.Validator.OptionalCalls {
			opts = append(opts, validation.WithOptionalCalls())
		}
		return validation.NewActionValidator(tmpl.Actions, opts...), nil

	case ValidatorPlan:
		names := c.Validator.Actions
		if len(names) == 0 && tmpl != nil {
			for _, a := range tmpl.Actions {
				names = append(names, a.Name)
			}
		}
		return planning.NewValidator(names...), nil
	}
	return validation.DefaultValidator{}, nil
}

// ClientOptions converts the client section to promptkit options.
func (c *Config) ClientOptions() []promptkit.Option {
	cc := c.Client
	opts := []promptkit.Option{
		promptkit.WithMaxHistoryMessages(cc.GetMaxHistoryMessages(promptkit.DefaultMaxHistoryMessages)),
		promptkit.WithMaxRepairAttempts(cc.GetMaxRepairAttempts(promptkit.DefaultMaxRepairAttempts)),
	}
	if cc == nil {
		return opts
	}
	if cc.HistoryVariable != "" {
		opts = append(opts, promptkit.WithHistoryVariable(cc.HistoryVariable))
	}
	if cc.InputVariable != "" {
		opts = append(opts, promptkit.WithInputVariable(cc.InputVariable))
	}
	if cc.LogRepairs {
		opts = append(opts, promptkit.WithLogRepairs(true))
	}
	return opts
}
