// Package config loads promptkit.yaml files. The file selects the model
// provider, the prompt folder, client limits, the response validator and
// where conversation state is persisted between runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up when Load is given a directory.
const FileName = "promptkit.yaml"

// Model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderTest      = "test"
)

// Validator types.
const (
	ValidatorDefault = "default"
	ValidatorJSON    = "json"
	ValidatorAction  = "action"
	ValidatorPlan    = "plan"
)

// State store types.
const (
	StateNone   = "none"
	StateRedis  = "redis"
	StateSQLite = "sqlite"
)

// Config represents a promptkit.yaml configuration file.
// Every section is optional; the getters on each section return defaults
// for missing values and are safe to call on nil.
type Config struct {
	Model     *ModelConfig     `yaml:"model,omitempty"`
	Prompts   *PromptsConfig   `yaml:"prompts,omitempty"`
	Client    *ClientConfig    `yaml:"client,omitempty"`
	Validator *ValidatorConfig `yaml:"validator,omitempty"`
	State     *StateConfig     `yaml:"state,omitempty"`

	// dir is the directory relative paths are resolved against.
	dir string
}

// ModelConfig selects and configures the completion model.
type ModelConfig struct {
	// Provider is "openai", "anthropic" or "test".
	// Default: openai
	Provider string `yaml:"provider,omitempty"`

	// Model is the vendor model id. Templates may override it.
	Model string `yaml:"model,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	// Default: OPENAI_API_KEY or ANTHROPIC_API_KEY
	APIKeyEnv string `yaml:"api_key_env,omitempty"`

	BaseURL string `yaml:"base_url,omitempty"`

	// RequestsPerSecond limits outgoing requests. Zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
	Burst             int     `yaml:"burst,omitempty"`

	// Timeout bounds a single HTTP request.
	// Format: Go duration string (e.g., "30s", "2m")
	// Default: 60s
	Timeout string `yaml:"timeout,omitempty"`

	// Responses scripts the test provider, one reply per call.
	Responses []string `yaml:"responses,omitempty"`
}

// PromptsConfig locates prompt template folders.
type PromptsConfig struct {
	// Folder holds one sub-folder per template.
	// Default: prompts
	Folder string `yaml:"folder,omitempty"`
}

// ClientConfig mirrors the promptkit.Client options.
type ClientConfig struct {
	HistoryVariable string `yaml:"history_variable,omitempty"`
	InputVariable   string `yaml:"input_variable,omitempty"`

	// Pointers tell an explicit zero apart from a missing value.
	MaxHistoryMessages *int `yaml:"max_history_messages,omitempty"`
	MaxRepairAttempts  *int `yaml:"max_repair_attempts,omitempty"`

	LogRepairs bool `yaml:"log_repairs,omitempty"`
}

// ValidatorConfig selects the response validator.
type ValidatorConfig struct {
	// Type is "default", "json", "action" or "plan".
	// Default: default
	Type string `yaml:"type,omitempty"`

	// Schema is a JSON schema file for the json validator.
	Schema string `yaml:"schema,omitempty"`

	// OptionalCalls lets the action validator accept answers without a call.
	OptionalCalls bool `yaml:"optional_calls,omitempty"`

	// Actions restricts the plan validator to these action names.
	Actions []string `yaml:"actions,omitempty"`
}

// StateConfig selects where conversation state is persisted.
type StateConfig struct {
	// Type is "none", "redis" or "sqlite".
	// Default: none
	Type string `yaml:"type,omitempty"`

	// URL is the Redis connection string.
	URL string `yaml:"url,omitempty"`

	// Path is the SQLite database file.
	// Default: promptkit.db
	Path string `yaml:"path,omitempty"`

	KeyPrefix string `yaml:"key_prefix,omitempty"`

	// TTL expires saved state.
	// Format: Go duration string (e.g., "24h")
	// Default: no expiry
	TTL string `yaml:"ttl,omitempty"`
}

// GetProvider returns the provider or the default value.
func (m *ModelConfig) GetProvider() string {
	if m == nil || m.Provider == "" {
		return ProviderOpenAI
	}
	return m.Provider
}

// GetAPIKeyEnv returns the API key variable or the provider's default.
func (m *ModelConfig) GetAPIKeyEnv() string {
	if m != nil && m.APIKeyEnv != "" {
		return m.APIKeyEnv
	}
	if m.GetProvider() == ProviderAnthropic {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// APIKey reads the API key from the environment.
func (m *ModelConfig) APIKey() string {
	return os.Getenv(m.GetAPIKeyEnv())
}

// GetTimeout parses the timeout string and returns a duration.
// Returns the default value if not set or invalid.
func (m *ModelConfig) GetTimeout() time.Duration {
	if m == nil || m.Timeout == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(m.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// GetMaxHistoryMessages returns the configured value or def.
func (c *ClientConfig) GetMaxHistoryMessages(def int) int {
	if c == nil || c.MaxHistoryMessages == nil {
		return def
	}
	return *c.MaxHistoryMessages
}

// GetMaxRepairAttempts returns the configured value or def.
func (c *ClientConfig) GetMaxRepairAttempts(def int) int {
	if c == nil || c.MaxRepairAttempts == nil {
		return def
	}
	return *c.MaxRepairAttempts
}

// GetType returns the validator type or the default value.
func (v *ValidatorConfig) GetType() string {
	if v == nil || v.Type == "" {
		return ValidatorDefault
	}
	return v.Type
}

// GetType returns the store type or the default value.
func (s *StateConfig) GetType() string {
	if s == nil || s.Type == "" {
		return StateNone
	}
	return s.Type
}

// GetTTL parses the TTL string. Returns zero if not set or invalid.
func (s *StateConfig) GetTTL() time.Duration {
	if s == nil || s.TTL == "" {
		return 0
	}
	d, err := time.ParseDuration(s.TTL)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// PromptsFolder returns the prompt folder, resolved against the directory
// of the loaded file.
func (c *Config) PromptsFolder() string {
	folder := "prompts"
	if c.Prompts != nil && c.Prompts.Folder != "" {
		folder = c.Prompts.Folder
	}
	return c.resolve(folder)
}

// StatePath returns the SQLite path, resolved like PromptsFolder.
func (c *Config) StatePath() string {
	path := "promptkit.db"
	if c.State != nil && c.State.Path != "" {
		path = c.State.Path
	}
	if path == ":memory:" {
		return path
	}
	return c.resolve(path)
}

// SchemaPath returns the validator schema file, or "" when none is set.
func (c *Config) SchemaPath() string {
	if c.Validator == nil || c.Validator.Schema == "" {
		return ""
	}
	return c.resolve(c.Validator.Schema)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	return filepath.Join(c.dir, path)
}

// Validate checks the enumerated fields.
func (c *Config) Validate() error {
	switch p := c.Model.GetProvider(); p {
	case ProviderOpenAI, ProviderAnthropic, ProviderTest:
	default:
		return fmt.Errorf("unknown model provider %q", p)
	}
	switch v := c.Validator.GetType(); v {
	case ValidatorDefault, ValidatorJSON, ValidatorAction, ValidatorPlan:
	default:
		return fmt.Errorf("unknown validator type %q", v)
	}
	switch s := c.State.GetType(); s {
	case StateNone, StateRedis, StateSQLite:
	default:
		return fmt.Errorf("unknown state type %q", s)
	}
	if c.Client.GetMaxHistoryMessages(0) < 0 || c.Client.GetMaxRepairAttempts(0) < 0 {
		return fmt.Errorf("client limits must not be negative")
	}
	return nil
}

// Load reads and parses a promptkit.yaml file from the given path.
// If the path is a directory, it looks for promptkit.yaml or promptkit.yml in that directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		configPath = ""
		for _, name := range []string{FileName, "promptkit.yml"} {
			candidate := filepath.Join(path, name)
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
				break
			}
		}
		if configPath == "" {
			return nil, fmt.Errorf("no %s or promptkit.yml found in %s", FileName, path)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	config.dir = filepath.Dir(configPath)
	return &config, nil
}
