package prompt

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/schema"
)

// Augmentation types select how a template expects the model to act.
const (
	AugmentationNone  = "none"
	AugmentationTools = "tools"
	AugmentationPlan  = "sequence"
)

// CompletionConfig holds the model parameters of a template.
type CompletionConfig struct {
	Model            string   `json:"model,omitempty"`
	CompletionType   string   `json:"completion_type,omitempty"`
	Temperature      float64  `json:"temperature"`
	TopP             float64  `json:"top_p"`
	PresencePenalty  float64  `json:"presence_penalty"`
	FrequencyPenalty float64  `json:"frequency_penalty"`
	MaxTokens        int      `json:"max_tokens"`
	MaxInputTokens   int      `json:"max_input_tokens"`
	StopSequences    []string `json:"stop_sequences,omitempty"`
	IncludeHistory   bool     `json:"include_history"`
	IncludeInput     bool     `json:"include_input"`

	// ToolChoice is "auto", "none" or "required". Used with tools augmentation.
	ToolChoice        llm.ToolChoice `json:"tool_choice,omitempty"`
	ParallelToolCalls bool           `json:"parallel_tool_calls"`

	// DataSources maps a registered data source name to its token budget.
	DataSources map[string]int `json:"data_sources,omitempty"`
}

// AugmentationConfig selects the structured output mode of a template.
type AugmentationConfig struct {
	Type string `json:"augmentation_type"`
}

// TemplateConfig is the config.json document stored next to a prompt.
type TemplateConfig struct {
	Schema       float64            `json:"schema"`
	Description  string             `json:"description,omitempty"`
	Type         string             `json:"type"`
	Completion   CompletionConfig   `json:"completion"`
	Augmentation AugmentationConfig `json:"augmentation"`
}

// DefaultTemplateConfig returns the configuration applied when a config.json
// leaves fields out.
func DefaultTemplateConfig() TemplateConfig {
	return TemplateConfig{
		Schema: 1.1,
		Type:   "completion",
		Completion: CompletionConfig{
			CompletionType: "chat",
			MaxTokens:      150,
			MaxInputTokens: 2048,
			IncludeHistory: true,
			IncludeInput:   true,
			ToolChoice:     llm.ToolChoiceAuto,
		},
		Augmentation: AugmentationConfig{Type: AugmentationNone},
	}
}

// ParseTemplateConfig decodes a config.json document over the defaults.
// Comments and trailing commas are allowed.
func ParseTemplateConfig(data []byte) (TemplateConfig, error) {
	cfg := DefaultTemplateConfig()
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return TemplateConfig{}, fmt.Errorf("parse template config: %w", err)
	}
	if cfg.Completion.MaxInputTokens <= 0 {
		return TemplateConfig{}, fmt.Errorf("parse template config: max_input_tokens must be positive")
	}
	return cfg, nil
}

// Action describes a function the model may call.
type Action struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Parameters  *schema.JSON `json:"parameters,omitempty"`
}

// ActionFor describes an action whose parameters are the JSON form of T.
func ActionFor[T any](name, description string) Action {
	params := schema.For[T]()
	return Action{Name: name, Description: description, Parameters: &params}
}

// ToolDef converts the action to a vendor-neutral tool definition.
func (a Action) ToolDef() llm.ToolDef {
	def := llm.ToolDef{Name: a.Name, Description: a.Description}
	if a.Parameters != nil {
		def.Parameters = a.Parameters.Map()
	}
	return def
}

// ParseActions decodes an actions.json document.
func ParseActions(data []byte) ([]Action, error) {
	var actions []Action
	if err := json.Unmarshal(jsonc.ToJSON(data), &actions); err != nil {
		return nil, fmt.Errorf("parse actions: %w", err)
	}
	for i, a := range actions {
		if a.Name == "" {
			return nil, fmt.Errorf("parse actions: action %d has no name", i)
		}
	}
	return actions, nil
}

// Template pairs a prompt layout with its completion settings. Templates are
// not modified after creation; derive variants with the With methods.
type Template struct {
	Name    string
	Prompt  *Prompt
	Config  TemplateConfig
	Actions []Action
}

// NewTemplate creates a template with the default configuration.
func NewTemplate(name string, p *Prompt) *Template {
	return &Template{Name: name, Prompt: p, Config: DefaultTemplateConfig()}
}

// WithRepairHistory returns a copy whose prompt ends with the history stored
// at variable. The orchestrator uses it to show the model its own failed
// attempts and the feedback on them.
func (t *Template) WithRepairHistory(variable string) *Template {
	clone := *t
	clone.Prompt = t.Prompt.With(NewConversationHistorySection(variable))
	return &clone
}

// Tools returns the tool definitions for the template's actions.
func (t *Template) Tools() []llm.ToolDef {
	if len(t.Actions) == 0 {
		return nil
	}
	tools := make([]llm.ToolDef, len(t.Actions))
	for i, a := range t.Actions {
		tools[i] = a.ToolDef()
	}
	return tools
}
