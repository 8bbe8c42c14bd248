package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/zero-day-ai/promptkit/llm"
)

// File names inside a prompt folder.
const (
	PromptFile  = "skprompt.txt"
	ConfigFile  = "config.json"
	ActionsFile = "actions.json"
)

var (
	// ErrTemplateNotFound is returned when no template is registered or stored under a name.
	ErrTemplateNotFound = errors.New("prompt: template not found")

	// ErrDuplicateTemplate is returned when a template name is registered twice.
	ErrDuplicateTemplate = errors.New("prompt: template already registered")

	// ErrDuplicateDataSource is returned when a data source name is registered twice.
	ErrDuplicateDataSource = errors.New("prompt: data source already registered")
)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPromptsFolder sets the folder templates are loaded from.
func WithPromptsFolder(folder string) ManagerOption {
	return func(m *Manager) {
		m.folder = folder
	}
}

// WithHistoryVariable sets the history path used by include_history.
func WithHistoryVariable(path string) ManagerOption {
	return func(m *Manager) {
		m.historyVariable = path
	}
}

// WithInputVariable sets the input path used by include_input.
func WithInputVariable(path string) ManagerOption {
	return func(m *Manager) {
		m.inputVariable = path
	}
}

// Manager loads templates from a folder on first use and caches them.
// Templates can also be registered in memory. It is safe for concurrent use.
//
// A stored template lives in <folder>/<name>/ with a required skprompt.txt
// and config.json and an optional actions.json.
type Manager struct {
	folder          string
	historyVariable string
	inputVariable   string

	mu          sync.RWMutex
	templates   map[string]*Template
	dataSources map[string]DataSource
}

// NewManager creates a manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		historyVariable: "conversation.history",
		inputVariable:   "temp.input",
		templates:       make(map[string]*Template),
		dataSources:     make(map[string]DataSource),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddTemplate registers a template built in code.
func (m *Manager) AddTemplate(t *Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.templates[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTemplate, t.Name)
	}
	m.templates[t.Name] = t
	return nil
}

// AddDataSource registers a data source that template configs can reference.
func (m *Manager) AddDataSource(ds DataSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.dataSources[ds.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDataSource, ds.Name())
	}
	m.dataSources[ds.Name()] = ds
	return nil
}

// HasTemplate reports whether name is registered or present in the folder.
func (m *Manager) HasTemplate(name string) bool {
	m.mu.RLock()
	_, ok := m.templates[name]
	m.mu.RUnlock()
	if ok {
		return true
	}
	if m.folder == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(m.folder, name, PromptFile))
	return err == nil
}

// GetTemplate returns the named template, loading it from the folder the
// first time it is requested. Load errors are returned every time; a broken
// template is not cached.
func (m *Manager) GetTemplate(name string) (*Template, error) {
	m.mu.RLock()
	t, ok := m.templates[name]
	m.mu.RUnlock()
	if ok {
		return t, nil
	}

	if m.folder == "" {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	t, err := m.load(name)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.templates[name]; ok {
		return existing, nil
	}
	m.templates[name] = t
	return t, nil
}

// Names returns the sorted names of all cached or registered templates.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.templates))
	for name := range m.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) load(name string) (*Template, error) {
	dir := filepath.Join(m.folder, name)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}

	text, err := os.ReadFile(filepath.Join(dir, PromptFile))
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", name, err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", name, err)
	}
	cfg, err := ParseTemplateConfig(data)
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", name, err)
	}

	var actions []Action
	data, err = os.ReadFile(filepath.Join(dir, ActionsFile))
	switch {
	case err == nil:
		if actions, err = ParseActions(data); err != nil {
			return nil, fmt.Errorf("load template %s: %w", name, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("load template %s: %w", name, err)
	}

	sections, err := m.buildSections(string(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", name, err)
	}

	return &Template{
		Name:    name,
		Prompt:  NewPrompt(sections),
		Config:  cfg,
		Actions: actions,
	}, nil
}

// buildSections lays out a stored prompt: the template text as a system
// message, then any configured data sources, the conversation history and
// the user's input.
func (m *Manager) buildSections(text string, cfg TemplateConfig) ([]Section, error) {
	body, err := NewTemplateSection(text, llm.RoleSystem)
	if err != nil {
		return nil, err
	}
	sections := []Section{body}

	if len(cfg.Completion.DataSources) > 0 {
		names := make([]string, 0, len(cfg.Completion.DataSources))
		for name := range cfg.Completion.DataSources {
			names = append(names, name)
		}
		sort.Strings(names)

		m.mu.RLock()
		defer m.mu.RUnlock()
		for _, name := range names {
			ds, ok := m.dataSources[name]
			if !ok {
				return nil, fmt.Errorf("data source %s is not registered", name)
			}
			sections = append(sections, NewDataSourceSection(ds, WithTokens(cfg.Completion.DataSources[name])))
		}
	}

	if cfg.Completion.IncludeHistory {
		sections = append(sections, NewConversationHistorySection(m.historyVariable))
	}
	if cfg.Completion.IncludeInput {
		input, err := NewTemplateSection("{{$"+m.inputVariable+"}}", llm.RoleUser)
		if err != nil {
			return nil, err
		}
		sections = append(sections, input)
	}
	return sections, nil
}
