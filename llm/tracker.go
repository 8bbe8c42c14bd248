package llm

import (
	"sort"
	"sync"
)

// TokenTracker aggregates token usage per prompt template.
type TokenTracker interface {
	// Add records usage reported for one completion of the named template.
	Add(template string, usage TokenUsage)

	// Total returns the aggregate token usage across all templates.
	Total() TokenUsage

	// ByTemplate returns the usage recorded for a single template.
	ByTemplate(template string) TokenUsage

	// Reset clears all tracked token usage.
	Reset()

	// Templates returns the sorted names of all templates with recorded usage.
	Templates() []string
}

// DefaultTokenTracker is a thread-safe implementation of TokenTracker.
type DefaultTokenTracker struct {
	mu        sync.RWMutex
	templates map[string]TokenUsage
	total     TokenUsage
}

// NewTokenTracker creates a new DefaultTokenTracker.
func NewTokenTracker() *DefaultTokenTracker {
	return &DefaultTokenTracker{
		templates: make(map[string]TokenUsage),
	}
}

// Add records usage for a template. Zero usage is ignored so that models
// that do not report usage leave no entry behind.
func (t *DefaultTokenTracker) Add(template string, usage TokenUsage) {
	if usage.IsZero() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.templates[template] = t.templates[template].Add(usage)
	t.total = t.total.Add(usage)
}

// Total returns the aggregate token usage across all templates.
func (t *DefaultTokenTracker) Total() TokenUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// ByTemplate returns the usage for a template, or zero usage if none was recorded.
func (t *DefaultTokenTracker) ByTemplate(template string) TokenUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.templates[template]
}

// Reset clears all tracked token usage.
func (t *DefaultTokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.templates = make(map[string]TokenUsage)
	t.total = TokenUsage{}
}

// Templates returns the sorted names of all tracked templates.
func (t *DefaultTokenTracker) Templates() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.templates))
	for name := range t.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot is a read-only copy of the tracker state.
type Snapshot struct {
	Templates map[string]TokenUsage
	Total     TokenUsage
}

// Snapshot returns a copy of the current token usage state.
func (t *DefaultTokenTracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	templates := make(map[string]TokenUsage, len(t.templates))
	for name, usage := range t.templates {
		templates[name] = usage
	}

	return Snapshot{
		Templates: templates,
		Total:     t.total,
	}
}
