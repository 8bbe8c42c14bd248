package memory

import (
	"sort"
	"sync"
)

// State is an in-process Memory holding any number of scopes.
// It is safe for concurrent use.
type State struct {
	mu     sync.RWMutex
	scopes map[string]map[string]any
}

// NewState returns an empty State.
func NewState() *State {
	return &State{scopes: make(map[string]map[string]any)}
}

// Get returns the value at path. Invalid paths are reported as absent.
func (s *State) Get(path string) (any, bool) {
	scope, name, err := ParsePath(path)
	if err != nil {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.scopes[scope][name]
	return v, ok
}

// Has reports whether path holds a value.
func (s *State) Has(path string) bool {
	_, ok := s.Get(path)
	return ok
}

// Set stores value at path.
func (s *State) Set(path string, value any) error {
	scope, name, err := ParsePath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	vars, ok := s.scopes[scope]
	if !ok {
		vars = make(map[string]any)
		s.scopes[scope] = vars
	}
	vars[name] = value
	return nil
}

// Delete removes the value at path.
func (s *State) Delete(path string) error {
	scope, name, err := ParsePath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.scopes[scope], name)
	return nil
}

// Scopes returns the sorted names of all non-empty scopes.
func (s *State) Scopes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.scopes))
	for name, vars := range s.scopes {
		if len(vars) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Scope returns a shallow copy of one scope's variables.
func (s *State) Scope(scope string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vars := make(map[string]any, len(s.scopes[scope]))
	for k, v := range s.scopes[scope] {
		vars[k] = v
	}
	return vars
}

// ReplaceScope swaps a whole scope for vars. A nil map clears the scope.
func (s *State) ReplaceScope(scope string, vars map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vars == nil {
		delete(s.scopes, scope)
		return
	}
	copied := make(map[string]any, len(vars))
	for k, v := range vars {
		copied[k] = v
	}
	s.scopes[scope] = copied
}

// ClearTemp drops the temp scope. Hosts call it at the end of each turn.
func (s *State) ClearTemp() {
	s.ReplaceScope(ScopeTemp, nil)
}
