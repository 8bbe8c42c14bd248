package prompt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

var (
	// ErrDuplicateFunction is returned when a function name is registered twice.
	ErrDuplicateFunction = errors.New("prompt: function already registered")

	// ErrFunctionNotFound is returned when a template calls an unknown function.
	ErrFunctionNotFound = errors.New("prompt: function not found")
)

// Function is a named helper callable from templates as {{name arg1 arg2}}.
// The returned value is inserted into the template: strings verbatim,
// anything else as JSON.
type Function func(ctx context.Context, mem memory.Memory, fns *Functions, tok tokenizer.Tokenizer, args []string) (any, error)

// Functions is a registry of template functions, safe for concurrent use.
type Functions struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewFunctions returns an empty registry.
func NewFunctions() *Functions {
	return &Functions{funcs: make(map[string]Function)}
}

// AddFunction registers fn under name.
func (f *Functions) AddFunction(name string, fn Function) error {
	if name == "" || fn == nil {
		return fmt.Errorf("prompt: function name and implementation are required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.funcs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, name)
	}
	f.funcs[name] = fn
	return nil
}

// HasFunction reports whether name is registered.
func (f *Functions) HasFunction(name string) bool {
	if f == nil {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.funcs[name]
	return ok
}

// GetFunction returns the function registered under name.
func (f *Functions) GetFunction(name string) (Function, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	fn, ok := f.funcs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	return fn, nil
}

// InvokeFunction calls the named function.
func (f *Functions) InvokeFunction(ctx context.Context, name string, mem memory.Memory, tok tokenizer.Tokenizer, args []string) (any, error) {
	fn, err := f.GetFunction(name)
	if err != nil {
		return nil, err
	}
	out, err := fn(ctx, mem, f, tok, args)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", name, err)
	}
	return out, nil
}

// Names returns the sorted names of all registered functions.
func (f *Functions) Names() []string {
	if f == nil {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.funcs))
	for name := range f.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
