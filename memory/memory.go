// Package memory provides the scoped key/value state that prompts render
// from and the orchestrator writes conversation history to.
//
// Values are addressed by "scope.name" paths. A bare name resolves to the
// temp scope, so "input" and "temp.input" are the same variable:
//
//	state := memory.NewState()
//	_ = state.Set("conversation.history", []llm.Message{})
//	_ = state.Set("input", "hello")
//	v, ok := state.Get("temp.input")
//
// A Fork layers private writes over a base Memory. The repair loop renders
// against a fork so that its back-and-forth with the model never reaches the
// real conversation:
//
//	fork := memory.NewFork(state)
//	_ = fork.Set("conversation.history-repair", msgs) // state is untouched
//
// StateStore implementations persist the durable scopes of a State between
// turns. RedisStore and SQLiteStore are provided.
package memory

import (
	"errors"
	"fmt"
	"strings"
)

// Well-known scopes.
const (
	ScopeTemp         = "temp"
	ScopeConversation = "conversation"
	ScopeUser         = "user"
)

// ErrInvalidPath is returned for empty paths and paths with more than one dot.
var ErrInvalidPath = errors.New("memory: invalid path")

// Memory is a scoped key/value store.
type Memory interface {
	// Get returns the value at path and whether it was present.
	Get(path string) (any, bool)

	// Has reports whether path holds a value.
	Has(path string) bool

	// Set stores value at path.
	Set(path string, value any) error

	// Delete removes the value at path. Deleting a missing value is not an error.
	Delete(path string) error
}

// ParsePath splits a memory path into scope and name.
func ParsePath(path string) (scope, name string, err error) {
	parts := strings.Split(path, ".")
	switch len(parts) {
	case 1:
		scope, name = ScopeTemp, parts[0]
	case 2:
		scope, name = parts[0], parts[1]
	default:
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if scope == "" || name == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return scope, name, nil
}

// JoinPath builds a path from scope and name.
func JoinPath(scope, name string) string {
	return scope + "." + name
}
