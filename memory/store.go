package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Key identifies the durable state of one turn.
type Key struct {
	ConversationID string
	UserID         string
}

// StateStore loads and saves the durable scopes of a State around a turn.
// Only the conversation and user scopes are persisted; temp and any ad-hoc
// scopes live for a single turn.
type StateStore interface {
	// Load returns a State holding whatever was saved for key. Missing
	// entries are not an error; the returned State simply lacks them.
	Load(ctx context.Context, key Key) (*State, error)

	// Save writes the durable scopes of state under key.
	Save(ctx context.Context, key Key, state *State) error

	// Delete removes everything saved under key.
	Delete(ctx context.Context, key Key) error

	// Close releases the underlying connection.
	Close() error
}

// StoreOptions configures key naming and expiry shared by the stores.
type StoreOptions struct {
	// Prefix is prepended to every storage key. Default: "promptkit".
	Prefix string

	// TTL expires saved state. Zero keeps it forever.
	TTL time.Duration
}

func (o StoreOptions) withDefaults() StoreOptions {
	if o.Prefix == "" {
		o.Prefix = "promptkit"
	}
	return o
}

// scopeEntry is one persisted scope and its storage key.
type scopeEntry struct {
	scope string
	key   string
}

func (o StoreOptions) entries(key Key) []scopeEntry {
	var out []scopeEntry
	if key.ConversationID != "" {
		out = append(out, scopeEntry{ScopeConversation, fmt.Sprintf("%s:conversation:%s", o.Prefix, key.ConversationID)})
	}
	if key.UserID != "" {
		out = append(out, scopeEntry{ScopeUser, fmt.Sprintf("%s:user:%s", o.Prefix, key.UserID)})
	}
	return out
}

func encodeScope(vars map[string]any) ([]byte, error) {
	data, err := json.Marshal(vars)
	if err != nil {
		return nil, fmt.Errorf("encode scope: %w", err)
	}
	return data, nil
}

func decodeScope(data []byte) (map[string]any, error) {
	var vars map[string]any
	if err := json.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("decode scope: %w", err)
	}
	return vars, nil
}
