package planning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/parser"
	"github.com/zero-day-ai/promptkit/prompt"
)

var (
	// ErrDuplicateAction is returned when an action is registered twice
	// without override.
	ErrDuplicateAction = errors.New("planning: action already registered")

	// ErrUnknownAction is returned when a plan names an unregistered action.
	ErrUnknownAction = errors.New("planning: unknown action")

	// ErrStopPlan may be returned by a handler to end the plan without
	// running the remaining commands. Execute does not report it as an error.
	ErrStopPlan = errors.New("planning: stop plan")
)

// Handler runs an action. The returned output is recorded in the result.
type Handler func(ctx context.Context, mem memory.Memory, entities map[string]any) (string, error)

// SayHandler delivers the text of a SAY command.
type SayHandler func(ctx context.Context, mem memory.Memory, text string) error

// Result records one executed command.
type Result struct {
	Type   string
	Action string
	Output string
}

// Registry maps action names to handlers. Register everything at startup;
// it is safe for concurrent use afterwards.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	say      SayHandler
}

// NewRegistry returns an empty registry. SAY commands are recorded in the
// results but not delivered anywhere until OnSay is called.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler. Registering a name twice is an error.
func (r *Registry) Register(name string, h Handler) error {
	return r.register(name, h, false)
}

// RegisterOverride adds a handler, replacing any existing one.
func (r *Registry) RegisterOverride(name string, h Handler) error {
	return r.register(name, h, true)
}

// RegisterTyped registers h under name with the command entities decoded
// into T. The returned action carries T's schema; list it on the template so
// the model sees the parameters and an ActionValidator checks them.
func RegisterTyped[T any](r *Registry, name, description string, h func(ctx context.Context, mem memory.Memory, args T) (string, error)) (prompt.Action, error) {
	if h == nil {
		return prompt.Action{}, fmt.Errorf("planning: action name and handler are required")
	}

	err := r.Register(name, func(ctx context.Context, mem memory.Memory, entities map[string]any) (string, error) {
		args, err := parser.Decode[T](entities)
		if err != nil {
			return "", fmt.Errorf("decode arguments: %w", err)
		}
		return h(ctx, mem, *args)
	})
	if err != nil {
		return prompt.Action{}, err
	}
	return prompt.ActionFor[T](name, description), nil
}

func (r *Registry) register(name string, h Handler, override bool) error {
	if name == "" || h == nil {
		return fmt.Errorf("planning: action name and handler are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists && !override {
		return fmt.Errorf("%w: %s", ErrDuplicateAction, name)
	}
	r.handlers[name] = h
	return nil
}

// OnSay sets the handler for SAY commands.
func (r *Registry) OnSay(h SayHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.say = h
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the plan's commands in order and returns what ran. It stops
// at the first failing command, or quietly when a handler returns
// ErrStopPlan.
func (r *Registry) Execute(ctx context.Context, mem memory.Memory, plan *Plan) ([]Result, error) {
	r.mu.RLock()
	say := r.say
	r.mu.RUnlock()

	var results []Result
	for _, cmd := range plan.Commands {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		switch c := cmd.(type) {
		case SayCommand:
			if say != nil {
				if err := say(ctx, mem, c.Response); err != nil {
					return results, fmt.Errorf("say: %w", err)
				}
			}
			results = append(results, Result{Type: CommandSay, Output: c.Response})

		case DoCommand:
			r.mu.RLock()
			h, ok := r.handlers[c.Action]
			r.mu.RUnlock()
			if !ok {
				return results, fmt.Errorf("%w: %s", ErrUnknownAction, c.Action)
			}

			out, err := h(ctx, mem, c.Entities)
			if errors.Is(err, ErrStopPlan) {
				results = append(results, Result{Type: CommandDo, Action: c.Action, Output: out})
				return results, nil
			}
			if err != nil {
				return results, fmt.Errorf("action %s: %w", c.Action, err)
			}
			results = append(results, Result{Type: CommandDo, Action: c.Action, Output: out})
		}
	}
	return results, nil
}
