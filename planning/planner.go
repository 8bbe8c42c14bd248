package planning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/prompt"
)

// Completer produces a validated model response for the current turn.
// *promptkit.Client satisfies it.
type Completer interface {
	CompletePrompt(ctx context.Context, mem memory.Memory, fns *prompt.Functions) *llm.Response
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithOneSayPerTurn keeps only the first SAY command of each plan.
func WithOneSayPerTurn(enabled bool) PlannerOption {
	return func(p *Planner) {
		p.oneSayPerTurn = enabled
	}
}

// WithLogger sets the planner's logger.
func WithLogger(logger *slog.Logger) PlannerOption {
	return func(p *Planner) {
		p.logger = logger
	}
}

// Planner asks a model for a plan and runs it.
type Planner struct {
	completer     Completer
	registry      *Registry
	oneSayPerTurn bool
	logger        *slog.Logger
}

// NewPlanner creates a planner. registry may be nil when only Plan is used.
func NewPlanner(completer Completer, registry *Registry, opts ...PlannerOption) *Planner {
	p := &Planner{
		completer: completer,
		registry:  registry,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan completes the prompt and returns the plan in the response.
func (p *Planner) Plan(ctx context.Context, mem memory.Memory, fns *prompt.Functions) (*Plan, error) {
	resp := p.completer.CompletePrompt(ctx, mem, fns)
	if !resp.Succeeded() {
		err := resp.Error
		if err == nil {
			err = errors.New("no message")
		}
		return nil, fmt.Errorf("planning: completion %s: %w", resp.Status, err)
	}

	plan := FromMessage(resp.Message)
	if p.oneSayPerTurn {
		plan = &Plan{Commands: FilterOneSayPerTurn(plan.Commands)}
	}
	p.logger.Debug("plan received", "commands", len(plan.Commands), "actions", plan.Actions())
	return plan, nil
}

// Run plans and executes the plan with the registry.
func (p *Planner) Run(ctx context.Context, mem memory.Memory, fns *prompt.Functions) ([]Result, error) {
	if p.registry == nil {
		return nil, errors.New("planning: planner has no registry")
	}
	plan, err := p.Plan(ctx, mem, fns)
	if err != nil {
		return nil, err
	}
	return p.registry.Execute(ctx, mem, plan)
}
