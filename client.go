package promptkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/model"
	"github.com/zero-day-ai/promptkit/prompt"
	"github.com/zero-day-ai/promptkit/tokenizer"
	"github.com/zero-day-ai/promptkit/validation"
)

const opComplete = "Client.CompletePrompt"

// Client completes one prompt template against a model, validating each
// response and sending invalid ones back for repair.
//
// A Client holds no per-conversation state and may be shared. Callers must
// not run two completions for the same conversation memory at once.
type Client struct {
	model          model.Model
	template       *prompt.Template
	repairTemplate *prompt.Template
	repairVariable string

	historyVariable    string
	inputVariable      string
	maxHistoryMessages int
	maxRepairAttempts  int
	validator          validation.Validator
	tokenizer          tokenizer.Tokenizer
	logRepairs         bool

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *clientMetrics
	tracker llm.TokenTracker
}

// New creates a client for tmpl.
func New(m model.Model, tmpl *prompt.Template, opts ...Option) (*Client, error) {
	if m == nil {
		return nil, NewConfigurationError("New", fmt.Errorf("model is required: %w", ErrInvalidConfig))
	}
	if tmpl == nil || tmpl.Prompt == nil {
		return nil, NewConfigurationError("New", fmt.Errorf("template with a prompt is required: %w", ErrInvalidConfig))
	}

	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.historyVariable == "" || cfg.inputVariable == "" {
		return nil, NewConfigurationError("New", fmt.Errorf("history and input variables are required: %w", ErrInvalidConfig))
	}
	if cfg.maxRepairAttempts < 0 || cfg.maxHistoryMessages < 0 {
		return nil, NewConfigurationError("New", fmt.Errorf("limits must not be negative: %w", ErrInvalidConfig))
	}
	if _, _, err := memory.ParsePath(cfg.historyVariable); err != nil {
		return nil, NewConfigurationError("New", err)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.tracer == nil {
		cfg.tracer = tracenoop.NewTracerProvider().Tracer("promptkit")
	}
	if cfg.meter == nil {
		cfg.meter = metricnoop.NewMeterProvider().Meter("promptkit")
	}

	metrics, err := newClientMetrics(cfg.meter)
	if err != nil {
		return nil, NewConfigurationError("New", err)
	}

	repairVariable := cfg.historyVariable + "-repair"
	return &Client{
		model:              m,
		template:           tmpl,
		repairTemplate:     tmpl.WithRepairHistory(repairVariable),
		repairVariable:     repairVariable,
		historyVariable:    cfg.historyVariable,
		inputVariable:      cfg.inputVariable,
		maxHistoryMessages: cfg.maxHistoryMessages,
		maxRepairAttempts:  cfg.maxRepairAttempts,
		validator:          cfg.validator,
		tokenizer:          cfg.tokenizer,
		logRepairs:         cfg.logRepairs,
		logger:             cfg.logger,
		tracer:             cfg.tracer,
		metrics:            metrics,
		tracker:            cfg.tracker,
	}, nil
}

// Template returns the template the client completes.
func (c *Client) Template() *prompt.Template {
	return c.template
}

// CompletePrompt renders the template with mem, calls the model and
// validates the answer, repairing it up to the configured number of times.
//
// On success the user input and the final answer are appended to the
// conversation history, once. Failed attempts and their feedback only ever
// live in a fork of mem. The returned response is never nil; failures are
// reported through its Status and Error.
func (c *Client) CompletePrompt(ctx context.Context, mem memory.Memory, fns *prompt.Functions) (resp *llm.Response) {
	id := uuid.NewString()
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, "promptkit.complete_prompt", trace.WithAttributes(
		attribute.String("promptkit.completion_id", id),
		attribute.String("promptkit.template", c.template.Name),
	))

	defer func() {
		if r := recover(); r != nil {
			resp = llm.ErrorResponse(llm.StatusError,
				NewInternalError(opComplete, fmt.Errorf("panic: %v", r)).WithContext(map[string]any{"completion_id": id}))
		}
		resp.ID = id
		c.finish(ctx, span, resp, time.Since(start))
	}()

	if mem == nil {
		return llm.ErrorResponse(llm.StatusError, NewValidationError(opComplete, errors.New("memory is required")))
	}
	return c.complete(ctx, mem, fns)
}

func (c *Client) complete(ctx context.Context, mem memory.Memory, fns *prompt.Functions) *llm.Response {
	resp := c.call(ctx, mem, fns, c.template)
	if resp.Status != llm.StatusSuccess {
		return resp
	}

	input := resp.Input
	if input == nil {
		input = c.inputMessage(mem)
	}

	v, err := c.validator.ValidateResponse(ctx, mem, c.tokenizer, resp, c.maxRepairAttempts)
	if err != nil {
		return llm.ErrorResponse(llm.StatusError, NewValidationError(opComplete, err))
	}
	if v.Valid {
		return c.accept(mem, input, resp, v)
	}
	if c.maxRepairAttempts == 0 {
		return invalid(resp, v.Feedback)
	}
	return c.repair(ctx, mem, memory.NewFork(mem), fns, input, resp, v, c.maxRepairAttempts)
}

// repair sends the rejected message and its feedback back to the model on
// fork. remaining counts the attempts left including this one.
func (c *Client) repair(ctx context.Context, mem memory.Memory, fork *memory.Fork, fns *prompt.Functions, input *llm.Message, rejected *llm.Response, v validation.Validation, remaining int) *llm.Response {
	if err := ctx.Err(); err != nil {
		return llm.ErrorResponse(llm.StatusError, NewTimeoutError(opComplete, err))
	}

	attempt := c.maxRepairAttempts - remaining + 1
	ctx, span := c.tracer.Start(ctx, "promptkit.repair", trace.WithAttributes(
		attribute.Int("promptkit.repair.attempt", attempt),
	))
	defer span.End()

	c.metrics.recordRepair(ctx, c.template.Name)
	if c.logRepairs {
		c.logger.Debug("repairing response",
			"template", c.template.Name,
			"attempt", attempt,
			"feedback", v.Feedback)
	}

	err := memory.AppendHistory(fork, c.repairVariable, 0,
		historyMessage(*rejected.Message),
		llm.NewMessage(llm.RoleUser, v.Feedback))
	if err != nil {
		return llm.ErrorResponse(llm.StatusError, NewInternalError(opComplete, err))
	}

	resp := c.call(ctx, fork, fns, c.repairTemplate)
	if resp.Status != llm.StatusSuccess {
		span.SetStatus(codes.Error, resp.Status.String())
		return resp
	}

	remaining--
	v, err = c.validator.ValidateResponse(ctx, fork, c.tokenizer, resp, remaining)
	if err != nil {
		return llm.ErrorResponse(llm.StatusError, NewValidationError(opComplete, err))
	}
	if v.Valid {
		return c.accept(mem, input, resp, v)
	}

	span.SetStatus(codes.Error, "still invalid")
	if remaining == 0 {
		return invalid(resp, v.Feedback)
	}
	return c.repair(ctx, mem, fork, fns, input, resp, v, remaining)
}

// call invokes the model and normalizes what it returns.
func (c *Client) call(ctx context.Context, mem memory.Memory, fns *prompt.Functions, tmpl *prompt.Template) *llm.Response {
	resp, err := c.model.CompletePrompt(ctx, mem, fns, c.tokenizer, tmpl)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return llm.ErrorResponse(llm.StatusError, NewTimeoutError(opComplete, err))
		}
		return llm.ErrorResponse(llm.StatusError, NewExecutionError(opComplete, err).
			WithContext(map[string]any{"template": tmpl.Name}))
	}
	if resp == nil {
		return llm.ErrorResponse(llm.StatusError, NewExecutionError(opComplete, ErrNoMessage))
	}

	if c.tracker != nil {
		c.tracker.Add(tmpl.Name, resp.Usage)
	}
	if resp.Status == llm.StatusSuccess && resp.Message == nil {
		return llm.ErrorResponse(llm.StatusError, NewExecutionError(opComplete, ErrNoMessage))
	}
	return resp
}

// accept records the exchange in the real conversation history.
func (c *Client) accept(mem memory.Memory, input *llm.Message, resp *llm.Response, v validation.Validation) *llm.Response {
	if v.Value != nil {
		resp.Message.Value = v.Value
	}

	var exchange []llm.Message
	if input != nil {
		exchange = append(exchange, historyMessage(*input))
	}
	exchange = append(exchange, historyMessage(*resp.Message))

	if err := memory.AppendHistory(mem, c.historyVariable, c.maxHistoryMessages, exchange...); err != nil {
		return llm.ErrorResponse(llm.StatusError, NewInternalError(opComplete, err))
	}

	resp.Input = input
	return resp
}

// inputMessage synthesizes the user's turn from the input variable.
func (c *Client) inputMessage(mem memory.Memory) *llm.Message {
	v, ok := mem.Get(c.inputVariable)
	if !ok || v == nil {
		return nil
	}
	text, ok := v.(string)
	if !ok {
		text = fmt.Sprint(v)
	}
	if text == "" {
		return nil
	}
	msg := llm.NewMessage(llm.RoleUser, text)
	return &msg
}

func (c *Client) finish(ctx context.Context, span trace.Span, resp *llm.Response, elapsed time.Duration) {
	defer span.End()

	span.SetAttributes(attribute.String("promptkit.status", resp.Status.String()))
	if !resp.Usage.IsZero() {
		span.SetAttributes(
			attribute.Int("promptkit.usage.input_tokens", resp.Usage.InputTokens),
			attribute.Int("promptkit.usage.output_tokens", resp.Usage.OutputTokens),
		)
	}
	c.metrics.recordCompletion(ctx, c.template.Name, resp.Status, elapsed)

	if resp.Status == llm.StatusSuccess {
		span.SetStatus(codes.Ok, "")
		return
	}

	span.SetStatus(codes.Error, resp.Status.String())
	if resp.Error != nil {
		span.RecordError(resp.Error)
	}
	c.logger.Warn("prompt completion failed",
		"template", c.template.Name,
		"completion_id", resp.ID,
		"status", resp.Status,
		"error", resp.Error)
}

// invalid marks resp as a terminal validation failure.
func invalid(resp *llm.Response, feedback string) *llm.Response {
	resp.Status = llm.StatusInvalidResponse
	resp.Error = &validation.FeedbackError{Feedback: feedback}
	return resp
}

// historyMessage strips the parsed value before a message is stored.
func historyMessage(msg llm.Message) llm.Message {
	msg.Value = nil
	return msg
}
