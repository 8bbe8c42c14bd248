package promptkit

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/tokenizer"
	"github.com/zero-day-ai/promptkit/validation"
)

// Defaults applied by New.
const (
	DefaultHistoryVariable    = "conversation.history"
	DefaultInputVariable      = "temp.input"
	DefaultMaxHistoryMessages = 10
	DefaultMaxRepairAttempts  = 3
)

// Option configures a Client.
type Option func(*clientConfig)

// clientConfig holds configuration for a Client instance.
type clientConfig struct {
	historyVariable    string
	inputVariable      string
	maxHistoryMessages int
	maxRepairAttempts  int
	validator          validation.Validator
	tokenizer          tokenizer.Tokenizer
	logRepairs         bool
	logger             *slog.Logger
	tracer             trace.Tracer
	meter              metric.Meter
	tracker            llm.TokenTracker
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		historyVariable:    DefaultHistoryVariable,
		inputVariable:      DefaultInputVariable,
		maxHistoryMessages: DefaultMaxHistoryMessages,
		maxRepairAttempts:  DefaultMaxRepairAttempts,
		validator:          validation.DefaultValidator{},
		tokenizer:          tokenizer.NewWord(),
		logger:             slog.Default(),
	}
}

// WithHistoryVariable sets the memory path of the conversation history.
// Repair attempts use the same path with a "-repair" suffix.
func WithHistoryVariable(path string) Option {
	return func(c *clientConfig) {
		c.historyVariable = path
	}
}

// WithInputVariable sets the memory path read for the user's input when the
// model does not report one.
func WithInputVariable(path string) Option {
	return func(c *clientConfig) {
		c.inputVariable = path
	}
}

// WithMaxHistoryMessages caps the stored conversation history. Zero keeps
// every message.
func WithMaxHistoryMessages(n int) Option {
	return func(c *clientConfig) {
		c.maxHistoryMessages = n
	}
}

// WithMaxRepairAttempts sets how many times an invalid response is sent back
// to the model with feedback. Zero disables repair.
func WithMaxRepairAttempts(n int) Option {
	return func(c *clientConfig) {
		c.maxRepairAttempts = n
	}
}

// WithValidator sets the response validator. The default accepts everything.
func WithValidator(v validation.Validator) Option {
	return func(c *clientConfig) {
		c.validator = v
	}
}

// WithTokenizer sets the tokenizer used to lay out prompts.
func WithTokenizer(tok tokenizer.Tokenizer) Option {
	return func(c *clientConfig) {
		c.tokenizer = tok
	}
}

// WithLogRepairs logs each repair attempt and its feedback at debug level.
func WithLogRepairs(enabled bool) Option {
	return func(c *clientConfig) {
		c.logRepairs = enabled
	}
}

// WithLogger sets a custom logger for the client.
// If not provided, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer. Each completion gets a span with a
// child span per repair attempt.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *clientConfig) {
		c.tracer = tracer
	}
}

// WithMeter sets an OpenTelemetry meter for completion and repair metrics.
func WithMeter(meter metric.Meter) Option {
	return func(c *clientConfig) {
		c.meter = meter
	}
}

// WithTokenTracker records the token usage of every model call, keyed by
// template name.
func WithTokenTracker(tracker llm.TokenTracker) Option {
	return func(c *clientConfig) {
		c.tracker = tracker
	}
}
