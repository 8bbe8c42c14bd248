// Package validation checks model responses and produces the feedback the
// client sends back to the model when a response has to be repaired.
//
// Validators are pure: they read the response and memory but never write
// to either. The client alone decides what to do with a failed Validation.
package validation

import (
	"context"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

// Validation is the verdict on a single response.
type Validation struct {
	Valid bool

	// Feedback tells the model what to fix. Set when Valid is false.
	Feedback string

	// Value, when non-nil on a valid response, is the parsed form of the
	// output. The client stores it on the response message.
	Value any
}

// Validator checks a response. remainingAttempts is the number of repair
// attempts left after this one, which lets a validator relax its checks on
// the last attempt. An error is returned only when validation itself could
// not run; a bad response is reported through Validation.
type Validator interface {
	ValidateResponse(ctx context.Context, mem memory.Memory, tok tokenizer.Tokenizer, resp *llm.Response, remainingAttempts int) (Validation, error)
}

// Invalid returns a failed validation carrying feedback.
func Invalid(feedback string) Validation {
	return Validation{Feedback: feedback}
}

// Valid returns a successful validation with an optional parsed value.
func Valid(value any) Validation {
	return Validation{Valid: true, Value: value}
}

// FeedbackError is the error attached to a response that stayed invalid
// after every repair attempt.
type FeedbackError struct {
	Feedback string
}

func (e *FeedbackError) Error() string {
	return "invalid response: " + e.Feedback
}

// DefaultValidator accepts every response.
type DefaultValidator struct{}

// ValidateResponse always returns a valid result with no value.
func (DefaultValidator) ValidateResponse(context.Context, memory.Memory, tokenizer.Tokenizer, *llm.Response, int) (Validation, error) {
	return Valid(nil), nil
}
