package validation

import (
	"context"
	"errors"
	"strings"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/parser"
	"github.com/zero-day-ai/promptkit/schema"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

// Default feedback for JSON responses.
const (
	DefaultMissingJSONFeedback = "No valid JSON objects were found in the response. Return a valid JSON object."
	DefaultSchemaErrorFeedback = "The JSON returned had errors. Apply these fixes:"
)

// JSONOption configures a JSONValidator.
type JSONOption func(*JSONValidator)

// WithSchema checks every parsed object against s.
func WithSchema(s schema.JSON) JSONOption {
	return func(v *JSONValidator) {
		v.schema = &s
	}
}

// WithMissingJSONFeedback replaces the feedback sent when no object is found.
func WithMissingJSONFeedback(feedback string) JSONOption {
	return func(v *JSONValidator) {
		v.missingFeedback = feedback
	}
}

// WithSchemaErrorFeedback replaces the heading of the feedback sent when
// objects violate the schema. Each violation is listed below it.
func WithSchemaErrorFeedback(feedback string) JSONOption {
	return func(v *JSONValidator) {
		v.errorFeedback = feedback
	}
}

// JSONValidator requires the response to contain at least one JSON object,
// optionally conforming to a schema. The value of a valid response is the
// last object found, since models tend to explain themselves before giving
// the answer.
type JSONValidator struct {
	schema          *schema.JSON
	missingFeedback string
	errorFeedback   string
}

// NewJSONValidator creates a JSON validator.
func NewJSONValidator(opts ...JSONOption) *JSONValidator {
	v := &JSONValidator{
		missingFeedback: DefaultMissingJSONFeedback,
		errorFeedback:   DefaultSchemaErrorFeedback,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateResponse parses every JSON object out of the response content.
func (v *JSONValidator) ValidateResponse(_ context.Context, _ memory.Memory, _ tokenizer.Tokenizer, resp *llm.Response, _ int) (Validation, error) {
	if resp == nil {
		return Validation{}, errors.New("validation: nil response")
	}
	return v.validateText(resp.Content()), nil
}

func (v *JSONValidator) validateText(text string) Validation {
	return v.validateObjects(parser.ParseAllObjects(text))
}

// validateObjects checks already parsed objects. Schema errors from every
// object are reported together.
func (v *JSONValidator) validateObjects(objects []map[string]any) Validation {
	if len(objects) == 0 {
		return Invalid(v.missingFeedback)
	}

	if v.schema != nil {
		var errs schema.ValidationErrors
		for _, obj := range objects {
			errs = append(errs, v.schema.Errors(obj)...)
		}
		if len(errs) > 0 {
			return Invalid(v.schemaFeedback(errs))
		}
	}
	return Valid(objects[len(objects)-1])
}

func (v *JSONValidator) schemaFeedback(errs schema.ValidationErrors) string {
	var b strings.Builder
	b.WriteString(v.errorFeedback)
	for _, e := range errs {
		b.WriteString("\n")
		b.WriteString(e.Error())
	}
	return b.String()
}
