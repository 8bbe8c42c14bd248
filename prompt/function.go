package prompt

import (
	"context"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

// FunctionCallMessageSection renders a function call the model made earlier.
// As a message it is atomic: it is dropped whole when it does not fit.
type FunctionCallMessageSection struct {
	base
	call llm.FunctionCall
}

// NewFunctionCallMessageSection creates a section for call. The text form is
// prefixed with "assistant: ".
func NewFunctionCallMessageSection(call llm.FunctionCall, opts ...SectionOption) *FunctionCallMessageSection {
	opts = append([]SectionOption{WithTextPrefix("assistant: ")}, opts...)
	return &FunctionCallMessageSection{base: newBase(true, opts), call: call}
}

// RenderAsMessages renders one assistant message carrying the call.
func (s *FunctionCallMessageSection) RenderAsMessages(_ context.Context, _ memory.Memory, _ *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[[]llm.Message], error) {
	call := s.call
	msg := llm.Message{Role: llm.RoleAssistant, FunctionCall: &call}
	return atomicMessage(tok, msg, call.JSON(), s.budget(maxTokens), maxTokens), nil
}

// RenderAsText renders the call as "assistant: {json}".
func (s *FunctionCallMessageSection) RenderAsText(_ context.Context, _ memory.Memory, _ *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[string], error) {
	return s.truncate(tok, s.textPrefix+s.call.JSON(), maxTokens), nil
}

// FunctionResponseMessageSection renders the result of a function call.
type FunctionResponseMessageSection struct {
	base
	name     string
	response any
}

// NewFunctionResponseMessageSection creates a section for the value returned
// by the named function. The text form is prefixed with "user: ".
func NewFunctionResponseMessageSection(name string, response any, opts ...SectionOption) *FunctionResponseMessageSection {
	opts = append([]SectionOption{WithTextPrefix("user: ")}, opts...)
	return &FunctionResponseMessageSection{base: newBase(true, opts), name: name, response: response}
}

// RenderAsMessages renders one function message with the formatted result.
// Its length counts both the function name and the result.
func (s *FunctionResponseMessageSection) RenderAsMessages(_ context.Context, _ memory.Memory, _ *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[[]llm.Message], error) {
	content := formatValue(s.response)
	msg := llm.Message{Role: llm.RoleFunction, Name: s.name, Content: content}
	return atomicMessage(tok, msg, s.name+content, s.budget(maxTokens), maxTokens), nil
}

// RenderAsText renders "user: <name> returned <result>".
func (s *FunctionResponseMessageSection) RenderAsText(_ context.Context, _ memory.Memory, _ *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[string], error) {
	text := s.textPrefix + s.name + " returned " + formatValue(s.response)
	return s.truncate(tok, text, maxTokens), nil
}

func atomicMessage(tok tokenizer.Tokenizer, msg llm.Message, measure string, budget, maxTokens int) Rendered[[]llm.Message] {
	length := tokenizer.Count(tok, measure)
	if length > budget {
		return Rendered[[]llm.Message]{TooLong: length > maxTokens}
	}
	return Rendered[[]llm.Message]{Output: []llm.Message{msg}, Length: length, TooLong: length > maxTokens}
}
