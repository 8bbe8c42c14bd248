package prompt

import (
	"context"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

// TextSection renders fixed text as a single message.
type TextSection struct {
	base
	text string
	role llm.Role
}

// NewTextSection creates a required text section.
func NewTextSection(text string, role llm.Role, opts ...SectionOption) *TextSection {
	return &TextSection{base: newBase(true, opts), text: text, role: role}
}

// RenderAsMessages renders the text as one message with the section's role.
func (s *TextSection) RenderAsMessages(_ context.Context, _ memory.Memory, _ *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[[]llm.Message], error) {
	return textToMessages(s.truncate(tok, s.text, maxTokens), s.role), nil
}

// RenderAsText renders the prefixed text.
func (s *TextSection) RenderAsText(_ context.Context, _ memory.Memory, _ *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[string], error) {
	return s.truncate(tok, s.textPrefix+s.text, maxTokens), nil
}
