package prompt

import (
	"context"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

// AutoTokens marks a section that takes a proportional share of whatever
// budget its parent has left instead of a fixed number of tokens.
const AutoTokens = -1

// Section is a node in a prompt layout. Sections never fail because they are
// over budget; they truncate instead. Errors are reserved for malformed
// templates and failing prompt functions.
type Section interface {
	// Tokens is the fixed budget of the section, or a value <= 0 for a
	// proportional share of the parent's remaining budget.
	Tokens() int

	// Required sections are laid out before optional ones and are never
	// starved entirely by their siblings.
	Required() bool

	RenderAsMessages(ctx context.Context, mem memory.Memory, fns *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[[]llm.Message], error)
	RenderAsText(ctx context.Context, mem memory.Memory, fns *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[string], error)
}

// SectionOption configures the shared settings of a section.
type SectionOption func(*base)

// WithTokens sets a fixed token budget. Values <= 0 select AutoTokens.
func WithTokens(n int) SectionOption {
	return func(b *base) {
		b.tokens = n
	}
}

// WithRequired marks the section as required or optional.
func WithRequired(required bool) SectionOption {
	return func(b *base) {
		b.required = required
	}
}

// WithSeparator sets the string joining multiple outputs when flattened to text.
func WithSeparator(sep string) SectionOption {
	return func(b *base) {
		b.separator = sep
	}
}

// WithTextPrefix sets a string prepended to the section's text rendering.
func WithTextPrefix(prefix string) SectionOption {
	return func(b *base) {
		b.textPrefix = prefix
	}
}

type base struct {
	tokens     int
	required   bool
	separator  string
	textPrefix string
}

func newBase(required bool, opts []SectionOption) base {
	b := base{
		tokens:    AutoTokens,
		required:  required,
		separator: "\n",
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b base) Tokens() int {
	return b.tokens
}

func (b base) Required() bool {
	return b.required
}

// budget is the section's effective budget when offered maxTokens.
func (b base) budget(maxTokens int) int {
	if b.tokens > 0 && b.tokens < maxTokens {
		return b.tokens
	}
	return maxTokens
}

func (b base) truncate(tok tokenizer.Tokenizer, text string, maxTokens int) Rendered[string] {
	return Truncate(tok, text, b.budget(maxTokens), maxTokens)
}
