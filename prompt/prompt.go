package prompt

import (
	"context"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

// Prompt is the root of a prompt layout. Rendered as messages, each child
// contributes its own messages; rendered as text, children are joined with
// a blank line.
type Prompt struct {
	base
	sections []Section
}

// NewPrompt creates a prompt from sections.
func NewPrompt(sections []Section, opts ...SectionOption) *Prompt {
	opts = append([]SectionOption{WithSeparator("\n\n")}, opts...)
	return &Prompt{base: newBase(true, opts), sections: sections}
}

// Sections returns a copy of the prompt's sections.
func (p *Prompt) Sections() []Section {
	return append([]Section(nil), p.sections...)
}

// With returns a new prompt with extra sections appended. p is unchanged.
func (p *Prompt) With(sections ...Section) *Prompt {
	clone := *p
	clone.sections = append(p.Sections(), sections...)
	return &clone
}

// RenderAsMessages lays the sections out as a message list.
func (p *Prompt) RenderAsMessages(ctx context.Context, mem memory.Memory, fns *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[[]llm.Message], error) {
	return layoutMessages(ctx, p.sections, mem, fns, tok, p.budget(maxTokens), maxTokens)
}

// RenderAsText lays the sections out as text.
func (p *Prompt) RenderAsText(ctx context.Context, mem memory.Memory, fns *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[string], error) {
	return layoutText(ctx, p.sections, p.separator, mem, fns, tok, p.budget(maxTokens), maxTokens)
}

// Fits reports whether the prompt's required sections can be rendered
// within maxTokens without truncation. Optional sections are not measured;
// they shrink to whatever budget is left.
func (p *Prompt) Fits(ctx context.Context, mem memory.Memory, fns *Functions, tok tokenizer.Tokenizer, maxTokens int) (bool, error) {
	total := 0
	for _, s := range p.sections {
		if !s.Required() {
			continue
		}
		r, err := s.RenderAsMessages(ctx, mem, fns, tok, maxTokens)
		if err != nil {
			return false, err
		}
		if r.TooLong {
			return false, nil
		}
		total += r.Length
	}
	return total <= maxTokens, nil
}
