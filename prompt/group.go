package prompt

import (
	"context"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

// GroupSection lays out child sections as text and presents the result as
// a single message with the group's role.
type GroupSection struct {
	base
	sections []Section
	role     llm.Role
}

// NewGroupSection creates a required group.
func NewGroupSection(sections []Section, role llm.Role, opts ...SectionOption) *GroupSection {
	return &GroupSection{base: newBase(true, opts), sections: sections, role: role}
}

// Sections returns the group's children.
func (g *GroupSection) Sections() []Section {
	return g.sections
}

// RenderAsMessages renders the group text as one message.
func (g *GroupSection) RenderAsMessages(ctx context.Context, mem memory.Memory, fns *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[[]llm.Message], error) {
	r, err := g.RenderAsText(ctx, mem, fns, tok, maxTokens)
	if err != nil {
		return Rendered[[]llm.Message]{}, err
	}
	return textToMessages(r, g.role), nil
}

// RenderAsText joins the children's text with the group separator.
func (g *GroupSection) RenderAsText(ctx context.Context, mem memory.Memory, fns *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[string], error) {
	return layoutText(ctx, g.sections, g.separator, mem, fns, tok, g.budget(maxTokens), maxTokens)
}
