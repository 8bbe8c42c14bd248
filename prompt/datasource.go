package prompt

import (
	"context"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

// DataSource supplies text for retrieval-augmented prompts. Implementations
// must keep Length within maxTokens and set TooLong when they had to cut.
type DataSource interface {
	Name() string
	RenderData(ctx context.Context, mem memory.Memory, tok tokenizer.Tokenizer, maxTokens int) (Rendered[string], error)
}

// DataSourceSection renders a DataSource as a system message.
type DataSourceSection struct {
	base
	source DataSource
}

// NewDataSourceSection creates an optional section over source.
func NewDataSourceSection(source DataSource, opts ...SectionOption) *DataSourceSection {
	return &DataSourceSection{base: newBase(false, opts), source: source}
}

// RenderAsMessages renders the data as a system message.
func (s *DataSourceSection) RenderAsMessages(ctx context.Context, mem memory.Memory, fns *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[[]llm.Message], error) {
	r, err := s.RenderAsText(ctx, mem, fns, tok, maxTokens)
	if err != nil {
		return Rendered[[]llm.Message]{}, err
	}
	return textToMessages(r, llm.RoleSystem), nil
}

// RenderAsText renders the prefixed data.
func (s *DataSourceSection) RenderAsText(ctx context.Context, mem memory.Memory, _ *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[string], error) {
	budget := s.budget(maxTokens)
	prefixLength := tokenizer.Count(tok, s.textPrefix)

	r, err := s.source.RenderData(ctx, mem, tok, budget-prefixLength)
	if err != nil {
		return Rendered[string]{}, err
	}
	if r.Output == "" {
		return Rendered[string]{TooLong: r.TooLong}, nil
	}
	return Rendered[string]{
		Output:  s.textPrefix + r.Output,
		Length:  prefixLength + r.Length,
		TooLong: r.TooLong,
	}, nil
}

// TextDataSource is a DataSource over a fixed body of text.
type TextDataSource struct {
	name string
	text string
}

// NewTextDataSource creates a static data source.
func NewTextDataSource(name, text string) *TextDataSource {
	return &TextDataSource{name: name, text: text}
}

func (d *TextDataSource) Name() string {
	return d.name
}

// RenderData returns the text truncated to maxTokens.
func (d *TextDataSource) RenderData(_ context.Context, _ memory.Memory, tok tokenizer.Tokenizer, maxTokens int) (Rendered[string], error) {
	return Truncate(tok, d.text, maxTokens, maxTokens), nil
}
