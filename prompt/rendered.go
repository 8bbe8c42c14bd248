package prompt

import (
	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

// Rendered is the output of rendering a section within a token budget.
type Rendered[T any] struct {
	Output T

	// Length is the number of tokens Output consumes.
	Length int

	// TooLong is set when the section's content did not fit the budget it
	// was rendered with and had to be truncated or dropped.
	TooLong bool
}

// Truncate fits text into budget tokens by slicing the encoded token
// sequence. TooLong reports whether the untruncated text exceeded
// maxTokens. A budget of zero or less yields empty output.
func Truncate(tok tokenizer.Tokenizer, text string, budget, maxTokens int) Rendered[string] {
	if text == "" {
		return Rendered[string]{}
	}

	ids := tok.Encode(text)
	tooLong := len(ids) > maxTokens

	if budget <= 0 {
		return Rendered[string]{TooLong: len(ids) > 0}
	}
	if len(ids) <= budget {
		return Rendered[string]{Output: text, Length: len(ids), TooLong: tooLong}
	}
	return Rendered[string]{Output: tok.Decode(ids[:budget]), Length: budget, TooLong: tooLong}
}

func textToMessages(r Rendered[string], role llm.Role) Rendered[[]llm.Message] {
	if r.Output == "" {
		return Rendered[[]llm.Message]{TooLong: r.TooLong}
	}
	return Rendered[[]llm.Message]{
		Output:  []llm.Message{{Role: role, Content: r.Output}},
		Length:  r.Length,
		TooLong: r.TooLong,
	}
}
