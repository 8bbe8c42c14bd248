package prompt

import (
	"context"
	"strings"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

type renderFunc[T any] func(s Section, maxTokens int) (Rendered[T], error)

// layout renders sections into budget tokens and returns their outputs in
// declared order.
//
// Every section is first rendered against maxTokens. If the results fit the
// budget (counting sepTokens between non-empty outputs) they are used as is.
// Otherwise budget is handed out from a running remainder: required sections
// first, each leaving enough for one token of every required section after
// it, then optional sections in declared order. Optional sections with
// AutoTokens get an even split of what is left among the auto sections not
// yet placed. A section is re-rendered only when its first output exceeds
// its share. Sections that receive nothing are still rendered with zero.
//
// The returned flag reports whether the untruncated content exceeded maxTokens.
func layout[T any](sections []Section, budget, maxTokens, sepTokens int, render renderFunc[T], empty func(T) bool) ([]Rendered[T], bool, error) {
	measured := make([]Rendered[T], len(sections))
	tooLong := false
	total, nonEmpty := 0, 0

	for i, s := range sections {
		r, err := render(s, maxTokens)
		if err != nil {
			return nil, false, err
		}
		measured[i] = r
		tooLong = tooLong || r.TooLong
		if !empty(r.Output) {
			if nonEmpty > 0 {
				total += sepTokens
			}
			total += r.Length
			nonEmpty++
		}
	}
	tooLong = tooLong || total > maxTokens
	if total <= budget && !tooLong {
		return measured, false, nil
	}

	var required, optional []int
	autoLeft := 0
	for i, s := range sections {
		if s.Required() {
			required = append(required, i)
			continue
		}
		optional = append(optional, i)
		if s.Tokens() <= 0 {
			autoLeft++
		}
	}

	out := make([]Rendered[T], len(sections))
	remaining := budget
	nonEmpty = 0

	place := func(i, share int) error {
		if share < 0 {
			share = 0
		}
		r := measured[i]
		if r.Length > share {
			var err error
			if r, err = render(sections[i], share); err != nil {
				return err
			}
		}
		out[i] = r
		if !empty(r.Output) {
			if nonEmpty > 0 {
				remaining -= sepTokens
			}
			remaining -= r.Length
			nonEmpty++
		}
		return nil
	}

	available := func() int {
		if nonEmpty > 0 {
			return remaining - sepTokens
		}
		return remaining
	}

	for n, i := range required {
		reserve := (len(required) - n - 1) * (1 + sepTokens)
		if err := place(i, available()-reserve); err != nil {
			return nil, false, err
		}
	}

	for _, i := range optional {
		share := available()
		if sections[i].Tokens() <= 0 {
			share /= autoLeft
			autoLeft--
		}
		if err := place(i, share); err != nil {
			return nil, false, err
		}
	}

	return out, tooLong, nil
}

// layoutText lays sections out as text joined by sep. The joined text is
// truncated to budget in case the tokenizer does not count the pieces
// additively.
func layoutText(ctx context.Context, sections []Section, sep string, mem memory.Memory, fns *Functions, tok tokenizer.Tokenizer, budget, maxTokens int) (Rendered[string], error) {
	outputs, tooLong, err := layout(sections, budget, maxTokens, tokenizer.Count(tok, sep),
		func(s Section, n int) (Rendered[string], error) {
			return s.RenderAsText(ctx, mem, fns, tok, n)
		},
		func(text string) bool { return text == "" },
	)
	if err != nil {
		return Rendered[string]{}, err
	}

	parts := make([]string, 0, len(outputs))
	for _, r := range outputs {
		if r.Output != "" {
			parts = append(parts, r.Output)
		}
	}

	r := Truncate(tok, strings.Join(parts, sep), budget, maxTokens)
	r.TooLong = r.TooLong || tooLong
	return r, nil
}

// layoutMessages lays sections out as a single message list.
func layoutMessages(ctx context.Context, sections []Section, mem memory.Memory, fns *Functions, tok tokenizer.Tokenizer, budget, maxTokens int) (Rendered[[]llm.Message], error) {
	outputs, tooLong, err := layout(sections, budget, maxTokens, 0,
		func(s Section, n int) (Rendered[[]llm.Message], error) {
			return s.RenderAsMessages(ctx, mem, fns, tok, n)
		},
		func(msgs []llm.Message) bool { return len(msgs) == 0 },
	)
	if err != nil {
		return Rendered[[]llm.Message]{}, err
	}

	var (
		msgs   []llm.Message
		length int
	)
	for _, r := range outputs {
		msgs = append(msgs, r.Output...)
		length += r.Length
	}
	return Rendered[[]llm.Message]{Output: msgs, Length: length, TooLong: tooLong}, nil
}
