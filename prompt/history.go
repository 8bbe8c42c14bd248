package prompt

import (
	"context"
	"strings"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

// ConversationHistorySection renders the newest messages of a history list
// that fit the budget, in chronological order.
type ConversationHistorySection struct {
	base
	variable        string
	userPrefix      string
	assistantPrefix string
}

// HistoryOption configures a ConversationHistorySection.
type HistoryOption func(*ConversationHistorySection)

// WithUserPrefix sets the text prefix for user messages. Default: "user: ".
func WithUserPrefix(prefix string) HistoryOption {
	return func(s *ConversationHistorySection) {
		s.userPrefix = prefix
	}
}

// WithAssistantPrefix sets the text prefix for all non-user messages.
// Default: "assistant: ".
func WithAssistantPrefix(prefix string) HistoryOption {
	return func(s *ConversationHistorySection) {
		s.assistantPrefix = prefix
	}
}

// WithHistorySection applies shared section options.
func WithHistorySection(opts ...SectionOption) HistoryOption {
	return func(s *ConversationHistorySection) {
		for _, opt := range opts {
			opt(&s.base)
		}
	}
}

// NewConversationHistorySection creates an optional section over the history
// stored at variable.
func NewConversationHistorySection(variable string, opts ...HistoryOption) *ConversationHistorySection {
	s := &ConversationHistorySection{
		base:            newBase(false, nil),
		variable:        variable,
		userPrefix:      "user: ",
		assistantPrefix: "assistant: ",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Variable returns the memory path the section reads.
func (s *ConversationHistorySection) Variable() string {
	return s.variable
}

// RenderAsMessages returns the newest messages that fit, oldest first.
// Messages are never cut in half, except that a required section always
// includes a truncated form of the newest message when nothing else fits.
func (s *ConversationHistorySection) RenderAsMessages(_ context.Context, mem memory.Memory, _ *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[[]llm.Message], error) {
	history := memory.History(mem, s.variable)
	budget := s.budget(maxTokens)

	var (
		picked []llm.Message
		used   int
		full   int
		cut    bool
	)
	for _, msg := range history {
		length := tokenizer.Count(tok, messageText(msg))
		full += length
		if cut {
			continue
		}
		if used+length > budget {
			cut = true
			if len(picked) == 0 && s.required && msg.FunctionCall == nil {
				r := Truncate(tok, msg.Content, budget, maxTokens)
				if r.Output != "" {
					partial := msg
					partial.Content = r.Output
					picked = append(picked, partial)
					used = r.Length
				}
			}
			continue
		}
		picked = append(picked, msg)
		used += length
	}

	reverse(picked)
	return Rendered[[]llm.Message]{Output: picked, Length: used, TooLong: full > maxTokens}, nil
}

// RenderAsText renders the newest lines that fit, oldest first, joined by
// the separator.
func (s *ConversationHistorySection) RenderAsText(_ context.Context, mem memory.Memory, _ *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[string], error) {
	history := memory.History(mem, s.variable)
	budget := s.budget(maxTokens)
	sepLength := tokenizer.Count(tok, s.separator)

	var (
		lines []string
		used  int
		full  int
		cut   bool
	)
	for i, msg := range history {
		line := s.line(msg)
		length := tokenizer.Count(tok, line)
		if i > 0 {
			full += sepLength
		}
		full += length
		if cut {
			continue
		}
		if len(lines) > 0 {
			length += sepLength
		}
		if used+length > budget {
			cut = true
			if len(lines) == 0 && s.required {
				r := Truncate(tok, line, budget, maxTokens)
				if r.Output != "" {
					lines = append(lines, r.Output)
					used = r.Length
				}
			}
			continue
		}
		lines = append(lines, line)
		used += length
	}

	reverse(lines)
	return Rendered[string]{Output: strings.Join(lines, s.separator), Length: used, TooLong: full > maxTokens}, nil
}

func (s *ConversationHistorySection) line(msg llm.Message) string {
	prefix := s.assistantPrefix
	if msg.Role == llm.RoleUser {
		prefix = s.userPrefix
	}
	return prefix + messageText(msg)
}

// messageText is the text a message contributes to a prompt.
func messageText(msg llm.Message) string {
	if msg.Content == "" && msg.FunctionCall != nil {
		return msg.FunctionCall.JSON()
	}
	return msg.Content
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
