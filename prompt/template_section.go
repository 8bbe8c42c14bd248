package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

// ErrTemplateSyntax is returned for templates with unbalanced or empty
// {{ }} blocks.
var ErrTemplateSyntax = errors.New("prompt: invalid template")

type partKind int

const (
	partText partKind = iota
	partVariable
	partFunction
)

type templatePart struct {
	kind partKind
	text string
	name string
	args []string
}

// TemplateSection renders text with {{$variable}} and {{function args}}
// blocks substituted from memory and the function registry.
type TemplateSection struct {
	base
	template string
	role     llm.Role
	parts    []templatePart
}

// NewTemplateSection parses template and returns a required section.
func NewTemplateSection(template string, role llm.Role, opts ...SectionOption) (*TemplateSection, error) {
	parts, err := parseTemplate(template)
	if err != nil {
		return nil, err
	}
	return &TemplateSection{
		base:     newBase(true, opts),
		template: template,
		role:     role,
		parts:    parts,
	}, nil
}

// MustTemplateSection is like NewTemplateSection but panics on a malformed template.
func MustTemplateSection(template string, role llm.Role, opts ...SectionOption) *TemplateSection {
	s, err := NewTemplateSection(template, role, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Template returns the unparsed template text.
func (s *TemplateSection) Template() string {
	return s.template
}

// RenderAsMessages substitutes the template and renders it as one message.
func (s *TemplateSection) RenderAsMessages(ctx context.Context, mem memory.Memory, fns *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[[]llm.Message], error) {
	text, err := s.expand(ctx, mem, fns, tok)
	if err != nil {
		return Rendered[[]llm.Message]{}, err
	}
	return textToMessages(s.truncate(tok, text, maxTokens), s.role), nil
}

// RenderAsText substitutes the template and renders the prefixed text.
func (s *TemplateSection) RenderAsText(ctx context.Context, mem memory.Memory, fns *Functions, tok tokenizer.Tokenizer, maxTokens int) (Rendered[string], error) {
	text, err := s.expand(ctx, mem, fns, tok)
	if err != nil {
		return Rendered[string]{}, err
	}
	if text == "" {
		return Rendered[string]{}, nil
	}
	return s.truncate(tok, s.textPrefix+text, maxTokens), nil
}

func (s *TemplateSection) expand(ctx context.Context, mem memory.Memory, fns *Functions, tok tokenizer.Tokenizer) (string, error) {
	var b strings.Builder
	for _, p := range s.parts {
		switch p.kind {
		case partText:
			b.WriteString(p.text)
		case partVariable:
			if v, ok := mem.Get(p.name); ok {
				b.WriteString(formatValue(v))
			}
		case partFunction:
			v, err := fns.InvokeFunction(ctx, p.name, mem, tok, p.args)
			if err != nil {
				return "", fmt.Errorf("render template: %w", err)
			}
			b.WriteString(formatValue(v))
		}
	}
	return b.String(), nil
}

// formatValue renders a substituted value. Strings are inserted as is and
// everything else as JSON.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func parseTemplate(tmpl string) ([]templatePart, error) {
	var parts []templatePart

	for len(tmpl) > 0 {
		open := strings.Index(tmpl, "{{")
		text := tmpl
		if open >= 0 {
			text = tmpl[:open]
		}
		if strings.Contains(text, "}}") {
			return nil, fmt.Errorf("%w: '}}' without '{{'", ErrTemplateSyntax)
		}
		if text != "" {
			parts = append(parts, templatePart{kind: partText, text: text})
		}
		if open < 0 {
			break
		}

		body, rest, err := scanBlock(tmpl[open+2:])
		if err != nil {
			return nil, err
		}
		part, err := parseBlock(body)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
		tmpl = rest
	}
	return parts, nil
}

// scanBlock finds the "}}" closing a block, skipping quoted arguments.
func scanBlock(s string) (body, rest string, err error) {
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch {
		case ch == '"' || ch == '\'' || ch == '`':
			quote = ch
		case strings.HasPrefix(s[i:], "}}"):
			return s[:i], s[i+2:], nil
		case strings.HasPrefix(s[i:], "{{"):
			return "", "", fmt.Errorf("%w: nested '{{'", ErrTemplateSyntax)
		}
	}
	if quote != 0 {
		return "", "", fmt.Errorf("%w: unterminated quote in block", ErrTemplateSyntax)
	}
	return "", "", fmt.Errorf("%w: missing '}}'", ErrTemplateSyntax)
}

func parseBlock(body string) (templatePart, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return templatePart{}, fmt.Errorf("%w: empty block", ErrTemplateSyntax)
	}

	if strings.HasPrefix(body, "$") {
		name := body[1:]
		if name == "" || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
			return templatePart{}, fmt.Errorf("%w: bad variable reference %q", ErrTemplateSyntax, body)
		}
		return templatePart{kind: partVariable, name: name}, nil
	}

	args := splitArgs(body)
	return templatePart{kind: partFunction, name: args[0], args: args[1:]}, nil
}

// splitArgs splits on whitespace; quotes group words and are removed.
func splitArgs(s string) []string {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inArg   bool
	)
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'' || r == '`':
			quote = r
			inArg = true
		case unicode.IsSpace(r):
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}
	if inArg {
		args = append(args, current.String())
	}
	return args
}
