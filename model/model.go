// Package model defines the completion model contract and adapters for the
// OpenAI and Anthropic APIs, plus a scripted model for tests.
//
// Adapters report vendor failures through the response status rather than
// the error return: HTTP 429 becomes llm.StatusRateLimited, a prompt whose
// required sections exceed max_input_tokens becomes llm.StatusTooLong and a
// malformed tool call becomes llm.StatusToolsError. The error return is kept
// for failures to render the prompt at all.
package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/prompt"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

var (
	// ErrRateLimited is the error carried by rate limited responses.
	ErrRateLimited = errors.New("model: rate limited")

	// ErrPromptTooLong is the error carried by too long responses.
	ErrPromptTooLong = errors.New("model: prompt exceeds max_input_tokens")
)

// Model completes prompts.
type Model interface {
	CompletePrompt(ctx context.Context, mem memory.Memory, fns *prompt.Functions, tok tokenizer.Tokenizer, tmpl *prompt.Template) (*llm.Response, error)
}

// renderedPrompt is a template rendered for a vendor request.
type renderedPrompt struct {
	messages []llm.Message

	// input is the trailing user message, if the prompt ends with one.
	input *llm.Message
}

// render lays the template out within its max_input_tokens. When the
// required sections do not fit, it returns a too long response instead.
func render(ctx context.Context, mem memory.Memory, fns *prompt.Functions, tok tokenizer.Tokenizer, tmpl *prompt.Template) (renderedPrompt, *llm.Response, error) {
	if tmpl == nil || tmpl.Prompt == nil {
		return renderedPrompt{}, nil, errors.New("model: template has no prompt")
	}

	maxInput := tmpl.Config.Completion.MaxInputTokens
	fits, err := tmpl.Prompt.Fits(ctx, mem, fns, tok, maxInput)
	if err != nil {
		return renderedPrompt{}, nil, fmt.Errorf("render %s: %w", tmpl.Name, err)
	}
	if !fits {
		return renderedPrompt{}, llm.ErrorResponse(llm.StatusTooLong,
			fmt.Errorf("%w: template %s allows %d tokens", ErrPromptTooLong, tmpl.Name, maxInput)), nil
	}

	r, err := tmpl.Prompt.RenderAsMessages(ctx, mem, fns, tok, maxInput)
	if err != nil {
		return renderedPrompt{}, nil, fmt.Errorf("render %s: %w", tmpl.Name, err)
	}

	out := renderedPrompt{messages: r.Output}
	if n := len(r.Output); n > 0 && r.Output[n-1].Role == llm.RoleUser {
		last := r.Output[n-1]
		out.input = &last
	}
	return out, nil, nil
}

// usesTools reports whether the template asks for native tool calls.
func usesTools(tmpl *prompt.Template) bool {
	return tmpl.Config.Augmentation.Type == prompt.AugmentationTools && len(tmpl.Actions) > 0
}

// checkToolCalls turns a response with undecodable tool arguments into a
// tools error. The message is kept so callers can inspect what was sent.
func checkToolCalls(resp *llm.Response) *llm.Response {
	if resp.Message == nil {
		return resp
	}
	for i := range resp.Message.ToolCalls {
		if err := resp.Message.ToolCalls[i].Validate(); err != nil {
			resp.Status = llm.StatusToolsError
			resp.Error = fmt.Errorf("tool call %s: %w", resp.Message.ToolCalls[i].Function.Name, err)
			return resp
		}
	}
	return resp
}
