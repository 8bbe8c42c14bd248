package model

import (
	"context"
	"sync"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/prompt"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

// TestCall records one CompletePrompt call made against a TestModel.
type TestCall struct {
	Template string

	// Messages is the prompt as it would have been sent.
	Messages []llm.Message
}

// TestResponder produces the response for a call.
type TestResponder func(ctx context.Context, call TestCall) (*llm.Response, error)

// TestModel is a Model that renders prompts like the vendor adapters do but
// answers from a script. It is safe for concurrent use.
type TestModel struct {
	mu        sync.Mutex
	responder TestResponder
	responses []*llm.Response
	next      int
	calls     []TestCall
}

// NewTestModel returns a model that replies with responses in order and
// repeats the last one once the script runs out.
func NewTestModel(responses ...*llm.Response) *TestModel {
	return &TestModel{responses: responses}
}

// NewTestModelFunc returns a model that delegates each reply to fn.
func NewTestModelFunc(fn TestResponder) *TestModel {
	return &TestModel{responder: fn}
}

// TextResponse is a successful response carrying an assistant message.
func TextResponse(content string) *llm.Response {
	msg := llm.NewMessage(llm.RoleAssistant, content)
	return &llm.Response{Status: llm.StatusSuccess, Message: &msg}
}

// CompletePrompt renders tmpl, records the call and returns the next
// scripted response.
func (m *TestModel) CompletePrompt(ctx context.Context, mem memory.Memory, fns *prompt.Functions, tok tokenizer.Tokenizer, tmpl *prompt.Template) (*llm.Response, error) {
	rendered, tooLong, err := render(ctx, mem, fns, tok, tmpl)
	if err != nil || tooLong != nil {
		return tooLong, err
	}

	call := TestCall{Template: tmpl.Name, Messages: rendered.messages}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	responder := m.responder
	var scripted *llm.Response
	if responder == nil && len(m.responses) > 0 {
		idx := m.next
		if idx >= len(m.responses) {
			idx = len(m.responses) - 1
		}
		scripted = m.responses[idx]
		m.next++
	}
	m.mu.Unlock()

	var resp *llm.Response
	if responder != nil {
		if resp, err = responder(ctx, call); err != nil {
			return nil, err
		}
	} else {
		resp = scripted
	}
	if resp == nil {
		resp = TextResponse("")
	}

	out := cloneResponse(resp)
	if out.Input == nil && rendered.input != nil {
		input := *rendered.input
		out.Input = &input
	}
	return checkToolCalls(out), nil
}

// Calls returns the calls made so far.
func (m *TestModel) Calls() []TestCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TestCall(nil), m.calls...)
}

// CallCount returns the number of calls made so far.
func (m *TestModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// cloneResponse copies resp deeply enough that callers can rewrite the
// message without touching the script.
func cloneResponse(resp *llm.Response) *llm.Response {
	out := *resp
	if resp.Message != nil {
		msg := *resp.Message
		if resp.Message.FunctionCall != nil {
			call := *resp.Message.FunctionCall
			msg.FunctionCall = &call
		}
		msg.ToolCalls = append([]llm.ToolCall(nil), resp.Message.ToolCalls...)
		out.Message = &msg
	}
	if resp.Input != nil {
		input := *resp.Input
		out.Input = &input
	}
	return &out
}
