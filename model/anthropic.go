package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"golang.org/x/time/rate"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/prompt"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

// DefaultAnthropicModel is used when neither the config nor the template
// names a model.
const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicConfig configures an AnthropicModel.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string

	RequestsPerSecond float64
	Burst             int

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// AnthropicModel completes prompts with the Messages API. System messages
// are sent as the system prompt and consecutive messages of the same role
// are merged, since the API requires user and assistant turns to alternate.
type AnthropicModel struct {
	client  *anthropic.Client
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewAnthropicModel creates an Anthropic adapter.
func NewAnthropicModel(cfg AnthropicConfig) (*AnthropicModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}

	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, anthropic.WithHTTPClient(cfg.HTTPClient))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AnthropicModel{
		client:  anthropic.NewClient(cfg.APIKey, opts...),
		model:   cfg.Model,
		limiter: newLimiter(cfg.RequestsPerSecond, cfg.Burst),
		logger:  logger,
	}, nil
}

// CompletePrompt renders tmpl and sends it to the Messages API.
func (m *AnthropicModel) CompletePrompt(ctx context.Context, mem memory.Memory, fns *prompt.Functions, tok tokenizer.Tokenizer, tmpl *prompt.Template) (*llm.Response, error) {
	rendered, tooLong, err := render(ctx, mem, fns, tok, tmpl)
	if err != nil || tooLong != nil {
		return tooLong, err
	}

	if err := wait(ctx, m.limiter); err != nil {
		return llm.ErrorResponse(llm.StatusError, err), nil
	}

	req := m.request(tmpl, rendered.messages)
	m.logger.Debug("sending messages request",
		"template", tmpl.Name,
		"model", req.Model,
		"messages", len(req.Messages),
		"tools", len(req.Tools))

	resp, err := m.client.CreateMessages(ctx, req)
	if err != nil {
		status := anthropicStatus(err)
		if status == llm.StatusRateLimited {
			err = fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		m.logger.Warn("messages request failed", "template", tmpl.Name, "status", status, "error", err)
		return &llm.Response{Status: status, Input: rendered.input, Error: err}, nil
	}

	msg := messageFromAnthropic(resp.Content)
	return checkToolCalls(&llm.Response{
		Status:  llm.StatusSuccess,
		Input:   rendered.input,
		Message: &msg,
		Usage: llm.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}), nil
}

func (m *AnthropicModel) request(tmpl *prompt.Template, messages []llm.Message) anthropic.MessagesRequest {
	cc := tmpl.Config.Completion

	model := m.model
	if cc.Model != "" {
		model = cc.Model
	}
	temperature := float32(cc.Temperature)

	var system []string
	req := anthropic.MessagesRequest{
		Model:         anthropic.Model(model),
		MaxTokens:     cc.MaxTokens,
		StopSequences: cc.StopSequences,
		Temperature:   &temperature,
	}
	if cc.TopP > 0 {
		topP := float32(cc.TopP)
		req.TopP = &topP
	}

	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			system = append(system, msg.Content)
			continue
		}

		role := anthropic.RoleUser
		if msg.Role == llm.RoleAssistant {
			role = anthropic.RoleAssistant
		}
		text := anthropicText(msg)
		if text == "" {
			continue
		}

		if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == role {
			req.Messages[n-1].Content = append(req.Messages[n-1].Content, anthropic.NewTextMessageContent(text))
			continue
		}
		req.Messages = append(req.Messages, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(text)},
		})
	}
	req.System = strings.Join(system, "\n\n")

	if usesTools(tmpl) {
		for _, def := range tmpl.Tools() {
			params := def.Parameters
			if params == nil {
				params = map[string]any{"type": "object", "properties": map[string]any{}}
			}
			req.Tools = append(req.Tools, anthropic.ToolDefinition{
				Name:        def.Name,
				Description: def.Description,
				InputSchema: params,
			})
		}
	}
	return req
}

// anthropicText flattens calls and results into text, which keeps the
// request valid without pairing tool_use and tool_result blocks.
func anthropicText(msg llm.Message) string {
	switch {
	case msg.Role == llm.RoleFunction || msg.Role == llm.RoleTool:
		name := msg.Name
		if name == "" {
			name = msg.ToolCallID
		}
		return name + " returned " + msg.Content
	case msg.FunctionCall != nil && msg.Content == "":
		return msg.FunctionCall.JSON()
	}
	return msg.Content
}

func messageFromAnthropic(content []anthropic.MessageContent) llm.Message {
	out := llm.Message{Role: llm.RoleAssistant}

	var text []string
	for _, c := range content {
		switch c.Type {
		case anthropic.MessagesContentTypeText:
			if c.Text != nil {
				text = append(text, *c.Text)
			}
		case anthropic.MessagesContentTypeToolUse:
			if c.MessageContentToolUse == nil {
				continue
			}
			args := string(c.MessageContentToolUse.Input)
			if args == "" {
				args = "{}"
			}
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
				ID:   c.MessageContentToolUse.ID,
				Type: "function",
				Function: llm.FunctionCall{
					Name:      c.MessageContentToolUse.Name,
					Arguments: args,
				},
			})
		}
	}
	out.Content = strings.Join(text, "")
	return out
}

// anthropicStatus maps a client error to a response status.
func anthropicStatus(err error) llm.Status {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) && apiErr.IsRateLimitErr() {
		return llm.StatusRateLimited
	}
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusTooManyRequests {
		return llm.StatusRateLimited
	}
	return llm.StatusError
}
