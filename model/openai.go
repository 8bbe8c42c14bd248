package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/prompt"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

// OpenAIConfig configures an OpenAIModel. Any OpenAI-compatible endpoint
// works through BaseURL.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string

	// Model is used when a template does not name one.
	Model string

	// RequestsPerSecond limits outgoing requests. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// OpenAIModel completes prompts with the chat completions API.
type OpenAIModel struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewOpenAIModel creates an OpenAI adapter.
func NewOpenAIModel(cfg OpenAIConfig) (*OpenAIModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIModel{
		client:  openai.NewClientWithConfig(config),
		model:   cfg.Model,
		limiter: newLimiter(cfg.RequestsPerSecond, cfg.Burst),
		logger:  logger,
	}, nil
}

// CompletePrompt renders tmpl and sends it as a chat completion.
func (m *OpenAIModel) CompletePrompt(ctx context.Context, mem memory.Memory, fns *prompt.Functions, tok tokenizer.Tokenizer, tmpl *prompt.Template) (*llm.Response, error) {
	rendered, tooLong, err := render(ctx, mem, fns, tok, tmpl)
	if err != nil || tooLong != nil {
		return tooLong, err
	}

	if err := wait(ctx, m.limiter); err != nil {
		return llm.ErrorResponse(llm.StatusError, err), nil
	}

	req := m.request(tmpl, rendered.messages)
	m.logger.Debug("sending chat completion",
		"template", tmpl.Name,
		"model", req.Model,
		"messages", len(req.Messages),
		"tools", len(req.Tools))

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		status := openAIStatus(err)
		if status == llm.StatusRateLimited {
			err = fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		m.logger.Warn("chat completion failed", "template", tmpl.Name, "status", status, "error", err)
		return &llm.Response{Status: status, Input: rendered.input, Error: err}, nil
	}
	if len(resp.Choices) == 0 {
		return &llm.Response{Status: llm.StatusError, Input: rendered.input, Error: errors.New("openai: response has no choices")}, nil
	}

	msg := messageFromOpenAI(resp.Choices[0].Message)
	return checkToolCalls(&llm.Response{
		Status:  llm.StatusSuccess,
		Input:   rendered.input,
		Message: &msg,
		Usage: llm.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}), nil
}

func (m *OpenAIModel) request(tmpl *prompt.Template, messages []llm.Message) openai.ChatCompletionRequest {
	cc := tmpl.Config.Completion

	req := openai.ChatCompletionRequest{
		Model:            m.model,
		Messages:         make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:        cc.MaxTokens,
		Temperature:      float32(cc.Temperature),
		TopP:             float32(cc.TopP),
		PresencePenalty:  float32(cc.PresencePenalty),
		FrequencyPenalty: float32(cc.FrequencyPenalty),
		Stop:             cc.StopSequences,
	}
	if cc.Model != "" {
		req.Model = cc.Model
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, messageToOpenAI(msg))
	}

	if usesTools(tmpl) {
		for _, def := range tmpl.Tools() {
			params := def.Parameters
			if params == nil {
				params = map[string]any{"type": "object", "properties": map[string]any{}}
			}
			req.Tools = append(req.Tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        def.Name,
					Description: def.Description,
					Parameters:  params,
				},
			})
		}
		if cc.ToolChoice != "" {
			req.ToolChoice = string(cc.ToolChoice)
		}
		req.ParallelToolCalls = cc.ParallelToolCalls
	}
	return req
}

func messageToOpenAI(msg llm.Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:       string(msg.Role),
		Content:    msg.Content,
		Name:       msg.Name,
		ToolCallID: msg.ToolCallID,
	}
	if msg.FunctionCall != nil {
		out.FunctionCall = &openai.FunctionCall{Name: msg.FunctionCall.Name, Arguments: msg.FunctionCall.Arguments}
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out
}

func messageFromOpenAI(msg openai.ChatCompletionMessage) llm.Message {
	out := llm.Message{Role: llm.RoleAssistant, Content: msg.Content}
	if msg.FunctionCall != nil {
		out.FunctionCall = &llm.FunctionCall{Name: msg.FunctionCall.Name, Arguments: msg.FunctionCall.Arguments}
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: llm.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out
}

// openAIStatus maps a client error to a response status.
func openAIStatus(err error) llm.Status {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return llm.StatusRateLimited
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return llm.StatusRateLimited
	}
	return llm.StatusError
}
