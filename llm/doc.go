// Package llm defines the conversation value types shared by every other
// package: messages and roles, function and tool calls, completion responses
// with their status taxonomy, and token usage accounting.
//
// # Messages
//
//	msg := llm.NewMessage(llm.RoleUser, "What is the weather in San Francisco?")
//
// Assistant messages may carry a FunctionCall or ToolCalls instead of text.
// Validators attach their parsed result to Message.Value; it is never sent to
// a model and never serialized.
//
// # Responses
//
// Every completion yields a *Response whose Status is one of success, error,
// rate_limited, invalid_response, too_long or tools_error. Only successful
// responses are validated or written to conversation history.
//
// # Token Usage
//
// DefaultTokenTracker aggregates usage per template and is safe for
// concurrent use:
//
//	tracker := llm.NewTokenTracker()
//	tracker.Add("chat", resp.Usage)
//	fmt.Println(tracker.Total().TotalTokens)
package llm
