package llm

// Status is the outcome category of a completion.
type Status string

const (
	// StatusSuccess means Message holds the model output.
	StatusSuccess Status = "success"

	// StatusError is a transport or model failure.
	StatusError Status = "error"

	// StatusRateLimited means the vendor answered HTTP 429.
	StatusRateLimited Status = "rate_limited"

	// StatusInvalidResponse means the output failed validation and could not be repaired.
	StatusInvalidResponse Status = "invalid_response"

	// StatusTooLong means the rendered prompt exceeded the model's input budget.
	StatusTooLong Status = "too_long"

	// StatusToolsError means a function or tool call was malformed.
	StatusToolsError Status = "tools_error"
)

// String returns the status as a string.
func (s Status) String() string {
	return string(s)
}

// Response is the result of a single prompt completion.
//
// Message is meaningful when Status is StatusSuccess or StatusInvalidResponse;
// Error is set for every other status and for a terminal invalid response.
type Response struct {
	// ID uniquely identifies the completion call that produced this response.
	ID string

	Status Status

	// Input is the message the model treated as the user's turn, when known.
	Input *Message

	Message *Message

	Error error

	Usage TokenUsage
}

// Succeeded reports whether the response carries a usable message.
func (r *Response) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess && r.Message != nil
}

// Content returns the message content or the empty string.
func (r *Response) Content() string {
	if r == nil || r.Message == nil {
		return ""
	}
	return r.Message.Content
}

// ErrorResponse wraps err in a response with the given status.
func ErrorResponse(status Status, err error) *Response {
	return &Response{Status: status, Error: err}
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	// InputTokens is the number of tokens in the input/prompt.
	InputTokens int

	// OutputTokens is the number of tokens generated in the response.
	OutputTokens int

	// TotalTokens is the sum of input and output tokens.
	TotalTokens int
}

// Add combines two TokenUsage instances.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// IsZero reports whether no usage was recorded.
func (u TokenUsage) IsZero() bool {
	return u == TokenUsage{}
}
