// Package llm sends prompts to a hosted language model.
package llm

import "context"

// constError is an immutable error type for sentinel errors.
type constError string

func (e constError) Error() string { return string(e) }

var (
	// ErrExternalCall indicates the model call failed, timed out or returned
	// no usable content.
	ErrExternalCall = constError("external model call failed")

	// ErrMissingAPIKey indicates the client was built without credentials.
	ErrMissingAPIKey = constError("model API key not configured")
)

// Request is a single-turn completion request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float64
}

// Usage is the token accounting of a completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the text reply to a Request.
type Response struct {
	Text       string
	Model      string
	StopReason string
	Usage      Usage
}

// Client completes prompts. Implementations make a single attempt per call.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Ping(ctx context.Context) error
	Model() string
}

// Temperature returns a pointer to t for Request.Temperature.
func Temperature(t float64) *float64 {
	return &t
}
