package llm

import (
	"context"
	"iter"
)

// Provider is a single model backend. It turns a prompt into text and knows
// nothing about questions, answers or their schemas.
type Provider interface {
	// Generate sends the request and returns the complete model output.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Stream sends the request and yields text chunks in arrival order.
	// Iteration ends when the model finishes or after the first error.
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the model.
type Request struct {
	// System is the system prompt.
	System string

	// Messages holds the prompt. Every call made by prepwise is single-turn,
	// so this is one user message.
	Messages []Message

	// JSON asks the backend to use its native JSON output mode when it has
	// one. The content is still validated by the caller.
	JSON bool

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 1.0.
	Temperature float64
}

// Message represents a single message in the prompt.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserPrompt builds a single-turn request.
func UserPrompt(system, content string, maxTokens int) Request {
	return Request{
		System:    system,
		Messages:  []Message{{Role: RoleUser, Content: content}},
		MaxTokens: maxTokens,
	}
}

// Response holds the model's output.
type Response struct {
	// Content is the raw text the model produced.
	Content string

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason indicates why generation stopped.
	// Normalized to: "end", "max_tokens", "error"
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
