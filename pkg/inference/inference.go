// Package inference provides a unified interface for dialogue generation.
//
// The relay turns a prompt built from session history into a reply through
// a Provider. Gemini (via the genai SDK) and any OpenAI-compatible endpoint
// (OpenAI, Ollama, vLLM) are supported, and Chain falls back across them.
//
// Example usage:
//
//	gemini, _ := inference.NewGemini(ctx,
//	    inference.WithAPIKey(os.Getenv("GEMINI_API_KEY")),
//	)
//	defer gemini.Close()
//
//	resp, _ := gemini.Chat(ctx, &inference.ChatRequest{
//	    Messages: []inference.Message{inference.NewUserMessage("Hello!")},
//	})
//	fmt.Println(resp.Text())
package inference

import (
	"context"
	"strings"
)

// Provider is the unified dialogue generation interface.
type Provider interface {
	// Chat generates a response from a sequence of messages.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Capabilities returns what features this provider supports.
	Capabilities() Capabilities

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Capabilities describes what features a provider supports.
type Capabilities struct {
	Chat         bool // Supports chat completions
	SystemPrompt bool // Honors system messages natively
}

// ChatRequest for chat completions.
type ChatRequest struct {
	// Messages is the conversation. System messages are passed as the
	// provider's system instruction where supported.
	Messages []Message

	// Model overrides the default model.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0-2.0).
	Temperature float64

	// TopP controls nucleus sampling.
	TopP float64

	// Stop sequences that halt generation.
	Stop []string
}

// ChatResponse from chat completion.
type ChatResponse struct {
	// Message is the assistant's response.
	Message Message

	// FinishReason indicates why generation stopped.
	FinishReason string

	// Usage tracks token consumption.
	Usage Usage

	// Model used for generation.
	Model string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}

// Text returns the trimmed reply text.
func (r *ChatResponse) Text() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.Message.Content)
}

// Usage tracks token consumption for billing and limits.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
