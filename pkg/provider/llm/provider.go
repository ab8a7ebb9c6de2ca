// Package llm defines the Provider interface for language-model backends.
//
// The analysis engine uses an LLM for exactly one thing: a single structured
// completion per practice session that returns the coaching analysis as JSON.
// A provider wraps a remote or local model API (OpenAI, Anthropic via
// any-llm-go, a local Ollama instance, ...) behind a uniform non-streaming
// interface so the analyzer never couples to a specific SDK.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import "context"

// Message is a single message in a completion conversation.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and may differ between providers for the same
// text.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is a high-priority instruction injected before the
	// conversation. Providers without a dedicated system slot prepend it as
	// a "system"-role message.
	SystemPrompt string

	// Messages is the ordered conversation. For analysis calls this is a
	// single user message embedding the transcript and duration.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0]. Zero means the
	// provider default.
	Temperature float64

	// MaxTokens caps completion length. Zero means the provider default.
	MaxTokens int

	// JSONOnly requests the backend's native JSON output mode when one
	// exists. Providers without such a mode may ignore the flag; callers
	// must validate the returned payload either way.
	JSONOnly bool
}

// CompletionResponse is the full, non-streaming model reply.
type CompletionResponse struct {
	// Content is the text of the reply. For analysis calls this is expected
	// to be a single JSON object, but the provider makes no such guarantee.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use. Complete must return as
// soon as ctx is cancelled; the engine bounds every analysis call with a
// deadline and falls back to local analysis when the call does not finish in
// time.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// ModelID returns the backend-specific model identifier (e.g. "gpt-4o").
	// Used for logging and metrics attributes only.
	ModelID() string
}
