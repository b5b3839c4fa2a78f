// Package llm defines the Provider interface used by the translation
// dispatcher to turn one finalized caption sentence into one target-language
// sentence.
//
// Translation is a single-shot, low-temperature, short completion: there is
// no tool calling, no multi-turn history, and no streaming consumer (the
// dispatcher waits for the whole sentence before publishing a caption
// record). This interface is a deliberately trimmed sibling of a
// general-purpose chat-completion provider, scoped to exactly that shape.
package llm

import "context"

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest is a single translation request.
type CompletionRequest struct {
	// SystemPrompt instructs the model on the target language and tone.
	SystemPrompt string

	// Text is the source sentence to translate.
	Text string

	// Temperature controls sampling randomness. Translation dispatch always
	// uses a low value to keep output deterministic.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	MaxTokens int
}

// CompletionResponse is the provider's reply to a CompletionRequest.
type CompletionResponse struct {
	// Content is the translated sentence text.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend used for translation.
//
// Implementations must be safe for concurrent use from multiple goroutines.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or if ctx is cancelled before
	// the completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
