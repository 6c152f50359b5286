package ai

import "context"

// Request is one completion call to the generative service.
type Request struct {
	// Purpose tags the call for logs and metrics (for example "stage2_opening").
	Purpose     string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// Response is the raw completion plus token usage.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Client is the generative text service, treated as an opaque oracle.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
