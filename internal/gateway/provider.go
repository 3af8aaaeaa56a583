package gateway

import "context"

// Completion is a provider's answer to a single prompt.
type Completion struct {
	Text  string
	Model string

	// InputTokens and OutputTokens are nil when the provider reports no usage
	InputTokens  *int64
	OutputTokens *int64
}

// Provider sends one prompt to a model and returns its text answer.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (Completion, error)
}

func int64Ptr(v int64) *int64 { return &v }
