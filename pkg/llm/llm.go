// Package llm is the narrow view of a text-generation service used by the
// chat engine: long-lived dialogue sessions with streamed turns, and one-shot
// prompt completion.
package llm

import (
	"context"
)

// Provider creates dialogue sessions and runs one-shot prompts
type Provider interface {
	// NewSession opens a dialogue seeded with a system instruction
	NewSession(ctx context.Context, model, systemInstruction string) (Session, error)

	// GenerateContent returns the full completion for a single prompt
	GenerateContent(ctx context.Context, model, prompt string) (string, error)
}

// Session is one dialogue context. Turns sent on it see the earlier ones.
type Session interface {
	// SendMessageStream sends a user turn and streams the reply as incremental
	// text chunks. Both channels are closed when the reply ends; at most one
	// error is delivered.
	SendMessageStream(ctx context.Context, text string) (<-chan string, <-chan error)
}
