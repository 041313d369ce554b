package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/testsabirweb/chatsim/pkg/ollama"
)

// OllamaProvider implements Provider on top of a local Ollama server
type OllamaProvider struct {
	client  *ollama.Client
	options *ollama.Options
}

// NewOllamaProvider wraps an Ollama client
func NewOllamaProvider(client *ollama.Client) *OllamaProvider {
	return &OllamaProvider{
		client: client,
		options: &ollama.Options{
			Temperature: 0.7,
		},
	}
}

// NewSession opens a dialogue. Ollama is stateless, so the history is kept
// client side and replayed on every turn.
func (p *OllamaProvider) NewSession(_ context.Context, model, systemInstruction string) (Session, error) {
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	s := &ollamaSession{
		client:  p.client,
		model:   model,
		options: p.options,
	}
	if systemInstruction != "" {
		s.history = append(s.history, ollama.Message{Role: "system", Content: systemInstruction})
	}
	return s, nil
}

// GenerateContent runs a one-shot completion
func (p *OllamaProvider) GenerateContent(ctx context.Context, model, prompt string) (string, error) {
	resp, err := p.client.Generate(ctx, ollama.GenerateRequest{
		Model:   model,
		Prompt:  prompt,
		Options: p.options,
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Response, nil
}

type ollamaSession struct {
	client  *ollama.Client
	model   string
	options *ollama.Options

	mu      sync.Mutex
	history []ollama.Message
}

// SendMessageStream replays the history plus the new turn. The turn and the
// reply are recorded only when the stream completes without error.
func (s *ollamaSession) SendMessageStream(ctx context.Context, text string) (<-chan string, <-chan error) {
	out := make(chan string)
	errs := make(chan error, 1)

	userMsg := ollama.Message{Role: "user", Content: text}

	s.mu.Lock()
	messages := make([]ollama.Message, 0, len(s.history)+1)
	messages = append(messages, s.history...)
	messages = append(messages, userMsg)
	s.mu.Unlock()

	go func() {
		defer close(out)
		defer close(errs)

		respChan, errChan := s.client.ChatStream(ctx, ollama.ChatRequest{
			Model:    s.model,
			Messages: messages,
			Options:  s.options,
		})

		var reply strings.Builder
		for chunk := range respChan {
			if chunk.Message.Content == "" {
				continue
			}
			reply.WriteString(chunk.Message.Content)
			select {
			case out <- chunk.Message.Content:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err := <-errChan; err != nil {
			errs <- err
			return
		}

		s.mu.Lock()
		s.history = append(s.history, userMsg, ollama.Message{Role: "assistant", Content: reply.String()})
		s.mu.Unlock()
	}()

	return out, errs
}
