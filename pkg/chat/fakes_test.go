package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/testsabirweb/chatsim/pkg/catalog"
	"github.com/testsabirweb/chatsim/pkg/llm"
	"github.com/testsabirweb/chatsim/pkg/prefs"
)

// Mock implementations for testing

type fakeProvider struct {
	mu           sync.Mutex
	chunks       []string
	streamErr    error
	sessionErr   error
	hold         chan struct{}
	suggestions  string
	generate     func(ctx context.Context, prompt string) (string, error)
	instructions []string
	turns        []string
	prompts      []string
}

func (p *fakeProvider) NewSession(_ context.Context, _ string, systemInstruction string) (llm.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessionErr != nil {
		return nil, p.sessionErr
	}
	p.instructions = append(p.instructions, systemInstruction)
	return &fakeSession{provider: p}, nil
}

func (p *fakeProvider) GenerateContent(ctx context.Context, _ string, prompt string) (string, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	generate := p.generate
	suggestions := p.suggestions
	p.mu.Unlock()

	if generate != nil {
		return generate(ctx, prompt)
	}
	return suggestions, nil
}

func (p *fakeProvider) setSuggestions(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suggestions = s
}

func (p *fakeProvider) sessionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.instructions)
}

type fakeSession struct {
	provider *fakeProvider
}

func (s *fakeSession) SendMessageStream(ctx context.Context, text string) (<-chan string, <-chan error) {
	p := s.provider
	p.mu.Lock()
	p.turns = append(p.turns, text)
	chunks := append([]string(nil), p.chunks...)
	streamErr := p.streamErr
	hold := p.hold
	p.mu.Unlock()

	out := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		for _, c := range chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if hold != nil {
			select {
			case <-hold:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if streamErr != nil {
			errs <- streamErr
		}
	}()

	return out, errs
}

// recorder collects events from any goroutine
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestSession(t *testing.T, provider *fakeProvider, mutate ...func(*Options)) *Session {
	t.Helper()

	cat, err := catalog.Load()
	require.NoError(t, err)

	opts := Options{
		Catalog:           cat,
		Provider:          provider,
		Model:             "test-model",
		Prefs:             prefs.NewMemoryStore(),
		DeliveredAfter:    20 * time.Millisecond,
		ReadAfter:         50 * time.Millisecond,
		MaxBotSessions:    8,
		SmartReplyTimeout: time.Second,
	}
	for _, fn := range mutate {
		fn(&opts)
	}

	s, err := NewSession(opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func joinedSession(t *testing.T, provider *fakeProvider, mutate ...func(*Options)) (*Session, User) {
	t.Helper()
	s := newTestSession(t, provider, mutate...)
	user, err := s.Join("Ann")
	require.NoError(t, err)
	return s, user
}

// settle waits for background replies and suggestion requests
func settle(s *Session) {
	s.bot.Wait()
	s.advisor.Wait()
}
