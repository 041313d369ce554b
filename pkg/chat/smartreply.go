package chat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/testsabirweb/chatsim/pkg/llm"
	"github.com/testsabirweb/chatsim/pkg/metrics"
)

const defaultSmartReplyTimeout = 30 * time.Second

// SmartReplyAdvisor asks the text-generation service for short replies to
// the last message of the active conversation.
//
// Each message is asked about once per content version. A newer request
// supersedes any request still in flight, and a failed request leaves the
// list empty.
type SmartReplyAdvisor struct {
	provider llm.Provider
	prompts  *PromptBuilder
	model    string
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
	onChange func([]string)

	mu          sync.Mutex
	suggestions []string
	generation  uint64
	lastKey     string

	wg sync.WaitGroup
}

// NewSmartReplyAdvisor creates an advisor. onChange is called with the new
// list whenever it changes.
func NewSmartReplyAdvisor(provider llm.Provider, model string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics, onChange func([]string)) *SmartReplyAdvisor {
	if timeout <= 0 {
		timeout = defaultSmartReplyTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if onChange == nil {
		onChange = func([]string) {}
	}
	return &SmartReplyAdvisor{
		provider: provider,
		prompts:  NewPromptBuilder(""),
		model:    model,
		timeout:  timeout,
		logger:   logger,
		metrics:  m,
		onChange: onChange,
	}
}

// Request fetches suggestions for msg in the background. It is a no-op when
// the same message with the same content was already asked about.
func (a *SmartReplyAdvisor) Request(ctx context.Context, msg Message) {
	key := msg.ID + "\x00" + msg.Content

	a.mu.Lock()
	if key == a.lastKey {
		a.mu.Unlock()
		return
	}
	a.lastKey = key
	a.generation++
	gen := a.generation
	cleared := len(a.suggestions) > 0
	a.suggestions = nil
	a.mu.Unlock()

	if cleared {
		a.onChange(nil)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.fetch(ctx, gen, msg.Content)
	}()
}

// Clear empties the list and abandons any request in flight
func (a *SmartReplyAdvisor) Clear() {
	a.mu.Lock()
	a.generation++
	a.lastKey = ""
	cleared := len(a.suggestions) > 0
	a.suggestions = nil
	a.mu.Unlock()

	if cleared {
		a.onChange(nil)
	}
}

// Suggestions returns the current list
func (a *SmartReplyAdvisor) Suggestions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.suggestions...)
}

// Contains reports whether text is one of the current suggestions
func (a *SmartReplyAdvisor) Contains(text string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.suggestions {
		if s == text {
			return true
		}
	}
	return false
}

// Wait blocks until all in-flight requests have finished
func (a *SmartReplyAdvisor) Wait() {
	a.wg.Wait()
}

func (a *SmartReplyAdvisor) fetch(ctx context.Context, gen uint64, content string) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	response, err := a.provider.GenerateContent(ctx, a.model, a.prompts.SmartReplyPrompt(content))
	var suggestions []string
	if err == nil {
		suggestions, err = ParseSuggestions(response)
	}

	a.mu.Lock()
	if gen != a.generation {
		a.mu.Unlock()
		a.metrics.SmartReply("superseded")
		return
	}
	a.suggestions = suggestions
	a.mu.Unlock()

	if err != nil {
		a.metrics.SmartReply("error")
		a.logger.Debug("smart_reply_failed", zap.Error(err))
		return
	}

	a.metrics.SmartReply("ok")
	a.onChange(append([]string(nil), suggestions...))
}
