package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/testsabirweb/chatsim/pkg/llm"
	"github.com/testsabirweb/chatsim/pkg/metrics"
)

// BotErrorReply is posted as a system message when a reply cannot be produced
const BotErrorReply = "Sorry, I'm having trouble connecting right now."

// botHost is what the engine needs from the session it serves
type botHost interface {
	// post appends a message with unread accounting
	post(conversationID string, msg Message) Message
	// composingChanged is called after the composing flag of a conversation flips
	composingChanged(conversationID string, composing bool)
}

// BotConfig holds bot engine configuration
type BotConfig struct {
	Model       string
	MaxSessions int
	Bot         User
	System      User
}

// BotEngine streams replies from the text-generation service into
// placeholder messages. It keeps one dialogue session per conversation.
type BotEngine struct {
	provider llm.Provider
	prompts  *PromptBuilder
	store    *Store
	host     botHost
	config   BotConfig
	logger   *zap.Logger
	metrics  *metrics.Metrics

	sessions  *lru.Cache[string, llm.Session]
	sessionMu sync.Mutex

	mu        sync.Mutex
	composing map[string]int // replies in flight per conversation

	wg sync.WaitGroup
}

func newBotEngine(provider llm.Provider, store *Store, host botHost, config BotConfig, logger *zap.Logger, m *metrics.Metrics) (*BotEngine, error) {
	if config.MaxSessions < 1 {
		return nil, fmt.Errorf("bot sessions limit must be at least 1, got %d", config.MaxSessions)
	}

	b := &BotEngine{
		provider:  provider,
		prompts:   NewPromptBuilder(config.Bot.Username),
		store:     store,
		host:      host,
		config:    config,
		logger:    logger,
		metrics:   m,
		composing: make(map[string]int),
	}

	sessions, err := lru.NewWithEvict[string, llm.Session](config.MaxSessions, func(conversationID string, _ llm.Session) {
		b.logger.Debug("bot_session_evicted", zap.String("conversation_id", conversationID))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot session cache: %w", err)
	}
	b.sessions = sessions

	return b, nil
}

// Eligible reports whether sends in conv get a bot reply: every channel, and
// the direct message with the bot itself
func (b *BotEngine) Eligible(conv Conversation) bool {
	if conv.IsChannel() {
		return true
	}
	return conv.IsDirect() && conv.Peer != nil && conv.Peer.ID == b.config.Bot.ID
}

// Composing reports whether a reply is being streamed into the conversation
func (b *BotEngine) Composing(conversationID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.composing[conversationID] > 0
}

// Reply posts an empty bot placeholder and streams the answer to text into it
// in the background. The stream runs on ctx, not on the caller's request.
func (b *BotEngine) Reply(ctx context.Context, conv Conversation, conversationID, text string) Message {
	b.acquire(conversationID, false)
	return b.start(ctx, conv, conversationID, text)
}

// start runs a reply whose composing slot is already held
func (b *BotEngine) start(ctx context.Context, conv Conversation, conversationID, text string) Message {
	placeholder := b.host.post(conversationID, Message{
		ID:       "msg-" + uuid.NewString() + "-bot",
		Kind:     MessageUser,
		AuthorID: b.config.Bot.ID,
	})

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.endComposing(conversationID)
		b.stream(ctx, conv, conversationID, placeholder.ID, text)
	}()

	return placeholder
}

// HasSession reports whether a dialogue session is cached for the conversation
func (b *BotEngine) HasSession(conversationID string) bool {
	return b.sessions.Contains(conversationID)
}

// Sessions returns the number of cached dialogue sessions
func (b *BotEngine) Sessions() int {
	return b.sessions.Len()
}

// Reset drops every dialogue session. Streams in flight finish on the
// session they started with.
func (b *BotEngine) Reset() {
	b.sessionMu.Lock()
	defer b.sessionMu.Unlock()

	b.sessions.Purge()
	b.metrics.SetBotSessions(0)
}

// Wait blocks until all in-flight replies have finished
func (b *BotEngine) Wait() {
	b.wg.Wait()
}

func (b *BotEngine) stream(ctx context.Context, conv Conversation, conversationID, placeholderID, text string) {
	err := b.relay(ctx, conv, conversationID, placeholderID, text)
	if err == nil {
		b.metrics.BotReply("ok")
		return
	}

	if ctx.Err() != nil {
		b.metrics.BotReply("cancelled")
		b.logger.Debug("bot_stream_cancelled", zap.String("conversation_id", conversationID))
		b.store.Remove(conversationID, placeholderID)
		return
	}

	b.metrics.BotReply("error")
	b.logger.Warn("bot_stream_failed",
		zap.String("conversation_id", conversationID),
		zap.Error(err))

	b.store.Remove(conversationID, placeholderID)
	b.host.post(conversationID, Message{
		ID:       "err-" + uuid.NewString(),
		Kind:     MessageSystem,
		AuthorID: b.config.System.ID,
		Content:  BotErrorReply,
	})
}

// relay writes the cumulative reply over the placeholder as chunks arrive
func (b *BotEngine) relay(ctx context.Context, conv Conversation, conversationID, placeholderID, text string) error {
	session, err := b.session(ctx, conv, conversationID)
	if err != nil {
		return err
	}

	chunks, errs := session.SendMessageStream(ctx, text)

	var reply strings.Builder
	for chunks != nil || errs != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			reply.WriteString(chunk)
			b.store.WriteContent(conversationID, placeholderID, reply.String())

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return fmt.Errorf("reply stream: %w", err)
			}
		}
	}

	return nil
}

// session returns the cached dialogue for the conversation, opening one with
// the conversation's system instruction on first use
func (b *BotEngine) session(ctx context.Context, conv Conversation, conversationID string) (llm.Session, error) {
	b.sessionMu.Lock()
	defer b.sessionMu.Unlock()

	if s, ok := b.sessions.Get(conversationID); ok {
		return s, nil
	}

	s, err := b.provider.NewSession(ctx, b.config.Model, b.prompts.SystemInstruction(conv))
	if err != nil {
		return nil, fmt.Errorf("open bot session: %w", err)
	}

	b.sessions.Add(conversationID, s)
	b.metrics.SetBotSessions(b.sessions.Len())
	b.logger.Debug("bot_session_opened",
		zap.String("conversation_id", conversationID),
		zap.String("conversation", conv.Name()))

	return s, nil
}

// acquire takes a composing slot for the conversation. With exclusive set it
// fails when a reply is already running there.
func (b *BotEngine) acquire(conversationID string, exclusive bool) bool {
	b.mu.Lock()
	if exclusive && b.composing[conversationID] > 0 {
		b.mu.Unlock()
		return false
	}
	b.composing[conversationID]++
	first := b.composing[conversationID] == 1
	b.mu.Unlock()

	if first {
		b.host.composingChanged(conversationID, true)
	}
	return true
}

func (b *BotEngine) endComposing(conversationID string) {
	b.mu.Lock()
	b.composing[conversationID]--
	last := b.composing[conversationID] <= 0
	if last {
		delete(b.composing, conversationID)
	}
	b.mu.Unlock()

	if last {
		b.host.composingChanged(conversationID, false)
	}
}
