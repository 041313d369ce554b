package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/testsabirweb/chatsim/pkg/catalog"
	"github.com/testsabirweb/chatsim/pkg/llm"
	"github.com/testsabirweb/chatsim/pkg/metrics"
	"github.com/testsabirweb/chatsim/pkg/prefs"
)

// ThemeKey is the preference key the selected theme is stored under
const ThemeKey = "chat-theme-id"

// Options configures a Session
type Options struct {
	Catalog           *catalog.Catalog
	Provider          llm.Provider
	Model             string
	Prefs             prefs.Store
	DeliveredAfter    time.Duration
	ReadAfter         time.Duration
	MaxBotSessions    int
	SmartReplyTimeout time.Duration
	Logger            *zap.Logger
	Metrics           *metrics.Metrics
}

// SendOptions carries the optional parts of an outgoing message
type SendOptions struct {
	ReplyToID string     `json:"replyToId,omitempty"`
	ImageURL  string     `json:"imageUrl,omitempty"`
	VoiceNote *VoiceNote `json:"voiceNote,omitempty"`
}

// State is a point-in-time view of the session
type State struct {
	User           *User          `json:"user"`
	Active         Conversation   `json:"active"`
	ActiveID       string         `json:"activeId,omitempty"`
	Composing      bool           `json:"composing"`
	Unread         map[string]int `json:"unread"`
	Suggestions    []string       `json:"suggestions"`
	Theme          catalog.Theme  `json:"theme"`
	Emojis         []string       `json:"emojis"`
	ReactionEmojis []string       `json:"reactionEmojis"`
}

// Session is the single chat session: the joined user, the focused
// conversation and everything hanging off them.
type Session struct {
	catalog *catalog.Catalog
	prefs   prefs.Store
	logger  *zap.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	directory *Directory
	store     *Store
	unread    *UnreadTracker
	delivery  *DeliverySimulator
	bot       *BotEngine
	advisor   *SmartReplyAdvisor

	mu      sync.RWMutex
	current *User
	active  Conversation
	rosters map[string][]string // channel name -> user ids
	theme   catalog.Theme

	listenerMu sync.RWMutex
	listeners  map[int]func(Event)
	nextID     int
}

// NewSession builds a session from the catalog seed data. The theme is read
// from the preference store once, falling back to the catalog default.
func NewSession(opts Options) (*Session, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("text-generation provider is required")
	}
	if opts.Prefs == nil {
		opts.Prefs = prefs.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	cat := opts.Catalog
	s := &Session{
		catalog:   cat,
		prefs:     opts.Prefs,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		rosters:   make(map[string][]string),
		listeners: make(map[int]func(Event)),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	bot := memberUser(cat.Bot)
	system := memberUser(cat.System)
	s.directory = NewDirectory(bot, system)
	for _, ch := range cat.Channels {
		for _, m := range cat.Rosters[ch.Name] {
			if _, ok := s.directory.Lookup(m.ID); !ok {
				s.directory.Put(memberUser(m))
			}
			s.rosters[ch.Name] = append(s.rosters[ch.Name], m.ID)
		}
	}

	s.store = NewStore(s.directory)
	for _, ch := range cat.Channels {
		if ch.Welcome == "" {
			continue
		}
		s.store.Append(ch.ID, Message{
			ID:       "welcome-" + ch.ID,
			Kind:     MessageSystem,
			AuthorID: system.ID,
			Content:  ch.Welcome,
		})
	}
	s.store.Subscribe(s.onStoreEvent)

	s.unread = NewUnreadTracker()
	s.delivery = NewDeliverySimulator(s.store, opts.DeliveredAfter, opts.ReadAfter, s.logger.Named("delivery"))

	engine, err := newBotEngine(opts.Provider, s.store, s, BotConfig{
		Model:       opts.Model,
		MaxSessions: opts.MaxBotSessions,
		Bot:         bot,
		System:      system,
	}, s.logger.Named("bot"), s.metrics)
	if err != nil {
		return nil, err
	}
	s.bot = engine

	s.advisor = NewSmartReplyAdvisor(opts.Provider, opts.Model, opts.SmartReplyTimeout, s.logger.Named("smart_reply"), s.metrics, func(suggestions []string) {
		s.emit(Event{Type: EventSuggestionsChanged, Data: suggestions})
	})

	s.active = ChannelConversation(cat.Channels[0])
	s.theme = s.loadTheme()

	return s, nil
}

// Close stops timers and waits for background replies to finish
func (s *Session) Close() {
	s.cancel()
	s.delivery.Stop()
	s.bot.Wait()
	s.advisor.Wait()
}

// Subscribe registers a listener for session events and returns a function
// that removes it
func (s *Session) Subscribe(fn func(Event)) func() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.listenerMu.Lock()
		defer s.listenerMu.Unlock()
		delete(s.listeners, id)
	}
}

// Join creates the session user and places them in every channel
func (s *Session) Join(username string) (User, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return User{}, ErrInvalidUsername
	}

	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return User{}, ErrAlreadyJoined
	}
	user := User{
		ID:       "user-" + uuid.NewString(),
		Username: name,
		Status:   "Online",
		LastSeen: "now",
	}
	s.current = &user
	first := s.catalog.Channels[0]
	active := ChannelConversation(first)
	s.active = active
	for _, ch := range s.catalog.Channels {
		s.rosters[ch.Name] = append(s.rosters[ch.Name], user.ID)
	}
	s.mu.Unlock()

	s.directory.Put(user)
	s.store.SetViewer(user.ID)
	s.unread.Reset(first.ID)

	s.post(first.ID, s.systemMessage(fmt.Sprintf("%s has joined the chat.", name)))

	s.logger.Info("user_joined", zap.String("user_id", user.ID), zap.String("username", name))
	s.emit(Event{Type: EventUserChanged, Data: user})
	s.emit(Event{Type: EventActiveChanged, ConversationID: first.ID, Data: active})
	s.refreshSuggestions()

	return user, nil
}

// Logout ends the session. The user leaves every roster but stays in the
// directory so history keeps rendering them.
func (s *Session) Logout() error {
	s.mu.RLock()
	if s.current == nil {
		s.mu.RUnlock()
		return ErrNoSession
	}
	user := *s.current
	active := s.active
	s.mu.RUnlock()

	if active.IsChannel() {
		s.post(active.Channel.ID, s.systemMessage(fmt.Sprintf("%s has left the chat.", user.Username)))
	}

	s.mu.Lock()
	for name, ids := range s.rosters {
		kept := ids[:0]
		for _, id := range ids {
			if id != user.ID {
				kept = append(kept, id)
			}
		}
		s.rosters[name] = kept
	}
	s.current = nil
	s.active = ChannelConversation(s.catalog.Channels[0])
	s.mu.Unlock()

	s.store.SetViewer("")
	s.bot.Reset()
	s.advisor.Clear()

	s.logger.Info("user_left", zap.String("user_id", user.ID))
	s.emit(Event{Type: EventUserChanged, Data: nil})
	return nil
}

// UpdateProfile changes the session user's name, status and avatar. Empty
// arguments keep the current value. A rename is announced in the active
// conversation.
func (s *Session) UpdateProfile(username, status, avatarURL string) (User, error) {
	name := strings.TrimSpace(username)
	if username != "" && name == "" {
		return User{}, ErrInvalidUsername
	}

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return User{}, ErrNoSession
	}
	oldName := s.current.Username
	if name == "" {
		name = oldName
	}
	s.current.Username = name
	if status != "" {
		s.current.Status = status
	}
	if avatarURL != "" {
		s.current.AvatarURL = avatarURL
	}
	user := *s.current
	active := s.active
	s.mu.Unlock()

	s.directory.Put(user)

	if oldName != name {
		if convID, err := ResolveID(active, user.ID); err == nil {
			s.post(convID, s.systemMessage(fmt.Sprintf("%s is now known as %s.", oldName, name)))
		}
	}

	s.emit(Event{Type: EventUserChanged, Data: user})
	return user, nil
}

// Select focuses a channel (by channel id) or a direct message (by peer user
// id). Opening a direct message for the first time posts a greeting.
func (s *Session) Select(kind ConversationKind, targetID string) error {
	user, active, err := s.snapshot()
	if err != nil {
		return err
	}

	conv, err := s.lookupConversation(kind, targetID, user.ID)
	if err != nil {
		return err
	}

	newID, err := ResolveID(conv, user.ID)
	if err != nil {
		return err
	}
	oldID, _ := ResolveID(active, user.ID)
	if newID == oldID {
		return nil
	}

	fresh := conv.IsDirect() && !s.store.Has(newID)

	s.mu.Lock()
	s.active = conv
	s.mu.Unlock()

	if fresh {
		s.post(newID, s.systemMessage(fmt.Sprintf("This is the beginning of your direct message history with %s.", conv.Peer.Username)))
	}
	s.unread.Reset(newID)

	s.emit(Event{Type: EventActiveChanged, ConversationID: newID, Data: conv})
	s.emit(Event{Type: EventUnreadChanged, ConversationID: newID, Data: 0})
	s.refreshSuggestions()
	return nil
}

// Send posts a message from the session user to the active conversation
func (s *Session) Send(ctx context.Context, content string, opts SendOptions) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" && opts.ImageURL == "" && opts.VoiceNote == nil {
		return Message{}, ErrEmptyMessage
	}

	user, conv, err := s.snapshot()
	if err != nil {
		return Message{}, err
	}
	convID, err := ResolveID(conv, user.ID)
	if err != nil {
		return Message{}, err
	}

	if conv.IsChannel() && s.bot.Composing(convID) {
		return Message{}, ErrComposing
	}
	if opts.ReplyToID != "" {
		if _, ok := s.store.Message(convID, opts.ReplyToID); !ok {
			return Message{}, fmt.Errorf("%w: reply target %s", ErrUnknownMessage, opts.ReplyToID)
		}
	}

	// The composing slot is claimed before the message is posted so two
	// concurrent sends to a channel cannot both start a reply.
	botReply := content != "" && s.bot.Eligible(conv)
	if botReply && !s.bot.acquire(convID, conv.IsChannel()) {
		return Message{}, ErrComposing
	}

	msg := s.post(convID, Message{
		Kind:        MessageUser,
		AuthorID:    user.ID,
		Content:     content,
		Status:      StatusSent,
		ReplyToID:   opts.ReplyToID,
		ImageURL:    opts.ImageURL,
		VoiceNote:   opts.VoiceNote,
		LinkPreview: DetectLinkPreview(content),
		Mentions:    ParseMentions(content, s.Users()),
	})
	s.advisor.Clear()
	s.delivery.Schedule(convID, msg.ID, conv.IsDirect())

	s.logger.Debug("message_sent",
		zap.String("conversation_id", convID),
		zap.String("message_id", msg.ID))

	if botReply {
		s.bot.start(s.ctx, conv, convID, content)
	}

	return msg, nil
}

// SelectSuggestion sends one of the current smart replies verbatim
func (s *Session) SelectSuggestion(ctx context.Context, text string) (Message, error) {
	if !s.advisor.Contains(text) {
		return Message{}, ErrUnknownSuggestion
	}
	s.advisor.Clear()
	return s.Send(ctx, text, SendOptions{})
}

// Edit replaces the content of one of the session user's messages
func (s *Session) Edit(conversationID, messageID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	if err := s.authorize(conversationID, messageID); err != nil {
		return err
	}
	s.store.MutateContent(conversationID, messageID, content)
	return nil
}

// Delete removes one of the session user's messages
func (s *Session) Delete(conversationID, messageID string) error {
	if err := s.authorize(conversationID, messageID); err != nil {
		return err
	}
	s.delivery.Cancel(messageID)
	s.store.Remove(conversationID, messageID)
	return nil
}

// React toggles the session user's reaction on a message
func (s *Session) React(conversationID, messageID, emoji string) error {
	if emoji == "" {
		return ErrInvalidReaction
	}
	user, _, err := s.snapshot()
	if err != nil {
		return err
	}
	s.store.ToggleReaction(conversationID, messageID, emoji, user.ID)
	return nil
}

// TogglePin pins or unpins a message
func (s *Session) TogglePin(conversationID, messageID string) error {
	if _, _, err := s.snapshot(); err != nil {
		return err
	}
	s.store.TogglePin(conversationID, messageID)
	return nil
}

// Messages returns the log of a conversation, or the messages matching query
// when it is not empty
func (s *Session) Messages(conversationID, query string) ([]Message, error) {
	if _, _, err := s.snapshot(); err != nil {
		return nil, err
	}
	if query != "" {
		return s.store.Search(conversationID, query), nil
	}
	return s.store.Messages(conversationID), nil
}

// Pinned returns the pinned messages of a conversation, newest first
func (s *Session) Pinned(conversationID string) ([]Message, error) {
	if _, _, err := s.snapshot(); err != nil {
		return nil, err
	}
	return s.store.Pinned(conversationID), nil
}

// Users returns everyone in any roster plus the session user, in roster order
func (s *Session) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var users []User
	add := func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		if u, ok := s.directory.Lookup(id); ok {
			users = append(users, u)
		}
	}
	for _, ch := range s.catalog.Channels {
		for _, id := range s.rosters[ch.Name] {
			add(id)
		}
	}
	if s.current != nil {
		add(s.current.ID)
	}
	return users
}

// ChannelMembers returns the roster of a channel
func (s *Session) ChannelMembers(channelID string) ([]User, error) {
	ch, ok := s.channel(channelID)
	if !ok {
		return nil, fmt.Errorf("%w: channel %s", ErrUnknownConversation, channelID)
	}

	s.mu.RLock()
	ids := append([]string(nil), s.rosters[ch.Name]...)
	s.mu.RUnlock()

	users := make([]User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.directory.Lookup(id); ok {
			users = append(users, u)
		}
	}
	return users, nil
}

// Channels returns the channel list
func (s *Session) Channels() []catalog.Channel {
	return append([]catalog.Channel(nil), s.catalog.Channels...)
}

// Conversations lists every channel and a direct message with every other
// user, with unread counts
func (s *Session) Conversations() ([]ConversationSummary, error) {
	user, active, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	activeID, _ := ResolveID(active, user.ID)

	var out []ConversationSummary
	for _, ch := range s.catalog.Channels {
		out = append(out, ConversationSummary{
			ID:          ch.ID,
			Kind:        ConversationChannel,
			TargetID:    ch.ID,
			Name:        ch.Name,
			Description: ch.Description,
			Unread:      s.unread.Count(ch.ID),
			Active:      ch.ID == activeID,
		})
	}
	for _, u := range s.Users() {
		if u.ID == user.ID {
			continue
		}
		id := DirectID(user.ID, u.ID)
		out = append(out, ConversationSummary{
			ID:       id,
			Kind:     ConversationDirect,
			TargetID: u.ID,
			Name:     u.Username,
			Unread:   s.unread.Count(id),
			Active:   id == activeID,
		})
	}
	return out, nil
}

// Active returns the focused conversation and its log key
func (s *Session) Active() (Conversation, string, error) {
	user, conv, err := s.snapshot()
	if err != nil {
		return Conversation{}, "", err
	}
	id, err := ResolveID(conv, user.ID)
	return conv, id, err
}

// CurrentUser returns the joined user
func (s *Session) CurrentUser() (User, error) {
	user, _, err := s.snapshot()
	return user, err
}

// MentionCandidates returns users whose name starts with prefix, ignoring
// case. The bot is never offered.
func (s *Session) MentionCandidates(prefix string) []User {
	needle := strings.ToLower(prefix)
	var out []User
	for _, u := range s.Users() {
		if u.ID == s.catalog.Bot.ID {
			continue
		}
		if strings.HasPrefix(strings.ToLower(u.Username), needle) {
			out = append(out, u)
		}
	}
	return out
}

// UnreadCounts returns the non-zero unread counters
func (s *Session) UnreadCounts() map[string]int {
	return s.unread.Snapshot()
}

// Composing reports whether the bot is replying in a conversation
func (s *Session) Composing(conversationID string) bool {
	return s.bot.Composing(conversationID)
}

// Suggestions returns the current smart replies
func (s *Session) Suggestions() []string {
	return s.advisor.Suggestions()
}

// Theme returns the selected theme
func (s *Session) Theme() catalog.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// Themes returns the selectable themes
func (s *Session) Themes() []catalog.Theme {
	return append([]catalog.Theme(nil), s.catalog.Themes...)
}

// SetTheme selects a theme and persists the choice
func (s *Session) SetTheme(id string) (catalog.Theme, error) {
	theme, ok := s.catalog.Theme(id)
	if !ok {
		return catalog.Theme{}, fmt.Errorf("%w: %s", ErrUnknownTheme, id)
	}

	if err := s.prefs.Set(ThemeKey, theme.ID); err != nil {
		return catalog.Theme{}, fmt.Errorf("failed to persist theme: %w", err)
	}

	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()

	s.emit(Event{Type: EventThemeChanged, Data: theme})
	return theme, nil
}

// Snapshot returns the state shown when a client connects
func (s *Session) Snapshot() State {
	s.mu.RLock()
	var user *User
	if s.current != nil {
		u := *s.current
		user = &u
	}
	active := s.active
	theme := s.theme
	s.mu.RUnlock()

	state := State{
		User:           user,
		Active:         active,
		Unread:         s.unread.Snapshot(),
		Suggestions:    s.advisor.Suggestions(),
		Theme:          theme,
		Emojis:         s.catalog.Emojis,
		ReactionEmojis: s.catalog.ReactionEmojis,
	}
	if user != nil {
		if id, err := ResolveID(active, user.ID); err == nil {
			state.ActiveID = id
			state.Composing = s.bot.Composing(id)
		}
	}
	return state
}

// post appends a message, counting it as unread unless its conversation is
// focused
func (s *Session) post(conversationID string, msg Message) Message {
	view := s.store.Append(conversationID, msg)
	s.metrics.MessageAppended(string(view.Kind))

	if conversationID != s.activeID() {
		n := s.unread.Increment(conversationID)
		s.emit(Event{Type: EventUnreadChanged, ConversationID: conversationID, Data: n})
	}
	return view
}

func (s *Session) composingChanged(conversationID string, composing bool) {
	s.emit(Event{Type: EventComposingChanged, ConversationID: conversationID, Data: composing})
	if !composing && conversationID == s.activeID() {
		s.refreshSuggestions()
	}
}

func (s *Session) onStoreEvent(e Event) {
	s.emit(e)
	if e.ConversationID == s.activeID() {
		s.refreshSuggestions()
	}
}

// refreshSuggestions looks at the last message of the focused conversation
// and asks for replies to it when it came from someone else
func (s *Session) refreshSuggestions() {
	user, conv, err := s.snapshot()
	if err != nil {
		s.advisor.Clear()
		return
	}
	convID, err := ResolveID(conv, user.ID)
	if err != nil {
		s.advisor.Clear()
		return
	}

	last, ok := s.store.Last(convID)
	switch {
	case !ok, last.Kind == MessageSystem, last.AuthorID == user.ID:
		s.advisor.Clear()
	case last.AuthorID == s.catalog.Bot.ID && s.bot.Composing(convID):
		s.advisor.Clear()
	default:
		s.advisor.Request(s.ctx, last)
	}
}

func (s *Session) authorize(conversationID, messageID string) error {
	user, _, err := s.snapshot()
	if err != nil {
		return err
	}
	msg, ok := s.store.Message(conversationID, messageID)
	if !ok {
		return nil
	}
	if msg.AuthorID != user.ID {
		return ErrNotAuthor
	}
	return nil
}

func (s *Session) snapshot() (User, Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return User{}, Conversation{}, ErrNoSession
	}
	return *s.current, s.active, nil
}

func (s *Session) activeID() string {
	user, conv, err := s.snapshot()
	if err != nil {
		return ""
	}
	id, _ := ResolveID(conv, user.ID)
	return id
}

func (s *Session) lookupConversation(kind ConversationKind, targetID, selfID string) (Conversation, error) {
	switch kind {
	case ConversationChannel:
		ch, ok := s.channel(targetID)
		if !ok {
			return Conversation{}, fmt.Errorf("%w: channel %s", ErrUnknownConversation, targetID)
		}
		return ChannelConversation(ch), nil
	case ConversationDirect:
		peer, ok := s.directory.Lookup(targetID)
		if !ok || targetID == s.catalog.System.ID || targetID == selfID {
			return Conversation{}, fmt.Errorf("%w: user %s", ErrUnknownConversation, targetID)
		}
		return DirectConversation(peer), nil
	default:
		return Conversation{}, fmt.Errorf("%w: kind %q", ErrUnknownConversation, kind)
	}
}

func (s *Session) channel(id string) (catalog.Channel, bool) {
	for _, ch := range s.catalog.Channels {
		if ch.ID == id {
			return ch, true
		}
	}
	return catalog.Channel{}, false
}

func (s *Session) systemMessage(content string) Message {
	return Message{
		Kind:     MessageSystem,
		AuthorID: s.catalog.System.ID,
		Content:  content,
	}
}

func (s *Session) loadTheme() catalog.Theme {
	id, ok, err := s.prefs.Get(ThemeKey)
	if err != nil {
		s.logger.Warn("theme_load_failed", zap.Error(err))
	}
	if ok {
		if theme, found := s.catalog.Theme(id); found {
			return theme
		}
	}
	return s.catalog.DefaultTheme()
}

func (s *Session) emit(e Event) {
	s.listenerMu.RLock()
	listeners := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenerMu.RUnlock()

	for _, fn := range listeners {
		fn(e)
	}
}

func memberUser(m catalog.Member) User {
	return User{ID: m.ID, Username: m.Username}
}
