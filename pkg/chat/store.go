package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UserLookup resolves author ids when messages are read
type UserLookup interface {
	Lookup(id string) (User, bool)
}

// Store keeps the ordered message log of every conversation.
//
// Mutations on a missing conversation or message are no-ops that return
// false. Listeners are called after the store lock is released, in the order
// the changes were made by a single goroutine.
type Store struct {
	mu        sync.RWMutex
	logs      map[string][]*Message
	pins      map[string][]string // newest first
	seq       uint64
	viewerID  string
	users     UserLookup
	now       func() time.Time
	listeners []func(Event)
}

// NewStore creates an empty store that joins authors against users
func NewStore(users UserLookup) *Store {
	return &Store{
		logs:  make(map[string][]*Message),
		pins:  make(map[string][]string),
		users: users,
		now:   time.Now,
	}
}

// SetViewer sets the user whose incoming messages count as read on append
func (s *Store) SetViewer(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewerID = userID
}

// Subscribe registers a change listener
func (s *Store) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Append adds msg to the end of the conversation log and returns the stored
// view. Every earlier participant message not authored by the viewer is marked
// read, since answering a conversation implies having seen it.
func (s *Store) Append(conversationID string, msg Message) Message {
	s.mu.Lock()

	if msg.ID == "" {
		msg.ID = "msg-" + uuid.NewString()
	}
	s.seq++
	msg.Seq = s.seq
	msg.ConversationID = conversationID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	if msg.Timestamp == "" {
		msg.Timestamp = msg.CreatedAt.Format("15:04")
	}
	if msg.Kind == "" {
		msg.Kind = MessageUser
	}
	msg.Author = User{}
	msg.ReplyTo = nil
	msg.Pinned = false

	viewer := s.viewerID
	if viewer == "" {
		viewer = msg.AuthorID
	}

	var events []Event
	for _, m := range s.logs[conversationID] {
		if m.Kind != MessageUser || m.AuthorID == viewer || m.Status == StatusRead {
			continue
		}
		m.Status = StatusRead
		events = append(events, s.eventLocked(EventMessageUpdated, conversationID, m))
	}

	stored := msg.clone()
	s.logs[conversationID] = append(s.logs[conversationID], stored)
	view := s.viewLocked(conversationID, stored)
	events = append(events, Event{Type: EventMessageAppended, ConversationID: conversationID, MessageID: view.ID, Message: &view})

	listeners := s.listeners
	s.mu.Unlock()

	s.emit(listeners, events)
	return view
}

// MutateContent replaces the content of a message and flags it as edited
func (s *Store) MutateContent(conversationID, messageID, content string) bool {
	return s.update(conversationID, messageID, func(m *Message) {
		m.Content = content
		m.Edited = true
	})
}

// WriteContent replaces the content of a message without flagging an edit
func (s *Store) WriteContent(conversationID, messageID, content string) bool {
	return s.update(conversationID, messageID, func(m *Message) {
		m.Content = content
	})
}

// SetStatus overwrites the delivery status of a message
func (s *Store) SetStatus(conversationID, messageID string, status Status) bool {
	return s.update(conversationID, messageID, func(m *Message) {
		m.Status = status
	})
}

// ToggleReaction adds or removes userID's reaction. A user holds at most one
// reaction per message, so picking a new emoji drops the previous one.
func (s *Store) ToggleReaction(conversationID, messageID, emoji, userID string) bool {
	if emoji == "" || userID == "" {
		return false
	}

	return s.update(conversationID, messageID, func(m *Message) {
		had := false
		for _, id := range m.Reactions[emoji] {
			if id == userID {
				had = true
				break
			}
		}

		for e, users := range m.Reactions {
			kept := users[:0]
			for _, id := range users {
				if id != userID {
					kept = append(kept, id)
				}
			}
			if len(kept) == 0 {
				delete(m.Reactions, e)
			} else {
				m.Reactions[e] = kept
			}
		}

		if !had {
			if m.Reactions == nil {
				m.Reactions = make(map[string][]string)
			}
			m.Reactions[emoji] = append(m.Reactions[emoji], userID)
		}
		if len(m.Reactions) == 0 {
			m.Reactions = nil
		}
	})
}

// TogglePin pins or unpins a message. Newly pinned messages go to the front of
// the pinned list.
func (s *Store) TogglePin(conversationID, messageID string) bool {
	s.mu.Lock()

	_, m := s.findLocked(conversationID, messageID)
	if m == nil {
		s.mu.Unlock()
		return false
	}

	pins := s.pins[conversationID]
	if idx := indexOf(pins, messageID); idx >= 0 {
		s.pins[conversationID] = append(pins[:idx:idx], pins[idx+1:]...)
	} else {
		s.pins[conversationID] = append([]string{messageID}, pins...)
	}

	events := []Event{
		s.eventLocked(EventMessageUpdated, conversationID, m),
		{Type: EventPinsChanged, ConversationID: conversationID, MessageID: messageID, Data: s.pinnedLocked(conversationID)},
	}
	listeners := s.listeners
	s.mu.Unlock()

	s.emit(listeners, events)
	return true
}

// Remove deletes a message outright and drops it from the pinned list
func (s *Store) Remove(conversationID, messageID string) bool {
	s.mu.Lock()

	idx, m := s.findLocked(conversationID, messageID)
	if m == nil {
		s.mu.Unlock()
		return false
	}

	log := s.logs[conversationID]
	s.logs[conversationID] = append(log[:idx:idx], log[idx+1:]...)

	events := []Event{{Type: EventMessageRemoved, ConversationID: conversationID, MessageID: messageID}}
	if pins := s.pins[conversationID]; indexOf(pins, messageID) >= 0 {
		i := indexOf(pins, messageID)
		s.pins[conversationID] = append(pins[:i:i], pins[i+1:]...)
		events = append(events, Event{Type: EventPinsChanged, ConversationID: conversationID, MessageID: messageID, Data: s.pinnedLocked(conversationID)})
	}
	listeners := s.listeners
	s.mu.Unlock()

	s.emit(listeners, events)
	return true
}

// Has reports whether a log exists for the conversation
func (s *Store) Has(conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.logs[conversationID]
	return ok
}

// Messages returns the conversation log in order
func (s *Store) Messages(conversationID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.logs[conversationID]
	out := make([]Message, 0, len(log))
	for _, m := range log {
		out = append(out, s.viewLocked(conversationID, m))
	}
	return out
}

// Message returns a single message
func (s *Store) Message(conversationID, messageID string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, m := s.findLocked(conversationID, messageID)
	if m == nil {
		return Message{}, false
	}
	return s.viewLocked(conversationID, m), true
}

// Last returns the most recent message of the conversation
func (s *Store) Last(conversationID string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.logs[conversationID]
	if len(log) == 0 {
		return Message{}, false
	}
	return s.viewLocked(conversationID, log[len(log)-1]), true
}

// Pinned returns the pinned messages, most recently pinned first
func (s *Store) Pinned(conversationID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pinnedLocked(conversationID)
}

// Search returns messages whose content contains query, ignoring case
func (s *Store) Search(conversationID, query string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	out := make([]Message, 0)
	for _, m := range s.logs[conversationID] {
		if strings.Contains(strings.ToLower(m.Content), needle) {
			out = append(out, s.viewLocked(conversationID, m))
		}
	}
	return out
}

func (s *Store) update(conversationID, messageID string, fn func(*Message)) bool {
	s.mu.Lock()

	_, m := s.findLocked(conversationID, messageID)
	if m == nil {
		s.mu.Unlock()
		return false
	}
	fn(m)

	event := s.eventLocked(EventMessageUpdated, conversationID, m)
	listeners := s.listeners
	s.mu.Unlock()

	s.emit(listeners, []Event{event})
	return true
}

func (s *Store) findLocked(conversationID, messageID string) (int, *Message) {
	for i, m := range s.logs[conversationID] {
		if m.ID == messageID {
			return i, m
		}
	}
	return -1, nil
}

func (s *Store) pinnedLocked(conversationID string) []Message {
	pins := s.pins[conversationID]
	out := make([]Message, 0, len(pins))
	for _, id := range pins {
		if _, m := s.findLocked(conversationID, id); m != nil {
			out = append(out, s.viewLocked(conversationID, m))
		}
	}
	return out
}

// viewLocked copies a stored message and joins in author, quoted reply and
// pin state
func (s *Store) viewLocked(conversationID string, m *Message) Message {
	v := m.clone()
	v.Author = s.author(m.AuthorID)
	v.Pinned = indexOf(s.pins[conversationID], m.ID) >= 0

	if m.ReplyToID != "" {
		if _, target := s.findLocked(conversationID, m.ReplyToID); target != nil {
			quoted := target.clone()
			quoted.Author = s.author(target.AuthorID)
			v.ReplyTo = quoted
		}
	}
	return *v
}

func (s *Store) eventLocked(t EventType, conversationID string, m *Message) Event {
	view := s.viewLocked(conversationID, m)
	return Event{Type: t, ConversationID: conversationID, MessageID: m.ID, Message: &view}
}

func (s *Store) author(id string) User {
	if s.users != nil {
		if u, ok := s.users.Lookup(id); ok {
			return u
		}
	}
	return User{ID: id}
}

func (s *Store) emit(listeners []func(Event), events []Event) {
	for _, e := range events {
		for _, fn := range listeners {
			fn(e)
		}
	}
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
