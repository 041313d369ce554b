package chat

import (
	"time"
)

// User is a chat participant
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Status    string `json:"status,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	LastSeen  string `json:"lastSeen,omitempty"`
}

// MessageKind distinguishes participant messages from system notices
type MessageKind string

const (
	MessageUser   MessageKind = "user"
	MessageSystem MessageKind = "system"
)

// Status is the simulated delivery state of an outgoing message
type Status string

const (
	StatusNone      Status = ""
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// VoiceNote is a recorded audio attachment
type VoiceNote struct {
	URL      string  `json:"url"`
	Duration float64 `json:"duration"` // seconds
}

// LinkPreview is the card shown under a message containing a URL
type LinkPreview struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Message is one entry of a conversation log.
//
// Author and ReplyTo are not stored: the log keeps AuthorID and ReplyToID and
// the store joins them in when a message is read, so a profile edit shows up
// across the whole history. Pinned is derived from the conversation's pinned
// list the same way.
type Message struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversationId"`
	Seq            uint64              `json:"seq"`
	CreatedAt      time.Time           `json:"createdAt"`
	Timestamp      string              `json:"timestamp"`
	Kind           MessageKind         `json:"type"`
	Content        string              `json:"content"`
	AuthorID       string              `json:"authorId"`
	Author         User                `json:"user"`
	Status         Status              `json:"status,omitempty"`
	ReplyToID      string              `json:"replyToId,omitempty"`
	ReplyTo        *Message            `json:"replyTo,omitempty"`
	ImageURL       string              `json:"imageUrl,omitempty"`
	VoiceNote      *VoiceNote          `json:"voiceNote,omitempty"`
	LinkPreview    *LinkPreview        `json:"linkPreview,omitempty"`
	Edited         bool                `json:"isEdited,omitempty"`
	Pinned         bool                `json:"isPinned,omitempty"`
	Reactions      map[string][]string `json:"reactions,omitempty"`
	Mentions       []string            `json:"mentions,omitempty"`
}

// clone returns a deep copy that shares no mutable state with m
func (m *Message) clone() *Message {
	c := *m
	c.ReplyTo = nil
	if m.VoiceNote != nil {
		v := *m.VoiceNote
		c.VoiceNote = &v
	}
	if m.LinkPreview != nil {
		l := *m.LinkPreview
		c.LinkPreview = &l
	}
	if m.Reactions != nil {
		c.Reactions = make(map[string][]string, len(m.Reactions))
		for emoji, users := range m.Reactions {
			c.Reactions[emoji] = append([]string(nil), users...)
		}
	}
	if m.Mentions != nil {
		c.Mentions = append([]string(nil), m.Mentions...)
	}
	return &c
}

// MentionsUser reports whether userID is mentioned in the message
func (m Message) MentionsUser(userID string) bool {
	for _, id := range m.Mentions {
		if id == userID {
			return true
		}
	}
	return false
}

// EventType names a change notification
type EventType string

const (
	EventMessageAppended    EventType = "message_appended"
	EventMessageUpdated     EventType = "message_updated"
	EventMessageRemoved     EventType = "message_removed"
	EventPinsChanged        EventType = "pins_changed"
	EventUnreadChanged      EventType = "unread_changed"
	EventComposingChanged   EventType = "composing_changed"
	EventSuggestionsChanged EventType = "suggestions_changed"
	EventActiveChanged      EventType = "active_changed"
	EventThemeChanged       EventType = "theme_changed"
	EventUserChanged        EventType = "user_changed"
)

// Event is emitted after a state change. Message carries the joined view for
// message events; Data carries the new value for the others.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversationId,omitempty"`
	MessageID      string    `json:"messageId,omitempty"`
	Message        *Message  `json:"message,omitempty"`
	Data           any       `json:"data,omitempty"`
}
