package chat

import (
	"github.com/testsabirweb/chatsim/pkg/catalog"
)

// ConversationKind tells channels and direct messages apart
type ConversationKind string

const (
	ConversationChannel ConversationKind = "channel"
	ConversationDirect  ConversationKind = "dm"
)

// Conversation is the active target of the session: either a channel or a
// direct message with one peer. Exactly one of Channel and Peer is set.
type Conversation struct {
	Kind    ConversationKind `json:"type"`
	Channel *catalog.Channel `json:"channel,omitempty"`
	Peer    *User            `json:"user,omitempty"`
}

// ChannelConversation targets a channel
func ChannelConversation(ch catalog.Channel) Conversation {
	return Conversation{Kind: ConversationChannel, Channel: &ch}
}

// DirectConversation targets a direct message with peer
func DirectConversation(peer User) Conversation {
	return Conversation{Kind: ConversationDirect, Peer: &peer}
}

// IsChannel reports whether the conversation is a channel
func (c Conversation) IsChannel() bool {
	return c.Kind == ConversationChannel
}

// IsDirect reports whether the conversation is a direct message
func (c Conversation) IsDirect() bool {
	return c.Kind == ConversationDirect
}

// Name is the label shown for the conversation
func (c Conversation) Name() string {
	switch {
	case c.IsChannel() && c.Channel != nil:
		return c.Channel.Name
	case c.IsDirect() && c.Peer != nil:
		return c.Peer.Username
	}
	return ""
}

// ConversationSummary is one sidebar row
type ConversationSummary struct {
	ID          string           `json:"id"`
	Kind        ConversationKind `json:"type"`
	TargetID    string           `json:"targetId"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Unread      int              `json:"unread"`
	Active      bool             `json:"active"`
}
