package chat

import (
	"fmt"
)

// DirectID is the canonical id of the direct message between two users. It
// does not depend on argument order.
func DirectID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "dm-" + a + "-" + b
}

// ResolveID maps a conversation to the key its log is stored under
func ResolveID(conv Conversation, selfUserID string) (string, error) {
	if selfUserID == "" {
		return "", ErrNoSession
	}

	switch conv.Kind {
	case ConversationChannel:
		if conv.Channel == nil {
			return "", fmt.Errorf("%w: channel not set", ErrUnknownConversation)
		}
		return conv.Channel.ID, nil
	case ConversationDirect:
		if conv.Peer == nil {
			return "", fmt.Errorf("%w: peer not set", ErrUnknownConversation)
		}
		return DirectID(selfUserID, conv.Peer.ID), nil
	default:
		return "", fmt.Errorf("%w: kind %q", ErrUnknownConversation, conv.Kind)
	}
}
