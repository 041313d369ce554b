package chat

import "errors"

var (
	ErrNoSession           = errors.New("no user has joined")
	ErrAlreadyJoined       = errors.New("a user has already joined")
	ErrInvalidUsername     = errors.New("username is required")
	ErrComposing           = errors.New("bot is still composing a reply")
	ErrEmptyMessage        = errors.New("message is empty")
	ErrNotAuthor           = errors.New("only the author can change this message")
	ErrUnknownTheme        = errors.New("unknown theme")
	ErrUnknownConversation = errors.New("unknown conversation")
	ErrUnknownMessage      = errors.New("unknown message")
	ErrUnknownSuggestion   = errors.New("not a current suggestion")
	ErrInvalidReaction     = errors.New("reaction emoji is required")
)
