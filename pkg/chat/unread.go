package chat

import "sync"

// UnreadTracker counts messages that arrived in conversations while they were
// not focused
type UnreadTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewUnreadTracker creates an empty tracker
func NewUnreadTracker() *UnreadTracker {
	return &UnreadTracker{counts: make(map[string]int)}
}

// Increment adds one to the conversation's counter and returns the new value
func (u *UnreadTracker) Increment(conversationID string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.counts[conversationID]++
	return u.counts[conversationID]
}

// Reset sets the conversation's counter to zero
func (u *UnreadTracker) Reset(conversationID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.counts, conversationID)
}

// Count returns the conversation's counter
func (u *UnreadTracker) Count(conversationID string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.counts[conversationID]
}

// Snapshot returns every non-zero counter
func (u *UnreadTracker) Snapshot() map[string]int {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[string]int, len(u.counts))
	for id, n := range u.counts {
		out[id] = n
	}
	return out
}
