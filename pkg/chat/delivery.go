package chat

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// StatusWriter is the part of the store the delivery simulator writes to
type StatusWriter interface {
	SetStatus(conversationID, messageID string, status Status) bool
}

// DeliverySimulator advances outgoing messages from sent to delivered, and in
// direct messages on to read, on fixed timers
type DeliverySimulator struct {
	store          StatusWriter
	deliveredAfter time.Duration
	readAfter      time.Duration
	logger         *zap.Logger

	mu      sync.Mutex
	pending map[string]*deliveryTimers
	stopped bool
}

type deliveryTimers struct {
	timers    []*time.Timer
	remaining int
}

// NewDeliverySimulator creates a simulator writing to store
func NewDeliverySimulator(store StatusWriter, deliveredAfter, readAfter time.Duration, logger *zap.Logger) *DeliverySimulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliverySimulator{
		store:          store,
		deliveredAfter: deliveredAfter,
		readAfter:      readAfter,
		logger:         logger,
		pending:        make(map[string]*deliveryTimers),
	}
}

// Schedule starts the status timers for a freshly sent message
func (d *DeliverySimulator) Schedule(conversationID, messageID string, direct bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	entry := &deliveryTimers{}
	entry.timers = append(entry.timers, d.after(d.deliveredAfter, conversationID, messageID, StatusDelivered))
	if direct {
		entry.timers = append(entry.timers, d.after(d.readAfter, conversationID, messageID, StatusRead))
	}
	entry.remaining = len(entry.timers)
	d.pending[messageID] = entry
}

// Cancel stops the timers of a message, typically because it was deleted
func (d *DeliverySimulator) Cancel(messageID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.pending[messageID]; ok {
		for _, t := range entry.timers {
			t.Stop()
		}
		delete(d.pending, messageID)
	}
}

// Stop cancels every pending timer and rejects further schedules
func (d *DeliverySimulator) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for id, entry := range d.pending {
		for _, t := range entry.timers {
			t.Stop()
		}
		delete(d.pending, id)
	}
}

// Pending returns the number of messages with timers still outstanding
func (d *DeliverySimulator) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *DeliverySimulator) after(delay time.Duration, conversationID, messageID string, status Status) *time.Timer {
	return time.AfterFunc(delay, func() {
		if !d.fire(messageID) {
			return
		}
		if d.store.SetStatus(conversationID, messageID, status) {
			d.logger.Debug("message_status_changed",
				zap.String("conversation_id", conversationID),
				zap.String("message_id", messageID),
				zap.String("status", string(status)))
		}
	})
}

// fire accounts for one elapsed timer and reports whether it is still wanted
func (d *DeliverySimulator) fire(messageID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.pending[messageID]
	if !ok {
		return false
	}
	entry.remaining--
	if entry.remaining <= 0 {
		delete(d.pending, messageID)
	}
	return true
}
