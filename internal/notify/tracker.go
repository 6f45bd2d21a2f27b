// Package notify derives transient "new activity" notifications from change
// feed events and tracks per-message unread badges.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"razdel/internal/models"
	"razdel/internal/observability"
)

// DefaultTTL is how long a notification stays queued before auto-removal.
const DefaultTTL = 10 * time.Second

// Payload is the typed notification body. Only comment inserts notify today,
// so the variant is a comment snapshot tagged with its entity.
type Payload struct {
	Entity  models.Entity  `json:"entity"`
	Comment models.Comment `json:"comment"`
}

// Notification is one ephemeral record. Removal after the TTL never clears
// the message's unread flag; only an explicit mark-as-read does.
type Notification struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	Payload   Payload   `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"is_read"`
}

// Tracker holds the queued notifications and unread flags for one session.
type Tracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	log     *zap.Logger
	queue   []Notification
	unread  map[string]bool
	timers  map[string]*time.Timer
	stopped bool
}

// NewTracker builds a tracker with the standard 10 second expiry.
func NewTracker(log *zap.Logger) *Tracker {
	return NewTrackerTTL(DefaultTTL, log)
}

// NewTrackerTTL builds a tracker with a custom expiry window.
func NewTrackerTTL(ttl time.Duration, log *zap.Logger) *Tracker {
	return &Tracker{
		ttl:    ttl,
		log:    log,
		unread: make(map[string]bool),
		timers: make(map[string]*time.Timer),
	}
}

// CommentPosted queues a notification for a freshly inserted comment, flips
// the message's unread flag, and schedules the record's removal.
func (t *Tracker) CommentPosted(c models.Comment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	n := Notification{
		ID:        uuid.NewString(),
		MessageID: c.MessageID,
		Payload:   Payload{Entity: models.EntityComment, Comment: c},
		Timestamp: time.Now(),
	}
	t.queue = append(t.queue, n)
	t.unread[c.MessageID] = true
	t.timers[n.ID] = time.AfterFunc(t.ttl, func() { t.expire(n.ID) })
	observability.SetActiveNotifications(len(t.queue))

	t.log.Debug("comment notification queued",
		zap.String("message_id", c.MessageID), zap.String("comment_id", c.ID))
}

// expire drops one record from the queue. The unread flag stays.
func (t *Tracker) expire(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.timers, id)
	kept := t.queue[:0]
	for _, n := range t.queue {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	t.queue = kept
	observability.SetActiveNotifications(len(t.queue))
}

// MarkAsRead clears the unread flag for a message. Queued notifications for
// it stay until they expire.
func (t *Tracker) MarkAsRead(messageID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unread[messageID] = false
}

// ClearAll drops every queued notification and unread flag.
func (t *Tracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
	t.queue = nil
	t.unread = make(map[string]bool)
	observability.SetActiveNotifications(0)
}

// Stop cancels outstanding expiry timers. The tracker accepts no further
// notifications afterwards; called on session teardown.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}

// Notifications returns a snapshot of the queued records.
func (t *Tracker) Notifications() []Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Notification, len(t.queue))
	copy(out, t.queue)
	return out
}

// Unread reports whether a message has unread activity.
func (t *Tracker) Unread(messageID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unread[messageID]
}

// UnreadMessages returns the message ids currently flagged unread.
func (t *Tracker) UnreadMessages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.unread))
	for id, unread := range t.unread {
		if unread {
			out = append(out, id)
		}
	}
	return out
}
