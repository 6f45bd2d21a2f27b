// Package store holds the client-side cache of loaded messages, their comment
// threads, selection state, and the change-event ingestion logic that keeps
// counters and thread caches live.
package store

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"razdel/internal/gateway"
	"razdel/internal/models"
	"razdel/internal/observability"
)

// Store is the message/comment cache for one user session. A comment thread
// being absent from the cache means "not loaded", not "empty". Every change
// event applies idempotently: comment ids seen live or seen deleted are
// remembered so redelivered events are no-ops.
type Store struct {
	mu     sync.RWMutex
	gw     gateway.Gateway
	log    *zap.Logger
	userID string

	activeTab       models.Tab
	messages        []models.Message
	comments        map[string][]models.Comment
	loadingComments map[string]bool
	selected        map[string]struct{}
	isLoading       bool
	lastError       string

	// live tracks comment ids known to be attached per message; dead tracks
	// ids already removed. Together they make insert/delete application
	// idempotent under at-least-once delivery.
	live map[string]map[string]struct{}
	dead map[string]struct{}

	// generation fences loads: a response arriving after a newer LoadMessages
	// began is discarded instead of written into the current cache.
	generation uint64
}

// New constructs an empty store for the given user.
func New(gw gateway.Gateway, userID string, log *zap.Logger) *Store {
	return &Store{
		gw:              gw,
		log:             log,
		userID:          userID,
		activeTab:       models.TabResponses,
		comments:        make(map[string][]models.Comment),
		loadingComments: make(map[string]bool),
		selected:        make(map[string]struct{}),
		live:            make(map[string]map[string]struct{}),
		dead:            make(map[string]struct{}),
	}
}

// LoadMessages fetches the message set for the tab, replaces the cache
// atomically, and eagerly loads comment threads for messages that have any,
// one at a time to bound concurrent backend load. Switching tabs clears the
// selection.
func (s *Store) LoadMessages(ctx context.Context, tab models.Tab) error {
	if !tab.Valid() {
		return &models.ValidationError{Msg: "unknown tab: " + string(tab)}
	}

	ctx, span := otel.Tracer("razdel/store").Start(ctx, "store.load_messages")
	defer span.End()

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.isLoading = true
	s.lastError = ""
	if tab != s.activeTab {
		s.activeTab = tab
		s.selected = make(map[string]struct{})
	}
	s.mu.Unlock()

	msgs, err := s.fetchTab(ctx, tab)
	if err != nil {
		s.mu.Lock()
		if gen == s.generation {
			s.isLoading = false
			s.lastError = err.Error()
		}
		s.mu.Unlock()
		return &models.BackendError{Op: "load messages", Err: err}
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.log.Debug("discarding stale message load", zap.String("tab", string(tab)))
		return nil
	}
	s.messages = msgs
	s.mu.Unlock()

	// One thread at a time; later loads for a superseded generation stop.
	for _, m := range msgs {
		if m.CommentsCount <= 0 {
			continue
		}
		if !s.loadCommentsGen(ctx, m.ID, gen) {
			break
		}
	}

	s.mu.Lock()
	if gen == s.generation {
		s.isLoading = false
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) fetchTab(ctx context.Context, tab models.Tab) ([]models.Message, error) {
	switch tab {
	case models.TabSent:
		return s.gw.ListUserMessages(ctx, s.userID)
	case models.TabResponses:
		msgs, err := s.gw.ListUserMessages(ctx, s.userID)
		if err != nil {
			return nil, err
		}
		answered := msgs[:0]
		for _, m := range msgs {
			if m.HasResponse() {
				answered = append(answered, m)
			}
		}
		return answered, nil
	default: // TabReceived
		msgs, err := s.gw.ListPublicMessages(ctx)
		if err != nil {
			return nil, err
		}
		others := msgs[:0]
		for _, m := range msgs {
			if m.UserID != s.userID {
				others = append(others, m)
			}
		}
		return others, nil
	}
}

// LoadComments fetches and caches the comment thread for one message. It is a
// best-effort background refresh: failures are logged and counted, the
// previous cache entry stays untouched, and no error reaches the caller.
func (s *Store) LoadComments(ctx context.Context, messageID string) {
	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()
	s.loadCommentsGen(ctx, messageID, gen)
}

// loadCommentsGen reports false when the generation is stale so sequential
// eager loading can stop early.
func (s *Store) loadCommentsGen(ctx context.Context, messageID string, gen uint64) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	s.loadingComments[messageID] = true
	s.mu.Unlock()

	list, err := s.gw.ListComments(ctx, messageID)
	if err != nil {
		observability.IncRefreshFailure()
		s.log.Warn("comment refresh failed", zap.String("message_id", messageID), zap.Error(err))
		s.mu.Lock()
		delete(s.loadingComments, messageID)
		stale := gen != s.generation
		s.mu.Unlock()
		return !stale
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loadingComments, messageID)
	if gen != s.generation {
		return false
	}
	s.comments[messageID] = list
	ids := make(map[string]struct{}, len(list))
	for _, c := range list {
		ids[c.ID] = struct{}{}
	}
	s.live[messageID] = ids
	return true
}

// ToggleComments collapses an expanded thread (discarding its cache) or
// expands a collapsed one by fetching it. Re-expanding always refetches.
func (s *Store) ToggleComments(ctx context.Context, messageID string) {
	s.mu.Lock()
	if _, ok := s.comments[messageID]; ok {
		delete(s.comments, messageID)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.LoadComments(ctx, messageID)
}

// ApplyChangeEvent is the single ingestion point for realtime events. It
// returns the comment a first-time insert introduced, so the caller can drive
// notifications; duplicates and non-comment entities return nil.
func (s *Store) ApplyChangeEvent(ctx context.Context, ev models.ChangeEvent) *models.Comment {
	if ev.Entity != models.EntityComment {
		return nil
	}

	switch ev.Op {
	case models.OpInsert:
		c, err := ev.CommentAfter()
		if err != nil {
			s.log.Warn("comment insert event rejected", zap.Error(err))
			return nil
		}
		if s.applyCommentInsert(ctx, c) {
			return &c
		}
		return nil
	case models.OpDelete:
		c, err := ev.CommentBefore()
		if err != nil {
			s.log.Warn("comment delete event rejected", zap.Error(err))
			return nil
		}
		s.applyCommentRemoval(c.ID, c.MessageID)
	case models.OpUpdate:
		c, err := ev.CommentAfter()
		if err != nil {
			s.log.Warn("comment update event rejected", zap.Error(err))
			return nil
		}
		s.PatchComment(c.ID, c.Content)
	}
	return nil
}

// applyCommentInsert registers the comment id, bumps the counter, and, only
// when the thread is currently expanded, resolves the author profile and
// appends. A collapsed thread is never materialized by an event. Reports
// whether the insert was applied for the first time.
func (s *Store) applyCommentInsert(ctx context.Context, c models.Comment) bool {
	s.mu.Lock()
	if _, gone := s.dead[c.ID]; gone {
		s.mu.Unlock()
		return false
	}
	if ids, ok := s.live[c.MessageID]; ok {
		if _, seen := ids[c.ID]; seen {
			s.mu.Unlock()
			return false
		}
	} else {
		s.live[c.MessageID] = make(map[string]struct{})
	}
	s.live[c.MessageID][c.ID] = struct{}{}
	s.adjustCountLocked(c.MessageID, 1)
	_, expanded := s.comments[c.MessageID]
	own := c.UserID == s.userID
	s.mu.Unlock()

	if !expanded {
		return true
	}

	// Own inserts already carry the session profile via AddOwnComment; for
	// everyone else the event snapshot has no profile join.
	if !own && c.Author == nil {
		if p, err := s.gw.GetProfile(ctx, c.UserID); err != nil {
			s.log.Warn("comment author profile fetch failed",
				zap.String("user_id", c.UserID), zap.Error(err))
		} else {
			c.Author = &p
		}
	}

	// Re-check under lock: the thread may have collapsed, or the comment may
	// have landed via another path, while the profile fetch was in flight.
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.comments[c.MessageID]
	if !ok {
		return true
	}
	for _, existing := range list {
		if existing.ID == c.ID {
			return true
		}
	}
	s.comments[c.MessageID] = append(list, c)
	return true
}

func (s *Store) applyCommentRemoval(commentID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, gone := s.dead[commentID]; gone {
		return
	}
	s.dead[commentID] = struct{}{}
	if ids, ok := s.live[messageID]; ok {
		delete(ids, commentID)
	}
	s.adjustCountLocked(messageID, -1)
	if list, ok := s.comments[messageID]; ok {
		kept := list[:0]
		for _, c := range list {
			if c.ID != commentID {
				kept = append(kept, c)
			}
		}
		s.comments[messageID] = kept
	}
}

// adjustCountLocked moves a message's comments_count by delta, floored at zero.
func (s *Store) adjustCountLocked(messageID string, delta int) {
	for i := range s.messages {
		if s.messages[i].ID != messageID {
			continue
		}
		count := s.messages[i].CommentsCount + delta
		if count < 0 {
			count = 0
		}
		s.messages[i].CommentsCount = count
		return
	}
}

// AddOwnComment merges a comment the session user just created, attaching
// their profile (the create response carries no profile join). The echoed
// change-feed event for the same id becomes a no-op.
func (s *Store) AddOwnComment(c models.Comment, author models.Profile) {
	c.Author = &author
	s.mu.Lock()
	defer s.mu.Unlock()
	if ids, ok := s.live[c.MessageID]; ok {
		if _, seen := ids[c.ID]; seen {
			return
		}
	} else {
		s.live[c.MessageID] = make(map[string]struct{})
	}
	s.live[c.MessageID][c.ID] = struct{}{}
	s.adjustCountLocked(c.MessageID, 1)
	if list, ok := s.comments[c.MessageID]; ok {
		s.comments[c.MessageID] = append(list, c)
	}
}

// RemoveComment mirrors a locally confirmed comment deletion.
func (s *Store) RemoveComment(commentID, messageID string) {
	s.applyCommentRemoval(commentID, messageID)
}

// PatchComment replaces a cached comment's content in the one thread that
// holds it (comment ids are unique across threads).
func (s *Store) PatchComment(commentID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for messageID, list := range s.comments {
		for i := range list {
			if list[i].ID == commentID {
				list[i].Content = content
				s.comments[messageID] = list
				return
			}
		}
	}
}

// SelectMessage toggles a message's membership in the selection.
func (s *Store) SelectMessage(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selected[messageID]; ok {
		delete(s.selected, messageID)
		return
	}
	s.selected[messageID] = struct{}{}
}

// SelectAll selects every loaded message, or clears the selection when all
// are already selected.
func (s *Store) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.selected) == len(s.messages) && len(s.messages) > 0 {
		s.selected = make(map[string]struct{})
		return
	}
	s.selected = make(map[string]struct{}, len(s.messages))
	for _, m := range s.messages {
		s.selected[m.ID] = struct{}{}
	}
}

// DeleteSelected bulk-deletes the selected messages. An empty selection fails
// locally with no gateway call. Only ids the gateway confirmed deleted leave
// the cache and the selection; on partial failure the rest stay selected and
// the summary error is returned.
func (s *Store) DeleteSelected(ctx context.Context) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.selected))
	for _, m := range s.messages {
		if _, ok := s.selected[m.ID]; ok {
			ids = append(ids, m.ID)
		}
	}
	s.mu.RUnlock()

	if len(ids) == 0 {
		return &models.ValidationError{Msg: "please select messages to delete"}
	}

	deleted, err := s.gw.DeleteMessages(ctx, ids)

	s.mu.Lock()
	gone := make(map[string]struct{}, len(deleted))
	for _, id := range deleted {
		gone[id] = struct{}{}
	}
	kept := s.messages[:0]
	for _, m := range s.messages {
		if _, ok := gone[m.ID]; ok {
			delete(s.selected, m.ID)
			delete(s.comments, m.ID)
			delete(s.live, m.ID)
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		return &models.BackendError{Op: "bulk delete", Err: err}
	}
	return nil
}

// Messages returns a snapshot of the loaded message list.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Comments returns a snapshot of a message's cached thread. ok is false when
// the thread is not loaded (which is distinct from loaded-and-empty).
func (s *Store) Comments(messageID string) ([]models.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, ok := s.comments[messageID]
	if !ok {
		return nil, false
	}
	out := make([]models.Comment, len(list))
	copy(out, list)
	return out, true
}

// CommentsLoading reports whether a thread fetch is in flight for the message.
func (s *Store) CommentsLoading(messageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadingComments[messageID]
}

// Selected returns the selected message ids in display order.
func (s *Store) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.selected))
	for _, m := range s.messages {
		if _, ok := s.selected[m.ID]; ok {
			out = append(out, m.ID)
		}
	}
	return out
}

// IsLoading reports whether a LoadMessages pass is in flight.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoading
}

// Err returns the retained display error from the last failed operation.
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// ActiveTab returns the tab the current message set belongs to.
func (s *Store) ActiveTab() models.Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeTab
}
