// Package session owns the realtime lifecycle for one signed-in user: it
// acquires the change feed subscriptions when the session begins and releases
// them on teardown, routing events into the state store and the notification
// tracker.
package session

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"razdel/internal/compose"
	"razdel/internal/feed"
	"razdel/internal/gateway"
	"razdel/internal/models"
	"razdel/internal/notify"
	"razdel/internal/store"
	"razdel/internal/telemetry"
)

// Session is the per-user sync context: store, composer, tracker, and the
// feed subscriptions that keep them live.
type Session struct {
	userID   string
	gw       gateway.Gateway
	feed     feed.Feed
	audit    *telemetry.AuditEmitter
	log      *zap.Logger
	store    *store.Store
	composer *compose.Composer
	tracker  *notify.Tracker

	subs      []feed.Subscription
	closeOnce sync.Once

	profileOnce sync.Once
	profile     models.Profile
}

// New builds an unstarted session.
func New(gw gateway.Gateway, f feed.Feed, audit *telemetry.AuditEmitter, userID string, log *zap.Logger) *Session {
	log = log.With(zap.String("user_id", userID))
	return &Session{
		userID:   userID,
		gw:       gw,
		feed:     f,
		audit:    audit,
		log:      log,
		store:    store.New(gw, userID, log),
		composer: compose.New(gw, userID, log),
		tracker:  notify.NewTracker(log),
	}
}

// Start subscribes the watched collections. On any subscription failure the
// ones already acquired are released and the session is unusable.
func (s *Session) Start(ctx context.Context) error {
	ctx, span := otel.Tracer("razdel/session").Start(ctx, "session.start")
	defer span.End()

	for _, collection := range []string{
		feed.CollectionComments,
		feed.CollectionMessages,
		feed.CollectionProfiles,
	} {
		sub, err := s.feed.Subscribe(ctx, collection, s.handleEvent)
		if err != nil {
			for _, acquired := range s.subs {
				_ = acquired.Close()
			}
			s.subs = nil
			return err
		}
		s.subs = append(s.subs, sub)
	}

	s.audit.Emit(ctx, &s.userID, telemetry.AuditPayload{Action: "session_start"})
	return nil
}

// handleEvent is the single feed callback. The store ignores entities it
// does not manage; first-time comment inserts from other users notify.
func (s *Session) handleEvent(ctx context.Context, ev models.ChangeEvent) {
	inserted := s.store.ApplyChangeEvent(ctx, ev)
	if inserted != nil && inserted.UserID != s.userID {
		s.tracker.CommentPosted(*inserted)
	}
}

// Store exposes the session's state store.
func (s *Session) Store() *store.Store { return s.store }

// Composer exposes the session's composition state.
func (s *Session) Composer() *compose.Composer { return s.composer }

// Tracker exposes the session's notification tracker.
func (s *Session) Tracker() *notify.Tracker { return s.tracker }

// UserID returns the session's user id.
func (s *Session) UserID() string { return s.userID }

// SubmitReply submits the open reply draft and merges the created comment
// into the cache with the session user's profile attached (the create
// response has no profile join).
func (s *Session) SubmitReply(ctx context.Context) (models.Comment, error) {
	created, err := s.composer.Submit(ctx)
	if err != nil {
		return models.Comment{}, err
	}
	s.store.AddOwnComment(created, s.ownProfile(ctx))
	s.audit.Emit(ctx, &s.userID, telemetry.AuditPayload{
		Action:    "comment_submit",
		MessageID: created.MessageID,
		CommentID: created.ID,
	})
	return created, nil
}

// SubmitEdit submits the open edit draft and patches the cached comment in
// place, without a refetch.
func (s *Session) SubmitEdit(ctx context.Context) error {
	commentID, content, err := s.composer.SubmitEdit(ctx)
	if err != nil {
		return err
	}
	s.store.PatchComment(commentID, content)
	s.audit.Emit(ctx, &s.userID, telemetry.AuditPayload{
		Action:    "comment_edit",
		CommentID: commentID,
	})
	return nil
}

// DeleteComment deletes a comment through the gateway and mirrors the
// removal locally; the echoed feed event is then a no-op.
func (s *Session) DeleteComment(ctx context.Context, commentID, messageID string) error {
	if err := s.gw.DeleteComment(ctx, commentID); err != nil {
		return &models.BackendError{Op: "delete comment", Err: err}
	}
	s.store.RemoveComment(commentID, messageID)
	return nil
}

// DeleteSelected bulk-deletes the selected messages, auditing partial
// failures.
func (s *Session) DeleteSelected(ctx context.Context) error {
	err := s.store.DeleteSelected(ctx)
	var partial *gateway.PartialDeleteError
	if errors.As(err, &partial) {
		s.audit.Emit(ctx, &s.userID, telemetry.AuditPayload{
			Action: "bulk_delete_partial",
			Detail: partial.Error(),
		})
	}
	return err
}

// ownProfile resolves the session user's profile once, falling back to a
// bare id when the lookup fails (the cache merge must not block on it).
func (s *Session) ownProfile(ctx context.Context) models.Profile {
	s.profileOnce.Do(func() {
		p, err := s.gw.GetProfile(ctx, s.userID)
		if err != nil {
			s.log.Warn("own profile lookup failed", zap.Error(err))
			p = models.Profile{ID: s.userID}
		}
		s.profile = p
	})
	return s.profile
}

// Close releases the feed subscriptions and stops the tracker. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		for _, sub := range s.subs {
			_ = sub.Close()
		}
		s.subs = nil
		s.tracker.Stop()
		s.audit.Emit(context.Background(), &s.userID, telemetry.AuditPayload{Action: "session_stop"})
		s.log.Info("session closed")
	})
}
