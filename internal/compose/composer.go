// Package compose tracks the in-progress comment draft: one reply slot
// (plain or threaded) and one optional edit slot. The two slots are
// independent, matching the product behavior; within the reply slot only one
// composition is ever open, and opening a new one silently discards the
// previous draft.
package compose

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"razdel/internal/gateway"
	"razdel/internal/models"
)

// ErrSubmitInFlight guards against re-entrant submits while a gateway call
// is outstanding.
var ErrSubmitInFlight = errors.New("a submission is already in flight")

// ReplyKind discriminates the reply slot's state.
type ReplyKind int

const (
	ReplyIdle ReplyKind = iota
	ReplyToMessage
	ReplyToComment
)

// ReplyState is the reply slot. CommentID and ReplyTo are set only for
// threaded replies.
type ReplyState struct {
	Kind      ReplyKind
	MessageID string
	CommentID string
	ReplyTo   string
	Draft     string
}

// EditState is the edit slot.
type EditState struct {
	CommentID string
	Draft     string
}

// Composer is the per-session composition state machine.
type Composer struct {
	mu       sync.Mutex
	gw       gateway.Gateway
	userID   string
	log      *zap.Logger
	reply    ReplyState
	edit     *EditState
	inFlight bool
}

// New constructs an idle composer for the given user.
func New(gw gateway.Gateway, userID string, log *zap.Logger) *Composer {
	return &Composer{gw: gw, userID: userID, log: log}
}

// OpenReply starts composing a reply to a message, discarding any previous
// reply draft without confirmation.
func (c *Composer) OpenReply(messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reply = ReplyState{Kind: ReplyToMessage, MessageID: messageID}
}

// OpenThreadedReply starts composing a reply to a specific comment,
// discarding any previous reply draft.
func (c *Composer) OpenThreadedReply(messageID, commentID, replyTo string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reply = ReplyState{
		Kind:      ReplyToComment,
		MessageID: messageID,
		CommentID: commentID,
		ReplyTo:   replyTo,
	}
}

// SetDraft updates the reply slot's draft text.
func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reply.Draft = text
}

// CancelReply returns the reply slot to idle, dropping the draft.
func (c *Composer) CancelReply() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reply = ReplyState{}
}

// OpenEdit starts editing a comment, seeding the draft with its current
// content. An open reply composition is untouched.
func (c *Composer) OpenEdit(commentID, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edit = &EditState{CommentID: commentID, Draft: content}
}

// SetEditDraft updates the edit slot's draft text.
func (c *Composer) SetEditDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edit != nil {
		c.edit.Draft = text
	}
}

// CancelEdit closes the edit slot.
func (c *Composer) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edit = nil
}

// Reply returns a snapshot of the reply slot.
func (c *Composer) Reply() ReplyState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reply
}

// Edit returns a snapshot of the edit slot; ok is false when idle.
func (c *Composer) Edit() (EditState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edit == nil {
		return EditState{}, false
	}
	return *c.edit, true
}

// InFlight reports whether a submission is outstanding.
func (c *Composer) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Submit validates and sends the reply draft. Blank drafts fail locally
// before any network call, with the slot untouched. On success the reply
// slot returns to idle and the created comment is returned for the caller to
// merge into the cache with the session profile attached. On failure the
// draft and slot survive for a user-initiated retry.
func (c *Composer) Submit(ctx context.Context) (models.Comment, error) {
	c.mu.Lock()
	if c.reply.Kind == ReplyIdle {
		c.mu.Unlock()
		return models.Comment{}, &models.ValidationError{Msg: "no reply in progress"}
	}
	content := strings.TrimSpace(c.reply.Draft)
	if content == "" {
		c.mu.Unlock()
		return models.Comment{}, &models.ValidationError{Msg: "please enter the reply text"}
	}
	if c.inFlight {
		c.mu.Unlock()
		return models.Comment{}, ErrSubmitInFlight
	}
	c.inFlight = true
	messageID := c.reply.MessageID
	c.mu.Unlock()

	created, err := c.gw.CreateComment(ctx, messageID, c.userID, content)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		if errors.Is(err, gateway.ErrEmptyContent) {
			return models.Comment{}, &models.ValidationError{Msg: "please enter the reply text"}
		}
		return models.Comment{}, &models.BackendError{Op: "submit comment", Err: err}
	}
	c.reply = ReplyState{}
	c.log.Debug("comment submitted",
		zap.String("message_id", messageID), zap.String("comment_id", created.ID))
	return created, nil
}

// SubmitEdit validates and sends the edit draft. On success the edit slot
// closes and the comment id plus new content are returned so the caller can
// patch the cache directly without a refetch.
func (c *Composer) SubmitEdit(ctx context.Context) (commentID, content string, err error) {
	c.mu.Lock()
	if c.edit == nil {
		c.mu.Unlock()
		return "", "", &models.ValidationError{Msg: "no edit in progress"}
	}
	content = strings.TrimSpace(c.edit.Draft)
	if content == "" {
		c.mu.Unlock()
		return "", "", &models.ValidationError{Msg: "please enter the comment text"}
	}
	if c.inFlight {
		c.mu.Unlock()
		return "", "", ErrSubmitInFlight
	}
	c.inFlight = true
	commentID = c.edit.CommentID
	c.mu.Unlock()

	err = c.gw.UpdateComment(ctx, commentID, content)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		return "", "", &models.BackendError{Op: "edit comment", Err: err}
	}
	c.edit = nil
	return commentID, content, nil
}
