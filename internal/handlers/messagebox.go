package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"razdel/internal/compose"
	"razdel/internal/gateway"
	"razdel/internal/models"
	"razdel/internal/session"
)

// MessageBoxHandler exposes the message box over HTTP: tabbed message lists,
// comment threads, composition, selection, and notifications.
type MessageBoxHandler struct {
	sessions *session.Manager
}

// NewMessageBoxHandler builds a MessageBoxHandler.
func NewMessageBoxHandler(sessions *session.Manager) *MessageBoxHandler {
	return &MessageBoxHandler{sessions: sessions}
}

func (h *MessageBoxHandler) session(c *gin.Context) (*session.Session, bool) {
	userID := c.GetString("userID")
	sess, err := h.sessions.Get(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to start sync session"})
		return nil, false
	}
	return sess, true
}

func respondError(c *gin.Context, err error) {
	var validation *models.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Msg})
		return
	}
	if errors.Is(err, compose.ErrSubmitInFlight) {
		c.JSON(http.StatusConflict, gin.H{"error": "a submission is already in flight"})
		return
	}
	if errors.Is(err, gateway.ErrCommentNotFound) || errors.Is(err, gateway.ErrMessageNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}

// ListMessages loads the requested tab and returns the resulting snapshot,
// including whichever comment threads the eager pass brought in.
func (h *MessageBoxHandler) ListMessages(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	tab := models.Tab(c.DefaultQuery("tab", string(models.TabResponses)))
	if err := sess.Store().LoadMessages(c.Request.Context(), tab); err != nil {
		respondError(c, err)
		return
	}

	msgs := sess.Store().Messages()
	threads := make(map[string][]models.Comment, len(msgs))
	for _, m := range msgs {
		if list, loaded := sess.Store().Comments(m.ID); loaded {
			threads[m.ID] = list
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"tab":      tab,
		"messages": msgs,
		"comments": threads,
		"selected": sess.Store().Selected(),
	})
}

// ToggleComments expands or collapses one message's thread.
func (h *MessageBoxHandler) ToggleComments(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	messageID := c.Param("message_id")
	sess.Store().ToggleComments(c.Request.Context(), messageID)

	list, loaded := sess.Store().Comments(messageID)
	c.JSON(http.StatusOK, gin.H{"expanded": loaded, "comments": list})
}

// PostReply opens a reply (threaded when comment_id is present), sets the
// draft, and submits in one round trip.
func (h *MessageBoxHandler) PostReply(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Content   string `json:"content"`
		CommentID string `json:"comment_id"`
		ReplyTo   string `json:"reply_to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	messageID := c.Param("message_id")
	if req.CommentID != "" {
		sess.Composer().OpenThreadedReply(messageID, req.CommentID, req.ReplyTo)
	} else {
		sess.Composer().OpenReply(messageID)
	}
	sess.Composer().SetDraft(req.Content)

	created, err := sess.SubmitReply(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// EditComment rewrites a comment's content in place.
func (h *MessageBoxHandler) EditComment(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess.Composer().OpenEdit(c.Param("comment_id"), req.Content)
	if err := sess.SubmitEdit(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteComment deletes a comment; message_id locates the cached thread.
func (h *MessageBoxHandler) DeleteComment(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	commentID := c.Param("comment_id")
	messageID := c.Query("message_id")
	if err := sess.DeleteComment(c.Request.Context(), commentID, messageID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SelectMessage toggles one message's selection.
func (h *MessageBoxHandler) SelectMessage(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	sess.Store().SelectMessage(c.Param("message_id"))
	c.JSON(http.StatusOK, gin.H{"selected": sess.Store().Selected()})
}

// SelectAll toggles between everything selected and nothing selected.
func (h *MessageBoxHandler) SelectAll(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	sess.Store().SelectAll()
	c.JSON(http.StatusOK, gin.H{"selected": sess.Store().Selected()})
}

// DeleteSelected bulk-deletes the selected messages.
func (h *MessageBoxHandler) DeleteSelected(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.DeleteSelected(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListNotifications returns queued notifications and unread message ids.
func (h *MessageBoxHandler) ListNotifications(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": sess.Tracker().Notifications(),
		"unread":        sess.Tracker().UnreadMessages(),
	})
}

// MarkNotificationRead clears a message's unread badge.
func (h *MessageBoxHandler) MarkNotificationRead(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	sess.Tracker().MarkAsRead(c.Param("message_id"))
	c.Status(http.StatusNoContent)
}

// ClearNotifications drops every notification and unread badge.
func (h *MessageBoxHandler) ClearNotifications(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	sess.Tracker().ClearAll()
	c.Status(http.StatusNoContent)
}

// EndSession releases the user's realtime subscriptions (logout teardown).
func (h *MessageBoxHandler) EndSession(c *gin.Context) {
	h.sessions.End(c.GetString("userID"))
	c.Status(http.StatusNoContent)
}
