package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"razdel/internal/models"
)

func TestCommentPostedQueuesAndFlagsUnread(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	defer tr.Stop()

	tr.CommentPosted(models.Comment{ID: "c1", MessageID: "m1", Content: "hey"})

	notifications := tr.Notifications()
	require.Len(t, notifications, 1)
	assert.Equal(t, "m1", notifications[0].MessageID)
	assert.Equal(t, models.EntityComment, notifications[0].Payload.Entity)
	assert.Equal(t, "c1", notifications[0].Payload.Comment.ID)
	assert.False(t, notifications[0].IsRead)
	assert.True(t, tr.Unread("m1"))
}

func TestExpiryRemovesRecordButKeepsUnread(t *testing.T) {
	tr := NewTrackerTTL(10*time.Millisecond, zap.NewNop())
	defer tr.Stop()

	tr.CommentPosted(models.Comment{ID: "c1", MessageID: "m1"})

	require.Eventually(t, func() bool {
		return len(tr.Notifications()) == 0
	}, time.Second, 5*time.Millisecond)

	assert.True(t, tr.Unread("m1"))
}

func TestMarkAsReadKeepsQueuedRecord(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	defer tr.Stop()

	tr.CommentPosted(models.Comment{ID: "c1", MessageID: "m1"})
	tr.MarkAsRead("m1")

	assert.False(t, tr.Unread("m1"))
	assert.Len(t, tr.Notifications(), 1)
	assert.Empty(t, tr.UnreadMessages())
}

func TestClearAll(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	defer tr.Stop()

	tr.CommentPosted(models.Comment{ID: "c1", MessageID: "m1"})
	tr.CommentPosted(models.Comment{ID: "c2", MessageID: "m2"})
	tr.ClearAll()

	assert.Empty(t, tr.Notifications())
	assert.Empty(t, tr.UnreadMessages())
}

func TestStopRejectsFurtherNotifications(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	tr.CommentPosted(models.Comment{ID: "c1", MessageID: "m1"})
	tr.Stop()

	tr.CommentPosted(models.Comment{ID: "c2", MessageID: "m2"})
	require.Len(t, tr.Notifications(), 1)
	assert.False(t, tr.Unread("m2"))
}

func TestUnreadMessagesListsOnlyFlagged(t *testing.T) {
	tr := NewTracker(zap.NewNop())
	defer tr.Stop()

	tr.CommentPosted(models.Comment{ID: "c1", MessageID: "m1"})
	tr.CommentPosted(models.Comment{ID: "c2", MessageID: "m2"})
	tr.MarkAsRead("m1")

	assert.Equal(t, []string{"m2"}, tr.UnreadMessages())
}
