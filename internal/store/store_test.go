package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"razdel/internal/gateway"
	"razdel/internal/mocks"
	"razdel/internal/models"
)

func newTestStore(gw *mocks.GatewayMock) *Store {
	return New(gw, "user-1", zap.NewNop())
}

func TestLoadMessagesSentTab(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)

	msgs := []models.Message{
		{ID: "m1", UserID: "user-1", CommentsCount: 0},
		{ID: "m2", UserID: "user-1", CommentsCount: 2},
	}
	gw.On("ListUserMessages", mock.Anything, "user-1").Return(msgs, nil).Once()
	gw.On("ListComments", mock.Anything, "m2").Return([]models.Comment{
		{ID: "c1", MessageID: "m2", UserID: "u2"},
		{ID: "c2", MessageID: "m2", UserID: "u3"},
	}, nil).Once()

	require.NoError(t, s.LoadMessages(context.Background(), models.TabSent))

	require.Len(t, s.Messages(), 2)
	assert.Equal(t, models.TabSent, s.ActiveTab())
	assert.False(t, s.IsLoading())

	// m1 has no comments, so only m2's thread was eagerly loaded.
	_, loaded := s.Comments("m1")
	assert.False(t, loaded)
	thread, loaded := s.Comments("m2")
	require.True(t, loaded)
	assert.Len(t, thread, 2)

	gw.AssertExpectations(t)
}

func TestLoadMessagesResponsesTabFiltersUnanswered(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)

	ai := "you are heard"
	gw.On("ListUserMessages", mock.Anything, "user-1").Return([]models.Message{
		{ID: "answered-ai", UserID: "user-1", AIResponse: &ai},
		{ID: "answered-comments", UserID: "user-1", CommentsCount: 1},
		{ID: "unanswered", UserID: "user-1"},
	}, nil).Once()
	gw.On("ListComments", mock.Anything, "answered-comments").Return([]models.Comment(nil), nil).Once()

	require.NoError(t, s.LoadMessages(context.Background(), models.TabResponses))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "answered-ai", msgs[0].ID)
	assert.Equal(t, "answered-comments", msgs[1].ID)
	gw.AssertExpectations(t)
}

func TestLoadMessagesReceivedTabExcludesOwn(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)

	gw.On("ListPublicMessages", mock.Anything).Return([]models.Message{
		{ID: "mine", UserID: "user-1"},
		{ID: "theirs", UserID: "user-2"},
	}, nil).Once()

	require.NoError(t, s.LoadMessages(context.Background(), models.TabReceived))

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "theirs", msgs[0].ID)
	gw.AssertExpectations(t)
}

func TestLoadMessagesUnknownTab(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)

	err := s.LoadMessages(context.Background(), models.Tab("bogus"))

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	gw.AssertNotCalled(t, "ListUserMessages", mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "ListPublicMessages", mock.Anything)
}

func TestLoadMessagesBackendError(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)

	gw.On("ListUserMessages", mock.Anything, "user-1").Return(([]models.Message)(nil), assert.AnError).Once()

	err := s.LoadMessages(context.Background(), models.TabSent)

	var backend *models.BackendError
	require.ErrorAs(t, err, &backend)
	assert.NotEmpty(t, s.Err())
	assert.False(t, s.IsLoading())
	gw.AssertExpectations(t)
}

func TestTabSwitchClearsSelection(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)

	gw.On("ListUserMessages", mock.Anything, "user-1").Return([]models.Message{{ID: "m1", UserID: "user-1"}}, nil).Once()
	require.NoError(t, s.LoadMessages(context.Background(), models.TabSent))
	s.SelectMessage("m1")
	require.Len(t, s.Selected(), 1)

	gw.On("ListPublicMessages", mock.Anything).Return([]models.Message{{ID: "m9", UserID: "user-2"}}, nil).Once()
	require.NoError(t, s.LoadMessages(context.Background(), models.TabReceived))

	assert.Empty(t, s.Selected())
	gw.AssertExpectations(t)
}

func TestCommentRefreshFailureKeepsCache(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)
	s.messages = []models.Message{{ID: "m1", CommentsCount: 1}}
	s.comments["m1"] = []models.Comment{{ID: "c1", MessageID: "m1"}}
	s.live["m1"] = map[string]struct{}{"c1": {}}

	gw.On("ListComments", mock.Anything, "m1").Return(([]models.Comment)(nil), assert.AnError).Once()

	s.LoadComments(context.Background(), "m1")

	thread, loaded := s.Comments("m1")
	require.True(t, loaded)
	assert.Len(t, thread, 1)
	assert.False(t, s.CommentsLoading("m1"))
	gw.AssertExpectations(t)
}

func TestToggleCollapseDiscardsCacheAndRefetches(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)
	s.messages = []models.Message{{ID: "m1", CommentsCount: 1}}

	gw.On("ListComments", mock.Anything, "m1").Return([]models.Comment{{ID: "c1", MessageID: "m1"}}, nil).Twice()

	s.ToggleComments(context.Background(), "m1")
	_, loaded := s.Comments("m1")
	require.True(t, loaded)

	s.ToggleComments(context.Background(), "m1")
	_, loaded = s.Comments("m1")
	require.False(t, loaded)

	// Re-expanding goes back to the gateway instead of reusing stale data.
	s.ToggleComments(context.Background(), "m1")
	_, loaded = s.Comments("m1")
	require.True(t, loaded)
	gw.AssertExpectations(t)
}

func TestInsertEventExpandedThread(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)
	s.messages = []models.Message{{ID: "m1", CommentsCount: 0}}
	s.comments["m1"] = []models.Comment{}
	s.live["m1"] = map[string]struct{}{}

	name := "Dana"
	gw.On("GetProfile", mock.Anything, "user-2").Return(models.Profile{ID: "user-2", FullName: &name}, nil).Once()

	ev := models.NewCommentEvent(models.OpInsert, nil, &models.Comment{ID: "c1", MessageID: "m1", UserID: "user-2", Content: "hi"})
	inserted := s.ApplyChangeEvent(context.Background(), ev)

	require.NotNil(t, inserted)
	assert.Equal(t, "c1", inserted.ID)
	assert.Equal(t, 1, s.Messages()[0].CommentsCount)
	thread, _ := s.Comments("m1")
	require.Len(t, thread, 1)
	require.NotNil(t, thread[0].Author)
	assert.Equal(t, "Dana", thread[0].Author.DisplayName())
	gw.AssertExpectations(t)
}

func TestInsertEventRedeliveryIsNoop(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)
	s.messages = []models.Message{{ID: "m1", CommentsCount: 0}}

	ev := models.NewCommentEvent(models.OpInsert, nil, &models.Comment{ID: "c1", MessageID: "m1", UserID: "user-2"})

	require.NotNil(t, s.ApplyChangeEvent(context.Background(), ev))
	require.Nil(t, s.ApplyChangeEvent(context.Background(), ev))
	assert.Equal(t, 1, s.Messages()[0].CommentsCount)
}

func TestInsertEventCollapsedThreadSkipsProfileFetch(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)
	s.messages = []models.Message{{ID: "m1", CommentsCount: 0}}

	ev := models.NewCommentEvent(models.OpInsert, nil, &models.Comment{ID: "c1", MessageID: "m1", UserID: "user-2"})
	inserted := s.ApplyChangeEvent(context.Background(), ev)

	require.NotNil(t, inserted)
	assert.Equal(t, 1, s.Messages()[0].CommentsCount)
	_, loaded := s.Comments("m1")
	assert.False(t, loaded)
	gw.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
}

func TestDeleteEventThenRedeliveredInsert(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)
	s.messages = []models.Message{{ID: "m1", CommentsCount: 2}}
	s.comments["m1"] = []models.Comment{{ID: "c1", MessageID: "m1"}, {ID: "c2", MessageID: "m1"}}
	s.live["m1"] = map[string]struct{}{"c1": {}, "c2": {}}

	del := models.NewCommentEvent(models.OpDelete, &models.Comment{ID: "c1", MessageID: "m1"}, nil)
	s.ApplyChangeEvent(context.Background(), del)

	assert.Equal(t, 1, s.Messages()[0].CommentsCount)
	thread, _ := s.Comments("m1")
	require.Len(t, thread, 1)
	assert.Equal(t, "c2", thread[0].ID)

	// Redelivered delete decrements nothing further.
	s.ApplyChangeEvent(context.Background(), del)
	assert.Equal(t, 1, s.Messages()[0].CommentsCount)

	// A late insert for the already-deleted id is a tombstoned no-op.
	ins := models.NewCommentEvent(models.OpInsert, nil, &models.Comment{ID: "c1", MessageID: "m1", UserID: "user-2"})
	require.Nil(t, s.ApplyChangeEvent(context.Background(), ins))
	assert.Equal(t, 1, s.Messages()[0].CommentsCount)
}

func TestDeleteEventFloorsCounterAtZero(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)
	s.messages = []models.Message{{ID: "m1", CommentsCount: 0}}

	del := models.NewCommentEvent(models.OpDelete, &models.Comment{ID: "ghost", MessageID: "m1"}, nil)
	s.ApplyChangeEvent(context.Background(), del)

	assert.Equal(t, 0, s.Messages()[0].CommentsCount)
}

func TestUpdateEventPatchesContent(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)
	s.comments["m1"] = []models.Comment{{ID: "c1", MessageID: "m1", Content: "before"}}
	s.live["m1"] = map[string]struct{}{"c1": {}}

	ev := models.NewCommentEvent(models.OpUpdate, nil, &models.Comment{ID: "c1", MessageID: "m1", Content: "after"})
	require.Nil(t, s.ApplyChangeEvent(context.Background(), ev))

	thread, _ := s.Comments("m1")
	assert.Equal(t, "after", thread[0].Content)
}

func TestNonCommentEventIgnored(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)

	ev := models.ChangeEvent{Entity: models.EntityMessage, Op: models.OpInsert}
	require.Nil(t, s.ApplyChangeEvent(context.Background(), ev))
}

func TestAddOwnCommentThenEchoedEvent(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)
	s.messages = []models.Message{{ID: "m1", CommentsCount: 0}}
	s.comments["m1"] = []models.Comment{}
	s.live["m1"] = map[string]struct{}{}

	own := models.Comment{ID: "c1", MessageID: "m1", UserID: "user-1", Content: "mine"}
	s.AddOwnComment(own, models.Profile{ID: "user-1", Email: "me@example.com"})

	assert.Equal(t, 1, s.Messages()[0].CommentsCount)
	thread, _ := s.Comments("m1")
	require.Len(t, thread, 1)
	require.NotNil(t, thread[0].Author)

	// The change feed echoes the same insert back; it must not double-apply.
	echo := models.NewCommentEvent(models.OpInsert, nil, &own)
	require.Nil(t, s.ApplyChangeEvent(context.Background(), echo))
	assert.Equal(t, 1, s.Messages()[0].CommentsCount)
	thread, _ = s.Comments("m1")
	assert.Len(t, thread, 1)
}

func TestSelectAllTogglesBetweenAllAndNone(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)
	s.messages = []models.Message{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}}

	s.SelectMessage("m2")
	s.SelectAll()
	assert.Equal(t, []string{"m1", "m2", "m3"}, s.Selected())

	s.SelectAll()
	assert.Empty(t, s.Selected())
}

func TestDeleteSelectedEmptySelection(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)
	s.messages = []models.Message{{ID: "m1"}}

	err := s.DeleteSelected(context.Background())

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)
	gw.AssertNotCalled(t, "DeleteMessages", mock.Anything, mock.Anything)
}

func TestDeleteSelectedSuccess(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)
	s.messages = []models.Message{{ID: "m1"}, {ID: "m2"}}
	s.SelectMessage("m1")

	gw.On("DeleteMessages", mock.Anything, []string{"m1"}).Return([]string{"m1"}, nil).Once()

	require.NoError(t, s.DeleteSelected(context.Background()))

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m2", msgs[0].ID)
	assert.Empty(t, s.Selected())
	gw.AssertExpectations(t)
}

func TestDeleteSelectedPartialFailure(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)
	s.messages = []models.Message{{ID: "m1"}, {ID: "m2"}}
	s.SelectAll()

	partial := &gateway.PartialDeleteError{Failed: map[string]error{"m2": assert.AnError}}
	gw.On("DeleteMessages", mock.Anything, []string{"m1", "m2"}).Return([]string{"m1"}, partial).Once()

	err := s.DeleteSelected(context.Background())

	var backend *models.BackendError
	require.ErrorAs(t, err, &backend)
	var pd *gateway.PartialDeleteError
	require.ErrorAs(t, err, &pd)

	// Only the confirmed id left the cache; the failed one stays selected.
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m2", msgs[0].ID)
	assert.Equal(t, []string{"m2"}, s.Selected())
	gw.AssertExpectations(t)
}

func TestStaleLoadDiscarded(t *testing.T) {
	gw := new(mocks.GatewayMock)
	s := newTestStore(gw)

	// The first load's response arrives after a second load has begun: the
	// generation check must keep the newer result.
	gw.On("ListUserMessages", mock.Anything, "user-1").
		Run(func(args mock.Arguments) {
			s.mu.Lock()
			s.generation++
			s.mu.Unlock()
		}).
		Return([]models.Message{{ID: "old", UserID: "user-1"}}, nil).Once()

	require.NoError(t, s.LoadMessages(context.Background(), models.TabSent))
	assert.Empty(t, s.Messages())
	gw.AssertExpectations(t)
}
