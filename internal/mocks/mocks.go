package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"razdel/internal/feed"
	"razdel/internal/gateway"
	"razdel/internal/models"
)

type GatewayMock struct {
	mock.Mock
}

func (m *GatewayMock) ListUserMessages(ctx context.Context, userID string) ([]models.Message, error) {
	args := m.Called(ctx, userID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *GatewayMock) ListPublicMessages(ctx context.Context) ([]models.Message, error) {
	args := m.Called(ctx)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *GatewayMock) ListComments(ctx context.Context, messageID string) ([]models.Comment, error) {
	args := m.Called(ctx, messageID)
	var comments []models.Comment
	if val := args.Get(0); val != nil {
		comments = val.([]models.Comment)
	}
	return comments, args.Error(1)
}

func (m *GatewayMock) CreateComment(ctx context.Context, messageID, userID, content string) (models.Comment, error) {
	args := m.Called(ctx, messageID, userID, content)
	var comment models.Comment
	if val := args.Get(0); val != nil {
		comment = val.(models.Comment)
	}
	return comment, args.Error(1)
}

func (m *GatewayMock) UpdateComment(ctx context.Context, commentID, content string) error {
	args := m.Called(ctx, commentID, content)
	return args.Error(0)
}

func (m *GatewayMock) DeleteComment(ctx context.Context, commentID string) error {
	args := m.Called(ctx, commentID)
	return args.Error(0)
}

func (m *GatewayMock) DeleteMessage(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *GatewayMock) DeleteMessages(ctx context.Context, ids []string) ([]string, error) {
	args := m.Called(ctx, ids)
	var deleted []string
	if val := args.Get(0); val != nil {
		deleted = val.([]string)
	}
	return deleted, args.Error(1)
}

func (m *GatewayMock) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	args := m.Called(ctx, userID)
	var profile models.Profile
	if val := args.Get(0); val != nil {
		profile = val.(models.Profile)
	}
	return profile, args.Error(1)
}

type FeedMock struct {
	mock.Mock
}

func (m *FeedMock) Subscribe(ctx context.Context, collection string, h feed.Handler) (feed.Subscription, error) {
	args := m.Called(ctx, collection, h)
	var sub feed.Subscription
	if val := args.Get(0); val != nil {
		sub = val.(feed.Subscription)
	}
	return sub, args.Error(1)
}

type SubscriptionMock struct {
	mock.Mock
}

func (m *SubscriptionMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var (
	_ gateway.Gateway   = (*GatewayMock)(nil)
	_ feed.Feed         = (*FeedMock)(nil)
	_ feed.Subscription = (*SubscriptionMock)(nil)
)
