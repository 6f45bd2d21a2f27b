package feed

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"razdel/internal/models"
	"razdel/internal/observability"
)

// RedisFeed consumes change events published on `changes:<collection>`
// pub/sub channels as JSON payloads.
type RedisFeed struct {
	rdb *redis.Client
	log *zap.Logger
}

// NewRedisFeed constructs a RedisFeed.
func NewRedisFeed(rdb *redis.Client, log *zap.Logger) *RedisFeed {
	return &RedisFeed{rdb: rdb, log: log}
}

// Subscribe listens on the collection's channel and pumps decoded events
// into h until the subscription is closed.
func (f *RedisFeed) Subscribe(ctx context.Context, collection string, h Handler) (Subscription, error) {
	ctx, span := otel.Tracer("razdel/feed").Start(ctx, "feed.subscribe")
	defer span.End()

	channel := "changes:" + collection
	sub := f.rdb.Subscribe(ctx, channel)
	// Force the subscription onto the wire before returning the handle.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	go func(ctx context.Context) {
		for msg := range sub.Channel() {
			var ev models.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				f.log.Warn("change feed payload rejected",
					zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			observability.IncFeedEvent(string(ev.Entity), string(ev.Op))
			h(ctx, ev)
		}
	}(context.WithoutCancel(ctx))

	f.log.Info("change feed subscribed", zap.String("channel", channel))
	return redisSubscription{sub: sub, channel: channel, log: f.log}, nil
}

type redisSubscription struct {
	sub     *redis.PubSub
	channel string
	log     *zap.Logger
}

// Close unsubscribes and drains the channel goroutine.
func (s redisSubscription) Close() error {
	err := s.sub.Close()
	s.log.Info("change feed unsubscribed", zap.String("channel", s.channel))
	return err
}

var _ Feed = (*RedisFeed)(nil)
