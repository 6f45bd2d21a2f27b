// Package feed delivers live change events for the watched backend
// collections. A consumer holds one subscription per collection for the
// lifetime of a session and must tolerate at-least-once delivery.
package feed

import (
	"context"

	"razdel/internal/models"
)

// Watched collection names, matching the backend's table/collection naming.
const (
	CollectionComments = "comments"
	CollectionMessages = "messages"
	CollectionProfiles = "profiles"
)

// Handler receives each decoded change event. It is invoked from the
// subscription's read goroutine; implementations must be safe for that.
type Handler func(ctx context.Context, ev models.ChangeEvent)

// Subscription is a live stream handle. Close is idempotent and releases the
// underlying connection or channel.
type Subscription interface {
	Close() error
}

// Feed produces subscriptions for watched collections.
type Feed interface {
	Subscribe(ctx context.Context, collection string, h Handler) (Subscription, error)
}
