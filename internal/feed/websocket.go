package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"razdel/internal/models"
	"razdel/internal/observability"
)

// WebSocketFeed consumes change streams the backend exposes at
// <baseURL>/<collection> as JSON frames, one ChangeEvent per frame.
type WebSocketFeed struct {
	baseURL string
	dialer  *websocket.Dialer
	log     *zap.Logger
}

// NewWebSocketFeed constructs a WebSocketFeed. baseURL is a ws:// or wss://
// URL without a trailing slash.
func NewWebSocketFeed(baseURL string, log *zap.Logger) *WebSocketFeed {
	return &WebSocketFeed{
		baseURL: strings.TrimRight(baseURL, "/"),
		dialer:  websocket.DefaultDialer,
		log:     log,
	}
}

// Subscribe dials the collection's stream and pumps events into h until the
// connection closes or the subscription is closed.
func (f *WebSocketFeed) Subscribe(ctx context.Context, collection string, h Handler) (Subscription, error) {
	ctx, span := otel.Tracer("razdel/feed").Start(ctx, "feed.subscribe")
	defer span.End()

	url := f.baseURL + "/" + collection
	conn, _, err := f.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial change feed %s: %w", url, err)
	}

	sub := &wsSubscription{
		id:         uuid.NewString(),
		collection: collection,
		conn:       conn,
		log:        f.log,
	}
	go sub.readLoop(context.WithoutCancel(ctx), h)

	f.log.Info("change feed subscribed",
		zap.String("collection", collection), zap.String("conn_id", sub.id))
	return sub, nil
}

type wsSubscription struct {
	id         string
	collection string
	conn       *websocket.Conn
	log        *zap.Logger
	closeOnce  sync.Once
	closed     bool
	mu         sync.Mutex
}

func (s *wsSubscription) readLoop(ctx context.Context, h Handler) {
	defer s.conn.Close()
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("change feed read error",
					zap.String("collection", s.collection), zap.String("conn_id", s.id), zap.Error(err))
			}
			return
		}

		var ev models.ChangeEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.log.Warn("change feed frame rejected",
				zap.String("collection", s.collection), zap.Error(err))
			continue
		}
		observability.IncFeedEvent(string(ev.Entity), string(ev.Op))
		h(ctx, ev)
	}
}

// Close tears the stream down. Safe to call more than once.
func (s *wsSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = s.conn.Close()
		s.log.Info("change feed unsubscribed",
			zap.String("collection", s.collection), zap.String("conn_id", s.id))
	})
	return err
}

var _ Feed = (*WebSocketFeed)(nil)
