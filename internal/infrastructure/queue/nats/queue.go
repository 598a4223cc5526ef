package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Queue publishes registered content hashes and fans them out to a worker
// queue group. Duplicate deliveries are tolerated: the catalog claim is
// the correctness gate, not the queue.
type Queue struct {
	conn    *nats.Conn
	subject string
}

const workerGroup = "embed-workers"

func New(url, subject string) (*Queue, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("corpus-engine"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{conn: conn, subject: subject}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// registeredEvent is the wire payload. The publish time lets consumers
// report how long messages sat in the queue.
type registeredEvent struct {
	ContentHash string    `json:"content_hash"`
	PublishedAt time.Time `json:"published_at"`
}

func encodeEvent(contentHash string, publishedAt time.Time) ([]byte, error) {
	return json.Marshal(registeredEvent{ContentHash: contentHash, PublishedAt: publishedAt})
}

// decodeEvent accepts the JSON envelope and, for older producers, a bare
// content hash with no timestamp.
func decodeEvent(data []byte) (string, time.Time) {
	var event registeredEvent
	if err := json.Unmarshal(data, &event); err == nil && event.ContentHash != "" {
		return event.ContentHash, event.PublishedAt
	}
	return string(data), time.Time{}
}

func (q *Queue) PublishResourceRegistered(_ context.Context, contentHash string) error {
	payload, err := encodeEvent(contentHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("encode registration event: %w", err)
	}
	if err := q.conn.Publish(q.subject, payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (q *Queue) SubscribeResourceRegistered(ctx context.Context, handler func(context.Context, string, time.Time) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		contentHash, publishedAt := decodeEvent(msg.Data)
		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, contentHash, publishedAt); err != nil {
			slog.Error("embed_handler_error", "content_hash", contentHash, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
