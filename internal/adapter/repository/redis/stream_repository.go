package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/checkstream/internal/adapter/metrics"
	"github.com/V4T54L/checkstream/internal/domain"
)

const subscriberBuffer = 64

func eventsKey(streamID string) string  { return "events:" + streamID }
func channelKey(streamID string) string { return "channel:" + streamID }

// StreamRepository stores each stream as a capped Redis list (newest at the
// head) and fans live events out over a pub/sub channel per stream.
type StreamRepository struct {
	client    *redis.Client
	logger    *slog.Logger
	metrics   *metrics.StreamMetrics
	maxEvents int64
	ttl       time.Duration
}

// NewStreamRepository creates a Redis-backed stream repository. Non-positive
// maxEvents or ttl fall back to the package defaults.
func NewStreamRepository(client *redis.Client, logger *slog.Logger, m *metrics.StreamMetrics, maxEvents int64, ttl time.Duration) *StreamRepository {
	if maxEvents <= 0 {
		maxEvents = domain.DefaultStreamMaxEvents
	}
	if ttl <= 0 {
		ttl = domain.DefaultStreamTTL
	}
	return &StreamRepository{
		client:    client,
		logger:    logger.With("component", "redis_stream_repository"),
		metrics:   m,
		maxEvents: maxEvents,
		ttl:       ttl,
	}
}

// Append pushes the event, trims the list and refreshes the TTL in a single
// pipeline. The three commands are not transactional; an interrupted
// pipeline is corrected by the next append.
func (r *StreamRepository) Append(ctx context.Context, streamID string, event domain.StreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal stream event: %w", err)
	}

	key := eventsKey(streamID)
	pipe := r.client.Pipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, r.maxEvents-1)
	pipe.Expire(ctx, key, r.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append event to stream %s: %w", streamID, err)
	}
	return nil
}

// List returns the retained events of a stream, oldest first.
func (r *StreamRepository) List(ctx context.Context, streamID string) ([]domain.StreamEvent, error) {
	raw, err := r.client.LRange(ctx, eventsKey(streamID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to LRANGE stream %s: %w", streamID, err)
	}

	events := make([]domain.StreamEvent, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		events = append(events, r.decode(streamID, raw[i]))
	}
	return events, nil
}

// Exists reports whether the stream's list key is present.
func (r *StreamRepository) Exists(ctx context.Context, streamID string) (bool, error) {
	n, err := r.client.Exists(ctx, eventsKey(streamID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check stream %s: %w", streamID, err)
	}
	return n == 1, nil
}

// Publish sends the event to subscribers of the stream's channel.
func (r *StreamRepository) Publish(ctx context.Context, streamID string, event domain.StreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal stream event: %w", err)
	}
	if err := r.client.Publish(ctx, channelKey(streamID), payload).Err(); err != nil {
		return fmt.Errorf("failed to PUBLISH to stream %s: %w", streamID, err)
	}
	return nil
}

// Subscribe listens on the stream's channel. The subscription is confirmed
// before returning, so events published afterwards are not missed. The
// returned channel is closed once ctx is done or the connection drops.
func (r *StreamRepository) Subscribe(ctx context.Context, streamID string) (<-chan domain.StreamEvent, error) {
	pubsub := r.client.Subscribe(ctx, channelKey(streamID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to stream %s: %w", streamID, err)
	}

	out := make(chan domain.StreamEvent, subscriberBuffer)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- r.decode(streamID, msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *StreamRepository) decode(streamID, raw string) domain.StreamEvent {
	event, repaired := decodeEvent(raw)
	if repaired {
		r.logger.Warn("repaired malformed stream event", "stream_id", streamID, "event_id", event.ID)
		if r.metrics != nil {
			r.metrics.EventsRepaired.Inc()
		}
	}
	return event
}

// decodeEvent parses a stored event field by field so that a single bad
// field does not discard the others. Missing or invalid fields are replaced
// with defaults and reported through the second return value.
func decodeEvent(raw string) (domain.StreamEvent, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		fields = nil
	}

	var event domain.StreamEvent
	repaired := fields == nil

	if err := json.Unmarshal(fields["event"], &event.Event); err != nil || event.Event == "" {
		event.Event = domain.EventTypeUnknown
		repaired = true
	}

	if data, ok := fields["data"]; ok && len(data) > 0 && string(data) != "null" {
		event.Data = data
	} else {
		event.Data = json.RawMessage(`{}`)
		repaired = true
	}

	var ts float64
	if err := json.Unmarshal(fields["timestamp"], &ts); err != nil || ts <= 0 {
		event.Timestamp = time.Now().UnixMilli()
		repaired = true
	} else {
		event.Timestamp = int64(ts)
	}

	if err := json.Unmarshal(fields["id"], &event.ID); err != nil || event.ID == "" {
		event.ID = domain.NewEventID()
		repaired = true
	}

	return event, repaired
}
