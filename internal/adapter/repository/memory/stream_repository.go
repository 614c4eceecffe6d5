package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/V4T54L/checkstream/internal/domain"
)

const subscriberBuffer = 64

type streamLog struct {
	events    []domain.StreamEvent // oldest first
	expiresAt time.Time
}

// StreamRepository is an in-process implementation of the stream store,
// intended for tests and single-instance development. Appends are
// serialized by a single mutex, which defines log order. Event ids are
// assigned by the caller before Append and may not follow that order.
type StreamRepository struct {
	logger    *slog.Logger
	maxEvents int64
	ttl       time.Duration
	now       func() time.Time

	mu          sync.RWMutex
	streams     map[string]*streamLog
	subscribers map[string]map[chan domain.StreamEvent]struct{}
}

// NewStreamRepository creates an empty in-memory stream repository.
func NewStreamRepository(logger *slog.Logger, maxEvents int64, ttl time.Duration) *StreamRepository {
	if maxEvents <= 0 {
		maxEvents = domain.DefaultStreamMaxEvents
	}
	if ttl <= 0 {
		ttl = domain.DefaultStreamTTL
	}
	return &StreamRepository{
		logger:      logger.With("component", "memory_stream_repository"),
		maxEvents:   maxEvents,
		ttl:         ttl,
		now:         time.Now,
		streams:     make(map[string]*streamLog),
		subscribers: make(map[string]map[chan domain.StreamEvent]struct{}),
	}
}

// SetClock replaces the time source used for expiry. Test helper.
func (r *StreamRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Append adds the event, drops the oldest entries beyond the cap and
// refreshes the expiry.
func (r *StreamRepository) Append(ctx context.Context, streamID string, event domain.StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.liveLog(streamID)
	if log == nil {
		log = &streamLog{}
		r.streams[streamID] = log
	}
	log.events = append(log.events, event)
	if over := int64(len(log.events)) - r.maxEvents; over > 0 {
		log.events = append([]domain.StreamEvent(nil), log.events[over:]...)
	}
	log.expiresAt = r.now().Add(r.ttl)
	return nil
}

// List returns a copy of the retained events, oldest first.
func (r *StreamRepository) List(ctx context.Context, streamID string) ([]domain.StreamEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.liveLog(streamID)
	if log == nil {
		return []domain.StreamEvent{}, nil
	}
	return append([]domain.StreamEvent(nil), log.events...), nil
}

// Exists reports whether an unexpired log is stored for the stream.
func (r *StreamRepository) Exists(ctx context.Context, streamID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liveLog(streamID) != nil, nil
}

// Info reports the length and remaining TTL of a stream.
func (r *StreamRepository) Info(ctx context.Context, streamID string) (*domain.StreamInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.liveLog(streamID)
	if log == nil {
		return nil, domain.ErrNotFound
	}
	return &domain.StreamInfo{
		StreamID: streamID,
		Length:   int64(len(log.events)),
		TTL:      log.expiresAt.Sub(r.now()),
	}, nil
}

// Trim keeps only the maxLen most recent events of a stream. maxLen is
// validated as positive by the admin use case.
func (r *StreamRepository) Trim(ctx context.Context, streamID string, maxLen int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.liveLog(streamID)
	if log == nil {
		return nil
	}
	if over := int64(len(log.events)) - maxLen; over > 0 {
		log.events = append([]domain.StreamEvent(nil), log.events[over:]...)
	}
	return nil
}

// Publish delivers the event to every current subscriber of the stream.
// Slow subscribers whose buffer is full miss the event.
func (r *StreamRepository) Publish(ctx context.Context, streamID string, event domain.StreamEvent) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for sub := range r.subscribers[streamID] {
		select {
		case sub <- event:
		default:
			r.logger.Warn("subscriber buffer full, dropping live event", "stream_id", streamID, "event_id", event.ID)
		}
	}
	return nil
}

// Subscribe registers a live subscriber until ctx is done.
func (r *StreamRepository) Subscribe(ctx context.Context, streamID string) (<-chan domain.StreamEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := make(chan domain.StreamEvent, subscriberBuffer)

	r.mu.Lock()
	if r.subscribers[streamID] == nil {
		r.subscribers[streamID] = make(map[chan domain.StreamEvent]struct{})
	}
	r.subscribers[streamID][sub] = struct{}{}
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.removeSubscriber(streamID, sub)
	}()

	return sub, nil
}

func (r *StreamRepository) removeSubscriber(streamID string, sub chan domain.StreamEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs, ok := r.subscribers[streamID]; ok {
		if _, ok := subs[sub]; ok {
			delete(subs, sub)
			close(sub)
		}
		if len(subs) == 0 {
			delete(r.subscribers, streamID)
		}
	}
}

// liveLog returns the stream log, evicting it first if it has expired.
// Callers must hold the write lock.
func (r *StreamRepository) liveLog(streamID string) *streamLog {
	log, ok := r.streams[streamID]
	if !ok {
		return nil
	}
	if !r.now().Before(log.expiresAt) {
		delete(r.streams, streamID)
		return nil
	}
	return log
}
