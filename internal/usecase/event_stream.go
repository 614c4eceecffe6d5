package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/checkstream/internal/adapter/metrics"
	"github.com/V4T54L/checkstream/internal/domain"
)

const defaultPublishTimeout = 2 * time.Second

// EventStreamUseCase implements the progress event stream: a capped,
// expiring log per stream plus a best-effort live channel.
//
// Write paths return errors. Read paths never do; a failed read is logged,
// counted and reported as an empty result, so callers must treat "no events"
// as "no new information".
type EventStreamUseCase struct {
	repo           domain.StreamRepository
	publisher      domain.StreamPublisher
	subscriber     domain.StreamSubscriber
	logger         *slog.Logger
	metrics        *metrics.StreamMetrics
	publishTimeout time.Duration

	publishes sync.WaitGroup
}

// NewEventStreamUseCase creates a new EventStreamUseCase. subscriber may be
// nil when live tailing is not needed (e.g. in a worker process).
func NewEventStreamUseCase(
	repo domain.StreamRepository,
	publisher domain.StreamPublisher,
	subscriber domain.StreamSubscriber,
	logger *slog.Logger,
	m *metrics.StreamMetrics,
	publishTimeout time.Duration,
) *EventStreamUseCase {
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}
	return &EventStreamUseCase{
		repo:           repo,
		publisher:      publisher,
		subscriber:     subscriber,
		logger:         logger.With("component", "event_stream"),
		metrics:        m,
		publishTimeout: publishTimeout,
	}
}

// CreateStream writes the synthetic "start" event and sets the expiry.
// Calling it twice records two start events.
func (uc *EventStreamUseCase) CreateStream(ctx context.Context, streamID string) error {
	if strings.TrimSpace(streamID) == "" {
		return domain.ErrInvalidStreamID
	}

	event, err := domain.NewStreamEvent(domain.EventTypeStart, map[string]any{
		"streamId":  streamID,
		"timestamp": time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to build start event: %w", err)
	}

	if err := uc.repo.Append(ctx, streamID, event); err != nil {
		uc.appendFailed(streamID, event, err)
		return err
	}
	uc.appended(event)
	return nil
}

// AddEvent appends a new event and then publishes it to live subscribers
// asynchronously. A publish failure never fails the call.
func (uc *EventStreamUseCase) AddEvent(ctx context.Context, streamID, eventType string, payload any) (domain.StreamEvent, error) {
	if strings.TrimSpace(streamID) == "" {
		return domain.StreamEvent{}, domain.ErrInvalidStreamID
	}
	if strings.TrimSpace(eventType) == "" {
		return domain.StreamEvent{}, domain.ErrInvalidEventType
	}

	event, err := domain.NewStreamEvent(eventType, payload)
	if err != nil {
		return domain.StreamEvent{}, fmt.Errorf("failed to encode event payload: %w", err)
	}

	if err := uc.repo.Append(ctx, streamID, event); err != nil {
		uc.appendFailed(streamID, event, err)
		return domain.StreamEvent{}, err
	}
	uc.appended(event)

	uc.publishAsync(ctx, streamID, event)
	return event, nil
}

// CompleteStream appends the terminal "complete" event.
func (uc *EventStreamUseCase) CompleteStream(ctx context.Context, streamID string) error {
	_, err := uc.AddEvent(ctx, streamID, domain.EventTypeComplete, map[string]bool{"completed": true})
	return err
}

// FailStream appends the terminal "error" event carrying message.
func (uc *EventStreamUseCase) FailStream(ctx context.Context, streamID, message string) error {
	_, err := uc.AddEvent(ctx, streamID, domain.EventTypeError, map[string]string{"error": message})
	return err
}

// GetEvents returns every retained event, oldest first.
func (uc *EventStreamUseCase) GetEvents(ctx context.Context, streamID string) []domain.StreamEvent {
	events, err := uc.repo.List(ctx, streamID)
	if err != nil {
		uc.logger.Error("failed to fetch events", "stream_id", streamID, "error", err)
		if uc.metrics != nil {
			uc.metrics.ReadFailures.Inc()
		}
		return []domain.StreamEvent{}
	}
	if events == nil {
		return []domain.StreamEvent{}
	}
	return events
}

// WaitForEvents returns the events strictly after lastEventID without
// blocking. The start cursor, an empty cursor and a cursor that is no longer
// retained all yield the full history.
func (uc *EventStreamUseCase) WaitForEvents(ctx context.Context, streamID, lastEventID string) []domain.StreamEvent {
	events := uc.GetEvents(ctx, streamID)
	if lastEventID == "" || lastEventID == domain.StartCursor {
		return events
	}

	for i, ev := range events {
		if ev.ID == lastEventID {
			return events[i+1:]
		}
	}
	return events
}

// GetLastEventID returns the id of the newest retained event, or the start
// cursor when there is none.
func (uc *EventStreamUseCase) GetLastEventID(ctx context.Context, streamID string) string {
	events := uc.GetEvents(ctx, streamID)
	if len(events) == 0 {
		return domain.StartCursor
	}
	return events[len(events)-1].ID
}

// StreamExists reports whether the stream's log is currently stored.
func (uc *EventStreamUseCase) StreamExists(ctx context.Context, streamID string) (bool, error) {
	return uc.repo.Exists(ctx, streamID)
}

// Subscribe opens a live subscription to events appended from now on.
func (uc *EventStreamUseCase) Subscribe(ctx context.Context, streamID string) (<-chan domain.StreamEvent, error) {
	if uc.subscriber == nil {
		return nil, fmt.Errorf("live subscriptions are not configured")
	}
	return uc.subscriber.Subscribe(ctx, streamID)
}

// Close waits for in-flight publishes to finish.
func (uc *EventStreamUseCase) Close() {
	uc.publishes.Wait()
}

// publishAsync runs the publish detached from the caller's cancellation so
// that a finished request does not abort it.
func (uc *EventStreamUseCase) publishAsync(ctx context.Context, streamID string, event domain.StreamEvent) {
	if uc.publisher == nil {
		return
	}

	uc.publishes.Add(1)
	go func() {
		defer uc.publishes.Done()

		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.publishTimeout)
		defer cancel()

		if err := uc.publisher.Publish(pubCtx, streamID, event); err != nil {
			uc.logger.Warn("failed to publish live event", "stream_id", streamID, "event_id", event.ID, "error", err)
			if uc.metrics != nil {
				uc.metrics.PublishFailures.Inc()
			}
		}
	}()
}

func (uc *EventStreamUseCase) appended(event domain.StreamEvent) {
	if uc.metrics != nil {
		uc.metrics.EventsAppended.WithLabelValues(event.Event).Inc()
	}
}

func (uc *EventStreamUseCase) appendFailed(streamID string, event domain.StreamEvent, err error) {
	uc.logger.Error("failed to append event", "stream_id", streamID, "event", event.Event, "error", err)
	if uc.metrics != nil {
		uc.metrics.AppendFailures.Inc()
	}
}
