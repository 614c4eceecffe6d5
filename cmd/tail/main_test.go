package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisrepo "github.com/V4T54L/checkstream/internal/adapter/repository/redis"
	"github.com/V4T54L/checkstream/internal/domain"
	"github.com/V4T54L/checkstream/internal/usecase"
)

func newRepo(t *testing.T) *redisrepo.StreamRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return redisrepo.NewStreamRepository(client, logger, nil, domain.DefaultStreamMaxEvents, domain.DefaultStreamTTL)
}

func newStreamsWith(t *testing.T, repo domain.StreamRepository, live *redisrepo.StreamRepository) *usecase.EventStreamUseCase {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uc := usecase.NewEventStreamUseCase(repo, live, live, logger, nil, time.Second)
	t.Cleanup(uc.Close)
	return uc
}

func newStreams(t *testing.T) *usecase.EventStreamUseCase {
	t.Helper()
	repo := newRepo(t)
	return newStreamsWith(t, repo, repo)
}

// afterListRepo runs a hook once, right after the next List, standing in for
// a concurrent writer that stores an event between replay and live tail.
type afterListRepo struct {
	*redisrepo.StreamRepository
	hook atomic.Pointer[func()]
}

func (r *afterListRepo) List(ctx context.Context, streamID string) ([]domain.StreamEvent, error) {
	events, err := r.StreamRepository.List(ctx, streamID)
	if f := r.hook.Swap(nil); f != nil {
		(*f)()
	}
	return events, err
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []domain.StreamEvent {
	t.Helper()
	var events []domain.StreamEvent
	dec := json.NewDecoder(buf)
	for dec.More() {
		var ev domain.StreamEvent
		require.NoError(t, dec.Decode(&ev))
		events = append(events, ev)
	}
	return events
}

func TestRun_Snapshot(t *testing.T) {
	streams := newStreams(t)
	ctx := context.Background()

	require.NoError(t, streams.CreateStream(ctx, "job-1"))
	startID := streams.GetLastEventID(ctx, "job-1")
	_, err := streams.AddEvent(ctx, "job-1", domain.EventTypeProgress, map[string]int{"pct": 50})
	require.NoError(t, err)

	var all bytes.Buffer
	require.NoError(t, run(ctx, streams, "job-1", domain.StartCursor, false, json.NewEncoder(&all)))
	assert.Len(t, decodeLines(t, &all), 2)

	var after bytes.Buffer
	require.NoError(t, run(ctx, streams, "job-1", startID, false, json.NewEncoder(&after)))
	events := decodeLines(t, &after)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeProgress, events[0].Event)
}

func TestRun_FollowStopsAtTerminal(t *testing.T) {
	streams := newStreams(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, streams.CreateStream(ctx, "job-2"))

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, streams, "job-2", domain.StartCursor, true, json.NewEncoder(&out))
	}()

	// Appends keep going until the follower has seen the terminal event,
	// since the subscription may not be open yet on the first attempts.
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			events := decodeLines(t, &out)
			require.NotEmpty(t, events)
			assert.Equal(t, domain.EventTypeStart, events[0].Event)
			assert.True(t, events[len(events)-1].IsTerminal())
			return
		case <-ticker.C:
			require.NoError(t, streams.CompleteStream(ctx, "job-2"))
		case <-ctx.Done():
			t.Fatal("follow did not stop after a terminal event")
		}
	}
}

func TestRun_FollowPrintsOlderIDStoredAfterReplay(t *testing.T) {
	inner := newRepo(t)
	repo := &afterListRepo{StreamRepository: inner}
	streams := newStreamsWith(t, repo, inner)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, streams.CreateStream(ctx, "job-3"))

	// The slow writer's event gets its id first but is stored last.
	older, err := domain.NewStreamEvent(domain.EventTypeProgress, map[string]string{"writer": "slow"})
	require.NoError(t, err)
	newer, err := streams.AddEvent(ctx, "job-3", domain.EventTypeProgress, map[string]string{"writer": "fast"})
	require.NoError(t, err)
	require.Less(t, older.ID, newer.ID)
	streams.Close()

	lateWrite := func() {
		require.NoError(t, inner.Append(ctx, "job-3", older))
		require.NoError(t, inner.Publish(ctx, "job-3", older))
		require.NoError(t, streams.CompleteStream(ctx, "job-3"))
	}
	repo.hook.Store(&lateWrite)

	var out bytes.Buffer
	require.NoError(t, run(ctx, streams, "job-3", domain.StartCursor, true, json.NewEncoder(&out)))

	printed := make(map[string]bool)
	events := decodeLines(t, &out)
	for _, ev := range events {
		printed[ev.ID] = true
	}
	assert.Len(t, events, 4)
	assert.True(t, printed[older.ID], "event stored after the replay must be printed")
	assert.True(t, printed[newer.ID])
	assert.Equal(t, domain.EventTypeComplete, events[len(events)-1].Event)
}
