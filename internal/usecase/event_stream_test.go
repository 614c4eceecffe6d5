package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/checkstream/internal/adapter/metrics"
	"github.com/V4T54L/checkstream/internal/adapter/repository/memory"
	"github.com/V4T54L/checkstream/internal/domain"
	"github.com/V4T54L/checkstream/internal/domain/mocks"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMemoryStreams(t *testing.T) (*EventStreamUseCase, *memory.StreamRepository) {
	t.Helper()
	repo := memory.NewStreamRepository(discardLogger(), domain.DefaultStreamMaxEvents, domain.DefaultStreamTTL)
	uc := NewEventStreamUseCase(repo, repo, repo, discardLogger(), nil, time.Second)
	t.Cleanup(uc.Close)
	return uc, repo
}

func TestEventStreamUseCase_Scenario(t *testing.T) {
	uc, _ := newMemoryStreams(t)
	ctx := context.Background()

	exists, err := uc.StreamExists(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, uc.CreateStream(ctx, "job-1"))
	exists, err = uc.StreamExists(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, exists)

	events := uc.GetEvents(ctx, "job-1")
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeStart, events[0].Event)

	progress, err := uc.AddEvent(ctx, "job-1", domain.EventTypeProgress, map[string]int{"pct": 50})
	require.NoError(t, err)
	assert.Len(t, uc.GetEvents(ctx, "job-1"), 2)
	assert.Equal(t, progress.ID, uc.GetLastEventID(ctx, "job-1"))

	require.NoError(t, uc.FailStream(ctx, "job-1", "timeout"))
	events = uc.GetEvents(ctx, "job-1")
	require.Len(t, events, 3)
	last := events[2]
	assert.Equal(t, "error", last.Event)
	assert.JSONEq(t, `{"error":"timeout"}`, string(last.Data))
}

func TestEventStreamUseCase_StartEventPayload(t *testing.T) {
	uc, _ := newMemoryStreams(t)
	ctx := context.Background()

	require.NoError(t, uc.CreateStream(ctx, "job-start"))
	require.NoError(t, uc.CreateStream(ctx, "job-start"))

	events := uc.GetEvents(ctx, "job-start")
	require.Len(t, events, 2, "a second create is not deduplicated")

	var data struct {
		StreamID  string `json:"streamId"`
		Timestamp int64  `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(events[0].Data, &data))
	assert.Equal(t, "job-start", data.StreamID)
	assert.NotZero(t, data.Timestamp)
}

func TestEventStreamUseCase_WaitForEvents(t *testing.T) {
	uc, _ := newMemoryStreams(t)
	ctx := context.Background()

	var ids []string
	for i := 1; i <= 10; i++ {
		ev, err := uc.AddEvent(ctx, "job-wait", domain.EventTypeProgress, map[string]int{"step": i})
		require.NoError(t, err)
		ids = append(ids, ev.ID)
	}

	t.Run("After Fifth Event", func(t *testing.T) {
		events := uc.WaitForEvents(ctx, "job-wait", ids[4])
		require.Len(t, events, 5)
		for i, ev := range events {
			assert.Equal(t, ids[5+i], ev.ID)
		}
	})

	t.Run("Start Cursor", func(t *testing.T) {
		assert.Len(t, uc.WaitForEvents(ctx, "job-wait", domain.StartCursor), 10)
	})

	t.Run("Unknown Cursor Fails Open", func(t *testing.T) {
		assert.Len(t, uc.WaitForEvents(ctx, "job-wait", "nonexistent-id"), 10)
	})

	t.Run("Last Event Cursor", func(t *testing.T) {
		assert.Empty(t, uc.WaitForEvents(ctx, "job-wait", ids[9]))
	})

	t.Run("Unknown Stream", func(t *testing.T) {
		events := uc.WaitForEvents(ctx, "job-none", domain.StartCursor)
		assert.NotNil(t, events)
		assert.Empty(t, events)
		assert.Equal(t, domain.StartCursor, uc.GetLastEventID(ctx, "job-none"))
	})
}

func TestEventStreamUseCase_CapKeepsNewest(t *testing.T) {
	uc, _ := newMemoryStreams(t)
	ctx := context.Background()

	var lastID string
	for i := 0; i < 1005; i++ {
		ev, err := uc.AddEvent(ctx, "job-cap", domain.EventTypeProgress, map[string]int{"step": i})
		require.NoError(t, err)
		lastID = ev.ID
	}

	events := uc.GetEvents(ctx, "job-cap")
	require.Len(t, events, domain.DefaultStreamMaxEvents)
	assert.JSONEq(t, `{"step":5}`, string(events[0].Data))
	assert.Equal(t, lastID, uc.GetLastEventID(ctx, "job-cap"))
}

func TestEventStreamUseCase_LiveDelivery(t *testing.T) {
	uc, _ := newMemoryStreams(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	live, err := uc.Subscribe(ctx, "job-live")
	require.NoError(t, err)

	ev, err := uc.AddEvent(context.Background(), "job-live", domain.EventTypeProgress, map[string]int{"pct": 10})
	require.NoError(t, err)

	select {
	case got := <-live:
		assert.Equal(t, ev.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for live event")
	}
}

func TestEventStreamUseCase_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("Append Error Propagates", func(t *testing.T) {
		repo := &mocks.MockStreamRepository{AppendErr: errors.New("redis down")}
		m := metrics.NewStreamMetrics(prometheus.NewRegistry())
		uc := NewEventStreamUseCase(repo, repo, nil, discardLogger(), m, time.Second)

		err := uc.CreateStream(ctx, "job")
		assert.EqualError(t, err, "redis down")

		_, err = uc.AddEvent(ctx, "job", domain.EventTypeProgress, nil)
		assert.EqualError(t, err, "redis down")

		uc.Close()
		assert.Empty(t, repo.PublishedEvents(), "nothing is published when the append fails")
		assert.Equal(t, 2.0, testutil.ToFloat64(m.AppendFailures))
	})

	t.Run("Publish Error Is Not Fatal", func(t *testing.T) {
		repo := &mocks.MockStreamRepository{PublishErr: errors.New("publish refused")}
		m := metrics.NewStreamMetrics(prometheus.NewRegistry())
		uc := NewEventStreamUseCase(repo, repo, nil, discardLogger(), m, time.Second)

		_, err := uc.AddEvent(ctx, "job", domain.EventTypeProgress, map[string]int{"pct": 1})
		require.NoError(t, err)
		uc.Close()

		assert.Len(t, uc.GetEvents(ctx, "job"), 1, "the stored log is unaffected")
		assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishFailures))
	})

	t.Run("Publish Outlives Request Context", func(t *testing.T) {
		repo := &mocks.MockStreamRepository{}
		uc := NewEventStreamUseCase(repo, repo, nil, discardLogger(), nil, time.Second)

		reqCtx, cancel := context.WithCancel(ctx)
		_, err := uc.AddEvent(reqCtx, "job", domain.EventTypeProgress, nil)
		require.NoError(t, err)
		cancel()
		uc.Close()

		assert.Len(t, repo.PublishedEvents(), 1)
	})

	t.Run("Read Error Degrades To Empty", func(t *testing.T) {
		repo := &mocks.MockStreamRepository{ListErr: errors.New("connection reset")}
		m := metrics.NewStreamMetrics(prometheus.NewRegistry())
		uc := NewEventStreamUseCase(repo, repo, nil, discardLogger(), m, time.Second)

		events := uc.GetEvents(ctx, "job")
		assert.NotNil(t, events)
		assert.Empty(t, events)
		assert.Empty(t, uc.WaitForEvents(ctx, "job", "some-id"))
		assert.Equal(t, domain.StartCursor, uc.GetLastEventID(ctx, "job"))
		assert.Equal(t, 3.0, testutil.ToFloat64(m.ReadFailures))
	})

	t.Run("Exists Error Propagates", func(t *testing.T) {
		repo := &mocks.MockStreamRepository{ExistsErr: errors.New("timeout")}
		uc := NewEventStreamUseCase(repo, repo, nil, discardLogger(), nil, time.Second)

		_, err := uc.StreamExists(ctx, "job")
		assert.Error(t, err)
	})

	t.Run("Validation", func(t *testing.T) {
		repo := &mocks.MockStreamRepository{}
		uc := NewEventStreamUseCase(repo, repo, nil, discardLogger(), nil, time.Second)

		assert.ErrorIs(t, uc.CreateStream(ctx, " "), domain.ErrInvalidStreamID)
		_, err := uc.AddEvent(ctx, "job", "", nil)
		assert.ErrorIs(t, err, domain.ErrInvalidEventType)
		_, err = uc.AddEvent(ctx, "job", domain.EventTypeProgress, json.RawMessage(`{broken`))
		assert.Error(t, err)
		assert.Empty(t, repo.Appended)

		_, err = uc.Subscribe(ctx, "job")
		assert.Error(t, err, "no subscriber configured")
	})
}

func ExampleEventStreamUseCase_WaitForEvents() {
	repo := memory.NewStreamRepository(discardLogger(), 0, 0)
	uc := NewEventStreamUseCase(repo, repo, repo, discardLogger(), nil, 0)
	defer uc.Close()
	ctx := context.Background()

	_ = uc.CreateStream(ctx, "job-1")
	seen := uc.GetLastEventID(ctx, "job-1")
	_, _ = uc.AddEvent(ctx, "job-1", "progress", map[string]int{"pct": 50})
	_ = uc.CompleteStream(ctx, "job-1")

	for _, ev := range uc.WaitForEvents(ctx, "job-1", seen) {
		fmt.Println(ev.Event, string(ev.Data))
	}
	// Output:
	// progress {"pct":50}
	// complete {"completed":true}
}
