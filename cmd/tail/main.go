package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	redisrepo "github.com/V4T54L/checkstream/internal/adapter/repository/redis"
	"github.com/V4T54L/checkstream/internal/domain"
	"github.com/V4T54L/checkstream/internal/pkg/logger"
	"github.com/V4T54L/checkstream/internal/usecase"
)

type tailConfig struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"warn"`
	RedisURL  string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	MaxEvents int64  `env:"STREAM_MAX_EVENTS" envDefault:"1000"`
}

func main() {
	streamID := flag.String("stream", "", "stream id to read (required)")
	after := flag.String("after", domain.StartCursor, "only print events after this event id")
	follow := flag.Bool("follow", false, "keep printing live events until a terminal event")
	flag.Parse()

	if *streamID == "" {
		fmt.Fprintln(os.Stderr, "tail: -stream is required")
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	var cfg tailConfig
	if err := env.Parse(&cfg); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	// Create a context that we can cancel on shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(opts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	repo := redisrepo.NewStreamRepository(redisClient, log, nil, cfg.MaxEvents, domain.DefaultStreamTTL)
	streams := usecase.NewEventStreamUseCase(repo, nil, repo, log, nil, 0)

	if err := run(ctx, streams, *streamID, *after, *follow, json.NewEncoder(os.Stdout)); err != nil {
		log.Error("tail failed", "stream_id", *streamID, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, streams *usecase.EventStreamUseCase, streamID, after string, follow bool, out *json.Encoder) error {
	var live <-chan domain.StreamEvent
	if follow {
		var err error
		if live, err = streams.Subscribe(ctx, streamID); err != nil {
			return err
		}
	}

	printed := make(map[string]struct{})
	for _, ev := range streams.WaitForEvents(ctx, streamID, after) {
		if err := out.Encode(ev); err != nil {
			return err
		}
		printed[ev.ID] = struct{}{}
		if follow && ev.IsTerminal() {
			return nil
		}
	}
	if !follow {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-live:
			if !ok {
				return nil
			}
			if _, dup := printed[ev.ID]; dup {
				continue
			}
			if err := out.Encode(ev); err != nil {
				return err
			}
			printed[ev.ID] = struct{}{}
			if ev.IsTerminal() {
				return nil
			}
		}
	}
}
