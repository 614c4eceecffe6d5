package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/checkstream/internal/domain"
)

// AdminRepository implements the domain.StreamAdminRepository interface for Redis.
type AdminRepository struct {
	client *redis.Client
	logger *slog.Logger
}

// NewAdminRepository creates a new Redis admin repository.
func NewAdminRepository(client *redis.Client, logger *slog.Logger) *AdminRepository {
	return &AdminRepository{
		client: client,
		logger: logger,
	}
}

// Info retrieves the length and remaining TTL of a stream's log.
func (r *AdminRepository) Info(ctx context.Context, streamID string) (*domain.StreamInfo, error) {
	key := eventsKey(streamID)

	pipe := r.client.Pipeline()
	existsCmd := pipe.Exists(ctx, key)
	lenCmd := pipe.LLen(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to get info for stream %s: %w", streamID, err)
	}

	if existsCmd.Val() == 0 {
		return nil, domain.ErrNotFound
	}

	info := &domain.StreamInfo{
		StreamID: streamID,
		Length:   lenCmd.Val(),
	}
	// Negative values mean "no expiry".
	if ttl := ttlCmd.Val(); ttl > 0 {
		info.TTL = ttl
	}
	return info, nil
}

// Trim keeps only the maxLen most recent events of a stream.
func (r *AdminRepository) Trim(ctx context.Context, streamID string, maxLen int64) error {
	if err := r.client.LTrim(ctx, eventsKey(streamID), 0, maxLen-1).Err(); err != nil {
		return fmt.Errorf("failed to trim stream %s: %w", streamID, err)
	}
	r.logger.Info("trimmed stream", "stream_id", streamID, "max_len", maxLen)
	return nil
}
