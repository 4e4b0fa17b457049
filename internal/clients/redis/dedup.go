package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hamlaty/contest-backend/internal/logger"
	"github.com/hamlaty/contest-backend/internal/utils"
)

// DedupCache is a best-effort fast path in front of the comment_id unique
// index: a hit skips the event without a DB round trip, a miss or any redis
// failure falls through to the authoritative insert-or-ignore.
type DedupCache interface {
	Seen(ctx context.Context, commentID string) bool
	Mark(ctx context.Context, commentID string)
	Close() error
}

type dedupCache struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewDedupCache(log *logger.Logger) (DedupCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ttlSeconds := utils.GetEnvAsInt("COMMENT_DEDUP_TTL_SECONDS", 86400, log)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &dedupCache{
		log:    log.With("client", "RedisDedupCache"),
		rdb:    rdb,
		prefix: "comment_seen:",
		ttl:    time.Duration(ttlSeconds) * time.Second,
	}, nil
}

func (dc *dedupCache) Seen(ctx context.Context, commentID string) bool {
	n, err := dc.rdb.Exists(ctx, dc.prefix+commentID).Result()
	if err != nil {
		dc.log.Debug("Dedup cache lookup failed, falling back to DB", "error", err)
		return false
	}
	return n > 0
}

func (dc *dedupCache) Mark(ctx context.Context, commentID string) {
	if err := dc.rdb.Set(ctx, dc.prefix+commentID, 1, dc.ttl).Err(); err != nil {
		dc.log.Debug("Dedup cache mark failed", "error", err)
	}
}

func (dc *dedupCache) Close() error {
	return dc.rdb.Close()
}
