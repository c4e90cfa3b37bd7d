package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"quote-broadcaster/src/interfaces"
	"quote-broadcaster/src/models"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher keeps the latest snapshot of each symbol under <namespace>:<symbol>.
// Keys expire after ttl so a stopped broadcaster leaves no stale quotes behind.
type RedisPublisher struct {
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ interfaces.ISnapshotPublisher = (*RedisPublisher)(nil)

// NewRedisPublisher defaults ttl to one minute and namespace to "quotes".
func NewRedisPublisher(rdb *redis.Client, ttl time.Duration, namespace string) *RedisPublisher {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if namespace == "" {
		namespace = "quotes"
	}
	return &RedisPublisher{rdb: rdb, ttl: ttl, namespace: namespace}
}

// NewRedisClient opens a client from config and pings it.
func NewRedisClient(ctx context.Context, cfg *models.MRedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

func (r *RedisPublisher) Name() string {
	return "redis"
}

// Publish stores every snapshot and keeps going past individual failures.
func (r *RedisPublisher) Publish(ctx context.Context, snapshots []models.MOutboundSnapshot) error {
	if r.rdb == nil {
		return nil
	}

	var errs []error
	for _, snap := range snapshots {
		b, err := json.Marshal(snap)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.rdb.Set(ctx, r.Key(snap.Symbol), b, r.ttl).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis set %s: %w", snap.Symbol, err))
		}
	}
	return errors.Join(errs...)
}

func (r *RedisPublisher) Close() error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}

// Key builds the cache key for a display symbol.
func (r *RedisPublisher) Key(symbol string) string {
	return fmt.Sprintf("%s:%s", r.namespace, safe(strings.ToUpper(symbol)))
}

// safe escapes characters that are problematic in Redis keys and NATS subjects.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, ".", "_")
	return s
}
