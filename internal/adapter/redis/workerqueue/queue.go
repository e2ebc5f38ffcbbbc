// Package workerqueue keeps the worker queue in Redis so several manager
// processes can share one pool of workers.
package workerqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"gitlab.com/effect-network.net/internal/core/ports/primary"
	"gitlab.com/effect-network.net/internal/core/ports/secondary"
	"gitlab.com/effect-network.net/internal/static/errs"
)

var _ secondary.WorkerQueue = (*Queue)(nil)

const (
	connectedSuffix = ":connected"
	queuedSuffix    = ":queued"
	readySuffix     = ":ready"
)

// KEYS: connected, queued, ready
var (
	addScript = redis.NewScript(`
redis.call("SADD", KEYS[1], ARGV[1])
if redis.call("SADD", KEYS[2], ARGV[1]) == 1 then
	redis.call("RPUSH", KEYS[3], ARGV[1])
end
return 1`)

	takeScript = redis.NewScript(`
local id = redis.call("LPOP", KEYS[3])
if not id then
	return false
end
redis.call("SREM", KEYS[2], id)
return id`)

	releaseScript = redis.NewScript(`
if redis.call("SISMEMBER", KEYS[1], ARGV[1]) == 0 then
	return 0
end
if redis.call("SADD", KEYS[2], ARGV[1]) == 1 then
	redis.call("RPUSH", KEYS[3], ARGV[1])
end
return 1`)

	removeScript = redis.NewScript(`
redis.call("SREM", KEYS[1], ARGV[1])
if redis.call("SREM", KEYS[2], ARGV[1]) == 1 then
	redis.call("LREM", KEYS[3], 0, ARGV[1])
end
return 1`)
)

// Queue implements the worker queue with Redis. Every operation is a single
// Lua script so concurrent managers never take the same worker.
type Queue struct {
	redisClient *redis.Client
	keys        []string
	logger      primary.Logger
}

// NewQueue creates a queue stored under the given key prefix
func NewQueue(redisClient *redis.Client, prefix string, logger primary.Logger) *Queue {
	return &Queue{
		redisClient: redisClient,
		keys:        []string{prefix + connectedSuffix, prefix + queuedSuffix, prefix + readySuffix},
		logger:      logger,
	}
}

func (q *Queue) Add(ctx context.Context, peerID string) error {
	if err := addScript.Run(ctx, q.redisClient, q.keys, peerID).Err(); err != nil {
		q.logger.Error("Failed to add worker", "peer", peerID, "error", err)
		return fmt.Errorf("add worker %s: %w", peerID, err)
	}
	return nil
}

func (q *Queue) Take(ctx context.Context) (string, error) {
	id, err := takeScript.Run(ctx, q.redisClient, q.keys).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", errs.ErrQueueEmpty
		}
		q.logger.Error("Failed to take worker", "error", err)
		return "", fmt.Errorf("take worker: %w", err)
	}
	return id, nil
}

func (q *Queue) Release(ctx context.Context, peerID string) error {
	if err := releaseScript.Run(ctx, q.redisClient, q.keys, peerID).Err(); err != nil {
		q.logger.Error("Failed to release worker", "peer", peerID, "error", err)
		return fmt.Errorf("release worker %s: %w", peerID, err)
	}
	return nil
}

func (q *Queue) Remove(ctx context.Context, peerID string) error {
	if err := removeScript.Run(ctx, q.redisClient, q.keys, peerID).Err(); err != nil {
		return fmt.Errorf("remove worker %s: %w", peerID, err)
	}
	return nil
}

func (q *Queue) List(ctx context.Context) ([]string, error) {
	ids, err := q.redisClient.LRange(ctx, q.keys[2], 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	return ids, nil
}

func (q *Queue) Len(ctx context.Context) (int, error) {
	n, err := q.redisClient.LLen(ctx, q.keys[2]).Result()
	if err != nil {
		return 0, fmt.Errorf("count workers: %w", err)
	}
	return int(n), nil
}
