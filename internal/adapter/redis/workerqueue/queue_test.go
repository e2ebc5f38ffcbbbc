package workerqueue

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"gitlab.com/effect-network.net/internal/adapter/logging"
	"gitlab.com/effect-network.net/internal/static/errs"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	prefix := "effect-test:" + uuid.NewString()
	q := NewQueue(client, prefix, logging.NewNopLogger())
	t.Cleanup(func() { client.Del(context.Background(), q.keys...) })
	return q
}

func TestRedisQueueFIFO(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	_ = q.Add(ctx, "w1")
	_ = q.Add(ctx, "w2")
	_ = q.Add(ctx, "w1")

	first, err := q.Take(ctx)
	if err != nil || first != "w1" {
		t.Fatalf("Take = %q, %v", first, err)
	}
	_ = q.Release(ctx, first)

	ids, _ := q.List(ctx)
	if len(ids) != 2 || ids[0] != "w2" || ids[1] != "w1" {
		t.Fatalf("List = %v, want [w2 w1]", ids)
	}

	_ = q.Remove(ctx, "w2")
	_, _ = q.Take(ctx)
	if _, err := q.Take(ctx); !errors.Is(err, errs.ErrQueueEmpty) {
		t.Fatalf("Take on empty: %v", err)
	}
}

func TestRedisQueueConcurrentTake(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	for i := 0; i < 20; i++ {
		_ = q.Add(ctx, uuid.NewString())
	}

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := q.Take(ctx)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[id] {
				t.Errorf("worker %s taken twice", id)
			}
			seen[id] = true
		}()
	}
	wg.Wait()
	if len(seen) != 20 {
		t.Fatalf("took %d workers, want 20", len(seen))
	}
}
