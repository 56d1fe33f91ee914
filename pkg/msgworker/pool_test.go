package msgworker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_DispatchNonBlocking(t *testing.T) {
	pool := NewPool(2, 10)
	pool.Start(context.Background())
	defer pool.Stop()

	start := time.Now()
	ok := pool.TryDispatch(Job{
		AccountID: "acct-1",
		Sender:    "5550001",
		Handler: func(ctx context.Context) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	})
	elapsed := time.Since(start)

	assert.True(t, ok)
	assert.Less(t, elapsed, 10*time.Millisecond, "dispatch must not wait for the handler")
}

func TestPool_SameSenderSequential(t *testing.T) {
	pool := NewPool(4, 100)
	pool.Start(context.Background())

	var (
		mu      sync.Mutex
		results []int
	)
	for i := 1; i <= 5; i++ {
		val := i
		require.True(t, pool.TryDispatch(Job{
			AccountID: "acct-1",
			Sender:    "5550001",
			Handler: func(ctx context.Context) error {
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				results = append(results, val)
				mu.Unlock()
				return nil
			},
		}))
	}

	pool.Stop()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, results)
}

func TestPool_DifferentSendersInParallel(t *testing.T) {
	pool := NewPool(8, 100)
	pool.Start(context.Background())
	defer pool.Stop()

	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		pool.TryDispatch(Job{
			AccountID: "acct-1",
			Sender:    fmt.Sprintf("sender-%d", i),
			Handler: func(ctx context.Context) error {
				defer wg.Done()
				cur := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
						break
					}
				}
				time.Sleep(30 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			},
		})
	}
	wg.Wait()

	assert.GreaterOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(8))
}

func TestPool_StopDrainsQueuedJobs(t *testing.T) {
	pool := NewPool(2, 10)
	pool.Start(context.Background())

	var completed int32
	for i := 0; i < 6; i++ {
		pool.TryDispatch(Job{
			AccountID: "acct-1",
			Sender:    fmt.Sprintf("s%d", i),
			Handler: func(ctx context.Context) error {
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&completed, 1)
				return nil
			},
		})
	}

	pool.Stop()
	assert.Equal(t, int32(6), atomic.LoadInt32(&completed))
	assert.False(t, pool.TryDispatch(Job{AccountID: "a", Sender: "b", Handler: func(context.Context) error { return nil }}))
}

func TestPool_FullQueueDrops(t *testing.T) {
	pool := NewPool(1, 1)

	noop := func(context.Context) error { return nil }
	assert.True(t, pool.TryDispatch(Job{AccountID: "a", Sender: "b", Handler: noop}))
	assert.False(t, pool.TryDispatch(Job{AccountID: "a", Sender: "b", Handler: noop}))

	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.TotalDispatched)
	assert.Equal(t, int64(1), stats.TotalDropped)
	pool.Stop()
}

func TestPool_ErrorsAndPanicsCounted(t *testing.T) {
	pool := NewPool(1, 10)
	pool.Start(context.Background())

	pool.TryDispatch(Job{AccountID: "a", Sender: "b", Handler: func(context.Context) error { return errors.New("fail") }})
	pool.TryDispatch(Job{AccountID: "a", Sender: "b", Handler: func(context.Context) error { panic("boom") }})
	pool.TryDispatch(Job{AccountID: "a", Sender: "b", Handler: func(context.Context) error { return nil }})
	pool.Stop()

	stats := pool.Stats()
	assert.Equal(t, int64(3), stats.TotalProcessed)
	assert.Equal(t, int64(2), stats.TotalErrors)
	require.Len(t, stats.WorkerStats, 1)
	assert.Equal(t, int64(3), stats.WorkerStats[0].JobsProcessed)
}

func TestPool_ConsistentSharding(t *testing.T) {
	pool := NewPool(4, 10)
	key := Job{AccountID: "acct-1", Sender: "chat123"}.key()

	shard := pool.shardFor(key)
	for i := 0; i < 5; i++ {
		assert.Equal(t, shard, pool.shardFor(key))
	}
	assert.GreaterOrEqual(t, shard, 0)
	assert.Less(t, shard, 4)

	counts := make(map[int]int)
	for i := 0; i < 400; i++ {
		counts[pool.shardFor(fmt.Sprintf("acct-1|%d", i))]++
	}
	for s, c := range counts {
		assert.Greater(t, c, 50, "worker %d got too few senders", s)
	}
}
