package multimatch

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// boundedSemaphore wraps golang.org/x/sync/semaphore, following
// shards/shards.go's pattern of capping concurrent shard work with a
// weighted semaphore.
type boundedSemaphore struct {
	sem *semaphore.Weighted
}

func newSemaphore(n int64) *boundedSemaphore {
	return &boundedSemaphore{sem: semaphore.NewWeighted(n)}
}

func (b *boundedSemaphore) Acquire(ctx context.Context) error {
	return b.sem.Acquire(ctx, 1)
}

func (b *boundedSemaphore) Release() {
	b.sem.Release(1)
}
