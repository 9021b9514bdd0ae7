package queue

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Rooms/internal/core"
)

// MemoryQueue runs every task on its own goroutine inside this process.
// Tasks are lost on restart.
type MemoryQueue struct {
	mu      sync.Mutex
	ctx     context.Context
	handle  core.TaskHandler
	pending []core.Task
	wg      sync.WaitGroup
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Enqueue starts the task right away when a worker is running. Before that it is held until Run.
func (q *MemoryQueue) Enqueue(_ context.Context, task core.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.handle == nil {
		q.pending = append(q.pending, task)
		return nil
	}
	q.start(task)
	return nil
}

func (q *MemoryQueue) start(task core.Task) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		runTask(q.ctx, q.handle, task)
	}()
}

// Run attaches the handler, drains held tasks and blocks until ctx is done and running tasks have returned.
func (q *MemoryQueue) Run(ctx context.Context, handle core.TaskHandler) error {
	q.mu.Lock()
	q.ctx, q.handle = ctx, handle
	for _, t := range q.pending {
		q.start(t)
	}
	q.pending = nil
	q.mu.Unlock()

	log.Info().Str("module", "queue").Msg("in-process worker started")
	<-ctx.Done()

	q.mu.Lock()
	q.handle = nil
	q.mu.Unlock()
	q.wg.Wait()
	log.Info().Str("module", "queue").Msg("in-process worker stopped")
	return nil
}
