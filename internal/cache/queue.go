package cache

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when a task is dropped because every slot is taken
	ErrQueueFull = errors.New("queue full")
	// ErrQueueClosed is returned for tasks enqueued after Shutdown
	ErrQueueClosed = errors.New("queue closed")
)

// Task is one unit of background work
type Task struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Queue runs tasks on a fixed pool of workers. Enqueue never blocks: a full
// queue drops the task.
type Queue struct {
	tasks  chan Task
	log    *zap.Logger
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts workers goroutines draining a buffer of size slots
func NewQueue(workers, size int, log *zap.Logger) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if size <= 0 {
		size = 128
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:  make(chan Task, size),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	return q
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for task := range q.tasks {
		q.run(id, task)
	}
}

func (q *Queue) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("task panicked", zap.Int("worker", id), zap.String("task", task.Name), zap.Any("panic", r))
		}
	}()
	if err := task.Fn(q.ctx); err != nil {
		q.log.Warn("task failed", zap.Int("worker", id), zap.String("task", task.Name), zap.Error(err))
	}
}

// Enqueue schedules task
func (q *Queue) Enqueue(task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		q.log.Warn("task dropped", zap.String("task", task.Name))
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish
func (q *Queue) Shutdown() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
	q.cancel()
}
