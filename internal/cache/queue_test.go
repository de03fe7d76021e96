package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestQueueRunsTasks(t *testing.T) {
	q := NewQueue(3, 10, zaptest.NewLogger(t))

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		assert.NoError(t, q.Enqueue(Task{Name: "inc", Fn: func(context.Context) error {
			n.Add(1)
			return nil
		}}))
	}
	q.Shutdown()
	assert.Equal(t, int32(10), n.Load())

	assert.ErrorIs(t, q.Enqueue(Task{Name: "late", Fn: func(context.Context) error { return nil }}), ErrQueueClosed)
	q.Shutdown()
}

func TestQueueSurvivesFailures(t *testing.T) {
	q := NewQueue(1, 4, zaptest.NewLogger(t))

	var ran atomic.Bool
	_ = q.Enqueue(Task{Name: "fails", Fn: func(context.Context) error { return errors.New("nope") }})
	_ = q.Enqueue(Task{Name: "panics", Fn: func(context.Context) error { panic("boom") }})
	_ = q.Enqueue(Task{Name: "ok", Fn: func(context.Context) error {
		ran.Store(true)
		return nil
	}})
	q.Shutdown()
	assert.True(t, ran.Load())
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := NewQueue(1, 1, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	_ = q.Enqueue(Task{Name: "block", Fn: func(context.Context) error {
		close(started)
		<-release
		return nil
	}})
	<-started

	assert.NoError(t, q.Enqueue(Task{Name: "queued", Fn: func(context.Context) error { return nil }}))
	assert.ErrorIs(t, q.Enqueue(Task{Name: "dropped", Fn: func(context.Context) error { return nil }}), ErrQueueFull)

	close(release)
	q.Shutdown()
}
