package session

import (
	"context"
	"errors"
	"sync"
)

var ErrLoopStopped = errors.New("session: loop stopped")

// Loop is the single logical thread every dispatch, transition and reducer
// runs on. Other goroutines hand work to it with Post.
type Loop struct {
	work chan func()
	done chan struct{}
	stop sync.Once
}

func NewLoop(buffer int) *Loop {
	if buffer < 1 {
		buffer = 1
	}
	return &Loop{
		work: make(chan func(), buffer),
		done: make(chan struct{}),
	}
}

// Post queues fn and reports false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.work <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes posted work in order until ctx ends. A loop runs once.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.work:
			fn()
		}
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
