package backend

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Done returns a finished event with result err.
func Done(err error) LinkEvent {
	return doneEvent{err: err}
}

type doneEvent struct {
	err error
}

func (e doneEvent) Wait(context.Context) error { return e.err }
func (e doneEvent) IsLinking() bool             { return false }

// Task is one unit of asynchronous link work.
type Task func(ctx context.Context) error

// Go runs tasks on an errgroup and returns an event that completes when
// all of them have returned. At most limit tasks run at once; limit <= 0
// means GOMAXPROCS. The first error cancels the context passed to the
// remaining tasks and becomes the event result. Cancelling ctx does not
// stop the tasks.
func Go(ctx context.Context, limit int, tasks ...Task) LinkEvent {
	if len(tasks) == 0 {
		return Done(nil)
	}
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(min(limit, len(tasks)))

	e := &asyncEvent{done: make(chan struct{})}
	go func() {
		for _, task := range tasks {
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				return task(gctx)
			})
		}
		e.err = g.Wait()
		close(e.done)
	}()
	return e
}

type asyncEvent struct {
	done chan struct{}
	// err is written before done is closed.
	err error
}

func (e *asyncEvent) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *asyncEvent) IsLinking() bool {
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

// Then returns an event that finishes after ev and then runs fn with
// ev's result; fn's return value becomes the result. When ev has
// already finished, fn runs before Then returns.
func Then(ev LinkEvent, fn func(err error) error) LinkEvent {
	if !ev.IsLinking() {
		return Done(fn(ev.Wait(context.Background())))
	}
	e := &asyncEvent{done: make(chan struct{})}
	go func() {
		e.err = fn(ev.Wait(context.Background()))
		close(e.done)
	}()
	return e
}
