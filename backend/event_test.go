package backend

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestDone(t *testing.T) {
	errBoom := errors.New("boom")
	ev := Done(errBoom)
	if ev.IsLinking() {
		t.Error("Done().IsLinking() = true")
	}
	if err := ev.Wait(context.Background()); !errors.Is(err, errBoom) {
		t.Errorf("Wait() = %v, want %v", err, errBoom)
	}
}

func TestGoNoTasks(t *testing.T) {
	ev := Go(context.Background(), 4)
	if ev.IsLinking() {
		t.Error("Go() without tasks is linking")
	}
	if err := ev.Wait(context.Background()); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
}

func TestGoLimit(t *testing.T) {
	var running, peak atomic.Int32
	task := func(context.Context) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		running.Add(-1)
		return nil
	}
	tasks := make([]Task, 16)
	for i := range tasks {
		tasks[i] = task
	}
	if err := Go(context.Background(), 2, tasks...).Wait(context.Background()); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}

func TestGoFirstError(t *testing.T) {
	errFirst := errors.New("first")
	var after atomic.Int32
	ev := Go(context.Background(), 1,
		func(context.Context) error { return errFirst },
		func(context.Context) error { after.Add(1); return nil },
	)
	if err := ev.Wait(context.Background()); !errors.Is(err, errFirst) {
		t.Errorf("Wait() = %v, want %v", err, errFirst)
	}
	if n := after.Load(); n != 0 {
		t.Errorf("%d tasks ran after the failure, want 0", n)
	}
}

func TestGoIgnoresCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	var sawCancel atomic.Bool
	ev := Go(ctx, 0, func(ctx context.Context) error {
		<-release
		sawCancel.Store(ctx.Err() != nil)
		return nil
	})
	cancel()
	if err := ev.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait(cancelled) = %v, want context.Canceled", err)
	}
	close(release)
	if err := ev.Wait(context.Background()); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
	if sawCancel.Load() {
		t.Error("task context was cancelled with the caller's")
	}
}

func TestThen(t *testing.T) {
	errWrapped := errors.New("wrapped")

	t.Run("finished", func(t *testing.T) {
		ran := false
		ev := Then(Done(nil), func(err error) error {
			ran = true
			return err
		})
		if !ran {
			t.Error("fn did not run before Then returned")
		}
		if ev.IsLinking() {
			t.Error("IsLinking() = true")
		}
	})

	t.Run("pending", func(t *testing.T) {
		release := make(chan struct{})
		inner := Go(context.Background(), 1, func(context.Context) error {
			<-release
			return errors.New("inner")
		})
		ev := Then(inner, func(err error) error {
			if err == nil {
				return nil
			}
			return errWrapped
		})
		if !ev.IsLinking() {
			t.Error("IsLinking() = false before the inner event finished")
		}
		close(release)
		if err := ev.Wait(context.Background()); !errors.Is(err, errWrapped) {
			t.Errorf("Wait() = %v, want %v", err, errWrapped)
		}
	})
}
