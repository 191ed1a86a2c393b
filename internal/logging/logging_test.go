package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestNopHandlerEnabled(t *testing.T) {
	h := nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("nopHandler.Enabled(%v) = true, want false", level)
		}
	}
	if _, ok := h.WithGroup("g").(nopHandler); !ok {
		t.Error("nopHandler.WithGroup() did not return nopHandler")
	}
}

func TestDefaultSilent(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("Logger() returned nil")
	}
	if l.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("default logger is enabled for warn")
	}
}

func TestSet(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { Set(orig) })

	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	Set(custom)
	if Logger() != custom {
		t.Fatal("Logger() did not return the logger passed to Set")
	}
	Logger().Debug("pass applied", "name", "depthRange")
	if !strings.Contains(buf.String(), "pass applied") {
		t.Errorf("log output = %q, want it to contain %q", buf.String(), "pass applied")
	}

	Set(nil)
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("Set(nil) did not restore the silent logger")
	}
}

func TestConcurrentAccess(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { Set(orig) })

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				Set(slog.Default())
			} else {
				_ = Logger()
			}
		}()
	}
	wg.Wait()
}
