// ABOUTME: Tests for ordered execution, synchronous dispatch, stop semantics, and panics
// ABOUTME: Each test starts its own reactor goroutine and waits for it to exit

package reactor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func start(t *testing.T, r *Reactor) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-r.Done()
	})
	return cancel
}

func TestGo_RunsInOrder(t *testing.T) {
	t.Parallel()

	r := New(4)
	start(t, r)

	var got []int
	for i := range 100 {
		if err := r.Go(func() { got = append(got, i) }); err != nil {
			t.Fatalf("Go: %v", err)
		}
	}
	if err := r.Do(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, tasks ran out of order", i, v)
		}
	}
	if len(got) != 100 {
		t.Errorf("ran %d tasks, want 100", len(got))
	}
}

func TestDo_ReturnsTaskError(t *testing.T) {
	t.Parallel()

	r := New(0)
	start(t, r)

	want := errors.New("boom")
	if err := r.Do(context.Background(), func() error { return want }); !errors.Is(err, want) {
		t.Errorf("Do = %v, want %v", err, want)
	}
}

func TestDo_RecoversPanic(t *testing.T) {
	t.Parallel()

	r := New(0)
	start(t, r)

	err := r.Do(context.Background(), func() error { panic("bad input") })
	if err == nil {
		t.Fatal("Do = nil, want panic error")
	}
	// The reactor keeps serving after a panic.
	if err := r.Do(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("Do after panic = %v", err)
	}
	if err := r.Go(func() { panic("async") }); err != nil {
		t.Errorf("Go = %v", err)
	}
	if err := r.Do(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("Do after async panic = %v", err)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	t.Parallel()

	r := New(0)
	start(t, r)

	release := make(chan struct{})
	_ = r.Go(func() { <-release })
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := r.Do(ctx, func() error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do = %v, want deadline exceeded", err)
	}
}

func TestStop_DrainsBacklog(t *testing.T) {
	t.Parallel()

	r := New(16)
	var mu sync.Mutex
	ran := 0
	for range 10 {
		_ = r.Go(func() {
			mu.Lock()
			ran++
			mu.Unlock()
		})
	}
	r.Stop()
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ran != 10 {
		t.Errorf("ran %d queued tasks, want 10", ran)
	}
	if err := r.Go(func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Go after Stop = %v, want ErrStopped", err)
	}
	if err := r.Do(context.Background(), func() error { return nil }); !errors.Is(err, ErrStopped) {
		t.Errorf("Do after Stop = %v, want ErrStopped", err)
	}
}

func TestRun_ContextCancelStops(t *testing.T) {
	t.Parallel()

	r := New(0)
	cancel := start(t, r)
	cancel()

	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if err := r.Go(func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Go after cancel = %v, want ErrStopped", err)
	}
}
