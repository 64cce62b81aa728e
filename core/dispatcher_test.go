package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestWorkerDispatcherProcessesEnqueued(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	done := make(chan struct{}, 8)

	d := NewWorkerDispatcher(func(_ context.Context, eventID string) error {
		mu.Lock()
		seen[eventID]++
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, DispatchConfig{Workers: 2, QueueSize: 8}, nil)
	defer d.Close()

	for _, id := range []string{"evt_1", "evt_2", "evt_3"} {
		d.Enqueue(context.Background(), id)
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for background processing")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for _, id := range []string{"evt_1", "evt_2", "evt_3"} {
		if seen[id] != 1 {
			t.Fatalf("expected %s processed exactly once, got %d", id, seen[id])
		}
	}
}

func TestWorkerDispatcherEnqueueNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	d := NewWorkerDispatcher(func(_ context.Context, _ string) error {
		<-release
		return nil
	}, DispatchConfig{Workers: 1, QueueSize: 1}, nil)

	// Saturate the worker and the queue, then keep enqueueing.
	start := time.Now()
	for i := 0; i < 10; i++ {
		d.Enqueue(context.Background(), "evt_overflow")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("enqueue blocked for %s with a full queue", elapsed)
	}
	close(release)
	d.Close()
}

func TestWorkerDispatcherCloseWaitsForInFlight(t *testing.T) {
	var mu sync.Mutex
	processed := 0

	d := NewWorkerDispatcher(func(_ context.Context, _ string) error {
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		processed++
		mu.Unlock()
		return nil
	}, DispatchConfig{Workers: 2, QueueSize: 16}, nil)

	for i := 0; i < 6; i++ {
		d.Enqueue(context.Background(), "evt_drain")
	}
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	if processed != 6 {
		t.Fatalf("Close must drain queued work; processed %d of 6", processed)
	}
}

func TestWorkerDispatcherIgnoresEnqueueAfterClose(t *testing.T) {
	var mu sync.Mutex
	processed := 0
	d := NewWorkerDispatcher(func(_ context.Context, _ string) error {
		mu.Lock()
		processed++
		mu.Unlock()
		return nil
	}, DispatchConfig{Workers: 1, QueueSize: 4}, nil)
	d.Close()

	d.Enqueue(context.Background(), "evt_late")
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if processed != 0 {
		t.Fatalf("enqueue after close must be a no-op, processed %d", processed)
	}
}

func TestWorkerDispatcherContainsPanics(t *testing.T) {
	done := make(chan struct{}, 2)
	d := NewWorkerDispatcher(func(_ context.Context, eventID string) error {
		defer func() { done <- struct{}{} }()
		if eventID == "evt_bad" {
			panic("integration bug")
		}
		return nil
	}, DispatchConfig{Workers: 1, QueueSize: 4}, nil)
	defer d.Close()

	d.Enqueue(context.Background(), "evt_bad")
	d.Enqueue(context.Background(), "evt_ok")

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker died after a panic instead of continuing")
		}
	}
}
