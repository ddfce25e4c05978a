package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]bool)
	done := make(chan struct{}, 2)

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		seen[job.ID] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})

	q.Start(context.Background())
	defer q.Stop()

	if err := q.Enqueue(Job{ID: "a", Type: "audit"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(Job{ID: "b", Type: "audit"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if !seen["a"] || !seen["b"] {
		t.Fatalf("expected both jobs processed, got %v", seen)
	}
}

func TestQueueRetriesFailedJob(t *testing.T) {
	attempts := make(chan int, 4)

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		attempts <- job.Attempt
		if job.Attempt == 0 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 10 * time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()

	if err := q.Enqueue(Job{ID: "a", Type: "audit"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for _, want := range []int{0, 1} {
		select {
		case got := <-attempts:
			if got != want {
				t.Fatalf("attempt = %d, want %d", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for retry")
		}
	}
}

func TestEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})

	if err := q.Enqueue(Job{ID: "a"}); err == nil {
		t.Fatal("expected error enqueueing on an unstarted queue")
	}
}

func TestStopDrainsWorkers(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{Workers: 3})
	q.Start(context.Background())
	q.Stop()

	if err := q.Enqueue(Job{ID: "a"}); err == nil {
		t.Fatal("expected error enqueueing on a stopped queue")
	}
}
