package generation

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/9"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return NewQueue(client)
}

func TestQueueEnqueueDequeue(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	job, err := queue.Enqueue(ctx, "user-123", "project-456", JobVisualGeneration)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.ID == "" {
		t.Error("job ID should not be empty")
	}
	if job.Status != StatusQueued {
		t.Errorf("expected status %s, got %s", StatusQueued, job.Status)
	}

	dequeued, err := queue.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if dequeued.ID != job.ID {
		t.Errorf("expected job %s, got %s", job.ID, dequeued.ID)
	}
}

func TestQueueUpdateStatus(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	job, err := queue.Enqueue(ctx, "user-123", "project-456", JobAudioGeneration)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := queue.UpdateStatus(ctx, job.ID, StatusProcessing, 40, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	updated, err := queue.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if updated.Status != StatusProcessing || updated.Progress != 40 {
		t.Errorf("unexpected state %s/%d", updated.Status, updated.Progress)
	}
	if updated.StartedAt == nil {
		t.Error("processing job should have a start time")
	}

	// Drain the queue entry.
	queue.Dequeue(ctx, time.Second)
}

func TestQueueIncrementRetry(t *testing.T) {
	queue := newTestQueue(t)
	ctx := context.Background()

	job, err := queue.Enqueue(ctx, "user-123", "project-456", JobFinalExport)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	queue.Dequeue(ctx, time.Second)

	if err := queue.UpdateStatus(ctx, job.ID, StatusFailed, 30, "boom"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := queue.IncrementRetry(ctx, job.ID); err != nil {
		t.Fatalf("IncrementRetry: %v", err)
	}

	requeued, err := queue.Dequeue(ctx, time.Second)
	if err != nil {
		t.Fatalf("Dequeue after retry: %v", err)
	}
	if requeued.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", requeued.RetryCount)
	}
	if requeued.Status != StatusQueued {
		t.Errorf("expected status %s, got %s", StatusQueued, requeued.Status)
	}
	if requeued.Error != "" {
		t.Errorf("retry should clear the error, got %q", requeued.Error)
	}
}
