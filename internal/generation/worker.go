package generation

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/adgenie/backend/internal/logger"
	"github.com/adgenie/backend/internal/metrics"
)

const (
	// Default configuration values
	DefaultWorkerCount = 3
	DefaultMaxRetries  = 3
	DefaultJobTimeout  = 10 * time.Minute

	// Exponential backoff parameters
	baseBackoff = 1 * time.Second
	maxBackoff  = 5 * time.Minute
)

// JobQueue is the queue surface the worker pool and service operate on.
type JobQueue interface {
	Enqueue(ctx context.Context, userID, projectID string, jobType JobType) (*Job, error)
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)
	GetJob(ctx context.Context, jobID string) (*Job, error)
	UpdateStatus(ctx context.Context, jobID, status string, progress int, errMsg string) error
	IncrementRetry(ctx context.Context, jobID string) error
	ListUserJobs(ctx context.Context, userID string) ([]*Job, error)
	ListProjectJobs(ctx context.Context, projectID string) ([]*Job, error)
	QueueLength(ctx context.Context) (int64, error)
}

// JobProcessor is the function signature for processing a generation job
type JobProcessor func(ctx context.Context, job *Job, progress func(int)) error

// WorkerPool manages a pool of workers that process generation jobs
type WorkerPool struct {
	queue       JobQueue
	workerCount int
	maxRetries  int
	jobTimeout  time.Duration
	processor   JobProcessor
	exhausted   func(ctx context.Context, job *Job)
	log         *logger.Logger

	wg       sync.WaitGroup
	stopChan chan struct{}
	mu       sync.RWMutex
	running  bool
}

// WorkerPoolConfig holds configuration for the worker pool
type WorkerPoolConfig struct {
	WorkerCount int
	MaxRetries  int
	JobTimeout  time.Duration

	// OnExhausted runs after a job fails with no retries left.
	OnExhausted func(ctx context.Context, job *Job)
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(queue JobQueue, processor JobProcessor, config *WorkerPoolConfig) *WorkerPool {
	if config == nil {
		config = &WorkerPoolConfig{}
	}

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}

	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	jobTimeout := config.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}

	return &WorkerPool{
		queue:       queue,
		workerCount: workerCount,
		maxRetries:  maxRetries,
		jobTimeout:  jobTimeout,
		processor:   processor,
		exhausted:   config.OnExhausted,
		log:         logger.WithComponent("generation"),
		stopChan:    make(chan struct{}),
	}
}

// Start launches the worker pool
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.running {
		return
	}

	wp.running = true
	wp.stopChan = make(chan struct{})

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.log.Info(context.Background(), "worker pool started", map[string]any{"workers": wp.workerCount})
}

// Stop gracefully stops the worker pool, waiting for current jobs to complete
func (wp *WorkerPool) Stop(ctx context.Context) error {
	wp.mu.Lock()
	if !wp.running {
		wp.mu.Unlock()
		return nil
	}
	wp.running = false
	close(wp.stopChan)
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.log.Info(ctx, "worker pool stopped")
		return nil
	case <-ctx.Done():
		wp.log.Warn(ctx, "worker pool shutdown timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the worker pool is currently running
func (wp *WorkerPool) IsRunning() bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.running
}

// worker is the main loop for a single worker
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.stopChan:
			return
		default:
			wp.processNextJob(id)
		}
	}
}

// processNextJob dequeues and processes the next available job
func (wp *WorkerPool) processNextJob(workerID int) {
	ctx := context.Background()

	job, err := wp.queue.Dequeue(ctx, 5*time.Second)
	if err != nil {
		if errors.Is(err, ErrQueueEmpty) {
			return
		}
		wp.log.Error(ctx, "failed to dequeue job", err, map[string]any{"worker": workerID})
		return
	}

	wp.processJob(ctx, workerID, job)
}

// processJob handles the full lifecycle of a single job
func (wp *WorkerPool) processJob(ctx context.Context, workerID int, job *Job) {
	jobCtx, cancel := context.WithTimeout(ctx, wp.jobTimeout)
	defer cancel()

	if err := wp.queue.UpdateStatus(ctx, job.ID, StatusProcessing, 0, ""); err != nil {
		wp.log.Error(ctx, "failed to mark job processing", err, map[string]any{"job_id": job.ID})
		return
	}

	progressFn := func(progress int) {
		if err := wp.queue.UpdateStatus(ctx, job.ID, StatusProcessing, progress, ""); err != nil {
			wp.log.Error(ctx, "failed to update progress", err, map[string]any{"job_id": job.ID})
		}
	}

	err := wp.processor(jobCtx, job, progressFn)

	if err != nil {
		wp.handleJobFailure(ctx, workerID, job, err)
		return
	}

	if err := wp.queue.UpdateStatus(ctx, job.ID, StatusCompleted, 100, ""); err != nil {
		wp.log.Error(ctx, "failed to mark job completed", err, map[string]any{"job_id": job.ID})
	}
	metrics.GenerationJobsTotal.WithLabelValues(string(job.Type), "completed").Inc()
}

// handleJobFailure handles a failed job, implementing retry logic with exponential backoff
func (wp *WorkerPool) handleJobFailure(ctx context.Context, workerID int, job *Job, jobErr error) {
	wp.log.Error(ctx, "job failed", jobErr, map[string]any{
		"worker": workerID, "job_id": job.ID, "type": string(job.Type),
	})

	if err := wp.queue.UpdateStatus(ctx, job.ID, StatusFailed, job.Progress, jobErr.Error()); err != nil {
		wp.log.Error(ctx, "failed to mark job failed", err, map[string]any{"job_id": job.ID})
		return
	}

	updatedJob, err := wp.queue.GetJob(ctx, job.ID)
	if err != nil {
		wp.log.Error(ctx, "failed to reload failed job", err, map[string]any{"job_id": job.ID})
		return
	}

	if updatedJob.CanRetry(wp.maxRetries) {
		backoff := calculateBackoff(updatedJob.RetryCount)
		wp.log.Info(ctx, "scheduling job retry", map[string]any{
			"job_id": job.ID, "backoff": backoff.String(),
			"attempt": updatedJob.RetryCount + 1, "max_retries": wp.maxRetries,
		})

		time.Sleep(backoff)

		if err := wp.queue.IncrementRetry(ctx, job.ID); err != nil {
			wp.log.Error(ctx, "failed to requeue job", err, map[string]any{"job_id": job.ID})
		}
		return
	}

	wp.log.Warn(ctx, "job exceeded max retries", map[string]any{
		"job_id": job.ID, "max_retries": wp.maxRetries,
	})
	metrics.GenerationJobsTotal.WithLabelValues(string(job.Type), "failed").Inc()
	if wp.exhausted != nil {
		wp.exhausted(ctx, updatedJob)
	}
}

// calculateBackoff calculates the exponential backoff duration for a given retry count
func calculateBackoff(retryCount int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(retryCount))) * baseBackoff
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}
