package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/adgenie/backend/internal/db"
	apperrors "github.com/adgenie/backend/internal/errors"
	"github.com/adgenie/backend/internal/metrics"
)

type fakeQueue struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	pending []string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: make(map[string]*Job)}
}

func (f *fakeQueue) Enqueue(_ context.Context, userID, projectID string, jobType JobType) (*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	job := &Job{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProjectID: projectID,
		Type:      jobType,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.jobs[job.ID] = job
	f.pending = append(f.pending, job.ID)
	return job, nil
}

func (f *fakeQueue) Dequeue(_ context.Context, _ time.Duration) (*Job, error) {
	f.mu.Lock()
	if len(f.pending) == 0 {
		f.mu.Unlock()
		// Stand in for the blocking BRPop so worker loops don't spin hot.
		time.Sleep(5 * time.Millisecond)
		return nil, ErrQueueEmpty
	}
	id := f.pending[0]
	f.pending = f.pending[1:]
	cp := *f.jobs[id]
	f.mu.Unlock()
	return &cp, nil
}

func (f *fakeQueue) GetJob(_ context.Context, jobID string) (*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeQueue) UpdateStatus(_ context.Context, jobID, status string, progress int, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = status
	job.Progress = progress
	job.Error = errMsg
	job.UpdatedAt = time.Now()
	return nil
}

func (f *fakeQueue) IncrementRetry(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.RetryCount++
	job.Status = StatusQueued
	job.Error = ""
	f.pending = append(f.pending, jobID)
	return nil
}

func (f *fakeQueue) ListUserJobs(_ context.Context, userID string) ([]*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Job
	for _, job := range f.jobs {
		if job.UserID == userID {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeQueue) ListProjectJobs(_ context.Context, projectID string) ([]*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Job
	for _, job := range f.jobs {
		if job.ProjectID == projectID {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeQueue) QueueLength(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.pending)), nil
}

type fakeTracker struct {
	mu       sync.Mutex
	statuses map[uuid.UUID][]db.ProjectStatus
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{statuses: make(map[uuid.UUID][]db.ProjectStatus)}
}

func (f *fakeTracker) UpdateStatus(_ context.Context, id uuid.UUID, status db.ProjectStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = append(f.statuses[id], status)
	return nil
}

func (f *fakeTracker) last(id uuid.UUID) db.ProjectStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	history := f.statuses[id]
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1]
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %s, got %s", code, appErr.Code)
	}
}

func TestStageOrder(t *testing.T) {
	if FirstStage() != JobVisualGeneration {
		t.Errorf("expected pipeline to start with %s, got %s", JobVisualGeneration, FirstStage())
	}

	tests := []struct {
		from JobType
		want JobType
		ok   bool
	}{
		{JobVisualGeneration, JobAudioGeneration, true},
		{JobAudioGeneration, JobVideoComposition, true},
		{JobVideoComposition, JobFinalExport, true},
		{JobFinalExport, "", false},
		{JobType("bogus"), "", false},
	}
	for _, tt := range tests {
		got, ok := NextStage(tt.from)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NextStage(%s) = (%s, %v), want (%s, %v)", tt.from, got, ok, tt.want, tt.ok)
		}
	}
}

func TestJobCanRetry(t *testing.T) {
	job := &Job{Status: StatusFailed, RetryCount: 2}
	if !job.CanRetry(3) {
		t.Error("job with 2 retries should retry under limit 3")
	}
	job.RetryCount = 3
	if job.CanRetry(3) {
		t.Error("job at the retry limit should not retry")
	}
	job.Status = StatusQueued
	if job.CanRetry(3) {
		t.Error("non-failed job should not retry")
	}
}

func TestCalculateBackoff(t *testing.T) {
	if got := calculateBackoff(0); got != baseBackoff {
		t.Errorf("backoff(0) = %s, want %s", got, baseBackoff)
	}
	if got := calculateBackoff(2); got != 4*baseBackoff {
		t.Errorf("backoff(2) = %s, want %s", got, 4*baseBackoff)
	}
	if got := calculateBackoff(20); got != maxBackoff {
		t.Errorf("backoff(20) = %s, want cap %s", got, maxBackoff)
	}
}

func TestEnqueueForProject(t *testing.T) {
	queue := newFakeQueue()
	tracker := newFakeTracker()
	service := NewService(queue, tracker, nil, nil)
	ctx := context.Background()

	userID := uuid.New()
	projectID := uuid.New()
	if err := service.EnqueueForProject(ctx, userID, projectID); err != nil {
		t.Fatalf("EnqueueForProject: %v", err)
	}

	if tracker.last(projectID) != db.StatusVideoGenerating {
		t.Errorf("expected project in %s, got %s", db.StatusVideoGenerating, tracker.last(projectID))
	}

	job, err := queue.Dequeue(ctx, 0)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if job.Type != JobVisualGeneration {
		t.Errorf("expected first stage %s, got %s", JobVisualGeneration, job.Type)
	}
	if job.ProjectID != projectID.String() {
		t.Errorf("unexpected project id %s", job.ProjectID)
	}
}

func TestPipelineChainsToCompletion(t *testing.T) {
	queue := newFakeQueue()
	tracker := newFakeTracker()
	service := NewService(queue, tracker, nil, nil)
	ctx := context.Background()

	userID := uuid.New()
	projectID := uuid.New()
	if err := service.EnqueueForProject(ctx, userID, projectID); err != nil {
		t.Fatalf("EnqueueForProject: %v", err)
	}

	// Drive the pipeline the way a worker would, stage by stage.
	var stages []JobType
	for i := 0; i < len(stageOrder); i++ {
		job, err := queue.Dequeue(ctx, 0)
		if err != nil {
			t.Fatalf("Dequeue stage %d: %v", i, err)
		}
		stages = append(stages, job.Type)
		if err := service.process(ctx, job, func(int) {}); err != nil {
			t.Fatalf("process stage %s: %v", job.Type, err)
		}
	}

	for i, want := range stageOrder {
		if stages[i] != want {
			t.Errorf("stage %d = %s, want %s", i, stages[i], want)
		}
	}
	if _, err := queue.Dequeue(ctx, 0); !errors.Is(err, ErrQueueEmpty) {
		t.Error("no further stages expected after final export")
	}
	if tracker.last(projectID) != db.StatusCompleted {
		t.Errorf("expected project completed, got %s", tracker.last(projectID))
	}
}

func TestRendererFailurePropagates(t *testing.T) {
	queue := newFakeQueue()
	tracker := newFakeTracker()
	renderErr := errors.New("render backend unavailable")
	service := NewService(queue, tracker, func(context.Context, *Job, func(int)) error {
		return renderErr
	}, nil)
	ctx := context.Background()

	projectID := uuid.New()
	if err := service.EnqueueForProject(ctx, uuid.New(), projectID); err != nil {
		t.Fatalf("EnqueueForProject: %v", err)
	}

	job, _ := queue.Dequeue(ctx, 0)
	if err := service.process(ctx, job, func(int) {}); !errors.Is(err, renderErr) {
		t.Fatalf("expected renderer error, got %v", err)
	}
	if length, _ := queue.QueueLength(ctx); length != 0 {
		t.Error("failed stage must not enqueue the next one")
	}
}

func TestExhaustedRetriesFailProject(t *testing.T) {
	queue := newFakeQueue()
	tracker := newFakeTracker()
	service := NewService(queue, tracker, nil, nil)
	ctx := context.Background()

	projectID := uuid.New()
	job, err := queue.Enqueue(ctx, uuid.New().String(), projectID.String(), JobVisualGeneration)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	service.failProject(ctx, job)
	if tracker.last(projectID) != db.StatusFailed {
		t.Errorf("expected project failed, got %s", tracker.last(projectID))
	}
}

func TestGetJobOwnership(t *testing.T) {
	queue := newFakeQueue()
	service := NewService(queue, newFakeTracker(), nil, nil)
	ctx := context.Background()

	userID := uuid.New()
	job, err := queue.Enqueue(ctx, userID.String(), uuid.New().String(), JobVisualGeneration)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := service.GetJob(ctx, userID, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.ID != job.ID {
		t.Errorf("unexpected job %s", got.ID)
	}

	_, err = service.GetJob(ctx, uuid.New(), job.ID)
	wantCode(t, err, "FORBIDDEN")

	_, err = service.GetJob(ctx, userID, uuid.New().String())
	wantCode(t, err, "JOB_NOT_FOUND")
}

func TestListJobsScopedToUser(t *testing.T) {
	queue := newFakeQueue()
	service := NewService(queue, newFakeTracker(), nil, nil)
	ctx := context.Background()

	userID := uuid.New()
	if _, err := queue.Enqueue(ctx, userID.String(), uuid.New().String(), JobVisualGeneration); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := queue.Enqueue(ctx, uuid.New().String(), uuid.New().String(), JobVisualGeneration); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	jobs, err := service.ListJobs(ctx, userID)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("expected 1 job, got %d", len(jobs))
	}

	empty, err := service.ListJobs(ctx, uuid.New())
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", empty)
	}
}

func TestWorkerPoolProcessesJobs(t *testing.T) {
	queue := newFakeQueue()
	processed := make(chan string, 1)
	pool := NewWorkerPool(queue, func(_ context.Context, job *Job, progress func(int)) error {
		progress(50)
		processed <- job.ID
		return nil
	}, &WorkerPoolConfig{WorkerCount: 1})

	job, err := queue.Enqueue(context.Background(), "user", "project", JobVisualGeneration)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	pool.Start()
	defer pool.Stop(context.Background())

	select {
	case id := <-processed:
		if id != job.ID {
			t.Errorf("processed %s, want %s", id, job.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not pick up the job")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := queue.GetJob(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if got.Status == StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never completed, status %s", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWorkerPoolRecordsJobOutcomes(t *testing.T) {
	queue := newFakeQueue()
	ctx := context.Background()

	pool := NewWorkerPool(queue, func(context.Context, *Job, func(int)) error {
		return nil
	}, nil)
	job, err := queue.Enqueue(ctx, "user", "project", JobVideoComposition)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	completed := metrics.GenerationJobsTotal.WithLabelValues(string(JobVideoComposition), "completed")
	before := testutil.ToFloat64(completed)
	pool.processJob(ctx, 0, job)
	if got := testutil.ToFloat64(completed) - before; got != 1 {
		t.Errorf("completed counter delta = %v, want 1", got)
	}

	failing := NewWorkerPool(queue, func(context.Context, *Job, func(int)) error {
		return errors.New("render failed")
	}, &WorkerPoolConfig{MaxRetries: 1})
	stuck, err := queue.Enqueue(ctx, "user", "project", JobFinalExport)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	// Last attempt: a failure here must land in the failed bucket, not retry.
	queue.jobs[stuck.ID].RetryCount = 1
	stuck.RetryCount = 1

	failed := metrics.GenerationJobsTotal.WithLabelValues(string(JobFinalExport), "failed")
	before = testutil.ToFloat64(failed)
	failing.processJob(ctx, 0, stuck)
	if got := testutil.ToFloat64(failed) - before; got != 1 {
		t.Errorf("failed counter delta = %v, want 1", got)
	}
}

func TestQueueDepthGauge(t *testing.T) {
	queue := newFakeQueue()
	service := NewService(queue, newFakeTracker(), nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := queue.Enqueue(ctx, "user", "project", JobVisualGeneration); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	service.recordQueueDepth(ctx)
	if got := testutil.ToFloat64(metrics.GenerationQueueLength); got != 3 {
		t.Errorf("queue gauge = %v, want 3", got)
	}
}

func TestListProjectJobsOwnership(t *testing.T) {
	queue := newFakeQueue()
	service := NewService(queue, newFakeTracker(), nil, nil)
	ctx := context.Background()

	userID := uuid.New()
	projectID := uuid.New()
	if _, err := queue.Enqueue(ctx, userID.String(), projectID.String(), JobVisualGeneration); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	jobs, err := service.ListProjectJobs(ctx, userID, projectID)
	if err != nil {
		t.Fatalf("ListProjectJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("expected 1 job, got %d", len(jobs))
	}

	_, err = service.ListProjectJobs(ctx, uuid.New(), projectID)
	wantCode(t, err, "FORBIDDEN")

	empty, err := service.ListProjectJobs(ctx, userID, uuid.New())
	if err != nil {
		t.Fatalf("ListProjectJobs empty: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", empty)
	}
}
