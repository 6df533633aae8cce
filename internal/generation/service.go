package generation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/adgenie/backend/internal/db"
	apperrors "github.com/adgenie/backend/internal/errors"
	"github.com/adgenie/backend/internal/logger"
	"github.com/adgenie/backend/internal/metrics"
)

// ProjectTracker moves projects through the generation states.
type ProjectTracker interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status db.ProjectStatus) error
}

// Service runs the generation pipeline. Approving a script enqueues the
// first stage; each completed stage enqueues the next, and the final
// stage completes the project.
type Service struct {
	queue       JobQueue
	pool        *WorkerPool
	projects    ProjectTracker
	renderer    JobProcessor
	log         *logger.Logger
	samplerStop chan struct{}
}

type ServiceConfig struct {
	WorkerCount int
	MaxRetries  int
}

func NewService(queue JobQueue, projects ProjectTracker, renderer JobProcessor, cfg *ServiceConfig) *Service {
	if cfg == nil {
		cfg = &ServiceConfig{}
	}

	s := &Service{
		queue:    queue,
		projects: projects,
		renderer: renderer,
		log:      logger.WithComponent("generation"),
	}
	s.pool = NewWorkerPool(queue, s.process, &WorkerPoolConfig{
		WorkerCount: cfg.WorkerCount,
		MaxRetries:  cfg.MaxRetries,
		OnExhausted: s.failProject,
	})
	return s
}

// queueSampleInterval is how often the queue-depth gauge refreshes.
const queueSampleInterval = 15 * time.Second

// Start starts the worker pool and the queue-depth sampler
func (s *Service) Start() {
	s.pool.Start()
	s.samplerStop = make(chan struct{})
	go s.sampleQueueDepth(s.samplerStop)
}

// Stop gracefully stops the worker pool
func (s *Service) Stop(ctx context.Context) error {
	if s.samplerStop != nil {
		close(s.samplerStop)
		s.samplerStop = nil
	}
	return s.pool.Stop(ctx)
}

func (s *Service) sampleQueueDepth(stop <-chan struct{}) {
	ticker := time.NewTicker(queueSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.recordQueueDepth(context.Background())
		}
	}
}

func (s *Service) recordQueueDepth(ctx context.Context) {
	n, err := s.queue.QueueLength(ctx)
	if err != nil {
		return
	}
	metrics.GenerationQueueLength.Set(float64(n))
}

// IsRunning returns whether the worker pool is running
func (s *Service) IsRunning() bool {
	return s.pool.IsRunning()
}

// EnqueueForProject kicks off the pipeline for an approved project.
func (s *Service) EnqueueForProject(ctx context.Context, userID, projectID uuid.UUID) error {
	if err := s.projects.UpdateStatus(ctx, projectID, db.StatusVideoGenerating); err != nil {
		return err
	}

	job, err := s.queue.Enqueue(ctx, userID.String(), projectID.String(), FirstStage())
	if err != nil {
		return err
	}

	s.log.Info(ctx, "generation pipeline started", map[string]any{
		"project_id": projectID.String(), "job_id": job.ID,
	})
	return nil
}

// GetJob returns one of the caller's jobs.
func (s *Service) GetJob(ctx context.Context, userID uuid.UUID, jobID string) (*Job, error) {
	job, err := s.queue.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return nil, apperrors.JobNotFound()
		}
		return nil, apperrors.InternalError("failed to load job").WithCause(err)
	}
	if job.UserID != userID.String() {
		return nil, apperrors.Forbidden("you do not own this job")
	}
	return job, nil
}

// ListJobs returns all of the caller's jobs.
func (s *Service) ListJobs(ctx context.Context, userID uuid.UUID) ([]*Job, error) {
	jobs, err := s.queue.ListUserJobs(ctx, userID.String())
	if err != nil {
		return nil, apperrors.InternalError("failed to list jobs").WithCause(err)
	}
	if jobs == nil {
		jobs = []*Job{}
	}
	return jobs, nil
}

// ListProjectJobs returns all jobs for one of the caller's projects.
// Jobs always carry their owner, so a foreign project reads as forbidden.
func (s *Service) ListProjectJobs(ctx context.Context, userID, projectID uuid.UUID) ([]*Job, error) {
	jobs, err := s.queue.ListProjectJobs(ctx, projectID.String())
	if err != nil {
		return nil, apperrors.InternalError("failed to list jobs").WithCause(err)
	}
	for _, job := range jobs {
		if job.UserID != userID.String() {
			return nil, apperrors.Forbidden("you do not own this project")
		}
	}
	if jobs == nil {
		jobs = []*Job{}
	}
	return jobs, nil
}

// QueueLength returns the number of pending jobs
func (s *Service) QueueLength(ctx context.Context) (int64, error) {
	return s.queue.QueueLength(ctx)
}

// SubscribeToUserProgress returns a subscription for user-specific progress events
func (s *Service) SubscribeToUserProgress(ctx context.Context, userID string) ProgressStream {
	if q, ok := s.queue.(*Queue); ok {
		return q.SubscribeProgress(ctx, userID)
	}
	return nil
}

// process runs one stage and chains the pipeline forward on success.
func (s *Service) process(ctx context.Context, job *Job, progress func(int)) error {
	if s.renderer != nil {
		if err := s.renderer(ctx, job, progress); err != nil {
			return err
		}
	} else {
		progress(100)
	}

	next, ok := NextStage(job.Type)
	if !ok {
		return s.completeProject(ctx, job)
	}

	if _, err := s.queue.Enqueue(ctx, job.UserID, job.ProjectID, next); err != nil {
		return err
	}
	return nil
}

func (s *Service) completeProject(ctx context.Context, job *Job) error {
	projectID, err := uuid.Parse(job.ProjectID)
	if err != nil {
		return err
	}
	if err := s.projects.UpdateStatus(ctx, projectID, db.StatusCompleted); err != nil {
		return err
	}

	s.log.Info(ctx, "generation pipeline completed", map[string]any{"project_id": job.ProjectID})
	return nil
}

// failProject marks the project failed once a stage runs out of retries.
func (s *Service) failProject(ctx context.Context, job *Job) {
	projectID, err := uuid.Parse(job.ProjectID)
	if err != nil {
		return
	}
	if err := s.projects.UpdateStatus(ctx, projectID, db.StatusFailed); err != nil {
		s.log.Error(ctx, "failed to mark project failed", err, map[string]any{
			"project_id": job.ProjectID,
		})
		return
	}

	s.log.Warn(ctx, "generation pipeline failed", map[string]any{
		"project_id": job.ProjectID, "stage": string(job.Type),
	})
}
