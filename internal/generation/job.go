package generation

import (
	"time"
)

// JobType is one stage of the generation pipeline.
type JobType string

const (
	JobVisualGeneration JobType = "visual_generation"
	JobAudioGeneration  JobType = "audio_generation"
	JobVideoComposition JobType = "video_composition"
	JobFinalExport      JobType = "final_export"
)

// stageOrder is the fixed pipeline sequence for an approved project.
var stageOrder = []JobType{
	JobVisualGeneration,
	JobAudioGeneration,
	JobVideoComposition,
	JobFinalExport,
}

// FirstStage returns the pipeline's entry stage.
func FirstStage() JobType {
	return stageOrder[0]
}

// NextStage returns the stage after t, or false when t is the last one.
func NextStage(t JobType) (JobType, bool) {
	for i, stage := range stageOrder {
		if stage == t && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return "", false
}

// Job status constants representing the job lifecycle
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job represents one generation stage in the queue
type Job struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	ProjectID   string     `json:"project_id"`
	Type        JobType    `json:"type"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// CanRetry returns true if the job can be retried
func (j *Job) CanRetry(maxRetries int) bool {
	return j.Status == StatusFailed && j.RetryCount < maxRetries
}
