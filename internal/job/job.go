// Package job provides the Job aggregate that tracks one uploaded video from
// submission through transcoding, plus the repository port it is stored in.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/inspectmedia/internal/job/id"
	"github.com/maauso/inspectmedia/internal/progress"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting for the transcode slot.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the video is being ingested or transcoded.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the processed video is available.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates ingestion, transcoding or upload failed.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was cancelled by a caller.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusFailed, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// Job is the processing record for one uploaded video.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Phase is the stage the last progress event came from.
	Phase progress.Phase
	// Progress is the percentage of completion (0-100). It never decreases.
	Progress float64
	// Error contains the failure reason if the job failed.
	Error string

	// Filename is the name the video was uploaded with.
	Filename string
	// MIMEType is the declared content type of the upload.
	MIMEType string
	// InputSize is the upload size in bytes.
	InputSize int64

	// OutputPath is the local path of the transcoded video.
	OutputPath string
	// OutputSize is the transcoded size in bytes.
	OutputSize int64
	// Duration is the video length in seconds, when known.
	Duration float64
	// PushToS3 indicates whether to upload the result to S3.
	PushToS3 bool
	// VideoURL is the S3 URL if PushToS3 was true.
	VideoURL string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted:
		j.CompletedAt = j.UpdatedAt
		j.Progress = 100
	case StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED and sets progress to 100.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// UpdateProgress records a progress event. Percent is clamped to [0, 100]
// and values below the current progress are ignored.
func (j *Job) UpdateProgress(phase progress.Phase, percent float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if percent != percent || percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if phase != "" {
		j.Phase = phase
	}
	if percent > j.Progress {
		j.Progress = percent
	}
	j.UpdatedAt = time.Now()
}

// SetOutput records the transcoded file.
func (j *Job) SetOutput(path string, size int64, duration float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = path
	j.OutputSize = size
	j.Duration = duration
	j.UpdatedAt = time.Now()
}

// SetVideoURL records where the output was uploaded.
func (j *Job) SetVideoURL(url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.VideoURL = url
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(validTransitions[j.Status]) == 0
}

// Clone creates a copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Progress:    j.Progress,
		Error:       j.Error,
		Filename:    j.Filename,
		MIMEType:    j.MIMEType,
		InputSize:   j.InputSize,
		OutputPath:  j.OutputPath,
		OutputSize:  j.OutputSize,
		Duration:    j.Duration,
		PushToS3:    j.PushToS3,
		VideoURL:    j.VideoURL,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
