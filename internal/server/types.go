// Package server provides the HTTP API of the inspection media pipeline.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/inspectmedia/internal/job"
	"github.com/maauso/inspectmedia/internal/validate"
)

// CreateJobResponse is the HTTP response after accepting an upload.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	// Phase is "reading" or "processing" once the job has started.
	Phase string `json:"phase,omitempty"`
	// Progress is the percentage of completion (0-100).
	Progress   float64 `json:"progress"`
	Error      string  `json:"error,omitempty"`
	Filename   string  `json:"filename"`
	InputSize  int64   `json:"input_size"`
	OutputSize int64   `json:"output_size,omitempty"`
	// Duration is the video length in seconds.
	Duration float64 `json:"duration,omitempty"`
	// VideoURL is the S3 URL of the output video (if push_to_s3=true and completed).
	VideoURL  string    `json:"video_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// DataURIResponse carries a processed video as a data URI.
type DataURIResponse struct {
	ID      string `json:"id"`
	DataURI string `json:"data_uri"`
}

// ReportRequest is the HTTP request body for rendering an inspection report.
type ReportRequest struct {
	// ItemIDs lists checklist items in page order.
	ItemIDs []string `json:"item_ids" validate:"required,min=1,max=500,dive,required,max=128"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
	// Details lists every failed check of a rejected upload.
	Details []validate.Violation `json:"details,omitempty"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

// toJobResponse converts a snapshot of a job to its wire form.
func toJobResponse(j *job.Job) JobResponse {
	return JobResponse{
		ID:         j.ID,
		Status:     string(j.Status),
		Phase:      string(j.Phase),
		Progress:   j.Progress,
		Error:      j.Error,
		Filename:   j.Filename,
		InputSize:  j.InputSize,
		OutputSize: j.OutputSize,
		Duration:   j.Duration,
		VideoURL:   j.VideoURL,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
}
