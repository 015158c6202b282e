package models

import (
	"time"
)

// JobStatus is the lifecycle state of a DownloadJob.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobError      JobStatus = "error"
)

// IsFinished reports whether the status is terminal.
func (s JobStatus) IsFinished() bool {
	return s == JobCompleted || s == JobError
}

// DownloadJob holds the whole state of one background download.
type DownloadJob struct {
	ID         string     `json:"download_id"`
	Status     JobStatus  `json:"status"`
	URL        string     `json:"url"`
	Format     string     `json:"format"`
	Filename   string     `json:"filename,omitempty"`
	Progress   float64    `json:"progress"`
	FilePath   string     `json:"-"`
	SizeMB     *float64   `json:"filesize_mb,omitempty"`
	Error      string     `json:"error,omitempty"`
	ErrorCode  string     `json:"error_code,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Elapsed is the time since the job started, or its total run time once
// finished.
func (j DownloadJob) Elapsed(now time.Time) time.Duration {
	if j.FinishedAt != nil {
		return j.FinishedAt.Sub(j.StartedAt)
	}
	return now.Sub(j.StartedAt)
}

// CreateJobRequest is what the API hands to the tracker.
type CreateJobRequest struct {
	URL      string
	FormatID string
	Quality  string
	Filename string
}
