// Package api exposes the job and inbox control surfaces consumed by the
// daemon HTTP layer and the CLI. Records returned here are transport DTOs,
// decoupled from the persistence structs.
package api

import "curator/internal/store"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobRecord describes an import job in a transport-friendly format.
type JobRecord struct {
	ID              int64           `json:"id"`
	Kind            string          `json:"kind"`
	Status          string          `json:"status"`
	Progress        JobProgress     `json:"progress"`
	Params          store.JobParams `json:"params"`
	Result          store.JobResult `json:"result"`
	ErrorMessage    string          `json:"errorMessage,omitempty"`
	CancelRequested bool            `json:"cancelRequested"`
	CreatedAt       string          `json:"createdAt,omitempty"`
	UpdatedAt       string          `json:"updatedAt,omitempty"`
	CompletedAt     string          `json:"completedAt,omitempty"`
}

// JobProgress captures checkpoint progress for a job.
type JobProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
}

// InboxRecord describes a review item in a transport-friendly format.
type InboxRecord struct {
	ID           int64            `json:"id"`
	JobID        int64            `json:"jobId"`
	Type         string           `json:"type"`
	Candidate    store.Candidate  `json:"candidate"`
	Suggestion   store.Suggestion `json:"suggestion"`
	Confidence   *float64         `json:"confidence,omitempty"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	Reviewed     bool             `json:"reviewed"`
	CreatedAt    string           `json:"createdAt,omitempty"`
	UpdatedAt    string           `json:"updatedAt,omitempty"`
}

// EntryRecord describes a committed library entry.
type EntryRecord struct {
	ID          int64  `json:"id"`
	JobID       int64  `json:"jobId,omitempty"`
	SourceURL   string `json:"sourceUrl"`
	LibraryID   int64  `json:"libraryId"`
	Subfolder   string `json:"subfolder,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// CreateJobRequest is the payload for enqueueing an import.
type CreateJobRequest struct {
	SourceURL string `json:"sourceUrl"`
	LibraryID int64  `json:"libraryId,omitempty"`
	Format    string `json:"format,omitempty"`
	Auto      bool   `json:"auto"`
}

// ApproveRequest carries optional human overrides for inbox approval.
type ApproveRequest struct {
	LibraryID   int64  `json:"libraryId,omitempty"`
	Title       string `json:"title,omitempty"`
	Subfolder   string `json:"subfolder,omitempty"`
	Description string `json:"description,omitempty"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []JobRecord `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job JobRecord `json:"job"`
}

// JobStatsResponse provides queue counts keyed by status.
type JobStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// InboxListResponse wraps a collection of review items.
type InboxListResponse struct {
	Items []InboxRecord `json:"items"`
}

// InboxItemResponse wraps a single review item.
type InboxItemResponse struct {
	Item InboxRecord `json:"item"`
}

// ApproveResponse reports the outcome of an approval. Entry is nil when a
// duplicate item was acknowledged without committing anything.
type ApproveResponse struct {
	Item  InboxRecord  `json:"item"`
	Entry *EntryRecord `json:"entry,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	JobCounts    map[string]int `json:"jobCounts"`
	Unreviewed   int            `json:"unreviewedItems"`
}
