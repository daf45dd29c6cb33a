package api

import (
	"time"

	"curator/internal/store"
)

// FromJob converts a persisted job to its API representation.
func FromJob(job *store.Job) JobRecord {
	if job == nil {
		return JobRecord{}
	}
	record := JobRecord{
		ID:     job.ID,
		Kind:   job.Kind,
		Status: string(job.Status),
		Progress: JobProgress{
			Stage:   job.Stage,
			Percent: job.Progress,
		},
		Params:          job.Params,
		Result:          job.Result,
		ErrorMessage:    job.ErrorMessage,
		CancelRequested: job.CancelRequested,
		CreatedAt:       formatTime(job.CreatedAt),
		UpdatedAt:       formatTime(job.UpdatedAt),
	}
	if job.CompletedAt != nil {
		record.CompletedAt = formatTime(*job.CompletedAt)
	}
	return record
}

// FromJobs converts a slice of jobs into API records.
func FromJobs(jobs []*store.Job) []JobRecord {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]JobRecord, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromInboxItem converts a persisted review item to its API representation.
func FromInboxItem(item *store.InboxItem) InboxRecord {
	if item == nil {
		return InboxRecord{}
	}
	return InboxRecord{
		ID:           item.ID,
		JobID:        item.JobID,
		Type:         string(item.Type),
		Candidate:    item.Candidate,
		Suggestion:   item.Suggestion,
		Confidence:   item.Confidence,
		ErrorMessage: item.ErrorMessage,
		Reviewed:     item.Reviewed,
		CreatedAt:    formatTime(item.CreatedAt),
		UpdatedAt:    formatTime(item.UpdatedAt),
	}
}

// FromInboxItems converts a slice of review items into API records.
func FromInboxItems(items []*store.InboxItem) []InboxRecord {
	if len(items) == 0 {
		return nil
	}
	out := make([]InboxRecord, 0, len(items))
	for _, item := range items {
		out = append(out, FromInboxItem(item))
	}
	return out
}

// FromEntry converts a committed entry to its API representation.
func FromEntry(entry *store.Entry) *EntryRecord {
	if entry == nil {
		return nil
	}
	return &EntryRecord{
		ID:          entry.ID,
		JobID:       entry.JobID,
		SourceURL:   entry.SourceURL,
		LibraryID:   entry.LibraryID,
		Subfolder:   entry.Subfolder,
		Title:       entry.Title,
		Description: entry.Description,
		CreatedAt:   formatTime(entry.CreatedAt),
	}
}

// MergeJobStats flattens status counts into a string-keyed map so every
// known status has a key.
func MergeJobStats(stats store.JobStats) map[string]int {
	return map[string]int{
		string(store.JobPending):   stats.Pending,
		string(store.JobRunning):   stats.Running,
		string(store.JobCompleted): stats.Completed,
		string(store.JobFailed):    stats.Failed,
		string(store.JobCancelled): stats.Cancelled,
		"total":                    stats.Total,
	}
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}
