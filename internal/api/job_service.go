package api

import (
	"context"
	"fmt"
	"strings"

	"curator/internal/services"
	"curator/internal/store"
)

// JobStore abstracts the persistence operations the job surface needs.
type JobStore interface {
	NewJob(ctx context.Context, params store.JobParams) (*store.Job, error)
	GetJob(ctx context.Context, id int64) (*store.Job, error)
	ListJobs(ctx context.Context, statuses ...store.JobStatus) ([]*store.Job, error)
	RequestCancel(ctx context.Context, id int64) (bool, error)
	DeleteJob(ctx context.Context, id int64) (bool, error)
	Stats(ctx context.Context) (store.JobStats, error)
}

// JobService exposes the job control surface.
type JobService struct {
	store JobStore
}

// NewJobService constructs a JobService around the provided store.
func NewJobService(st JobStore) *JobService {
	if st == nil {
		return nil
	}
	return &JobService{store: st}
}

// Create enqueues an import job.
func (s *JobService) Create(ctx context.Context, req CreateJobRequest) (JobRecord, error) {
	if s == nil || s.store == nil {
		return JobRecord{}, services.Wrap(services.ErrConfiguration, "api", "create job", "job store unavailable", nil)
	}
	if strings.TrimSpace(req.SourceURL) == "" {
		return JobRecord{}, services.Wrap(services.ErrValidation, "api", "create job", "source url is required", nil)
	}
	job, err := s.store.NewJob(ctx, store.JobParams{
		SourceURL:       strings.TrimSpace(req.SourceURL),
		LibraryID:       req.LibraryID,
		RequestedFormat: strings.TrimSpace(req.Format),
		Auto:            req.Auto,
	})
	if err != nil {
		return JobRecord{}, err
	}
	return FromJob(job), nil
}

// Describe fetches a single job, returning nil when absent.
func (s *JobService) Describe(ctx context.Context, id int64) (*JobRecord, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	job, err := s.store.GetJob(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	record := FromJob(job)
	return &record, nil
}

// List returns jobs filtered by status strings. Unknown statuses are
// rejected rather than silently matched against nothing.
func (s *JobService) List(ctx context.Context, statuses ...string) ([]JobRecord, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	parsed := make([]store.JobStatus, 0, len(statuses))
	for _, value := range statuses {
		status, ok := store.ParseJobStatus(value)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "api", "list jobs",
				fmt.Sprintf("unknown status %q", value), nil)
		}
		parsed = append(parsed, status)
	}
	jobs, err := s.store.ListJobs(ctx, parsed...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// Cancel flags a job for cooperative cancellation. Returns false when the
// job is already terminal or missing.
func (s *JobService) Cancel(ctx context.Context, id int64) (bool, error) {
	if s == nil || s.store == nil {
		return false, nil
	}
	return s.store.RequestCancel(ctx, id)
}

// Delete removes a terminal job. Active jobs are refused.
func (s *JobService) Delete(ctx context.Context, id int64) (bool, error) {
	if s == nil || s.store == nil {
		return false, nil
	}
	return s.store.DeleteJob(ctx, id)
}

// Stats returns queue counts keyed by status.
func (s *JobService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeJobStats(stats), nil
}
