package api_test

import (
	"context"
	"errors"
	"testing"

	"curator/internal/api"
	"curator/internal/services"
	"curator/internal/store"
	"curator/internal/testsupport"
)

func TestJobServiceCreateValidatesSourceURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := api.NewJobService(st)

	_, err := svc.Create(context.Background(), api.CreateJobRequest{SourceURL: "   "})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestJobServiceCreateAndDescribe(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := api.NewJobService(st)
	ctx := context.Background()

	created, err := svc.Create(ctx, api.CreateJobRequest{
		SourceURL: "https://example.com/watch?v=abc",
		LibraryID: 2,
		Auto:      true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Status != string(store.JobPending) {
		t.Fatalf("expected pending job, got %s", created.Status)
	}
	if created.Params.LibraryID != 2 || !created.Params.Auto {
		t.Fatalf("params not carried: %+v", created.Params)
	}

	record, err := svc.Describe(ctx, created.ID)
	if err != nil || record == nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if record.ID != created.ID || record.CreatedAt == "" {
		t.Fatalf("unexpected record: %+v", record)
	}

	missing, err := svc.Describe(ctx, 404)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing job, got %+v (err %v)", missing, err)
	}
}

func TestJobServiceListRejectsUnknownStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := api.NewJobService(st)

	if _, err := svc.List(context.Background(), "exploded"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestJobServiceListFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := api.NewJobService(st)
	ctx := context.Background()

	testsupport.NewJob(t, st, "https://example.com/watch?v=one")
	testsupport.NewJob(t, st, "https://example.com/watch?v=two")
	claimed, err := st.ClaimNextPending(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}

	pending, err := svc.List(ctx, "pending")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Params.SourceURL != "https://example.com/watch?v=two" {
		t.Fatalf("unexpected pending jobs: %+v", pending)
	}

	all, err := svc.List(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 jobs, got %d (err %v)", len(all), err)
	}
}

func TestJobServiceCancelAndDelete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := api.NewJobService(st)
	ctx := context.Background()

	job := testsupport.NewJob(t, st, "https://example.com/watch?v=cancel")

	// Deleting a pending job is refused.
	deleted, err := svc.Delete(ctx, job.ID)
	if err != nil || deleted {
		t.Fatalf("pending delete should be refused, got %v (err %v)", deleted, err)
	}

	accepted, err := svc.Cancel(ctx, job.ID)
	if err != nil || !accepted {
		t.Fatalf("Cancel failed: %v (accepted=%v)", err, accepted)
	}
	record, err := svc.Describe(ctx, job.ID)
	if err != nil || record == nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if record.Status != string(store.JobCancelled) {
		t.Fatalf("pending job should cancel immediately, got %s", record.Status)
	}

	deleted, err = svc.Delete(ctx, job.ID)
	if err != nil || !deleted {
		t.Fatalf("terminal delete should succeed, got %v (err %v)", deleted, err)
	}
}

func TestJobServiceStatsCoversAllStatuses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := api.NewJobService(st)
	ctx := context.Background()

	testsupport.NewJob(t, st, "https://example.com/watch?v=stats")

	counts, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if counts["pending"] != 1 || counts["total"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	for _, key := range []string{"pending", "running", "completed", "failed", "cancelled"} {
		if _, ok := counts[key]; !ok {
			t.Fatalf("counts missing key %q", key)
		}
	}
}
