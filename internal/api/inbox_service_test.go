package api_test

import (
	"context"
	"errors"
	"testing"

	"curator/internal/api"
	"curator/internal/inbox"
	"curator/internal/services"
	"curator/internal/store"
	"curator/internal/testsupport"
)

type fakeReviewer struct {
	store     *store.Store
	entry     *store.Entry
	lastID    int64
	overrides inbox.ApproveOverrides
	rejectErr error
}

func (f *fakeReviewer) Approve(ctx context.Context, id int64, overrides inbox.ApproveOverrides) (*store.Entry, error) {
	f.lastID = id
	f.overrides = overrides
	if _, err := f.store.MarkInboxReviewed(ctx, id); err != nil {
		return nil, err
	}
	return f.entry, nil
}

func (f *fakeReviewer) Reject(ctx context.Context, id int64) error {
	f.lastID = id
	return f.rejectErr
}

func (f *fakeReviewer) refresh(ctx context.Context, id int64) (*store.InboxItem, error) {
	f.lastID = id
	item, err := f.store.GetInboxItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, services.Wrap(services.ErrNotFound, "review", "load", "inbox item", nil)
	}
	item.Candidate.Title = "refreshed"
	return item, nil
}

func (f *fakeReviewer) Reprobe(ctx context.Context, id int64) (*store.InboxItem, error) {
	return f.refresh(ctx, id)
}

func (f *fakeReviewer) Redownload(ctx context.Context, id int64) (*store.InboxItem, error) {
	return f.refresh(ctx, id)
}

func (f *fakeReviewer) Reclassify(ctx context.Context, id int64) (*store.InboxItem, error) {
	return f.refresh(ctx, id)
}

func newInboxEnv(t *testing.T) (*store.Store, *fakeReviewer, *api.InboxService) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	reviewer := &fakeReviewer{store: st}
	return st, reviewer, api.NewInboxService(st, reviewer)
}

func fileItem(t *testing.T, st *store.Store, itemType store.InboxType) *store.InboxItem {
	t.Helper()
	job := testsupport.NewJob(t, st, "https://example.com/watch?v=review")
	confidence := 0.4
	item, err := st.CreateInboxItem(context.Background(), &store.InboxItem{
		JobID:      job.ID,
		Type:       itemType,
		Candidate:  store.Candidate{SourceURL: "https://example.com/watch?v=review", Title: "raw"},
		Suggestion: store.Suggestion{LibraryID: 1, Title: "Suggested"},
		Confidence: &confidence,
	})
	if err != nil {
		t.Fatalf("CreateInboxItem failed: %v", err)
	}
	return item
}

func TestInboxServiceListFilters(t *testing.T) {
	st, _, svc := newInboxEnv(t)
	ctx := context.Background()
	fileItem(t, st, store.InboxLowConfidence)
	fileItem(t, st, store.InboxDuplicate)

	all, err := svc.List(ctx, "", nil)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 items, got %d (err %v)", len(all), err)
	}

	duplicates, err := svc.List(ctx, "duplicate", nil)
	if err != nil || len(duplicates) != 1 || duplicates[0].Type != "duplicate" {
		t.Fatalf("unexpected duplicates: %+v (err %v)", duplicates, err)
	}

	if _, err := svc.List(ctx, "bogus", nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
}

func TestInboxServiceApproveReturnsEntryAndItem(t *testing.T) {
	st, reviewer, svc := newInboxEnv(t)
	ctx := context.Background()
	item := fileItem(t, st, store.InboxLowConfidence)
	reviewer.entry = &store.Entry{ID: 7, Title: "Committed", LibraryID: 1, SourceURL: item.Candidate.SourceURL}

	response, err := svc.Approve(ctx, item.ID, api.ApproveRequest{Title: "  Corrected  ", LibraryID: 2})
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if reviewer.overrides.Title != "Corrected" || reviewer.overrides.LibraryID != 2 {
		t.Fatalf("overrides not forwarded: %+v", reviewer.overrides)
	}
	if response.Entry == nil || response.Entry.ID != 7 {
		t.Fatalf("expected entry in response, got %+v", response.Entry)
	}
	if !response.Item.Reviewed {
		t.Fatal("response should carry the reviewed item")
	}
}

func TestInboxServiceApproveDuplicateOmitsEntry(t *testing.T) {
	st, _, svc := newInboxEnv(t)
	item := fileItem(t, st, store.InboxDuplicate)

	response, err := svc.Approve(context.Background(), item.ID, api.ApproveRequest{})
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if response.Entry != nil {
		t.Fatalf("duplicate approval must omit entry, got %+v", response.Entry)
	}
}

func TestInboxServiceRetryActions(t *testing.T) {
	st, _, svc := newInboxEnv(t)
	ctx := context.Background()
	item := fileItem(t, st, store.InboxFailed)

	for name, action := range map[string]func(context.Context, int64) (*api.InboxRecord, error){
		"reprobe":    svc.Reprobe,
		"redownload": svc.Redownload,
		"reclassify": svc.Reclassify,
	} {
		record, err := action(ctx, item.ID)
		if err != nil {
			t.Fatalf("%s failed: %v", name, err)
		}
		if record.Candidate.Title != "refreshed" {
			t.Fatalf("%s should return the refreshed item, got %+v", name, record.Candidate)
		}
	}
}

func TestInboxServiceUnreviewedCount(t *testing.T) {
	st, _, svc := newInboxEnv(t)
	ctx := context.Background()
	item := fileItem(t, st, store.InboxNeedsReview)

	count, err := svc.Unreviewed(ctx)
	if err != nil || count != 1 {
		t.Fatalf("expected 1 unreviewed, got %d (err %v)", count, err)
	}
	if _, err := st.MarkInboxReviewed(ctx, item.ID); err != nil {
		t.Fatalf("MarkInboxReviewed failed: %v", err)
	}
	count, err = svc.Unreviewed(ctx)
	if err != nil || count != 0 {
		t.Fatalf("expected 0 unreviewed, got %d (err %v)", count, err)
	}
}
