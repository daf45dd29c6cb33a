package store_test

import (
	"context"
	"testing"

	"curator/internal/store"
	"curator/internal/testsupport"
)

func newTestEntry(jobID int64) *store.Entry {
	return &store.Entry{
		JobID:     jobID,
		SourceURL: "https://example.com/watch?v=abc",
		LibraryID: 2,
		Subfolder: "Talks",
		Title:     "Sample Talk",
		Duration:  1800,
		Platform:  "example",
		Uploader:  "Speaker",
	}
}

func TestCreateEntryWithFilesTagsProperties(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, st, "https://example.com/watch?v=abc")

	files := []store.EntryFile{
		{Path: "/library/video/Talks/Sample Talk.mp4", Fingerprint: "fp-1", Type: store.FileVideo, Size: 1024},
		{Path: "/library/video/Talks/Sample Talk.jpg", Fingerprint: "fp-2", Type: store.FileThumbnail},
	}
	tags := []store.SuggestedTag{
		{Name: "Conference", Confidence: 0.9},
		{Name: "  "},
	}
	properties := []store.SuggestedProperty{
		{Key: "year", Value: "2024", Confidence: 0.8},
	}

	entry, err := st.CreateEntry(ctx, newTestEntry(job.ID), files, tags, properties)
	if err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}
	if entry.ID == 0 {
		t.Fatal("expected entry ID to be assigned")
	}

	stored, err := st.ListEntryFiles(ctx, entry.ID)
	if err != nil {
		t.Fatalf("ListEntryFiles failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 files, got %d", len(stored))
	}
	if !stored[0].Available {
		t.Fatal("new files must start available")
	}

	entryTags, err := st.TagsForEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("TagsForEntry failed: %v", err)
	}
	if len(entryTags) != 1 || entryTags[0].Name != "conference" {
		t.Fatalf("expected single lowercased tag, got %#v", entryTags)
	}

	props, err := st.PropertiesForEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("PropertiesForEntry failed: %v", err)
	}
	if len(props) != 1 || props[0].Value != "2024" || props[0].Provenance != store.ProvenanceModel {
		t.Fatalf("unexpected properties: %#v", props)
	}
}

func TestCreateEntryValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entry := newTestEntry(0)
	entry.Title = ""
	if _, err := st.CreateEntry(ctx, entry, nil, nil, nil); err == nil {
		t.Fatal("expected error for missing title")
	}

	entry = newTestEntry(0)
	entry.LibraryID = 0
	if _, err := st.CreateEntry(ctx, entry, nil, nil, nil); err == nil {
		t.Fatal("expected error for missing library")
	}
}

func TestFindEntryFileByFingerprint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, st, "https://example.com/watch?v=abc")
	entry, err := st.CreateEntry(ctx, newTestEntry(job.ID), []store.EntryFile{
		{Path: "/library/video/a.mp4", Fingerprint: "dup-fp", Type: store.FileVideo},
	}, nil, nil)
	if err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}

	found, err := st.FindEntryFileByFingerprint(ctx, "dup-fp")
	if err != nil {
		t.Fatalf("FindEntryFileByFingerprint failed: %v", err)
	}
	if found == nil || found.EntryID != entry.ID {
		t.Fatalf("expected match for entry %d, got %#v", entry.ID, found)
	}

	missing, err := st.FindEntryFileByFingerprint(ctx, "other-fp")
	if err != nil {
		t.Fatalf("FindEntryFileByFingerprint failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected no match, got %#v", missing)
	}

	// Unavailable files no longer participate in duplicate detection.
	if err := st.MarkFileAvailability(ctx, found.ID, false); err != nil {
		t.Fatalf("MarkFileAvailability failed: %v", err)
	}
	gone, err := st.FindEntryFileByFingerprint(ctx, "dup-fp")
	if err != nil {
		t.Fatalf("FindEntryFileByFingerprint failed: %v", err)
	}
	if gone != nil {
		t.Fatalf("expected unavailable file to be skipped, got %#v", gone)
	}
}

func TestFindEntryBySourceURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, st, "https://example.com/watch?v=abc")
	created, err := st.CreateEntry(ctx, newTestEntry(job.ID), nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}

	found, err := st.FindEntryBySourceURL(ctx, "https://example.com/watch?v=abc")
	if err != nil {
		t.Fatalf("FindEntryBySourceURL failed: %v", err)
	}
	if found == nil || found.ID != created.ID {
		t.Fatalf("expected entry %d, got %#v", created.ID, found)
	}
}

func TestListEntrySubfolders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, st, "https://example.com/watch?v=abc")
	seed := []struct {
		libraryID int64
		subfolder string
	}{
		{2, "Talks"},
		{2, "Lectures"},
		{2, "Talks"},
		{2, ""},
		{1, "John Coltrane"},
	}
	for i, row := range seed {
		entry := newTestEntry(job.ID)
		entry.SourceURL = entry.SourceURL + string(rune('a'+i))
		entry.LibraryID = row.libraryID
		entry.Subfolder = row.subfolder
		if _, err := st.CreateEntry(ctx, entry, nil, nil, nil); err != nil {
			t.Fatalf("CreateEntry failed: %v", err)
		}
	}

	subfolders, err := st.ListEntrySubfolders(ctx, 2)
	if err != nil {
		t.Fatalf("ListEntrySubfolders failed: %v", err)
	}
	if len(subfolders) != 2 || subfolders[0] != "Lectures" || subfolders[1] != "Talks" {
		t.Fatalf("expected deduplicated sorted subfolders, got %v", subfolders)
	}

	empty, err := st.ListEntrySubfolders(ctx, 3)
	if err != nil {
		t.Fatalf("ListEntrySubfolders failed: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no subfolders for unused library, got %v", empty)
	}
}

func TestSetFavoriteAndRating(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, st, "https://example.com/watch?v=abc")
	entry, err := st.CreateEntry(ctx, newTestEntry(job.ID), nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}

	if err := st.SetFavorite(ctx, entry.ID, true); err != nil {
		t.Fatalf("SetFavorite failed: %v", err)
	}
	if err := st.SetRating(ctx, entry.ID, 4); err != nil {
		t.Fatalf("SetRating failed: %v", err)
	}
	if err := st.SetRating(ctx, entry.ID, 9); err == nil {
		t.Fatal("expected out-of-range rating to be rejected")
	}

	fetched, err := st.GetEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if !fetched.Favorite || fetched.Rating != 4 {
		t.Fatalf("unexpected entry state: %#v", fetched)
	}
}
