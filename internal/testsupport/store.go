package testsupport

import (
	"context"
	"testing"

	"curator/internal/config"
	"curator/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewJob creates a pending import job for tests using the provided store.
func NewJob(t testing.TB, st *store.Store, sourceURL string) *store.Job {
	t.Helper()

	job, err := st.NewJob(context.Background(), store.JobParams{SourceURL: sourceURL, Auto: true})
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}
