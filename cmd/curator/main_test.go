package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"curator/internal/api"
	"curator/internal/config"
	"curator/internal/daemon"
	"curator/internal/importer"
	"curator/internal/inbox"
	"curator/internal/store"
	"curator/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	daemon     *daemon.Daemon
	apiAddr    string
	configPath string
}

// completingRunner resolves claimed jobs immediately so CLI tests observe a
// terminal state without the full pipeline.
type completingRunner struct {
	store *store.Store
}

func (r *completingRunner) Run(ctx context.Context, job *store.Job) {
	_ = r.store.CompleteJob(ctx, job.ID, store.JobResult{EntryID: 1})
}

type stubReviewer struct {
	store *store.Store
}

func (s *stubReviewer) Approve(ctx context.Context, id int64, overrides inbox.ApproveOverrides) (*store.Entry, error) {
	if _, err := s.store.MarkInboxReviewed(ctx, id); err != nil {
		return nil, err
	}
	title := overrides.Title
	if title == "" {
		title = "Approved"
	}
	return &store.Entry{ID: 1, Title: title}, nil
}

func (s *stubReviewer) Reject(ctx context.Context, id int64) error {
	_, err := s.store.MarkInboxReviewed(ctx, id)
	return err
}

func (s *stubReviewer) Reprobe(ctx context.Context, id int64) (*store.InboxItem, error) {
	return s.store.GetInboxItem(ctx, id)
}

func (s *stubReviewer) Redownload(ctx context.Context, id int64) (*store.InboxItem, error) {
	return s.store.GetInboxItem(ctx, id)
}

func (s *stubReviewer) Reclassify(ctx context.Context, id int64) (*store.InboxItem, error) {
	return s.store.GetInboxItem(ctx, id)
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 1
	cfg.Import.Workers = 1

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	st := testsupport.MustOpenStore(t, cfg)
	manager := importer.NewManager(cfg, st, &completingRunner{store: st}, nil)
	jobSvc := api.NewJobService(st)
	inboxSvc := api.NewInboxService(st, &stubReviewer{store: st})

	d, err := daemon.New(cfg, st, manager, nil, jobSvc, inboxSvc, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(d.Stop)

	return &cliTestEnv{
		cfg:        cfg,
		store:      st,
		daemon:     d,
		apiAddr:    d.Addr(),
		configPath: configPath,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--api", env.apiAddr, "--config", env.configPath}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func waitForTerminal(t *testing.T, env *cliTestEnv, jobID int64) *store.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := env.store.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get job %d: %v", jobID, err)
		}
		if job != nil && job.Status.IsTerminal() {
			return job
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("job %d never reached a terminal state", jobID)
	return nil
}

func TestCLIJobCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "job", "add", "https://example.com/watch?v=cli1")
	if err != nil {
		t.Fatalf("job add: %v", err)
	}
	requireContains(t, out, "Queued job 1")

	job := waitForTerminal(t, env, 1)
	if job.Status != store.JobCompleted {
		t.Fatalf("expected completed job, got %s", job.Status)
	}

	out, err = runCLI(t, env, "job", "list")
	if err != nil {
		t.Fatalf("job list: %v", err)
	}
	requireContains(t, out, "cli1")
	requireContains(t, out, "completed")

	out, err = runCLI(t, env, "job", "show", "1")
	if err != nil {
		t.Fatalf("job show: %v", err)
	}
	requireContains(t, out, "https://example.com/watch?v=cli1")
	requireContains(t, out, "Entry:      1")

	out, err = runCLI(t, env, "job", "stats")
	if err != nil {
		t.Fatalf("job stats: %v", err)
	}
	requireContains(t, out, "total")

	if _, err := runCLI(t, env, "job", "cancel", "1"); err == nil {
		t.Fatal("expected cancel of a completed job to fail")
	}

	out, err = runCLI(t, env, "job", "rm", "1")
	if err != nil {
		t.Fatalf("job rm: %v", err)
	}
	requireContains(t, out, "Deleted job 1")

	if _, err := runCLI(t, env, "job", "show", "1"); err == nil {
		t.Fatal("expected show of a deleted job to fail")
	}
}

func TestCLIInboxCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	job, err := env.store.NewJob(ctx, store.JobParams{SourceURL: "https://example.com/watch?v=review", Auto: true})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}
	confidence := 0.42
	item := &store.InboxItem{
		JobID:      job.ID,
		Type:       store.InboxLowConfidence,
		Candidate:  store.Candidate{SourceURL: job.Params.SourceURL, Title: "Raw Upload"},
		Suggestion: store.Suggestion{LibraryID: 1, Title: "Suggested Title"},
		Confidence: &confidence,
	}
	if _, err := env.store.CreateInboxItem(ctx, item); err != nil {
		t.Fatalf("seed inbox item: %v", err)
	}

	out, err := runCLI(t, env, "inbox", "list")
	if err != nil {
		t.Fatalf("inbox list: %v", err)
	}
	requireContains(t, out, "Suggested Title")
	requireContains(t, out, "low_confidence")

	out, err = runCLI(t, env, "inbox", "show", "1")
	if err != nil {
		t.Fatalf("inbox show: %v", err)
	}
	requireContains(t, out, "Raw Upload")
	requireContains(t, out, "0.42")

	out, err = runCLI(t, env, "inbox", "reclassify", "1")
	if err != nil {
		t.Fatalf("inbox reclassify: %v", err)
	}
	requireContains(t, out, "Item 1 updated")

	out, err = runCLI(t, env, "inbox", "approve", "1", "--title", "Corrected")
	if err != nil {
		t.Fatalf("inbox approve: %v", err)
	}
	requireContains(t, out, "entry 1 (Corrected)")

	out, err = runCLI(t, env, "inbox", "list")
	if err != nil {
		t.Fatalf("inbox list after approve: %v", err)
	}
	requireContains(t, out, "Inbox is empty")
}

func TestCLIStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "running")
	requireContains(t, out, "Unreviewed: 0")
}

func TestCLIRejectsInvalidArguments(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, err := runCLI(t, env, "job", "show", "notanumber"); err == nil {
		t.Fatal("expected invalid id to fail")
	}
	if _, err := runCLI(t, env, "job", "list", "--status", "bogus"); err == nil {
		t.Fatal("expected unknown status filter to fail")
	}
	if out, err := runCLI(t, env, "inbox", "list"); err != nil {
		t.Fatalf("inbox list: %v", err)
	} else {
		requireContains(t, out, "Inbox is empty")
	}
}
