// Package importer orchestrates the import pipeline: harvest, probe,
// classify, deduplicate, decide, and commit. Progress is persisted at fixed
// checkpoints; each checkpoint also observes pending cancel requests.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"curator/internal/classify"
	"curator/internal/config"
	"curator/internal/decision"
	"curator/internal/fingerprint"
	"curator/internal/harvester"
	"curator/internal/logging"
	"curator/internal/notifications"
	"curator/internal/organizer"
	"curator/internal/prober"
	"curator/internal/services"
	"curator/internal/store"
)

// Progress checkpoints, in pipeline order.
const (
	progressDownloaded = 0.30
	progressProbed     = 0.35
	progressTitle      = 0.475
	progressLibrary    = 0.55
	progressClassified = 0.625
	progressEnriched   = 0.70
	progressDeduped    = 0.75
	progressOrganized  = 0.90
	progressRecorded   = 0.95
)

var errCancelled = errors.New("cancel requested")

// MediaProber inspects a downloaded artifact.
type MediaProber interface {
	Inspect(ctx context.Context, path string) (prober.Result, error)
}

// Classifier runs the classification engine.
type Classifier interface {
	Classify(ctx context.Context, input classify.Input, progress func(classify.Step)) (*classify.Outcome, error)
}

// Placer moves accepted artifacts into a library.
type Placer interface {
	Place(library config.Library, subfolder, title, sourcePath string) (organizer.Placement, error)
}

// Pipeline executes a single import job end to end.
type Pipeline struct {
	cfg       *config.Config
	store     *store.Store
	harvester harvester.Service
	prober    MediaProber
	engine    Classifier
	placer    Placer
	notifier  notifications.Service
	logger    *slog.Logger

	// fingerprintFile is swappable in tests.
	fingerprintFile func(path string) (string, error)
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(cfg *config.Config, st *store.Store, hv harvester.Service, pr MediaProber, engine Classifier, placer Placer, notifier notifications.Service, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Pipeline{
		cfg:             cfg,
		store:           st,
		harvester:       hv,
		prober:          pr,
		engine:          engine,
		placer:          placer,
		notifier:        notifier,
		logger:          logger,
		fingerprintFile: fingerprint.File,
	}
}

// Run drives one claimed job to a terminal state. It never returns an error:
// every failure is captured on the job record.
func (p *Pipeline) Run(ctx context.Context, job *store.Job) {
	requestID := uuid.NewString()
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithRequestID(ctx, requestID)
	logger := p.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldCorrelationID, requestID),
	)

	stagingDir := filepath.Join(p.cfg.Paths.StagingDir, fmt.Sprintf("job-%d", job.ID))
	candidate, err := p.execute(ctx, logger, job, stagingDir)

	switch {
	case err == nil:
		// Terminal state already recorded by execute.
	case ctx.Err() != nil:
		// Daemon shutdown, not a user cancel. Leave the job running and its
		// staging dir in place so startup recovery can requeue it.
		logger.Info("job interrupted by shutdown",
			logging.String(logging.FieldEventType, "job_interrupted"))
	case errors.Is(err, errCancelled) || errors.Is(err, context.Canceled):
		p.cleanupStaging(stagingDir, logger)
		if markErr := p.store.MarkCancelled(ctx, job.ID); markErr != nil {
			logger.Error("mark cancelled failed", logging.Error(markErr))
		}
		logger.Info("job cancelled", logging.String(logging.FieldEventType, "job_cancelled"))
	default:
		p.failJob(ctx, logger, job, candidate, err)
	}
}

// execute runs the stages. It returns the candidate built so far so the
// failure handler can decide whether a review item is warranted.
func (p *Pipeline) execute(ctx context.Context, logger *slog.Logger, job *store.Job, stagingDir string) (*store.Candidate, error) {
	_ = p.notifier.NotifyImportStarted(ctx, job.Params.SourceURL)

	// Probe the source. Failure here means no usable candidate exists, so
	// the failure handler files nothing in the inbox.
	ctxProbe := services.WithStage(ctx, "probe")
	probe, err := p.harvester.Probe(ctxProbe, job.Params.SourceURL)
	if err != nil {
		return nil, err
	}
	candidate := &store.Candidate{
		SourceURL:       job.Params.SourceURL,
		RequestedFormat: job.Params.RequestedFormat,
		Title:           probe.Title,
		Description:     probe.Description,
		Platform:        probe.Platform,
		Uploader:        probe.Uploader,
		ThumbnailURL:    probe.ThumbnailURL,
	}

	// Download into the per-job staging directory.
	ctxDownload := services.WithStage(ctx, "download")
	tempPath, err := p.harvester.Download(ctxDownload, job.Params.SourceURL, job.Params.RequestedFormat, stagingDir)
	if err != nil {
		return candidate, err
	}
	candidate.TempPath = tempPath
	if err := p.checkpoint(ctx, job, progressDownloaded, "Downloaded"); err != nil {
		return candidate, err
	}

	// Technical probe and content fingerprint.
	ctxInspect := services.WithStage(ctx, "inspect")
	result, err := p.prober.Inspect(ctxInspect, tempPath)
	if err != nil {
		return candidate, err
	}
	candidate.Technical = result.Technical()
	fp, err := p.fingerprintFile(tempPath)
	if err != nil {
		return candidate, services.Wrap(services.ErrTransient, "inspect", "fingerprint", "hash artifact", err)
	}
	candidate.Fingerprint = fp
	if err := p.checkpoint(ctx, job, progressProbed, "Probed"); err != nil {
		return candidate, err
	}

	// Classification. Cancellation during the engine run is observed via a
	// derived context cancelled at the next sub-stage checkpoint.
	classifyCtx, cancelClassify := context.WithCancel(services.WithStage(ctx, "classify"))
	defer cancelClassify()
	var checkpointErr error
	outcome, err := p.engine.Classify(classifyCtx, classify.Input{
		Candidate:       *candidate,
		Libraries:       p.cfg.Libraries,
		PinnedLibraryID: job.Params.LibraryID,
		Subfolders:      p.store,
	}, func(step classify.Step) {
		progress, label := classifyCheckpoint(step)
		if err := p.checkpoint(ctx, job, progress, label); err != nil {
			checkpointErr = err
			cancelClassify()
		}
	})
	if err != nil {
		if checkpointErr != nil {
			return candidate, checkpointErr
		}
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return candidate, errCancelled
		}
		return candidate, err
	}

	// Duplicate detection against committed entries.
	duplicate, err := p.findDuplicate(ctx, candidate)
	if err != nil {
		return candidate, err
	}
	if err := p.checkpoint(ctx, job, progressDeduped, "Duplicate check complete"); err != nil {
		return candidate, err
	}

	route := decision.Decide(decision.Input{
		Confidence: outcome.Confidence,
		Duplicate:  duplicate != nil,
		AutoMode:   job.Params.Auto,
		HadError:   false,
		Threshold:  p.cfg.Threshold(outcome.Suggestion.LibraryID),
	})
	logger.Info("decision routed",
		logging.String(logging.FieldEventType, "decision"),
		logging.String("route", string(route)),
		logging.Float64("confidence", outcome.Confidence))

	switch route {
	case decision.RouteAutoImport:
		return candidate, p.commitEntry(ctx, logger, job, candidate, outcome)
	case decision.RouteDuplicate:
		return candidate, p.fileInbox(ctx, logger, job, candidate, outcome, store.InboxDuplicate, duplicateMessage(duplicate))
	default:
		inboxType := store.InboxLowConfidence
		if !job.Params.Auto {
			inboxType = store.InboxNeedsReview
		}
		return candidate, p.fileInbox(ctx, logger, job, candidate, outcome, inboxType, "")
	}
}

// commitEntry places the artifact and records the entry, completing the job.
func (p *Pipeline) commitEntry(ctx context.Context, logger *slog.Logger, job *store.Job, candidate *store.Candidate, outcome *classify.Outcome) error {
	library, ok := p.cfg.LibraryByID(outcome.Suggestion.LibraryID)
	if !ok {
		return services.Wrap(services.ErrConfiguration, "organize", "library lookup",
			fmt.Sprintf("library %d not configured", outcome.Suggestion.LibraryID), nil)
	}

	// Last cancellation gate. Past this point the artifact leaves staging
	// and the commit runs to completion even if a cancel arrives.
	if err := p.observeCancel(ctx, job); err != nil {
		return err
	}

	placement, err := p.placer.Place(library, outcome.Suggestion.Subfolder, outcome.Suggestion.Title, candidate.TempPath)
	if err != nil {
		return err
	}
	if err := p.store.UpdateJobCheckpoint(ctx, job.ID, progressOrganized, "Organized"); err != nil {
		return err
	}

	entry, err := p.store.CreateEntry(ctx, &store.Entry{
		JobID:       job.ID,
		SourceURL:   candidate.SourceURL,
		LibraryID:   library.ID,
		Subfolder:   outcome.Suggestion.Subfolder,
		Title:       outcome.Suggestion.Title,
		Description: outcome.Suggestion.Description,
		Duration:    technicalDuration(candidate),
		Platform:    candidate.Platform,
		Uploader:    candidate.Uploader,
	}, entryFiles(placement.Path, candidate), outcome.Suggestion.Tags, outcome.Suggestion.Properties)
	if err != nil {
		return err
	}
	if err := p.store.UpdateJobCheckpoint(ctx, job.ID, progressRecorded, "Recorded"); err != nil {
		return err
	}

	p.cleanupStaging(filepath.Dir(candidate.TempPath), logger)
	if err := p.store.CompleteJob(ctx, job.ID, store.JobResult{EntryID: entry.ID}); err != nil {
		return err
	}
	_ = p.notifier.NotifyImportCompleted(ctx, entry.Title)
	logger.Info("import completed",
		logging.String(logging.FieldEventType, "import_completed"),
		logging.Int64("entry_id", entry.ID))
	return nil
}

// fileInbox records a review item and completes the job. The staged artifact
// stays in place so review actions can still organize or reject it.
func (p *Pipeline) fileInbox(ctx context.Context, logger *slog.Logger, job *store.Job, candidate *store.Candidate, outcome *classify.Outcome, inboxType store.InboxType, message string) error {
	// Cancellation gate before the item becomes visible to reviewers. A
	// cancelled job must leave neither an entry nor an inbox item behind.
	if err := p.observeCancel(ctx, job); err != nil {
		return err
	}

	confidence := outcome.Confidence
	item, err := p.store.CreateInboxItem(ctx, &store.InboxItem{
		JobID:        job.ID,
		Type:         inboxType,
		Candidate:    *candidate,
		Suggestion:   outcome.Suggestion,
		Confidence:   &confidence,
		ErrorMessage: message,
	})
	if err != nil {
		return err
	}
	if err := p.store.UpdateJobCheckpoint(ctx, job.ID, progressRecorded, "Filed for review"); err != nil {
		return err
	}
	if err := p.store.CompleteJob(ctx, job.ID, store.JobResult{InboxItemID: item.ID}); err != nil {
		return err
	}
	_ = p.notifier.NotifyReviewNeeded(ctx, outcome.Suggestion.Title, string(inboxType))
	logger.Info("filed for review",
		logging.String(logging.FieldEventType, "inbox_filed"),
		logging.String("inbox_type", string(inboxType)),
		logging.Int64("inbox_item_id", item.ID))
	return nil
}

// failJob records the failure and, when the probe produced a usable
// candidate, files a failed inbox item for manual follow-up.
func (p *Pipeline) failJob(ctx context.Context, logger *slog.Logger, job *store.Job, candidate *store.Candidate, cause error) {
	message := services.Message(cause)
	if failErr := p.store.FailJob(ctx, job.ID, message); failErr != nil {
		logger.Error("fail job failed", logging.Error(failErr))
	}
	logger.Error("import failed",
		logging.String(logging.FieldEventType, "import_failed"),
		logging.Error(cause))

	if candidate != nil {
		if _, inboxErr := p.store.CreateInboxItem(ctx, &store.InboxItem{
			JobID:        job.ID,
			Type:         store.InboxFailed,
			Candidate:    *candidate,
			ErrorMessage: message,
		}); inboxErr != nil {
			logger.Error("file failed inbox item", logging.Error(inboxErr))
		}
	}
	_ = p.notifier.NotifyImportFailed(ctx, job.Params.SourceURL, message)
}

// checkpoint persists progress and observes cancellation. Returning
// errCancelled aborts the pipeline.
func (p *Pipeline) checkpoint(ctx context.Context, job *store.Job, progress float64, stage string) error {
	if err := p.store.UpdateJobCheckpoint(ctx, job.ID, progress, stage); err != nil {
		return err
	}
	return p.observeCancel(ctx, job)
}

// observeCancel maps a pending cancel request to errCancelled.
func (p *Pipeline) observeCancel(ctx context.Context, job *store.Job) error {
	cancelled, err := p.store.CancelRequested(ctx, job.ID)
	if err != nil {
		return err
	}
	if cancelled {
		return errCancelled
	}
	return nil
}

func (p *Pipeline) findDuplicate(ctx context.Context, candidate *store.Candidate) (*store.Entry, error) {
	if candidate.Fingerprint != "" {
		file, err := p.store.FindEntryFileByFingerprint(ctx, candidate.Fingerprint)
		if err != nil {
			return nil, err
		}
		if file != nil {
			return p.store.GetEntry(ctx, file.EntryID)
		}
	}
	return p.store.FindEntryBySourceURL(ctx, candidate.SourceURL)
}

func (p *Pipeline) cleanupStaging(dir string, logger *slog.Logger) {
	dir = strings.TrimSpace(dir)
	if dir == "" || dir == string(filepath.Separator) {
		return
	}
	// Only remove directories under the configured staging root.
	rel, err := filepath.Rel(p.cfg.Paths.StagingDir, dir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("staging cleanup failed", logging.String("path", dir), logging.Error(err))
	}
}

func classifyCheckpoint(step classify.Step) (float64, string) {
	switch step {
	case classify.StepTitle:
		return progressTitle, "Title identified"
	case classify.StepLibrary:
		return progressLibrary, "Library selected"
	case classify.StepClassify:
		return progressClassified, "Content classified"
	default:
		return progressEnriched, "Metadata enriched"
	}
}

func entryFiles(placedPath string, candidate *store.Candidate) []store.EntryFile {
	file := store.EntryFile{
		Path:        placedPath,
		Fingerprint: candidate.Fingerprint,
		Type:        store.FileAudio,
	}
	if tech := candidate.Technical; tech != nil {
		file.Container = tech.Container
		file.Size = tech.Size
		file.Duration = tech.Duration
		file.Bitrate = tech.Bitrate
		if tech.VideoCodec != "" {
			file.Type = store.FileVideo
			file.Width = tech.Width
			file.Height = tech.Height
		}
	}
	return []store.EntryFile{file}
}

func technicalDuration(candidate *store.Candidate) float64 {
	if candidate.Technical == nil {
		return 0
	}
	return candidate.Technical.Duration
}

func duplicateMessage(entry *store.Entry) string {
	if entry == nil {
		return "duplicate of an existing entry"
	}
	return fmt.Sprintf("duplicate of entry %d (%s)", entry.ID, entry.Title)
}
