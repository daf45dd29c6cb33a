// Package inbox implements the review workflow for imports that did not
// auto-commit. Each action operates on an unreviewed item: approve and reject
// resolve it, while re-probe, re-download, and re-classify refresh the stored
// candidate data in place so review history survives.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"curator/internal/classify"
	"curator/internal/config"
	"curator/internal/fingerprint"
	"curator/internal/harvester"
	"curator/internal/logging"
	"curator/internal/organizer"
	"curator/internal/prober"
	"curator/internal/services"
	"curator/internal/store"
)

var (
	// ErrAlreadyReviewed is returned when a resolving action runs twice.
	ErrAlreadyReviewed = errors.New("inbox item already reviewed")
	// ErrNoSourceURL is returned when a retry action needs a source URL the
	// candidate does not carry.
	ErrNoSourceURL = errors.New("candidate has no source url")
)

// MediaProber inspects a downloaded artifact.
type MediaProber interface {
	Inspect(ctx context.Context, path string) (prober.Result, error)
}

// Classifier re-runs the classification engine during review.
type Classifier interface {
	Classify(ctx context.Context, input classify.Input, progress func(classify.Step)) (*classify.Outcome, error)
}

// Placer moves approved artifacts into a library.
type Placer interface {
	Place(library config.Library, subfolder, title, sourcePath string) (organizer.Placement, error)
}

// ApproveOverrides carries human corrections applied during approval. Zero
// values leave the stored suggestion untouched.
type ApproveOverrides struct {
	LibraryID   int64
	Title       string
	Subfolder   string
	Description string
}

// Service executes review actions against stored inbox items.
type Service struct {
	cfg       *config.Config
	store     *store.Store
	harvester harvester.Service
	prober    MediaProber
	engine    Classifier
	placer    Placer
	logger    *slog.Logger
}

// NewService wires the review workflow.
func NewService(cfg *config.Config, st *store.Store, hv harvester.Service, pr MediaProber, engine Classifier, placer Placer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:       cfg,
		store:     st,
		harvester: hv,
		prober:    pr,
		engine:    engine,
		placer:    placer,
		logger:    logger,
	}
}

// Approve resolves an item. Duplicate items are marked reviewed with no entry
// created. Any other type commits an entry built from the stored candidate
// and suggestion merged with the caller's overrides.
func (s *Service) Approve(ctx context.Context, id int64, overrides ApproveOverrides) (*store.Entry, error) {
	item, err := s.unreviewed(ctx, id)
	if err != nil {
		return nil, err
	}

	if item.Type == store.InboxDuplicate {
		if err := s.resolve(ctx, item); err != nil {
			return nil, err
		}
		s.cleanupArtifact(item.Candidate.TempPath)
		s.logger.Info("duplicate acknowledged",
			logging.String(logging.FieldEventType, "inbox_approved"),
			logging.Int64("inbox_item_id", item.ID))
		return nil, nil
	}

	libraryID := item.Suggestion.LibraryID
	if overrides.LibraryID != 0 {
		libraryID = overrides.LibraryID
	}
	library, ok := s.cfg.LibraryByID(libraryID)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "review", "approve",
			fmt.Sprintf("library %d not configured", libraryID), nil)
	}
	if strings.TrimSpace(item.Candidate.TempPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "review", "approve",
			"no staged artifact to organize; re-download first", nil)
	}
	if _, err := os.Stat(item.Candidate.TempPath); err != nil {
		return nil, services.Wrap(services.ErrValidation, "review", "approve",
			"staged artifact is missing; re-download first", err)
	}

	title := item.Suggestion.Title
	if overrides.Title != "" {
		title = overrides.Title
	}
	subfolder := item.Suggestion.Subfolder
	if overrides.Subfolder != "" {
		subfolder = overrides.Subfolder
	}
	description := item.Suggestion.Description
	if overrides.Description != "" {
		description = overrides.Description
	}

	placement, err := s.placer.Place(library, subfolder, title, item.Candidate.TempPath)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.CreateEntry(ctx, &store.Entry{
		JobID:       item.JobID,
		SourceURL:   item.Candidate.SourceURL,
		LibraryID:   library.ID,
		Subfolder:   subfolder,
		Title:       title,
		Description: description,
		Duration:    candidateDuration(item.Candidate),
		Platform:    item.Candidate.Platform,
		Uploader:    item.Candidate.Uploader,
	}, approvedFiles(placement.Path, item.Candidate), item.Suggestion.Tags, item.Suggestion.Properties)
	if err != nil {
		return nil, err
	}
	if err := s.resolve(ctx, item); err != nil {
		return nil, err
	}
	s.cleanupStagingDir(item.Candidate.TempPath)
	s.logger.Info("inbox item approved",
		logging.String(logging.FieldEventType, "inbox_approved"),
		logging.Int64("inbox_item_id", item.ID),
		logging.Int64("entry_id", entry.ID))
	return entry, nil
}

// Reject resolves an item without creating an entry and removes the staged
// artifact.
func (s *Service) Reject(ctx context.Context, id int64) error {
	item, err := s.unreviewed(ctx, id)
	if err != nil {
		return err
	}
	if err := s.resolve(ctx, item); err != nil {
		return err
	}
	s.cleanupArtifact(item.Candidate.TempPath)
	s.logger.Info("inbox item rejected",
		logging.String(logging.FieldEventType, "inbox_rejected"),
		logging.Int64("inbox_item_id", item.ID))
	return nil
}

// Reprobe refreshes the candidate's source metadata from the harvester. The
// item stays unreviewed.
func (s *Service) Reprobe(ctx context.Context, id int64) (*store.InboxItem, error) {
	item, err := s.retryable(ctx, id)
	if err != nil {
		return nil, err
	}
	probe, err := s.harvester.Probe(ctx, item.Candidate.SourceURL)
	if err != nil {
		return nil, err
	}
	item.Candidate.Title = probe.Title
	item.Candidate.Description = probe.Description
	item.Candidate.Platform = probe.Platform
	item.Candidate.Uploader = probe.Uploader
	item.Candidate.ThumbnailURL = probe.ThumbnailURL
	if err := s.store.UpdateInboxItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Redownload fetches the artifact again, re-inspects it, and overwrites the
// stored technical data and fingerprint.
func (s *Service) Redownload(ctx context.Context, id int64) (*store.InboxItem, error) {
	item, err := s.retryable(ctx, id)
	if err != nil {
		return nil, err
	}
	stagingDir := filepath.Join(s.cfg.Paths.StagingDir, fmt.Sprintf("job-%d", item.JobID))
	path, err := s.harvester.Download(ctx, item.Candidate.SourceURL, item.Candidate.RequestedFormat, stagingDir)
	if err != nil {
		return nil, err
	}
	result, err := s.prober.Inspect(ctx, path)
	if err != nil {
		return nil, err
	}
	fp, err := fingerprint.File(path)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "review", "fingerprint", "hash artifact", err)
	}
	item.Candidate.TempPath = path
	item.Candidate.Fingerprint = fp
	item.Candidate.Technical = result.Technical()
	if err := s.store.UpdateInboxItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Reclassify re-runs the classification engine and overwrites the stored
// suggestion and confidence.
func (s *Service) Reclassify(ctx context.Context, id int64) (*store.InboxItem, error) {
	item, err := s.retryable(ctx, id)
	if err != nil {
		return nil, err
	}
	outcome, err := s.engine.Classify(ctx, classify.Input{
		Candidate:  item.Candidate,
		Libraries:  s.cfg.Libraries,
		Subfolders: s.store,
	}, nil)
	if err != nil {
		return nil, err
	}
	confidence := outcome.Confidence
	item.Suggestion = outcome.Suggestion
	item.Confidence = &confidence
	if err := s.store.UpdateInboxItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// unreviewed loads an item and refuses resolved or missing ones.
func (s *Service) unreviewed(ctx context.Context, id int64) (*store.InboxItem, error) {
	item, err := s.store.GetInboxItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, services.Wrap(services.ErrNotFound, "review", "load",
			fmt.Sprintf("inbox item %d", id), nil)
	}
	if item.Reviewed {
		return nil, ErrAlreadyReviewed
	}
	return item, nil
}

// retryable additionally requires a source URL, which failed-type items may
// lack when the probe never succeeded.
func (s *Service) retryable(ctx context.Context, id int64) (*store.InboxItem, error) {
	item, err := s.unreviewed(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(item.Candidate.SourceURL) == "" {
		return nil, ErrNoSourceURL
	}
	return item, nil
}

func (s *Service) resolve(ctx context.Context, item *store.InboxItem) error {
	resolved, err := s.store.MarkInboxReviewed(ctx, item.ID)
	if err != nil {
		return err
	}
	if !resolved {
		return ErrAlreadyReviewed
	}
	return nil
}

// cleanupArtifact removes the staged artifact and its per-job staging
// directory when both live under the staging root.
func (s *Service) cleanupArtifact(path string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	if !s.underStaging(path) {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove staged artifact failed", logging.String("path", path), logging.Error(err))
		return
	}
	s.cleanupStagingDir(path)
}

func (s *Service) cleanupStagingDir(path string) {
	dir := filepath.Dir(strings.TrimSpace(path))
	if !s.underStaging(dir) || dir == s.cfg.Paths.StagingDir {
		return
	}
	// Remove is best-effort; a shared directory with remaining files stays.
	_ = os.Remove(dir)
}

func (s *Service) underStaging(path string) bool {
	rel, err := filepath.Rel(s.cfg.Paths.StagingDir, path)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

func candidateDuration(candidate store.Candidate) float64 {
	if candidate.Technical == nil {
		return 0
	}
	return candidate.Technical.Duration
}

func approvedFiles(placedPath string, candidate store.Candidate) []store.EntryFile {
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
