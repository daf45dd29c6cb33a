package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"curator/internal/api"
	"curator/internal/catalog"
	"curator/internal/classify"
	"curator/internal/config"
	"curator/internal/daemon"
	"curator/internal/deps"
	"curator/internal/harvester"
	"curator/internal/importer"
	"curator/internal/inbox"
	"curator/internal/logging"
	"curator/internal/notifications"
	"curator/internal/organizer"
	"curator/internal/prober"
	"curator/internal/store"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the curator daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logPath := filepath.Join(cfg.Paths.LogDir, "curator.log")
	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	for _, name := range deps.MissingRequired(deps.CheckBinaries(deps.Requirements(cfg))) {
		logger.Warn("missing external dependency", logging.String("dependency", name))
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}

	hv, err := harvester.New(cfg.Harvester)
	if err != nil {
		st.Close()
		return fmt.Errorf("configure harvester: %w", err)
	}

	engine := classify.NewEngine(classify.NewClient(cfg.LLM), buildEnricher(cfg, logger), cfg, logger)
	pr := prober.New(cfg.FFprobeBinary())
	placer := organizer.New(cfg, logger)
	notifier := notifications.NewService(cfg)

	pipeline := importer.NewPipeline(cfg, st, hv, pr, engine, placer, notifier, logger)
	manager := importer.NewManager(cfg, st, pipeline, logger)

	reviewer := inbox.NewService(cfg, st, hv, pr, engine, placer, logger)
	jobSvc := api.NewJobService(st)
	inboxSvc := api.NewInboxService(st, reviewer)

	d, err := daemon.New(cfg, st, manager, hv, jobSvc, inboxSvc, logger)
	if err != nil {
		st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("curator daemon shutting down")
	return nil
}

// buildEnricher assembles whichever catalog clients the configuration
// supports. A catalog with missing credentials is disabled with a warning
// rather than failing daemon startup.
func buildEnricher(cfg *config.Config, logger *slog.Logger) *catalog.Enricher {
	var music catalog.RecordingSearcher
	if mb, err := catalog.NewMusicBrainz(cfg.MusicBrainz); err != nil {
		logger.Warn("musicbrainz catalog disabled", logging.Error(err))
	} else {
		music = mb
	}

	var vinyl catalog.ReleaseSearcher
	if dc, err := catalog.NewDiscogs(cfg.Discogs); err != nil {
		logger.Warn("discogs catalog disabled", logging.Error(err))
	} else {
		vinyl = dc
	}

	var video catalog.VideoSearcher
	if tmdb, err := catalog.NewTMDB(cfg.TMDB); err != nil {
		logger.Warn("tmdb catalog disabled", logging.Error(err))
	} else {
		video = tmdb
	}

	return catalog.NewEnricher(music, vinyl, video, logger)
}
