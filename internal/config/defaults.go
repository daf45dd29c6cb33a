package config

const (
	defaultAPIBind             = "127.0.0.1:7878"
	defaultHarvesterTimeout    = 30
	defaultDownloadTimeout     = 900
	defaultSourceTag           = "curator"
	defaultLLMTimeout          = 60
	defaultTMDBBaseURL         = "https://api.themoviedb.org/3"
	defaultMusicBrainzBaseURL  = "https://musicbrainz.org/ws/2"
	defaultMusicBrainzUA       = "Curator/0.1.0"
	defaultDiscogsBaseURL      = "https://api.discogs.com"
	defaultWorkers             = 2
	defaultRetentionDays       = 14
	defaultSweepInterval       = 3600
	defaultConfidenceThreshold = 0.7
	defaultRelaxedScale        = 2.0
	defaultQueuePollInterval   = 5
	defaultErrorRetryInterval  = 15
	defaultPathTemplate        = "{library}/{subfolder}/{title}"
)

// Default returns the baseline configuration before any file overrides.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: "~/.local/share/curator/staging",
			LogDir:     "~/.local/share/curator/logs",
			APIBind:    defaultAPIBind,
		},
		Harvester: Harvester{
			RequestTimeout:  defaultHarvesterTimeout,
			DownloadTimeout: defaultDownloadTimeout,
			SourceTag:       defaultSourceTag,
		},
		LLM: LLM{
			TimeoutSeconds: defaultLLMTimeout,
			Title:          "Curator",
		},
		TMDB: TMDB{
			BaseURL:  defaultTMDBBaseURL,
			Language: "en-US",
		},
		MusicBrainz: MusicBrainz{
			BaseURL:   defaultMusicBrainzBaseURL,
			UserAgent: defaultMusicBrainzUA,
		},
		Discogs: Discogs{
			BaseURL: defaultDiscogsBaseURL,
		},
		Import: Import{
			Workers:             defaultWorkers,
			RetentionDays:       defaultRetentionDays,
			SweepInterval:       defaultSweepInterval,
			DefaultThreshold:    defaultConfidenceThreshold,
			RelaxedTimeoutScale: defaultRelaxedScale,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
