package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeHarvester()
	c.normalizeLLM()
	c.normalizeCatalogs()
	if err := c.normalizeLibraries(); err != nil {
		return err
	}
	c.normalizeImport()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeHarvester() {
	c.Harvester.BaseURL = strings.TrimRight(strings.TrimSpace(c.Harvester.BaseURL), "/")
	c.Harvester.APIKey = strings.TrimSpace(c.Harvester.APIKey)
	if c.Harvester.RequestTimeout <= 0 {
		c.Harvester.RequestTimeout = defaultHarvesterTimeout
	}
	if c.Harvester.DownloadTimeout <= 0 {
		c.Harvester.DownloadTimeout = defaultDownloadTimeout
	}
	c.Harvester.SourceTag = strings.TrimSpace(c.Harvester.SourceTag)
	if c.Harvester.SourceTag == "" {
		c.Harvester.SourceTag = defaultSourceTag
	}
}

func (c *Config) normalizeLLM() {
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("CURATOR_LLM_API_KEY"); ok {
			c.LLM.APIKey = value
		}
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeout
	}
}

func (c *Config) normalizeCatalogs() {
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = value
		}
	}
	c.TMDB.BaseURL = strings.TrimSpace(c.TMDB.BaseURL)
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.MusicBrainz.BaseURL = strings.TrimSpace(c.MusicBrainz.BaseURL)
	if c.MusicBrainz.BaseURL == "" {
		c.MusicBrainz.BaseURL = defaultMusicBrainzBaseURL
	}
	c.MusicBrainz.UserAgent = strings.TrimSpace(c.MusicBrainz.UserAgent)
	if c.MusicBrainz.UserAgent == "" {
		c.MusicBrainz.UserAgent = defaultMusicBrainzUA
	}
	c.Discogs.BaseURL = strings.TrimSpace(c.Discogs.BaseURL)
	if c.Discogs.BaseURL == "" {
		c.Discogs.BaseURL = defaultDiscogsBaseURL
	}
	c.Discogs.Token = strings.TrimSpace(c.Discogs.Token)
}

func (c *Config) normalizeLibraries() error {
	for i := range c.Libraries {
		lib := &c.Libraries[i]
		lib.Name = strings.TrimSpace(lib.Name)
		lib.Type = strings.ToLower(strings.TrimSpace(lib.Type))
		if lib.Type == "" {
			lib.Type = "video"
		}
		var err error
		if lib.Path, err = expandPath(lib.Path); err != nil {
			return fmt.Errorf("library %q path: %w", lib.Name, err)
		}
		lib.PathTemplate = strings.TrimSpace(lib.PathTemplate)
		if lib.PathTemplate == "" {
			lib.PathTemplate = defaultPathTemplate
		}
	}
	return nil
}

func (c *Config) normalizeImport() {
	if c.Import.Workers <= 0 {
		c.Import.Workers = defaultWorkers
	}
	if c.Import.RetentionDays <= 0 {
		c.Import.RetentionDays = defaultRetentionDays
	}
	if c.Import.SweepInterval <= 0 {
		c.Import.SweepInterval = defaultSweepInterval
	}
	if c.Import.DefaultThreshold <= 0 {
		c.Import.DefaultThreshold = defaultConfidenceThreshold
	}
	if c.Import.RelaxedTimeoutScale <= 1 {
		c.Import.RelaxedTimeoutScale = defaultRelaxedScale
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
