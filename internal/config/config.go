package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
}

// Harvester contains configuration for the external download/probe/search service.
type Harvester struct {
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	RequestTimeout  int    `toml:"request_timeout"`
	DownloadTimeout int    `toml:"download_timeout"`
	SourceTag       string `toml:"source_tag"`
}

// LLM contains connection settings for the structured-output language model.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Language string `toml:"language"`
}

// MusicBrainz contains configuration for the primary music catalog API.
type MusicBrainz struct {
	BaseURL   string `toml:"base_url"`
	UserAgent string `toml:"user_agent"`
}

// Discogs contains configuration for the fallback music catalog API.
type Discogs struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// Library describes one destination media library.
type Library struct {
	ID                  int64   `toml:"id"`
	Name                string  `toml:"name"`
	Type                string  `toml:"type"` // "music" or "video"
	Path                string  `toml:"path"`
	PathTemplate        string  `toml:"path_template"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
}

// Import contains orchestration settings for the import pipeline.
type Import struct {
	Workers             int     `toml:"workers"`
	RetentionDays       int     `toml:"retention_days"`
	SweepInterval       int     `toml:"sweep_interval"`
	DefaultThreshold    float64 `toml:"default_threshold"`
	TitleWeight         float64 `toml:"title_weight"`
	LibraryWeight       float64 `toml:"library_weight"`
	ClassifyWeight      float64 `toml:"classify_weight"`
	EnrichWeight        float64 `toml:"enrich_weight"`
	RelaxedTimeoutScale float64 `toml:"relaxed_timeout_scale"`
}

// Workflow contains daemon polling intervals.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Curator.
//
// Configuration sections by subsystem:
//   - Paths: staging/log directories and HTTP API bind address
//   - Harvester: external probe/download/search service
//   - LLM: structured-output language model connection
//   - TMDB / MusicBrainz / Discogs: metadata catalog APIs
//   - Libraries: destination library definitions and thresholds
//   - Import: worker pool, retention, confidence weights
//   - Workflow: polling intervals
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Harvester     Harvester     `toml:"harvester"`
	LLM           LLM           `toml:"llm"`
	TMDB          TMDB          `toml:"tmdb"`
	MusicBrainz   MusicBrainz   `toml:"musicbrainz"`
	Discogs       Discogs       `toml:"discogs"`
	Libraries     []Library     `toml:"library"`
	Import        Import        `toml:"import"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/curator/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has
// all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("curator.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// Library directories are created on a best-effort basis so the daemon can
// run when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, lib := range c.Libraries {
		if strings.TrimSpace(lib.Path) != "" {
			_ = os.MkdirAll(lib.Path, 0o755)
		}
	}
	return nil
}

// LibraryByID returns the configured library matching id.
func (c *Config) LibraryByID(id int64) (Library, bool) {
	for _, lib := range c.Libraries {
		if lib.ID == id {
			return lib, true
		}
	}
	return Library{}, false
}

// Threshold returns the confidence threshold for the given library, falling
// back to the import default when the library does not pin one.
func (c *Config) Threshold(libraryID int64) float64 {
	if lib, ok := c.LibraryByID(libraryID); ok && lib.ConfidenceThreshold > 0 {
		return lib.ConfidenceThreshold
	}
	if c.Import.DefaultThreshold > 0 {
		return c.Import.DefaultThreshold
	}
	return defaultConfidenceThreshold
}

// ConfidenceWeights returns the per-call aggregation weights in call order:
// title, library, classification, enrichment.
func (c *Config) ConfidenceWeights() [4]float64 {
	weights := [4]float64{
		c.Import.TitleWeight,
		c.Import.LibraryWeight,
		c.Import.ClassifyWeight,
		c.Import.EnrichWeight,
	}
	for i, w := range weights {
		if w <= 0 {
			weights[i] = 1
		}
	}
	return weights
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
