package testsupport

import (
	"path/filepath"
	"testing"

	"curator/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields, defines one music and one video library, and
// applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Harvester.BaseURL = "http://127.0.0.1:0"
	cfgVal.LLM.APIKey = "test"
	cfgVal.TMDB.APIKey = "test"
	cfgVal.Libraries = []config.Library{
		{
			ID:                  1,
			Name:                "Music",
			Type:                "music",
			Path:                filepath.Join(base, "library", "music"),
			ConfidenceThreshold: 0.7,
		},
		{
			ID:                  2,
			Name:                "Video",
			Type:                "video",
			Path:                filepath.Join(base, "library", "video"),
			ConfidenceThreshold: 0.7,
		},
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithHarvesterURL points the harvester client at a test server.
func WithHarvesterURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Harvester.BaseURL = url
	}
}

// WithLLMURL points the classification client at a test server.
func WithLLMURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.BaseURL = url
	}
}

// WithThreshold overrides the confidence threshold on every library.
func WithThreshold(threshold float64) ConfigOption {
	return func(b *configBuilder) {
		for i := range b.cfg.Libraries {
			b.cfg.Libraries[i].ConfidenceThreshold = threshold
		}
	}
}

// WithWorkers overrides the import worker count.
func WithWorkers(workers int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Import.Workers = workers
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
