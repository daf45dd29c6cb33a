package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, path, exists, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected no config file at %s", path)
	}
	if cfg.Paths.APIBind != defaultAPIBind {
		t.Fatalf("expected default api bind, got %q", cfg.Paths.APIBind)
	}
	if cfg.Import.Workers != defaultWorkers {
		t.Fatalf("expected default workers, got %d", cfg.Import.Workers)
	}
	if strings.HasPrefix(cfg.Paths.StagingDir, "~") {
		t.Fatalf("staging dir not expanded: %q", cfg.Paths.StagingDir)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := `
[paths]
staging_dir = "` + filepath.Join(base, "staging") + `"
log_dir = "` + filepath.Join(base, "logs") + `"

[harvester]
base_url = "http://localhost:9090///"

[[library]]
id = 1
name = "Music"
type = "MUSIC"
path = "` + filepath.Join(base, "music") + `"
confidence_threshold = 0.8
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, loadedPath, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || loadedPath != path {
		t.Fatalf("expected config at %s, got %s (exists=%v)", path, loadedPath, exists)
	}
	if cfg.Harvester.BaseURL != "http://localhost:9090" {
		t.Fatalf("base url not trimmed: %q", cfg.Harvester.BaseURL)
	}
	if cfg.Libraries[0].Type != "music" {
		t.Fatalf("library type not lowered: %q", cfg.Libraries[0].Type)
	}
	if cfg.Libraries[0].PathTemplate != defaultPathTemplate {
		t.Fatalf("expected default path template, got %q", cfg.Libraries[0].PathTemplate)
	}
}

func TestLoadRejectsInvalidLibrary(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := `
[[library]]
id = 1
name = "Weird"
type = "podcast"
path = "` + filepath.Join(base, "weird") + `"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected unknown library type to fail validation")
	}
}

func TestThresholdFallsBackToDefault(t *testing.T) {
	cfg := Default()
	cfg.Libraries = []Library{
		{ID: 1, Name: "Music", Type: "music", Path: "/tmp/music", ConfidenceThreshold: 0.9},
		{ID: 2, Name: "Video", Type: "video", Path: "/tmp/video"},
	}

	if got := cfg.Threshold(1); got != 0.9 {
		t.Fatalf("expected library threshold 0.9, got %v", got)
	}
	if got := cfg.Threshold(2); got != cfg.Import.DefaultThreshold {
		t.Fatalf("expected default threshold for unset library, got %v", got)
	}
	if got := cfg.Threshold(99); got != cfg.Import.DefaultThreshold {
		t.Fatalf("expected default threshold for unknown library, got %v", got)
	}
}

func TestLibraryByID(t *testing.T) {
	cfg := Default()
	cfg.Libraries = []Library{{ID: 7, Name: "Music", Type: "music", Path: "/tmp/music"}}

	if lib, ok := cfg.LibraryByID(7); !ok || lib.Name != "Music" {
		t.Fatalf("expected library 7, got %+v (ok=%v)", lib, ok)
	}
	if _, ok := cfg.LibraryByID(8); ok {
		t.Fatal("expected lookup of unknown library to miss")
	}
}

func TestConfidenceWeightsDefaultToEqual(t *testing.T) {
	cfg := Default()
	if weights := cfg.ConfidenceWeights(); weights != [4]float64{1, 1, 1, 1} {
		t.Fatalf("expected equal weights, got %v", weights)
	}

	cfg.Import.TitleWeight = 2
	cfg.Import.EnrichWeight = 0.5
	weights := cfg.ConfidenceWeights()
	if weights[0] != 2 || weights[1] != 1 || weights[3] != 0.5 {
		t.Fatalf("unexpected weights %v", weights)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := Load(path); err != nil || !exists {
		t.Fatalf("sample config should load cleanly: exists=%v err=%v", exists, err)
	}
}

func TestExpandPathResolvesHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	expanded, err := ExpandPath("~/curator/media")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if expanded != filepath.Join(home, "curator", "media") {
		t.Fatalf("unexpected expansion %q", expanded)
	}
}
