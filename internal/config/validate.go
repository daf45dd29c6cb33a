package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration invariants that cannot be repaired by
// normalization. It returns the first problem encountered.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir is required")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir is required")
	}
	if err := c.validateLibraries(); err != nil {
		return err
	}
	if c.Import.DefaultThreshold < 0 || c.Import.DefaultThreshold > 1 {
		return fmt.Errorf("import.default_threshold must be within [0,1], got %v", c.Import.DefaultThreshold)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateLibraries() error {
	seen := make(map[int64]struct{}, len(c.Libraries))
	for _, lib := range c.Libraries {
		if lib.ID <= 0 {
			return fmt.Errorf("library %q: id must be positive", lib.Name)
		}
		if _, dup := seen[lib.ID]; dup {
			return fmt.Errorf("library id %d declared twice", lib.ID)
		}
		seen[lib.ID] = struct{}{}
		if strings.TrimSpace(lib.Name) == "" {
			return fmt.Errorf("library %d: name is required", lib.ID)
		}
		switch lib.Type {
		case "music", "video":
		default:
			return fmt.Errorf("library %q: type must be music or video, got %q", lib.Name, lib.Type)
		}
		if strings.TrimSpace(lib.Path) == "" {
			return fmt.Errorf("library %q: path is required", lib.Name)
		}
		if lib.ConfidenceThreshold < 0 || lib.ConfidenceThreshold > 1 {
			return fmt.Errorf("library %q: confidence_threshold must be within [0,1]", lib.Name)
		}
	}
	return nil
}
