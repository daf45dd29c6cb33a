// Package organizer places accepted artifacts into their library directory
// using the library's path template. Placement is idempotent: re-running an
// import for the same target overwrites the previous artifact.
package organizer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/services"
	"curator/internal/textutil"
)

// Placement describes where an artifact landed.
type Placement struct {
	Path      string
	LibraryID int64
}

// Organizer moves artifacts from staging into library directories.
type Organizer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates an Organizer.
func New(cfg *config.Config, logger *slog.Logger) *Organizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Organizer{cfg: cfg, logger: logger}
}

// TargetPath renders the destination path for a title without moving
// anything. Template placeholders: {library}, {subfolder}, {title}.
func (o *Organizer) TargetPath(library config.Library, subfolder, title, sourcePath string) (string, error) {
	title = textutil.SanitizeFileName(title)
	if title == "" {
		return "", services.Wrap(services.ErrValidation, "organize", "render path", "title required", nil)
	}
	template := strings.TrimSpace(library.PathTemplate)
	if template == "" {
		template = "{library}/{subfolder}/{title}"
	}

	subfolder = strings.TrimSpace(subfolder)
	if subfolder == "" {
		// Drop the segment entirely rather than writing an "unknown" folder.
		template = strings.ReplaceAll(template, "/{subfolder}/", "/")
		template = strings.ReplaceAll(template, "{subfolder}/", "")
		template = strings.ReplaceAll(template, "/{subfolder}", "")
	}

	rendered := template
	rendered = strings.ReplaceAll(rendered, "{library}", library.Path)
	rendered = strings.ReplaceAll(rendered, "{subfolder}", textutil.SanitizePathSegment(subfolder))
	rendered = strings.ReplaceAll(rendered, "{title}", title)

	ext := filepath.Ext(sourcePath)
	return filepath.Clean(rendered) + ext, nil
}

// Place moves the artifact at sourcePath to the rendered target, creating
// parent directories and overwriting any previous artifact at that path.
// Cross-device renames fall back to copy-then-remove.
func (o *Organizer) Place(library config.Library, subfolder, title, sourcePath string) (Placement, error) {
	target, err := o.TargetPath(library, subfolder, title, sourcePath)
	if err != nil {
		return Placement{}, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Placement{}, services.Wrap(services.ErrConfiguration, "organize", "ensure library dir",
			fmt.Sprintf("create %s", filepath.Dir(target)), err)
	}

	if renameErr := os.Rename(sourcePath, target); renameErr != nil {
		var linkErr *os.LinkError
		if errors.As(renameErr, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
			if copyErr := copyFile(sourcePath, target); copyErr != nil {
				return Placement{}, services.Wrap(services.ErrTransient, "organize", "copy artifact",
					"copy into library across filesystems", copyErr)
			}
			if err := os.Remove(sourcePath); err != nil {
				o.logger.Warn("failed to remove staging file after copy",
					logging.String("path", sourcePath), logging.Error(err))
			}
		} else {
			return Placement{}, services.Wrap(services.ErrTransient, "organize", "move artifact",
				fmt.Sprintf("move into %s", filepath.Dir(target)), renameErr)
		}
	}

	o.logger.Info("artifact placed",
		logging.String("target", target),
		logging.Int64("library_id", library.ID))
	return Placement{Path: target, LibraryID: library.ID}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
