package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/menta2k/image-toolbox/internal/utils"
)

// Writer stores save targets in a directory
type Writer struct {
	Dir    string
	Prefix string
	Suffix string
	// Overwrite allows replacing existing files
	Overwrite bool
	// IncludeSkipped writes skipped targets unchanged instead of dropping them
	IncludeSkipped bool
}

// Write stores every target and returns the written paths in order.
// Targets that map to the same name within one call get "_1", "_2", ...
// appended. Existing files are left alone unless Overwrite is set; the
// error wraps os.ErrExist in that case.
func (w Writer) Write(ctx context.Context, targets []SaveTarget) ([]string, error) {
	if err := utils.EnsureDir(w.Dir); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", w.Dir, err)
	}

	var paths []string
	var errs []error
	used := make(map[string]bool, len(targets))
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		if t.Data == nil {
			continue
		}
		if t.Skipped && !w.IncludeSkipped {
			log.Ctx(ctx).Info().Str("name", t.OriginalName).Msg("skipped by limits")
			continue
		}

		path := filepath.Join(w.Dir, uniqueName(t.OutputName(w.Prefix, w.Suffix), used))
		if !w.Overwrite && utils.FileExists(path) {
			errs = append(errs, fmt.Errorf("refusing to overwrite %s: %w", path, os.ErrExist))
			continue
		}
		if err := os.WriteFile(path, t.Data, 0644); err != nil {
			errs = append(errs, fmt.Errorf("failed to write %s: %w", path, err))
			continue
		}

		log.Ctx(ctx).Info().
			Str("path", path).
			Str("size", utils.FormatFileSize(int64(len(t.Data)))).
			Msg("saved")
		paths = append(paths, path)
	}

	return paths, errors.Join(errs...)
}

// uniqueName returns name, or name with a numeric suffix before the
// extension, that is not yet in used, and records it. Names are compared
// case-insensitively.
func uniqueName(name string, used map[string]bool) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; used[strings.ToLower(candidate)]; i++ {
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
