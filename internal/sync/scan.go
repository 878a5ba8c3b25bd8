package sync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/pushbox/pushbox/internal/project"
)

// ScanResult summarizes the files a push would offer to rsync.
type ScanResult struct {
	Files int64
	Bytes int64
}

// Scan walks the source tree once, applying the exclusion rules the way the
// transfer will, and totals the candidate files and bytes. It is an estimate
// for reporting and the journal; rsync remains the authority on what
// actually moves.
func Scan(ctx context.Context, root string, rules *IgnoreList) (*ScanResult, error) {
	result := &ScanResult{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk error: %w", walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("walk rel path: %w", err)
		}
		relPath = project.NormPath(relPath)
		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if rules.ShouldIgnore(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if rules.ShouldIgnore(relPath, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("failed to stat file, skipping", "path", path, "error", err)
			return nil
		}
		// Symlinks count as themselves; archive mode carries the link,
		// not its target.
		result.Files++
		if info.Mode().IsRegular() {
			result.Bytes += info.Size()
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("source scan failed: %w", err)
	}

	return result, nil
}
