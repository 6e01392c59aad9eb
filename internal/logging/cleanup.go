package logging

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Cleaner removes scoring journals that have not been written to within
// the retention period. Files other than journals are left alone.
type Cleaner struct {
	baseDir   string
	retention time.Duration
	now       func() time.Time
}

// NewCleaner creates a Cleaner for baseDir. A non-positive retention keeps
// journals forever.
func NewCleaner(baseDir string, retentionDays int) *Cleaner {
	return &Cleaner{
		baseDir:   baseDir,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// Cleanup removes expired journals and then the pull request directories
// they leave empty. It returns the number of journals removed.
func (c *Cleaner) Cleanup() (int, error) {
	if c.retention <= 0 {
		return 0, nil
	}
	threshold := c.now().Add(-c.retention)

	var (
		deleted int
		dirs    []string
		errs    []error
	)
	err := filepath.WalkDir(c.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if path != c.baseDir {
				dirs = append(dirs, path)
			}
			return nil
		}
		if d.Name() != journalFile {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(threshold) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			return nil
		}
		deleted++
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}

	pruneEmpty(dirs)
	return deleted, errors.Join(errs...)
}

// pruneEmpty removes empty directories deepest first, so a parent emptied
// by its children goes too.
func pruneEmpty(dirs []string) {
	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], string(filepath.Separator)) > strings.Count(dirs[j], string(filepath.Separator))
	})
	for _, dir := range dirs {
		if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
			os.Remove(dir)
		}
	}
}
