package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"delayrisk/domain/core"
	"delayrisk/internal"
	"delayrisk/ports"
)

const stagingPrefix = ".staging-"

// BundleStore writes run bundles under a base directory, one directory per
// run. Files are staged in a hidden sibling directory and renamed into place,
// so readers see either a complete bundle or none.
type BundleStore struct {
	basePath string
	logger   *internal.Logger
}

var _ ports.ArtifactStore = (*BundleStore)(nil)

// NewBundleStore creates the base directory if needed
func NewBundleStore(basePath string, logger *internal.Logger) (*BundleStore, error) {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create base directory: %v", core.ErrArtifactIO, err)
	}
	return &BundleStore{basePath: basePath, logger: logger.Named("bundles")}, nil
}

// BasePath returns the directory holding all bundles
func (s *BundleStore) BasePath() string { return s.basePath }

// BundlePath is the directory a run's bundle is committed to
func (s *BundleStore) BundlePath(runID core.RunID) string {
	return filepath.Join(s.basePath, runID.String())
}

// WriteBundle persists files as <base>/<runID>/<name>. An existing bundle is
// never touched; on any failure nothing is left behind.
func (s *BundleStore) WriteBundle(ctx context.Context, runID core.RunID, files map[string][]byte) (string, error) {
	if core.ID(runID).IsEmpty() || strings.ContainsAny(runID.String(), `/\`) || strings.HasPrefix(runID.String(), ".") {
		return "", fmt.Errorf("%w: invalid run id %q", core.ErrArtifactIO, runID)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("%w: empty bundle", core.ErrArtifactIO)
	}
	names := make([]string, 0, len(files))
	for name := range files {
		if err := checkFileName(name); err != nil {
			return "", err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	final := s.BundlePath(runID)
	if _, err := os.Stat(final); err == nil {
		return "", fmt.Errorf("%w: %s", core.ErrArtifactExists, final)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: stat %s: %v", core.ErrArtifactIO, final, err)
	}

	staging, err := os.MkdirTemp(s.basePath, stagingPrefix+runID.String()+"-")
	if err != nil {
		return "", fmt.Errorf("%w: create staging directory: %v", core.ErrArtifactIO, err)
	}
	committed := false
	defer func() {
		if !committed {
			if rmErr := os.RemoveAll(staging); rmErr != nil {
				s.logger.Warn("failed to remove staging directory %s: %v", staging, rmErr)
			}
		}
	}()

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := writeFileSync(filepath.Join(staging, name), files[name]); err != nil {
			return "", fmt.Errorf("%w: write %s: %v", core.ErrArtifactIO, name, err)
		}
	}
	if err := os.Chmod(staging, 0o755); err != nil {
		return "", fmt.Errorf("%w: chmod staging directory: %v", core.ErrArtifactIO, err)
	}

	if _, err := os.Stat(final); err == nil {
		return "", fmt.Errorf("%w: %s", core.ErrArtifactExists, final)
	}
	if err := os.Rename(staging, final); err != nil {
		return "", fmt.Errorf("%w: commit bundle %s: %v", core.ErrArtifactIO, final, err)
	}
	committed = true

	s.logger.Info("bundle %s written (%d files)", final, len(names))
	return final, nil
}

// ReadFile reads one artifact file
func (s *BundleStore) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", core.ErrArtifactIO, path, err)
	}
	return data, nil
}

// ListBundles returns committed run ids in ascending order. Run ids are
// time-ordered, so the last entry is the newest bundle.
func (s *BundleStore) ListBundles(ctx context.Context) ([]core.RunID, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: list bundles: %v", core.ErrArtifactIO, err)
	}
	var ids []core.RunID
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			ids = append(ids, core.RunID(e.Name()))
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// LatestBundle returns the path of the newest bundle
func (s *BundleStore) LatestBundle(ctx context.Context) (string, error) {
	ids, err := s.ListBundles(ctx)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: no bundles under %s", core.ErrArtifactIO, s.basePath)
	}
	return filepath.Join(s.basePath, ids[len(ids)-1].String()), nil
}

// CleanupStaging removes staging directories left by interrupted writes
func (s *BundleStore) CleanupStaging(ctx context.Context, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return 0, fmt.Errorf("%w: list staging directories: %v", core.ErrArtifactIO, err)
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), stagingPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.basePath, e.Name())); err != nil {
			return removed, fmt.Errorf("%w: remove %s: %v", core.ErrArtifactIO, e.Name(), err)
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("removed %d stale staging directories", removed)
	}
	return removed, nil
}

func checkFileName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid bundle file name %q", core.ErrArtifactIO, name)
	}
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
