package casc

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	casccore "github.com/casclib/casc/core"
)

// ExtractStats summarizes an Extract call.
type ExtractStats struct {
	// Files is the number of files written.
	Files int

	// Bytes is the total size of the files written.
	Bytes uint64

	// Skipped counts files that already existed or whose paths cannot be
	// written to the local file system.
	Skipped int

	// Missing counts listed files with no data in storage.
	Missing int
}

// Extract writes the files of the archive below destDir, one path
// fragment per directory level. Nested TVFS files are not written; their
// contents are.
//
// Files are written to a temporary file and renamed into place, so a
// partially written file is never visible at its final path. Files listed
// by the TVFS tree but absent from storage are counted as missing and
// skipped. Extraction stops at the first read or write error.
func (a *Archive) Extract(ctx context.Context, destDir string, opts ...ExtractOption) (ExtractStats, error) {
	cfg := extractConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	workers := cfg.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	prefix := casccore.FoldPath(cfg.prefix)
	suffix := casccore.FoldPath(cfg.suffix)

	files, err := a.Files()
	if err != nil {
		return ExtractStats{}, err
	}
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return ExtractStats{}, fmt.Errorf("create destination %s: %w", destDir, err)
	}
	root, err := os.OpenRoot(destDir)
	if err != nil {
		return ExtractStats{}, fmt.Errorf("open destination root %s: %w", destDir, err)
	}
	defer root.Close()

	var (
		mu    sync.Mutex
		stats ExtractStats
	)
	count := func(f func(*ExtractStats)) {
		mu.Lock()
		f(&stats)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, r := range files {
		if r.IsNestedArchive() {
			continue
		}
		native, err := r.Path()
		if err != nil {
			count(func(s *ExtractStats) { s.Skipped++ })
			continue
		}
		folded := casccore.FoldPath(native)
		if !strings.HasPrefix(folded, prefix) || !strings.HasSuffix(folded, suffix) {
			continue
		}
		name, ok := slashName(r.Fragments())
		if !ok {
			a.log().Debug("skipping file with unwritable path", "path", native)
			count(func(s *ExtractStats) { s.Skipped++ })
			continue
		}
		if !r.ExistsInStorage() {
			a.log().Warn("file missing from storage", "path", native)
			count(func(s *ExtractStats) { s.Missing++ })
			continue
		}
		rel := filepath.FromSlash(name)
		if !cfg.overwrite {
			if _, err := root.Lstat(rel); err == nil {
				count(func(s *ExtractStats) { s.Skipped++ })
				continue
			}
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := a.readResult(r)
			if err != nil {
				return fmt.Errorf("read %s: %w", native, err)
			}
			if err := writeAtomic(root, rel, content); err != nil {
				return fmt.Errorf("write %s: %w", native, err)
			}
			count(func(s *ExtractStats) {
				s.Files++
				s.Bytes += uint64(len(content))
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, ctx.Err()
}

// writeAtomic writes content to a temporary file next to rel and renames it
// into place, replacing any existing file.
func writeAtomic(root *os.Root, rel string, content []byte) error {
	dir := filepath.Dir(rel)
	if err := root.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, tmpRel, err := createTempFile(root, dir, ".casc-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()         //nolint:errcheck // best-effort cleanup
		_ = root.Remove(tmpRel) //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = root.Remove(tmpRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := root.Rename(tmpRel, rel); err != nil {
		_ = root.Remove(tmpRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", rel, err)
	}
	return nil
}

func createTempFile(root *os.Root, dir, prefix string) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		var b [8]byte
		if _, err := rand.Read(b[:]); err != nil {
			return nil, "", err
		}
		rel := filepath.Join(dir, prefix+hex.EncodeToString(b[:]))
		f, err := root.OpenFile(rel, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, rel, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("exhausted retries")
}
