// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package pk2

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const defaultExtractWorkers = 4

// ExtractOption configures ExtractDir.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	workers       int
	overwrite     bool
	preserveTimes bool
}

// ExtractWithWorkers sets how many files are written at once (default: 4).
func ExtractWithWorkers(n int) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.workers = n
	}
}

// ExtractWithOverwrite replaces files that already exist.  By default they
// are skipped.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.overwrite = overwrite
	}
}

// ExtractWithPreserveTimes sets the access and modification times of
// written files from the archive.
func ExtractWithPreserveTimes(preserve bool) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.preserveTimes = preserve
	}
}

// ExtractStats summarizes an ExtractDir call.
type ExtractStats struct {
	// Files is the number of files written.
	Files int
	// Dirs is the number of directories created or already present.
	Dirs int
	// Skipped is the number of files left alone because they existed.
	Skipped int
	// Bytes is the total size of the files written.
	Bytes int64
}

// safeName reports whether an entry name can be used as a single path
// element under the destination.
func safeName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\:`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.IsLocal(name)
}

type extractJob struct {
	rel   string
	entry Entry
}

// ExtractDir writes every file below the directory at path into dest,
// recreating the directory structure.  dest is created if needed.  Entries
// whose names could escape dest fail the call before anything is written
// for them.
func (a *Archive) ExtractDir(ctx context.Context, path, dest string, opts ...ExtractOption) (ExtractStats, error) {
	cfg := extractConfig{workers: defaultExtractWorkers}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}

	var stats ExtractStats
	dir, err := a.resolve(path)
	if err == nil && !dir.IsDir() {
		err = ErrNotADirectory
	}
	if err != nil {
		return stats, &fs.PathError{Op: "extract", Path: path, Err: err}
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return stats, fmt.Errorf("create destination %s: %w", dest, err)
	}
	root, err := os.OpenRoot(dest)
	if err != nil {
		return stats, fmt.Errorf("open destination root %s: %w", dest, err)
	}
	defer root.Close()

	var jobs []extractJob
	err = a.tree.Walk(dir, "", func(p string, e Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !safeName(e.Name) {
			return &fs.PathError{Op: "extract", Path: p, Err: fs.ErrInvalid}
		}
		rel := filepath.FromSlash(p)
		if e.IsDir() {
			if err := root.MkdirAll(rel, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", rel, err)
			}
			stats.Dirs++
			return nil
		}
		jobs = append(jobs, extractJob{rel: rel, entry: e})
		return nil
	})
	if err != nil {
		return stats, err
	}

	var (
		files   atomic.Int64
		skipped atomic.Int64
		written atomic.Int64
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)
	for _, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := a.extractFile(root, job, &cfg)
			if errors.Is(err, fs.ErrExist) {
				a.logger.Debug("skipping existing file", "path", job.rel)
				skipped.Add(1)
				return nil
			}
			if err != nil {
				return err
			}
			a.logger.Debug("extracted file", "path", job.rel, "size", n)
			files.Add(1)
			written.Add(n)
			return nil
		})
	}
	err = g.Wait()

	stats.Files = int(files.Load())
	stats.Skipped = int(skipped.Load())
	stats.Bytes = written.Load()
	return stats, err
}

func (a *Archive) extractFile(root *os.Root, job extractJob, cfg *extractConfig) (int64, error) {
	sr, err := a.section(&job.entry)
	if err != nil {
		return 0, &fs.PathError{Op: "extract", Path: job.rel, Err: err}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !cfg.overwrite {
		flags |= os.O_EXCL
	}
	f, err := root.OpenFile(job.rel, flags, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, sr)
	if err != nil {
		_ = f.Close()
		return n, fmt.Errorf("write %s: %w", job.rel, err)
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", job.rel, err)
	}

	if cfg.preserveTimes {
		atime, mtime := job.entry.Accessed.Time(), job.entry.Modified.Time()
		if err := root.Chtimes(job.rel, atime, mtime); err != nil {
			return n, fmt.Errorf("chtimes %s: %w", job.rel, err)
		}
	}
	return n, nil
}
