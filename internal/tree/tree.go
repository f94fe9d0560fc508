// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package tree walks the directory structure of a PK2 container: the
// children of a directory, path resolution, and recursive walks.
package tree

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"math"
	"strings"

	"github.com/MahmoudFarouq/pk2/internal/blockstore"
	"github.com/MahmoudFarouq/pk2/internal/format"
	"github.com/MahmoudFarouq/pk2/internal/index"
)

var (
	// ErrPathNotFound is returned when a path segment names no child.
	ErrPathNotFound = errors.New("pk2: path not found")

	// ErrNotADirectory is returned when a path descends through a file.
	ErrNotADirectory = errors.New("pk2: not a directory")

	// SkipDir is returned from a WalkFunc to skip the directory's children.
	SkipDir = fs.SkipDir
)

// PathError names the path segment that failed to resolve.
type PathError struct {
	Path    string
	Segment string
	Err     error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("resolve %q: segment %q: %v", e.Path, e.Segment, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// Option configures a Tree.
type Option func(*options)

type options struct {
	cache     bool
	maxBlocks int
	logger    *slog.Logger
}

// WithCache keeps the children of every directory listed, so later
// lookups in it need no I/O.
func WithCache(enabled bool) Option {
	return func(opts *options) {
		opts.cache = enabled
	}
}

// WithMaxChainBlocks caps the number of blocks a single directory may span.
// Zero means as many as the container can hold.
func WithMaxChainBlocks(n int) Option {
	return func(opts *options) {
		opts.maxBlocks = n
	}
}

// WithLogger sets the logger for debug events.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// Tree reads directories out of a block store.  It is safe for concurrent
// use.
type Tree struct {
	store     *blockstore.Store
	maxBlocks int
	logger    *slog.Logger
	cache     *dirCache
}

// New returns a Tree over store.
func New(store *blockstore.Store, opts ...Option) *Tree {
	var options options
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.New(slog.DiscardHandler)
	}

	t := &Tree{
		store:     store,
		maxBlocks: options.maxBlocks,
		logger:    options.logger,
	}
	if t.maxBlocks <= 0 {
		t.maxBlocks = int(store.Size()/format.BlockSize) + 1
	}
	if options.cache {
		t.cache = newDirCache()
	}
	return t
}

// Root returns the record of the root directory, taken from the "." entry
// of the root block when it has one.
func (t *Tree) Root() (format.Record, error) {
	blk, err := t.store.ReadBlock(format.RootOffset)
	if err != nil {
		return format.Record{}, err
	}
	root := format.Record{Kind: format.KindDirectory}
	if self := blk.Records[0]; self.IsDir() && self.Name == "." {
		root = self
	}
	root.Name = ""
	root.Position = format.RootOffset
	root.Offset = format.RootOffset
	return root, nil
}

func blockOffset(pos uint64) int64 {
	// ReadBlock rejects this as out of bounds
	if pos > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(pos)
}

func isReserved(name string) bool {
	return name == "." || name == ".."
}

// Children yields the entries of dir in on-disk order, reading one block at
// a time as the caller advances.  Empty slots are skipped, as are the "."
// and ".." entries of the first block.  Iteration stops after the first
// error.
func (t *Tree) Children(dir format.Record) iter.Seq2[format.Record, error] {
	return func(yield func(format.Record, error) bool) {
		if !dir.IsDir() {
			yield(format.Record{}, fmt.Errorf("%q: %w", dir.Name, ErrNotADirectory))
			return
		}
		if t.cache != nil {
			cd, err := t.cached(dir)
			if err != nil {
				yield(format.Record{}, err)
				return
			}
			for _, rec := range cd.entries {
				if !yield(rec, nil) {
					return
				}
			}
			return
		}
		t.scan(dir, yield)
	}
}

func (t *Tree) scan(dir format.Record, yield func(format.Record, error) bool) {
	off := blockOffset(dir.Position)
	visited := make(map[int64]struct{})
	for first := true; ; first = false {
		if _, ok := visited[off]; ok {
			yield(format.Record{}, fmt.Errorf("directory %q: block at %d: continuation cycle: %w", dir.Name, off, format.ErrMalformedRecord))
			return
		}
		if len(visited) >= t.maxBlocks {
			yield(format.Record{}, fmt.Errorf("directory %q: more than %d blocks: continuation cycle: %w", dir.Name, t.maxBlocks, format.ErrMalformedRecord))
			return
		}
		visited[off] = struct{}{}

		blk, err := t.store.ReadBlock(off)
		if err != nil {
			yield(format.Record{}, fmt.Errorf("directory %q: %w", dir.Name, err))
			return
		}
		for _, rec := range blk.Records {
			if rec.IsEmpty() || (first && isReserved(rec.Name)) {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}

		next, ok := blk.Next()
		if !ok {
			return
		}
		t.logger.Debug("following block chain", "dir", dir.Name, "from", off, "next", next)
		off = next
	}
}

// ReadDir returns the entries of dir in on-disk order.
func (t *Tree) ReadDir(dir format.Record) ([]format.Record, error) {
	if t.cache != nil && dir.IsDir() {
		cd, err := t.cached(dir)
		if err != nil {
			return nil, err
		}
		return append([]format.Record(nil), cd.entries...), nil
	}
	var entries []format.Record
	for rec, err := range t.Children(dir) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, rec)
	}
	return entries, nil
}

// lookup returns the first child of dir named name, ignoring ASCII case.
func (t *Tree) lookup(dir format.Record, name string) (format.Record, bool, error) {
	if t.cache != nil {
		cd, err := t.cached(dir)
		if err != nil {
			return format.Record{}, false, err
		}
		i, ok := cd.index.Lookup(name, func(i int) string { return cd.entries[i].Name })
		if !ok {
			return format.Record{}, false, nil
		}
		return cd.entries[i], true, nil
	}
	for rec, err := range t.Children(dir) {
		if err != nil {
			return format.Record{}, false, err
		}
		if index.EqualFold(rec.Name, name) {
			return rec, true, nil
		}
	}
	return format.Record{}, false, nil
}

// Resolve walks segments down from root.  Every segment but the last must
// name a directory.
func (t *Tree) Resolve(root format.Record, segments []string) (format.Record, error) {
	cur := root
	for i, seg := range segments {
		if !cur.IsDir() {
			return format.Record{}, &PathError{Path: Join(segments[:i]), Segment: cur.Name, Err: ErrNotADirectory}
		}
		next, ok, err := t.lookup(cur, seg)
		if err != nil {
			return format.Record{}, err
		}
		if !ok {
			return format.Record{}, &PathError{Path: Join(segments[:i+1]), Segment: seg, Err: ErrPathNotFound}
		}
		cur = next
	}
	return cur, nil
}

// Split breaks path into segments on "/", dropping empty and "." segments.
func Split(path string) []string {
	var segments []string
	for seg := range strings.SplitSeq(path, "/") {
		if seg == "" || seg == "." {
			continue
		}
		segments = append(segments, seg)
	}
	return segments
}

// Join is the inverse of Split.
func Join(segments []string) string {
	return strings.Join(segments, "/")
}

// WalkFunc is called for every entry below the walked directory, with the
// entry's slash-separated path.  Returning SkipDir from a directory skips
// its children, and from a file skips the rest of its directory.  Any other
// error stops the walk.
type WalkFunc func(path string, rec format.Record) error

// Walk visits the entries below dir depth-first, in on-disk order.  prefix
// is prepended to every path.  Directories reachable twice are visited once.
func (t *Tree) Walk(dir format.Record, prefix string, fn WalkFunc) error {
	seen := map[uint64]struct{}{dir.Position: {}}
	return t.walk(dir, prefix, fn, seen)
}

func (t *Tree) walk(dir format.Record, prefix string, fn WalkFunc, seen map[uint64]struct{}) error {
	entries, err := t.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, rec := range entries {
		p := rec.Name
		if prefix != "" {
			p = prefix + "/" + rec.Name
		}
		err := fn(p, rec)
		if rec.IsDir() {
			if errors.Is(err, SkipDir) {
				continue
			}
			if err != nil {
				return err
			}
			if _, ok := seen[rec.Position]; ok {
				t.logger.Debug("directory already walked", "path", p, "position", rec.Position)
				continue
			}
			seen[rec.Position] = struct{}{}
			if err := t.walk(rec, p, fn, seen); err != nil {
				return err
			}
			continue
		}
		if errors.Is(err, SkipDir) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}
