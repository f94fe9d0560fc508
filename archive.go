// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package pk2

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/opencontainers/go-digest"

	"github.com/MahmoudFarouq/pk2/internal/blockstore"
	"github.com/MahmoudFarouq/pk2/internal/cipher"
	"github.com/MahmoudFarouq/pk2/internal/format"
	"github.com/MahmoudFarouq/pk2/internal/mmap"
	"github.com/MahmoudFarouq/pk2/internal/tree"
)

// Archive is an opened PK2 container.
type Archive struct {
	header Header
	store  *blockstore.Store
	tree   *tree.Tree
	root   Entry
	logger *slog.Logger

	closer    io.Closer
	closeOnce sync.Once
	closeErr  error
}

// Open memory-maps the archive at path.
func Open(path string, opts ...Option) (*Archive, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap.Open(%s): %w", path, err)
	}
	a, err := newArchive(m, int64(m.Len()), m, opts)
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return a, nil
}

// OpenFile opens the archive at path and reads it with positioned reads
// rather than a mapping.
func OpenFile(path string, opts ...Option) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s): %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("f.Stat(%s): %w", path, err)
	}
	a, err := newArchive(f, fi.Size(), f, opts)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return a, nil
}

// OpenReaderAt opens the archive held in the first size bytes of r.  r
// must support concurrent ReadAt calls for the Archive to be used
// concurrently.
func OpenReaderAt(r io.ReaderAt, size int64, opts ...Option) (*Archive, error) {
	return newArchive(r, size, nil, opts)
}

// OpenBytes opens an archive held in memory.  b must not be modified while
// the Archive is in use.
func OpenBytes(b []byte, opts ...Option) (*Archive, error) {
	return newArchive(bytes.NewReader(b), int64(len(b)), nil, opts)
}

func newArchive(r io.ReaderAt, size int64, closer io.Closer, opts []Option) (*Archive, error) {
	var options options
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.New(slog.DiscardHandler)
	}

	if size < format.HeaderSize {
		return nil, fmt.Errorf("container is %d bytes, header needs %d: %w", size, format.HeaderSize, ErrTruncated)
	}

	codec := &format.Codec{Encoding: options.encoding}
	store := blockstore.New(r, size, codec)

	var buf [format.HeaderSize]byte
	if err := store.ReadAt(buf[:], 0); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	var h Header
	if err := h.UnmarshalBytes(buf[:]); err != nil {
		return nil, err
	}
	if size < format.RootOffset+format.BlockSize {
		return nil, fmt.Errorf("container is %d bytes, root block needs %d: %w", size, format.RootOffset+format.BlockSize, ErrTruncated)
	}

	var block cipher.Block = cipher.Identity{}
	if h.Encrypted {
		block = cipher.Default()
		if options.key != nil {
			c, err := cipher.New(options.key)
			if err != nil {
				return nil, err
			}
			block = c
		}
		if options.keyCheck {
			check := cipher.CheckBytes(block)
			if !bytes.Equal(check[:], h.Check[:cipher.CheckLen]) {
				return nil, fmt.Errorf("check bytes % x, key gives % x: %w", h.Check[:cipher.CheckLen], check[:], ErrKeyMismatch)
			}
		}
	}
	codec.Cipher = block

	tr := tree.New(store,
		tree.WithCache(options.cache),
		tree.WithMaxChainBlocks(options.maxChainBlocks),
		tree.WithLogger(options.logger),
	)
	root, err := tr.Root()
	if err != nil {
		return nil, fmt.Errorf("root block: %w", err)
	}

	options.logger.Debug("opened archive",
		"size", size,
		"version", fmt.Sprintf("%#x", h.Version),
		"encrypted", h.Encrypted,
		"root", root.Position)

	return &Archive{
		header: h,
		store:  store,
		tree:   tr,
		root:   root,
		logger: options.logger,
		closer: closer,
	}, nil
}

// Header returns the archive header.
func (a *Archive) Header() Header {
	return a.header
}

// Size returns the size of the container in bytes.
func (a *Archive) Size() int64 {
	return a.store.Size()
}

// Close releases the mapping or file behind the archive.  Archives opened
// with OpenReaderAt or OpenBytes have nothing to release.  Calling Close
// more than once is a no-op.
func (a *Archive) Close() error {
	a.closeOnce.Do(func() {
		if a.closer != nil {
			a.closeErr = a.closer.Close()
		}
	})
	return a.closeErr
}

func (a *Archive) resolve(path string) (Entry, error) {
	return a.tree.Resolve(a.root, tree.Split(path))
}

// Stat returns the entry at path.  The root has an empty name.
func (a *Archive) Stat(path string) (Entry, error) {
	e, err := a.resolve(path)
	if err != nil {
		return Entry{}, &fs.PathError{Op: "stat", Path: path, Err: err}
	}
	return e, nil
}

// List returns the entries of the directory at path in on-disk order.
func (a *Archive) List(path string) ([]Entry, error) {
	dir, err := a.resolve(path)
	if err == nil && !dir.IsDir() {
		err = ErrNotADirectory
	}
	if err != nil {
		return nil, &fs.PathError{Op: "list", Path: path, Err: err}
	}
	entries, err := a.tree.ReadDir(dir)
	if err != nil {
		return nil, &fs.PathError{Op: "list", Path: path, Err: err}
	}
	return entries, nil
}

// contentRange returns the byte range of a file's contents.
func (a *Archive) contentRange(e *Entry) (int64, int64, error) {
	if !e.IsFile() {
		return 0, 0, ErrNotAFile
	}
	if e.Position > math.MaxInt64 {
		return 0, 0, fmt.Errorf("position %d: %w", e.Position, ErrOutOfBounds)
	}
	off, n := int64(e.Position), int64(e.Size)
	if err := a.store.CheckRange(off, n); err != nil {
		return 0, 0, err
	}
	return off, n, nil
}

// Extract returns the entry at path and its contents, exactly as stored.
func (a *Archive) Extract(path string) (Entry, []byte, error) {
	e, err := a.resolve(path)
	if err != nil {
		return Entry{}, nil, &fs.PathError{Op: "extract", Path: path, Err: err}
	}
	data, err := a.read(&e)
	if err != nil {
		return Entry{}, nil, &fs.PathError{Op: "extract", Path: path, Err: err}
	}
	return e, data, nil
}

func (a *Archive) read(e *Entry) ([]byte, error) {
	off, n, err := a.contentRange(e)
	if err != nil {
		return nil, err
	}
	data := make([]byte, n)
	if err := a.store.ReadAt(data, off); err != nil {
		return nil, err
	}
	return data, nil
}

// OpenEntry returns a reader over the contents of the file at path, for
// streaming large files without holding them in memory.
func (a *Archive) OpenEntry(path string) (*io.SectionReader, Entry, error) {
	e, err := a.resolve(path)
	if err != nil {
		return nil, Entry{}, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	sr, err := a.section(&e)
	if err != nil {
		return nil, Entry{}, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	return sr, e, nil
}

func (a *Archive) section(e *Entry) (*io.SectionReader, error) {
	off, n, err := a.contentRange(e)
	if err != nil {
		return nil, err
	}
	return a.store.Section(off, n)
}

// Digest returns the sha256 digest of the contents of the file at path.
func (a *Archive) Digest(path string) (digest.Digest, error) {
	sr, _, err := a.OpenEntry(path)
	if err != nil {
		return "", err
	}
	d, err := digest.Canonical.FromReader(sr)
	if err != nil {
		return "", &fs.PathError{Op: "digest", Path: path, Err: err}
	}
	return d, nil
}

// WalkFunc is called by Walk for every entry below the walked directory.
// path is relative to the archive root.  Returning SkipDir from a directory
// skips its children, and from a file skips the rest of its directory.
type WalkFunc func(path string, e Entry) error

// Walk visits every entry below the directory at path, depth-first in
// on-disk order.  Errors returned by fn, other than SkipDir, stop the walk
// and are returned unwrapped.
func (a *Archive) Walk(path string, fn WalkFunc) error {
	segments := tree.Split(path)
	dir, err := a.tree.Resolve(a.root, segments)
	if err == nil && !dir.IsDir() {
		err = ErrNotADirectory
	}
	if err != nil {
		return &fs.PathError{Op: "walk", Path: path, Err: err}
	}

	var fnErr error
	err = a.tree.Walk(dir, tree.Join(segments), func(p string, e Entry) error {
		err := fn(p, e)
		if err != nil && !errors.Is(err, SkipDir) {
			fnErr = err
		}
		return err
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return &fs.PathError{Op: "walk", Path: path, Err: err}
	}
	return nil
}
