// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package pk2

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"slices"
	"strings"
	"time"
)

// Interface compliance.
var (
	_ fs.FS         = (*archiveFS)(nil)
	_ fs.StatFS     = (*archiveFS)(nil)
	_ fs.ReadFileFS = (*archiveFS)(nil)
	_ fs.ReadDirFS  = (*archiveFS)(nil)
)

// FS returns a read-only io/fs view of the archive, for use with
// fs.WalkDir, http.FS, template.ParseFS and the like.  Names follow the
// io/fs rules (no leading slash) and are matched ignoring ASCII case.
// Unlike List, directory listings are sorted by name.
func (a *Archive) FS() fs.FS {
	return &archiveFS{a: a}
}

type archiveFS struct {
	a *Archive
}

func fsError(err error) error {
	if errors.Is(err, ErrPathNotFound) {
		return fmt.Errorf("%w: %w", fs.ErrNotExist, err)
	}
	return err
}

func (f *archiveFS) resolve(op, name string) (Entry, error) {
	if !fs.ValidPath(name) {
		return Entry{}, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	e, err := f.a.resolve(name)
	if err != nil {
		return Entry{}, &fs.PathError{Op: op, Path: name, Err: fsError(err)}
	}
	return e, nil
}

// Open implements fs.FS.
func (f *archiveFS) Open(name string) (fs.File, error) {
	e, err := f.resolve("open", name)
	if err != nil {
		return nil, err
	}
	if e.IsDir() {
		return &openDir{fsys: f, name: name, info: fileInfo{e}}, nil
	}
	sr, err := f.a.section(&e)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &openFile{SectionReader: sr, name: name, info: fileInfo{e}}, nil
}

// Stat implements fs.StatFS.
func (f *archiveFS) Stat(name string) (fs.FileInfo, error) {
	e, err := f.resolve("stat", name)
	if err != nil {
		return nil, err
	}
	return fileInfo{e}, nil
}

// ReadFile implements fs.ReadFileFS.
func (f *archiveFS) ReadFile(name string) ([]byte, error) {
	e, err := f.resolve("readfile", name)
	if err != nil {
		return nil, err
	}
	data, err := f.a.read(&e)
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: err}
	}
	return data, nil
}

// ReadDir implements fs.ReadDirFS.  Entries are sorted by name.
func (f *archiveFS) ReadDir(name string) ([]fs.DirEntry, error) {
	e, err := f.resolve("readdir", name)
	if err != nil {
		return nil, err
	}
	entries, err := f.readDir(e)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	return entries, nil
}

func (f *archiveFS) readDir(dir Entry) ([]fs.DirEntry, error) {
	if !dir.IsDir() {
		return nil, ErrNotADirectory
	}
	recs, err := f.a.tree.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]fs.DirEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, fs.FileInfoToDirEntry(fileInfo{rec}))
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries, nil
}

// fileInfo implements fs.FileInfo for an Entry.  Sys returns the Entry.
type fileInfo struct {
	e Entry
}

func (fi fileInfo) Name() string {
	if fi.e.Name == "" {
		return "."
	}
	return fi.e.Name
}

func (fi fileInfo) Size() int64 {
	if fi.e.IsDir() {
		return 0
	}
	return int64(fi.e.Size)
}

func (fi fileInfo) Mode() fs.FileMode {
	if fi.e.IsDir() {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

func (fi fileInfo) ModTime() time.Time { return fi.e.Modified.Time() }
func (fi fileInfo) IsDir() bool        { return fi.e.IsDir() }
func (fi fileInfo) Sys() any           { return fi.e }

type openFile struct {
	*io.SectionReader
	name string
	info fileInfo
}

var (
	_ fs.File     = (*openFile)(nil)
	_ io.ReaderAt = (*openFile)(nil)
	_ io.Seeker   = (*openFile)(nil)
)

func (f *openFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *openFile) Close() error               { return nil }

// openDir implements fs.ReadDirFile.  Entries are listed on the first
// ReadDir call.
type openDir struct {
	fsys    *archiveFS
	name    string
	info    fileInfo
	entries []fs.DirEntry
	loaded  bool
	off     int
}

func (d *openDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) { return d.info, nil }
func (d *openDir) Close() error               { return nil }

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.loaded {
		entries, err := d.fsys.readDir(d.info.e)
		if err != nil {
			return nil, &fs.PathError{Op: "readdir", Path: d.name, Err: err}
		}
		d.entries = entries
		d.loaded = true
	}

	rest := d.entries[d.off:]
	if n <= 0 {
		d.off = len(d.entries)
		return slices.Clone(rest), nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(rest))
	d.off += n
	return slices.Clone(rest[:n]), nil
}
