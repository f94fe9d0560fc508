// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package pk2test builds PK2 containers in memory for tests and fixtures.
//
// Reading archives is the only supported use of this module; the builder
// exists so tests don't depend on multi-gigabyte game files.
package pk2test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/encoding"

	"github.com/MahmoudFarouq/pk2/internal/cipher"
	"github.com/MahmoudFarouq/pk2/internal/format"
)

var errNotDir = errors.New("parent is a file")

// BuilderOption configures a Builder.
type BuilderOption func(*builderOptions)

type builderOptions struct {
	block     cipher.Block
	plaintext bool
	encoding  encoding.Encoding
	modTime   time.Time
}

// WithCipher enciphers records with c instead of the default key.
func WithCipher(c cipher.Block) BuilderOption {
	return func(opts *builderOptions) {
		opts.block = c
	}
}

// WithPlaintext writes records unciphered and clears the header's
// encrypted flag.
func WithPlaintext() BuilderOption {
	return func(opts *builderOptions) {
		opts.plaintext = true
	}
}

// WithEncoding encodes names with enc instead of UTF-8.
func WithEncoding(enc encoding.Encoding) BuilderOption {
	return func(opts *builderOptions) {
		opts.encoding = enc
	}
}

// WithModTime stamps every entry with t.
func WithModTime(t time.Time) BuilderOption {
	return func(opts *builderOptions) {
		opts.modTime = t
	}
}

type node struct {
	name     string
	kind     format.Kind
	children []*node
	data     []byte

	// assigned by layout
	blocks []int64
	pos    int64
}

// Builder accumulates a directory tree and lays it out as a PK2 container.
type Builder struct {
	opts  builderOptions
	codec format.Codec
	root  *node
}

// NewBuilder returns an empty Builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	var options builderOptions
	options.block = cipher.Default()
	options.modTime = time.Date(2008, 2, 21, 0, 0, 0, 0, time.UTC)
	for _, opt := range opts {
		opt(&options)
	}

	b := &Builder{
		opts: options,
		root: &node{kind: format.KindDirectory},
	}
	b.codec.Cipher = options.block
	if options.plaintext {
		b.codec.Cipher = cipher.Identity{}
	}
	b.codec.Encoding = options.encoding
	return b
}

func splitPath(p string) []string {
	var parts []string
	for _, part := range strings.Split(p, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// dir walks to (creating as needed) the directory at parts.
func (b *Builder) dir(parts []string) (*node, error) {
	cur := b.root
	for _, part := range parts {
		var next *node
		for _, c := range cur.children {
			if c.kind != format.KindEmpty && c.name == part {
				next = c
				break
			}
		}
		if next == nil {
			next = &node{name: part, kind: format.KindDirectory}
			cur.children = append(cur.children, next)
		} else if next.kind != format.KindDirectory {
			return nil, fmt.Errorf("%s: %w", part, errNotDir)
		}
		cur = next
	}
	return cur, nil
}

// Dir creates the directory at path, and any missing parents.
func (b *Builder) Dir(path string) error {
	_, err := b.dir(splitPath(path))
	return err
}

// File adds a file with the given contents, creating missing parents.
func (b *Builder) File(path string, data []byte) error {
	parts := splitPath(path)
	if len(parts) == 0 {
		return fmt.Errorf("empty file path %q", path)
	}
	parent, err := b.dir(parts[:len(parts)-1])
	if err != nil {
		return err
	}
	name := parts[len(parts)-1]
	for _, c := range parent.children {
		if c.kind != format.KindEmpty && c.name == name {
			return fmt.Errorf("duplicate entry %q", path)
		}
	}
	parent.children = append(parent.children, &node{
		name: name,
		kind: format.KindFile,
		data: data,
	})
	return nil
}

// Gap adds an unused slot to the directory at path, between whatever
// children were added before and after it.
func (b *Builder) Gap(path string) error {
	parent, err := b.dir(splitPath(path))
	if err != nil {
		return err
	}
	parent.children = append(parent.children, &node{kind: format.KindEmpty})
	return nil
}

// records returns the slots of a directory in on-disk order.
func records(n *node, parent *node) []*node {
	self := &node{name: ".", kind: format.KindDirectory, blocks: n.blocks}
	up := &node{name: "..", kind: format.KindDirectory, blocks: parent.blocks}
	return append([]*node{self, up}, n.children...)
}

func blockCount(n *node) int {
	slots := 2 + len(n.children)
	return (slots + format.BlockRecords - 1) / format.BlockRecords
}

// Build lays the tree out.  First blocks of every directory come right
// after the header in breadth-first order, then file contents, then any
// continuation blocks, so chains are neither contiguous nor aligned.
func (b *Builder) Build() (*Built, error) {
	type dirRef struct{ n, parent *node }

	var dirs []dirRef
	queue := []dirRef{{b.root, b.root}}
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		dirs = append(dirs, d)
		for _, c := range d.n.children {
			if c.kind == format.KindDirectory {
				queue = append(queue, dirRef{c, d.n})
			}
		}
	}

	off := int64(format.HeaderSize)
	for _, d := range dirs {
		d.n.blocks = []int64{off}
		off += format.BlockSize
	}
	var files []*node
	for _, d := range dirs {
		for _, c := range d.n.children {
			if c.kind == format.KindFile {
				c.pos = off
				off += int64(len(c.data))
				files = append(files, c)
			}
		}
	}
	for _, d := range dirs {
		for i := 1; i < blockCount(d.n); i++ {
			d.n.blocks = append(d.n.blocks, off)
			off += format.BlockSize
		}
	}

	out := &Built{
		Data:   make([]byte, off),
		Blocks: make(map[string][]int64),
		Files:  make(map[string]int64),
		codec:  b.codec,
	}

	h := format.NewHeader()
	if b.opts.plaintext {
		h.Encrypted = false
	} else {
		check := cipher.CheckBytes(b.codec.Cipher)
		copy(h.Check[:], check[:])
	}
	if err := h.MarshalTo(out.Data); err != nil {
		return nil, err
	}

	for _, f := range files {
		copy(out.Data[f.pos:], f.data)
	}

	paths := map[*node]string{b.root: ""}
	ts := format.FiletimeFromTime(b.opts.modTime)
	for _, d := range dirs {
		dirPath := paths[d.n]
		out.Blocks[dirPath] = d.n.blocks

		slots := records(d.n, d.parent)
		for bi, blockOff := range d.n.blocks {
			for i := 0; i < format.BlockRecords; i++ {
				var rec format.Record
				if si := bi*format.BlockRecords + i; si < len(slots) {
					rec = b.record(slots[si], ts)
					if c := slots[si]; c.kind != format.KindEmpty && si >= 2 {
						paths[c] = strings.TrimPrefix(dirPath+"/"+c.name, "/")
						if c.kind == format.KindFile {
							out.Files[paths[c]] = c.pos
						}
					}
				}
				if i == format.BlockRecords-1 && bi+1 < len(d.n.blocks) {
					rec.NextBlock = uint64(d.n.blocks[bi+1])
				}
				recOff := blockOff + int64(i*format.RecordSize)
				if err := b.codec.Encode(&rec, out.Data[recOff:recOff+format.RecordSize]); err != nil {
					return nil, fmt.Errorf("record %q: %w", rec.Name, err)
				}
			}
		}
	}

	return out, nil
}

func (b *Builder) record(n *node, ts format.Filetime) format.Record {
	rec := format.Record{Kind: n.kind}
	if n.kind == format.KindEmpty {
		return rec
	}
	rec.Name = n.name
	rec.Created, rec.Accessed, rec.Modified = ts, ts, ts
	switch n.kind {
	case format.KindDirectory:
		rec.Position = uint64(n.blocks[0])
	case format.KindFile:
		rec.Position = uint64(n.pos)
		rec.Size = uint32(len(n.data))
	}
	return rec
}

// Bytes builds the container.
func (b *Builder) Bytes() ([]byte, error) {
	built, err := b.Build()
	if err != nil {
		return nil, err
	}
	return built.Data, nil
}

// WriteFile builds the container and writes it to path.
func (b *Builder) WriteFile(path string) error {
	data, err := b.Bytes()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("os.MkdirAll: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Built is a laid-out container along with where things ended up.
type Built struct {
	Data []byte
	// Blocks maps a directory path ("" for the root) to its block offsets.
	Blocks map[string][]int64
	// Files maps a file path to the offset of its contents.
	Files map[string]int64

	codec format.Codec
}

// Record decodes the record at off.
func (b *Built) Record(off int64) (format.Record, error) {
	return b.codec.Decode(b.Data[off:off+format.RecordSize], off)
}

// PutRecord re-encodes rec at off, for building corrupt containers.
func (b *Built) PutRecord(off int64, rec format.Record) error {
	return b.codec.Encode(&rec, b.Data[off:off+format.RecordSize])
}

// SetNextBlock rewrites the continuation link of the block at blockOff.
func (b *Built) SetNextBlock(blockOff int64, next uint64) error {
	off := blockOff + int64((format.BlockRecords-1)*format.RecordSize)
	rec, err := b.Record(off)
	if err != nil {
		return err
	}
	rec.NextBlock = next
	return b.PutRecord(off, rec)
}
