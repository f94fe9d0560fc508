// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package blockstore reads directory blocks, and raw file contents, out of
// a PK2 container.
package blockstore

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/MahmoudFarouq/pk2/internal/format"
)

var (
	// ErrOutOfBounds is returned when a read would run past the end of the
	// container.
	ErrOutOfBounds = errors.New("pk2: read out of bounds")

	// ErrIO matches every IOError.
	ErrIO = errors.New("pk2: i/o error")
)

// IOError wraps a failure of the underlying container.  They are never
// retried: the container is a static local resource.
type IOError struct {
	Offset int64
	Len    int
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("ReadAt(%d, len: %d): %v", e.Offset, e.Len, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrIO) true for every IOError.
func (e *IOError) Is(target error) bool { return target == ErrIO }

// Block is the decoded contents of one directory block.
type Block struct {
	Offset  int64
	Records [format.BlockRecords]format.Record
}

// Next returns the continuation block linked from the last record, if any.
func (b *Block) Next() (int64, bool) {
	next := b.Records[format.BlockRecords-1].NextBlock
	if next == 0 {
		return 0, false
	}
	// ReadBlock rejects this as out of bounds
	if next > math.MaxInt64 {
		return math.MaxInt64, true
	}
	return int64(next), true
}

// Store reads blocks through a positioned reader, so any number of
// goroutines may share one Store.
type Store struct {
	r     io.ReaderAt
	size  int64
	codec *format.Codec
	bufs  sync.Pool
}

// New returns a Store over a container of the given size.
func New(r io.ReaderAt, size int64, codec *format.Codec) *Store {
	s := &Store{
		r:     r,
		size:  size,
		codec: codec,
	}
	s.bufs.New = func() any {
		return new([format.BlockSize]byte)
	}
	return s
}

// Size returns the container size.
func (s *Store) Size() int64 {
	return s.size
}

// Codec returns the codec records are decoded with.
func (s *Store) Codec() *format.Codec {
	return s.codec
}

// CheckRange reports an error when [off, off+n) doesn't lie inside the container.
func (s *Store) CheckRange(off int64, n int64) error {
	if off < 0 || n < 0 || off > s.size || n > s.size-off {
		return fmt.Errorf("off %d + len %d beyond bounds (%d): %w", off, n, s.size, ErrOutOfBounds)
	}
	return nil
}

// ReadAt fills p from the container at off, failing rather than
// returning a short read.
func (s *Store) ReadAt(p []byte, off int64) error {
	if err := s.CheckRange(off, int64(len(p))); err != nil {
		return err
	}
	n, err := s.r.ReadAt(p, off)
	// io.ReaderAt may report EOF alongside a complete read at the end
	if n == len(p) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return &IOError{Offset: off, Len: len(p), Err: err}
}

// Section returns a reader over [off, off+n) of the container.  Read
// failures surface as *IOError.
func (s *Store) Section(off int64, n int64) (*io.SectionReader, error) {
	if err := s.CheckRange(off, n); err != nil {
		return nil, err
	}
	return io.NewSectionReader(sectionReaderAt{s.r}, off, n), nil
}

type sectionReaderAt struct {
	r io.ReaderAt
}

func (r sectionReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n, err := r.r.ReadAt(p, off)
	if err != nil && err != io.EOF {
		err = &IOError{Offset: off, Len: len(p), Err: err}
	}
	return n, err
}

// ReadBlock reads and decodes the block at off.  A single malformed record
// fails the whole block.
func (s *Store) ReadBlock(off int64) (*Block, error) {
	buf := s.bufs.Get().(*[format.BlockSize]byte)
	defer func() {
		clear(buf[:])
		s.bufs.Put(buf)
	}()

	if err := s.ReadAt(buf[:], off); err != nil {
		return nil, fmt.Errorf("block at %d: %w", off, err)
	}

	b := &Block{Offset: off}
	for i := range b.Records {
		recOff := off + int64(i*format.RecordSize)
		r, err := s.codec.Decode(buf[i*format.RecordSize:(i+1)*format.RecordSize], recOff)
		if err != nil {
			return nil, fmt.Errorf("block at %d: %w", off, err)
		}
		b.Records[i] = r
	}
	return b, nil
}

// ReadRecord reads and decodes a single record at off.
func (s *Store) ReadRecord(off int64) (format.Record, error) {
	var buf [format.RecordSize]byte
	if err := s.ReadAt(buf[:], off); err != nil {
		return format.Record{}, fmt.Errorf("record at %d: %w", off, err)
	}
	return s.codec.Decode(buf[:], off)
}
