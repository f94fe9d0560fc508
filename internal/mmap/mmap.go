// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package mmap provides a read-only, memory-mapped view of a file.
package mmap

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

var errClosed = errors.New("mmap: closed")

// ReaderAt reads a memory-mapped file.  It is safe for concurrent use,
// including Close: reads in flight finish before the mapping is released,
// and later reads fail.
type ReaderAt struct {
	mu     sync.RWMutex
	data   []byte
	size   int
	unmap  func([]byte) error
	closed bool
}

func newReaderAt(data []byte, unmap func([]byte) error) *ReaderAt {
	return &ReaderAt{
		data:  data,
		size:  len(data),
		unmap: unmap,
	}
}

// Len returns the length of the underlying file.
func (r *ReaderAt) Len() int {
	return r.size
}

// ReadAt implements io.ReaderAt.
func (r *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return 0, errClosed
	}
	if off < 0 || int64(len(r.data)) < off {
		return 0, fmt.Errorf("mmap: invalid ReadAt offset %d", off)
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close releases the mapping.  Calling Close more than once is a no-op.
func (r *ReaderAt) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	data := r.data
	r.data = nil
	if r.unmap == nil || data == nil {
		return nil
	}
	return r.unmap(data)
}
