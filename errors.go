// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package pk2

import (
	"errors"

	"github.com/MahmoudFarouq/pk2/internal/blockstore"
	"github.com/MahmoudFarouq/pk2/internal/format"
	"github.com/MahmoudFarouq/pk2/internal/tree"
)

// Errors returned while opening an archive.
var (
	ErrBadMagic  = format.ErrBadMagic
	ErrTruncated = format.ErrTruncated

	// ErrKeyMismatch is returned by archives opened WithKeyCheck when the
	// header's check bytes were written under a different key.
	ErrKeyMismatch = errors.New("pk2: key does not match archive")
)

// Errors returned while resolving paths.
var (
	ErrPathNotFound  = tree.ErrPathNotFound
	ErrNotADirectory = tree.ErrNotADirectory
	ErrNotAFile      = errors.New("pk2: not a file")
)

// Errors returned for damaged archives.
var (
	ErrMalformedRecord = format.ErrMalformedRecord
	ErrInvalidEncoding = format.ErrInvalidEncoding
	ErrOutOfBounds     = blockstore.ErrOutOfBounds
)

// ErrIO matches every failure of the underlying container.
var ErrIO = blockstore.ErrIO

type (
	// PathError names the path segment that failed to resolve.
	PathError = tree.PathError

	// RecordError carries the offset of a record that failed to decode.
	RecordError = format.RecordError

	// IOError carries the offset and length of a failed container read.
	IOError = blockstore.IOError
)

// SkipDir may be returned from a WalkFunc; see Archive.Walk.
var SkipDir = tree.SkipDir
