// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package format

import (
	"errors"
	"fmt"
)

var (
	// ErrBadMagic is returned when the header signature does not match.
	ErrBadMagic = errors.New("pk2: bad magic")

	// ErrTruncated is returned when the container is too small to hold
	// the header and root block.
	ErrTruncated = errors.New("pk2: truncated container")

	// ErrMalformedRecord is returned for records that can't be decoded,
	// and for directory chains that never terminate.
	ErrMalformedRecord = errors.New("pk2: malformed record")

	// ErrInvalidEncoding is returned when a record name is not valid text.
	ErrInvalidEncoding = errors.New("pk2: invalid name encoding")
)

// RecordError records the container offset of a record that failed to decode.
type RecordError struct {
	Offset int64
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record at offset %d: %v", e.Offset, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
