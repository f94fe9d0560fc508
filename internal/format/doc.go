// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package format contains the on-disk structures of a PK2 archive and the
// codec that turns raw records into decoded entries.
//
// A PK2 archive generally looks like:
//
//	┌───────────────────┐  0
//	│ header (256 B)    │
//	├───────────────────┤  256
//	│ root block        │
//	│ 20 × 128 B        │
//	├───────────────────┤
//	│ file data,        │
//	│ directory blocks, │
//	│ continuation      │
//	│ blocks, in any    │
//	│ order             │
//	└───────────────────┘
//
// Each record is 128 bytes and, when the header's encrypted flag is set,
// enciphered as a whole with the archive key:
//
//	 0    1                        82        90        98
//	+----+------------------------+---------+---------+---------+
//	|kind| name (81, NUL padded)  | created | accessed| modified|
//	+----+------------------------+---------+---------+---------+
//	106        114     118             126   128
//	+----------+-------+---------------+-----+
//	| position | size  | next block    | pad |
//	+----------+-------+---------------+-----+
//
// All integers are little-endian.  For a directory, position is the offset
// of its first block; for a file, the offset of its contents.  Next block is
// only meaningful in the last record of a block and links to a continuation
// block holding more children of the same directory.
package format
