// Copyright 2021 The pk2 Authors and Caleb Spare. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package index maps entry names to their position in a directory listing,
// ignoring ASCII case.
package index

import (
	"math/bits"
	"sort"

	"github.com/dgryski/go-farm"

	"github.com/MahmoudFarouq/pk2/internal/unsafestring"
)

// Table is an immutable hash table that provides constant-time lookups of
// name indices using a minimal perfect hash.  Names that differ only in ASCII
// case share a slot, and the first of them wins.
type Table struct {
	level0     []uint32 // power of 2 size
	level0Mask uint32   // len(Level0) - 1
	level1     []uint32 // power of 2 size >= len(keys)
	level1Mask uint32   // len(Level1) - 1
	n          int
}

// Build builds a Table from names using the "Hash, displace, and compress"
// algorithm described in http://cmph.sourceforge.net/papers/esa09.pdf.
func Build(names []string) *Table {
	var (
		keys    = make([]string, 0, len(names))
		indices = make([]int, 0, len(names))
		seen    = make(stringSet, len(names))
	)
	for i, name := range names {
		key := Fold(name)
		if seen.Contains(key) {
			continue
		}
		seen.Add(key)
		keys = append(keys, key)
		indices = append(indices, i)
	}

	var (
		level0        = make([]uint32, nextPow2(len(keys)/4))
		level0Mask    = uint32(len(level0) - 1)
		level1        = make([]uint32, nextPow2(len(keys)))
		level1Mask    = uint32(len(level1) - 1)
		sparseBuckets = make([][]int, len(level0))
	)

	for i, key := range keys {
		n := uint32(farm.Hash64WithSeed(unsafestring.ToBytes(key), 0)) & level0Mask
		sparseBuckets[n] = append(sparseBuckets[n], i)
	}
	var buckets []indexBucket
	for n, vals := range sparseBuckets {
		if len(vals) > 0 {
			buckets = append(buckets, indexBucket{n, vals})
		}
	}
	sort.Sort(bySize(buckets))

	occ := make([]bool, len(level1))
	var tmpOcc []uint32
	for _, bucket := range buckets {
		seed := uint64(1)
	trySeed:
		tmpOcc = tmpOcc[:0]
		for _, i := range bucket.vals {
			n := uint32(farm.Hash64WithSeed(unsafestring.ToBytes(keys[i]), seed)) & level1Mask
			if occ[n] {
				for _, n := range tmpOcc {
					occ[n] = false
				}
				seed++
				goto trySeed
			}
			occ[n] = true
			tmpOcc = append(tmpOcc, n)
			level1[n] = uint32(indices[i])
		}
		level0[bucket.n] = uint32(seed)
	}

	return &Table{
		level0:     level0,
		level0Mask: level0Mask,
		level1:     level1,
		level1Mask: level1Mask,
		n:          len(keys),
	}
}

func nextPow2(n int) int {
	return 1 << (32 - bits.LeadingZeros32(uint32(n)))
}

// Len returns the number of distinct names in t.
func (t *Table) Len() int {
	return t.n
}

// MaybeLookup returns the potential index of name.  Names that were never
// added map to an arbitrary index, so callers must compare against the name
// actually stored there; see Lookup.
func (t *Table) MaybeLookup(name string) (int, bool) {
	if t.n == 0 {
		return 0, false
	}
	var buf [128]byte
	key := foldKey(buf[:0], name)
	i0 := uint32(farm.Hash64WithSeed(key, 0)) & t.level0Mask
	seed := uint64(t.level0[i0])
	i1 := uint32(farm.Hash64WithSeed(key, seed)) & t.level1Mask
	return int(t.level1[i1]), true
}

// Lookup returns the index of name, using nameAt to confirm the candidate.
func (t *Table) Lookup(name string, nameAt func(int) string) (int, bool) {
	i, ok := t.MaybeLookup(name)
	if !ok || !EqualFold(nameAt(i), name) {
		return 0, false
	}
	return i, true
}

type stringSet map[string]struct{}

func (set stringSet) Contains(s string) bool {
	_, ok := set[s]
	return ok
}

func (set stringSet) Add(s string) {
	set[s] = struct{}{}
}

type indexBucket struct {
	n    int
	vals []int
}

type bySize []indexBucket

func (s bySize) Len() int           { return len(s) }
func (s bySize) Less(i, j int) bool { return len(s[i].vals) > len(s[j].vals) }
func (s bySize) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
