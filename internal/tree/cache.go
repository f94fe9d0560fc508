// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package tree

import (
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/MahmoudFarouq/pk2/internal/format"
	"github.com/MahmoudFarouq/pk2/internal/index"
)

// cachedDir is immutable once stored.
type cachedDir struct {
	entries []format.Record
	index   *index.Table
}

type dirCache struct {
	mu    sync.RWMutex
	dirs  map[uint64]*cachedDir
	group singleflight.Group
}

func newDirCache() *dirCache {
	return &dirCache{
		dirs: make(map[uint64]*cachedDir),
	}
}

func (c *dirCache) get(pos uint64) (*cachedDir, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cd, ok := c.dirs[pos]
	return cd, ok
}

func (c *dirCache) put(pos uint64, cd *cachedDir) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirs[pos] = cd
}

// Len returns the number of cached directories.
func (c *dirCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.dirs)
}

// cached returns the children of dir, listing it on first use.  Concurrent
// misses on the same directory share one listing; no lock is held while it
// runs.
func (t *Tree) cached(dir format.Record) (*cachedDir, error) {
	if cd, ok := t.cache.get(dir.Position); ok {
		t.logger.Debug("directory cache hit", "dir", dir.Name, "position", dir.Position)
		return cd, nil
	}

	v, err, _ := t.cache.group.Do(strconv.FormatUint(dir.Position, 10), func() (any, error) {
		if cd, ok := t.cache.get(dir.Position); ok {
			return cd, nil
		}
		t.logger.Debug("directory cache miss", "dir", dir.Name, "position", dir.Position)

		var entries []format.Record
		var scanErr error
		t.scan(dir, func(rec format.Record, err error) bool {
			if err != nil {
				scanErr = err
				return false
			}
			entries = append(entries, rec)
			return true
		})
		if scanErr != nil {
			return nil, scanErr
		}

		names := make([]string, len(entries))
		for i := range entries {
			names[i] = entries[i].Name
		}
		cd := &cachedDir{
			entries: entries,
			index:   index.Build(names),
		}
		t.cache.put(dir.Position, cd)
		return cd, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cachedDir), nil
}

// CachedDirs returns the number of directories held in the cache.
func (t *Tree) CachedDirs() int {
	if t.cache == nil {
		return 0
	}
	return t.cache.Len()
}
