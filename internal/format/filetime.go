// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package format

import "time"

// Filetime is a Windows FILETIME: 100ns intervals since 1601-01-01 UTC.
// Archives store them verbatim; we never interpret them on the read path.
type Filetime uint64

// seconds between 1601-01-01 and 1970-01-01
const filetimeEpochDelta = 11644473600

// Time converts ft to a time.Time.  A zero Filetime is the zero time.
func (ft Filetime) Time() time.Time {
	if ft == 0 {
		return time.Time{}
	}
	ticks := uint64(ft)
	secs := int64(ticks/1e7) - filetimeEpochDelta
	nsec := int64(ticks%1e7) * 100
	return time.Unix(secs, nsec).UTC()
}

// FiletimeFromTime is the inverse of Filetime.Time, truncating to 100ns.
func FiletimeFromTime(t time.Time) Filetime {
	if t.IsZero() {
		return 0
	}
	secs := t.Unix() + filetimeEpochDelta
	if secs < 0 {
		return 0
	}
	return Filetime(uint64(secs)*1e7 + uint64(t.Nanosecond()/100))
}
