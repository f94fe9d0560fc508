// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package pk2

import (
	"github.com/MahmoudFarouq/pk2/internal/format"
)

type (
	// Entry is a decoded directory record: a file or a directory.
	Entry = format.Record

	// Kind is the type of an Entry.
	Kind = format.Kind

	// Filetime is a Windows FILETIME as stored in the archive.
	Filetime = format.Filetime

	// Header is the decoded archive header.
	Header = format.Header
)

const (
	KindEmpty     = format.KindEmpty
	KindDirectory = format.KindDirectory
	KindFile      = format.KindFile
)
