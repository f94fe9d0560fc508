// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package pk2 reads PK2 archives, the Blowfish-ciphered data packs used by
// Joymax's Silkroad Online client (Media.pk2, Data.pk2 and friends).
//
// An archive is a 256-byte header followed by a tree of directory blocks.
// Each block holds twenty 128-byte records; directories longer than that
// chain to continuation blocks.  File contents are stored uncompressed at
// the position their record names.
//
//	a, err := pk2.Open("Media.pk2")
//	if err != nil {
//		return err
//	}
//	defer a.Close()
//
//	entries, err := a.List("server_dep/silkroad/textdata")
//	...
//	_, data, err := a.Extract("type.txt")
//
// Paths are slash separated and matched ignoring ASCII case.  "", "/" and
// "." all name the root directory.  An Archive is read-only and safe for
// concurrent use.
package pk2
