// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package index

import (
	"github.com/MahmoudFarouq/pk2/internal/unsafestring"
)

func lower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

// EqualFold reports whether a and b are equal ignoring ASCII case.  Bytes
// outside A-Z, including every byte of a multi-byte character, must match
// exactly.
func EqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if lower(a[i]) != lower(b[i]) {
			return false
		}
	}
	return true
}

// Fold returns s with ASCII letters lowered.
func Fold(s string) string {
	if !hasUpper(s) {
		return s
	}
	return string(appendFold(make([]byte, 0, len(s)), s))
}

func hasUpper(s string) bool {
	for i := 0; i < len(s); i++ {
		if 'A' <= s[i] && s[i] <= 'Z' {
			return true
		}
	}
	return false
}

func appendFold(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		dst = append(dst, lower(s[i]))
	}
	return dst
}

// foldKey returns the folded bytes of s, aliasing s when it is already
// lower case.  The result must not be written to.
func foldKey(buf []byte, s string) []byte {
	if !hasUpper(s) {
		return unsafestring.ToBytes(s)
	}
	return appendFold(buf, s)
}
