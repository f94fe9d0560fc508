// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MahmoudFarouq/pk2"
)

func TestGenerate(t *testing.T) {
	for _, plain := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "sample.pk2")
		require.NoError(t, generate(path, 300, 7, plain, 42))

		a, err := pk2.Open(path, pk2.WithKeyCheck(true))
		require.NoError(t, err)
		require.Equal(t, !plain, a.Header().Encrypted)

		files := 0
		require.NoError(t, a.Walk("", func(p string, e pk2.Entry) error {
			if !e.IsFile() || p == "readme.txt" {
				return nil
			}
			files++
			_, data, err := a.Extract(p)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(string(data), prefix), p)
			return nil
		}))
		require.Equal(t, 300, files)
		require.NoError(t, a.Close())
	}
}
