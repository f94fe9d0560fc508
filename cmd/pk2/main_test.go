// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"

	"github.com/MahmoudFarouq/pk2"
	"github.com/MahmoudFarouq/pk2/internal/pk2test"
)

func writeArchive(t *testing.T, opts ...pk2test.BuilderOption) string {
	t.Helper()
	b := pk2test.NewBuilder(opts...)
	require.NoError(t, b.File("readme.txt", []byte("hello")))
	require.NoError(t, b.File("textdata/type.txt", []byte("sword\tshield\n")))
	require.NoError(t, b.Dir("textdata/empty"))
	path := filepath.Join(t.TempDir(), "Media.pk2")
	require.NoError(t, b.WriteFile(path))
	return path
}

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun_Ls(t *testing.T) {
	archive := writeArchive(t)

	out, _, err := runCmd(t, archive, "ls")
	require.NoError(t, err)
	assert.Equal(t, "readme.txt\ntextdata/\n", out)

	out, _, err = runCmd(t, "-mmap=false", archive, "ls", "TEXTDATA")
	require.NoError(t, err)
	assert.Equal(t, "type.txt\nempty/\n", out)

	out, _, err = runCmd(t, archive, "ls", "-l", "textdata")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[0]), "- 13 2008-02-21 00:00:00"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "empty"), lines[1])
}

func TestRun_CatStatSum(t *testing.T) {
	archive := writeArchive(t)

	out, _, err := runCmd(t, archive, "cat", "textdata/type.txt")
	require.NoError(t, err)
	assert.Equal(t, "sword\tshield\n", out)

	out, _, err = runCmd(t, archive, "stat", "readme.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "Kind:      file\n")
	assert.Contains(t, out, "Size:      5\n")

	out, _, err = runCmd(t, archive, "sum", "readme.txt")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%s  readme.txt\n", digest.FromString("hello")), out)

	out, _, err = runCmd(t, archive, "sum")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%s  readme.txt\n%s  textdata/type.txt\n",
		digest.FromString("hello"), digest.FromString("sword\tshield\n")), out)
}

func TestRun_Info(t *testing.T) {
	out, _, err := runCmd(t, writeArchive(t), "info")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:   0x01000002\n")
	assert.Contains(t, out, "Encrypted: true\n")
	assert.Contains(t, out, "Root:      2 entries\n")
}

func TestRun_Extract(t *testing.T) {
	archive := writeArchive(t)
	dest := t.TempDir()

	out, _, err := runCmd(t, archive, "extract", "-o", dest, "-j", "2")
	require.NoError(t, err)
	assert.Equal(t, "extracted 2 files (18 bytes) into 2 directories, skipped 0 existing\n", out)

	data, err := os.ReadFile(filepath.Join(dest, "textdata", "type.txt"))
	require.NoError(t, err)
	assert.Equal(t, "sword\tshield\n", string(data))
	fi, err := os.Stat(filepath.Join(dest, "textdata", "empty"))
	require.NoError(t, err)
	assert.True(t, fi.IsDir())

	out, _, err = runCmd(t, archive, "extract", "-o", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "skipped 2 existing")
}

func TestRun_Options(t *testing.T) {
	archive := writeArchive(t, pk2test.WithEncoding(korean.EUCKR))
	_, _, err := runCmd(t, "-encoding", "euckr", "-check", archive, "ls")
	require.NoError(t, err)

	_, _, err = runCmd(t, "-encoding", "klingon", archive, "ls")
	require.Error(t, err)

	_, _, err = runCmd(t, "-key", "000000", "-check", archive, "ls")
	require.ErrorIs(t, err, pk2.ErrKeyMismatch)

	_, stderr, err := runCmd(t, "-v", archive, "ls")
	require.NoError(t, err)
	assert.Contains(t, stderr, "opened archive")
}

func TestRun_Errors(t *testing.T) {
	archive := writeArchive(t)

	for _, tc := range []struct {
		args []string
		code int
	}{
		{[]string{archive, "ls", "nope"}, exitNotFound},
		{[]string{archive, "cat", "textdata/nope.txt"}, exitNotFound},
		{[]string{archive, "ls", "readme.txt"}, exitWrongKind},
		{[]string{archive, "cat", "textdata"}, exitWrongKind},
		{[]string{archive, "stat"}, exitOther},
		{[]string{archive, "frobnicate"}, exitOther},
		{[]string{archive}, exitOther},
		{[]string{filepath.Join(t.TempDir(), "missing.pk2"), "ls"}, exitIO},
	} {
		_, _, err := runCmd(t, tc.args...)
		require.Error(t, err, "%v", tc.args)
		assert.Equal(t, tc.code, exitCode(err), "%v: %v", tc.args, err)
	}

	bad := filepath.Join(t.TempDir(), "bad.pk2")
	require.NoError(t, os.WriteFile(bad, bytes.Repeat([]byte{'x'}, 4096), 0o644))
	_, _, err := runCmd(t, bad, "ls")
	require.ErrorIs(t, err, pk2.ErrBadMagic)
	assert.Equal(t, exitCorrupt, exitCode(err))
}

func TestExitCode(t *testing.T) {
	for _, tc := range []struct {
		err  error
		code int
	}{
		{nil, exitOK},
		{errors.New("usage"), exitOther},
		{pk2.ErrTruncated, exitCorrupt},
		{pk2.ErrMalformedRecord, exitCorrupt},
		{pk2.ErrInvalidEncoding, exitCorrupt},
		{pk2.ErrOutOfBounds, exitCorrupt},
		{&pk2.IOError{Err: errors.New("eio")}, exitIO},
		{&pk2.PathError{Segment: "x", Err: pk2.ErrPathNotFound}, exitNotFound},
		{fmt.Errorf("x: %w", pk2.ErrNotAFile), exitWrongKind},
	} {
		assert.Equal(t, tc.code, exitCode(tc.err), "%v", tc.err)
	}
}
