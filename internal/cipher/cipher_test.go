// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cipher

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKey(t *testing.T) {
	require.Equal(t, []byte{0x32, 0xCE, 0xDD, 0x7C, 0xBC, 0xA8}, DefaultKey())

	// longer keys are cut to the mask length
	long := DeriveKey(bytes.Repeat([]byte{0xff}, 16))
	require.Len(t, long, len(keyMask))
}

func TestCipher_RoundTrip(t *testing.T) {
	c := Default()
	for _, size := range []int{0, 3, 8, 81, 128, 2560} {
		plain := make([]byte, size)
		for i := range plain {
			plain[i] = byte(i * 7)
		}

		enc := make([]byte, size)
		c.Encrypt(enc, plain)
		if size >= BlockSize {
			assert.NotEqual(t, plain, enc)
		}

		dec := make([]byte, size)
		c.Decrypt(dec, enc)
		require.Equal(t, plain, dec)
	}
}

func TestCipher_Deterministic(t *testing.T) {
	c := Default()
	src := []byte("server_dep/silkroad/textdata\x00\x00\x00\x00")

	first := make([]byte, len(src))
	second := make([]byte, len(src))
	c.Decrypt(first, src)
	c.Decrypt(second, src)
	require.Equal(t, first, second)

	// a fresh cipher with the same key agrees with the shared one
	other, err := New(DefaultKey())
	require.NoError(t, err)
	third := make([]byte, len(src))
	other.Decrypt(third, src)
	require.Equal(t, first, third)
}

func TestCipher_InPlace(t *testing.T) {
	c := Default()
	buf := []byte("0123456789abcdef")
	orig := append([]byte(nil), buf...)

	c.Encrypt(buf, buf)
	require.NotEqual(t, orig, buf)
	c.Decrypt(buf, buf)
	require.Equal(t, orig, buf)
}

func TestCipher_TrailingBytesUntouched(t *testing.T) {
	c := Default()
	src := []byte("12345678xyz")
	dst := make([]byte, len(src))
	c.Encrypt(dst, src)
	require.Equal(t, []byte("xyz"), dst[8:])
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestCipher_KnownAnswers(t *testing.T) {
	// Schneier's key FEDCBA9876543210 vector with both halves loaded
	// little-endian (big-endian answer: 0ACEAB0FC6A0A28D)
	c, err := New(mustHex(t, "fedcba9876543210"))
	require.NoError(t, err)
	got := make([]byte, BlockSize)
	c.Encrypt(got, mustHex(t, "0123456789abcdef"))
	require.Equal(t, mustHex(t, "0d474ade6a100014"), got)

	// all-zero blocks read the same either way
	zero, err := New(make([]byte, 8))
	require.NoError(t, err)
	zero.Encrypt(got, make([]byte, BlockSize))
	require.Equal(t, mustHex(t, "4597f94e78dd9861"), got)

	// "Joymax Pak File\x00" under the game's default key
	enc := make([]byte, len(checkPlaintext))
	Default().Encrypt(enc, checkPlaintext[:])
	require.Equal(t, mustHex(t, "d8da30cf32e671fcf85815389c473af7"), enc)

	dec := make([]byte, len(enc))
	Default().Decrypt(dec, enc)
	require.Equal(t, checkPlaintext[:], dec)
}

func TestIdentity(t *testing.T) {
	src := []byte("plain")
	dst := make([]byte, len(src))
	Identity{}.Decrypt(dst, src)
	require.Equal(t, src, dst)
}

func TestCheckBytes(t *testing.T) {
	a := CheckBytes(Default())
	require.Equal(t, [CheckLen]byte{0xd8, 0xda, 0x30}, a)

	other, err := New(DeriveKey([]byte("000000")))
	require.NoError(t, err)
	require.NotEqual(t, a, CheckBytes(other))
}

func TestNew_BadKey(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}
