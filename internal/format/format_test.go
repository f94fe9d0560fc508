// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package format

import (
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"

	"github.com/MahmoudFarouq/pk2/internal/cipher"
)

func TestHeader_RoundTrip(t *testing.T) {
	orig := NewHeader()
	orig.Check = [16]byte{1, 2, 3}

	// this should be an error
	err := orig.MarshalTo(nil)
	assert.Error(t, err)

	buf := make([]byte, HeaderSize)
	var h Header
	// missing signature
	err = h.UnmarshalBytes(buf)
	require.ErrorIs(t, err, ErrBadMagic)

	require.NoError(t, orig.MarshalTo(buf))
	require.Equal(t, []byte(Signature), buf[:len(Signature)])

	err = h.UnmarshalBytes(buf[:HeaderSize-1])
	require.ErrorIs(t, err, ErrTruncated)

	require.NoError(t, h.UnmarshalBytes(buf))
	assert.Equal(t, orig, h)
	assert.True(t, h.Encrypted)
	assert.Equal(t, uint32(Version), h.Version)
}

func TestHeader_BadMagic(t *testing.T) {
	buf := make([]byte, HeaderSize)
	h := NewHeader()
	require.NoError(t, h.MarshalTo(buf))
	buf[0] = 'j'

	var got Header
	err := got.UnmarshalBytes(buf)
	require.True(t, errors.Is(err, ErrBadMagic))

	// bytes after the signature belong to the field too
	buf[0] = 'J'
	require.NoError(t, got.UnmarshalBytes(buf))
	copy(buf[len(Signature):signatureLen], "GARBAGE!!")
	err = got.UnmarshalBytes(buf)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestRecord_RoundTrip(t *testing.T) {
	now := time.Date(2010, 4, 1, 12, 30, 0, 0, time.UTC)
	for _, c := range []*Codec{
		{},
		{Cipher: cipher.Default()},
	} {
		orig := Record{
			Kind:      KindFile,
			Name:      "siegefortressreward.txt",
			Created:   FiletimeFromTime(now),
			Accessed:  FiletimeFromTime(now.Add(time.Hour)),
			Modified:  FiletimeFromTime(now.Add(2 * time.Hour)),
			Position:  1 << 33,
			Size:      0xfffffff0,
			NextBlock: 2816,
			Offset:    384,
		}

		raw := make([]byte, RecordSize)
		require.NoError(t, c.Encode(&orig, raw))

		got, err := c.Decode(raw, 384)
		require.NoError(t, err)
		assert.Equal(t, orig, got)
		assert.Equal(t, now, got.Created.Time())
	}
}

// Records enciphered with the default key by an independent little-endian
// Blowfish.
var (
	rootSelfRecord = "b4c2b95309f00b015f0a39bea2f06a2f5f0a39bea2f06a2f5f0a39bea2f06a2f" +
		"5f0a39bea2f06a2f5f0a39bea2f06a2f5f0a39bea2f06a2f5f0a39bea2f06a2f" +
		"5f0a39bea2f06a2f5f0a39bea2f06a2f5f0a39bea2f06a2f5f0a39bea2f06a2f" +
		"5f0a39bea2f06a2fec3c2d4e716443775f0a39bea2f06a2f5f0a39bea2f06a2f"
	skillRecord = "a29e904dd84930a9fb3f1f9436d3131e22ac8453457dc94c5f0a39bea2f06a2f" +
		"5f0a39bea2f06a2f5f0a39bea2f06a2f5f0a39bea2f06a2f5f0a39bea2f06a2f" +
		"5f0a39bea2f06a2f5f0a39bea2f06a2f3d1bfe8b550477f515a5acb0f86d09e8" +
		"15a5acb0f86d09e8d1eea998e48f5c4a0bf507246e18babf5f0a39bea2f06a2f"
)

func TestRecord_KnownAnswers(t *testing.T) {
	c := &Codec{Cipher: cipher.Default()}

	raw, err := hex.DecodeString(rootSelfRecord)
	require.NoError(t, err)
	got, err := c.Decode(raw, RootOffset)
	require.NoError(t, err)
	assert.Equal(t, KindDirectory, got.Kind)
	assert.Equal(t, ".", got.Name)
	assert.Equal(t, uint64(RootOffset), got.Position)
	assert.Zero(t, got.Size)
	assert.Zero(t, got.NextBlock)

	raw, err = hex.DecodeString(skillRecord)
	require.NoError(t, err)
	got, err = c.Decode(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, KindFile, got.Kind)
	assert.Equal(t, "skillcountry.txt", got.Name)
	assert.Equal(t, uint64(0x1d4c0), got.Position)
	assert.Equal(t, uint32(4321), got.Size)
	want := time.Date(2008, 2, 20, 16, 53, 20, 0, time.UTC)
	assert.Equal(t, want, got.Created.Time())
	assert.Equal(t, want, got.Modified.Time())

	// and the encoder reproduces the bytes
	enc := make([]byte, RecordSize)
	require.NoError(t, c.Encode(&got, enc))
	assert.Equal(t, raw, enc)
}

func TestRecord_EncryptedOnDisk(t *testing.T) {
	c := &Codec{Cipher: cipher.Default()}
	r := Record{Kind: KindDirectory, Name: "textdata"}
	raw := make([]byte, RecordSize)
	require.NoError(t, c.Encode(&r, raw))
	assert.NotContains(t, string(raw), "textdata")

	// decoding without the key gives garbage, not the name
	plain := &Codec{}
	got, err := plain.Decode(raw, 0)
	if err == nil {
		assert.NotEqual(t, "textdata", got.Name)
	}
}

func TestRecord_Malformed(t *testing.T) {
	c := &Codec{}

	_, err := c.Decode(make([]byte, RecordSize-1), 10)
	require.ErrorIs(t, err, ErrMalformedRecord)
	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, int64(10), recErr.Offset)

	raw := make([]byte, RecordSize)
	raw[0] = 3
	_, err = c.Decode(raw, 0)
	require.ErrorIs(t, err, ErrMalformedRecord)

	require.Error(t, c.Encode(&Record{Kind: 7}, raw))
}

func TestRecord_NameTrimmedAtNul(t *testing.T) {
	c := &Codec{}
	raw := make([]byte, RecordSize)
	raw[0] = byte(KindFile)
	copy(raw[nameOff:], "item.txt\x00garbage")

	got, err := c.Decode(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, "item.txt", got.Name)
}

func TestRecord_FullWidthName(t *testing.T) {
	c := &Codec{}
	name := make([]byte, NameSize)
	for i := range name {
		name[i] = 'a'
	}
	r := Record{Kind: KindFile, Name: string(name)}
	raw := make([]byte, RecordSize)
	require.NoError(t, c.Encode(&r, raw))

	got, err := c.Decode(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, string(name), got.Name)

	r.Name += "a"
	require.Error(t, c.Encode(&r, raw))
}

func TestRecord_InvalidEncoding(t *testing.T) {
	c := &Codec{}
	raw := make([]byte, RecordSize)
	raw[0] = byte(KindFile)
	copy(raw[nameOff:], []byte{0xff, 0xfe, 'a'})

	_, err := c.Decode(raw, 0)
	require.ErrorIs(t, err, ErrInvalidEncoding)

	// empty slots don't have their name decoded
	raw[0] = byte(KindEmpty)
	got, err := c.Decode(raw, 0)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestRecord_LegacyEncodings(t *testing.T) {
	ko := &Codec{Cipher: cipher.Default(), Encoding: korean.EUCKR}
	r := Record{Kind: KindDirectory, Name: "아이템"}
	raw := make([]byte, RecordSize)
	require.NoError(t, ko.Encode(&r, raw))

	got, err := ko.Decode(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, "아이템", got.Name)

	// the same bytes are not valid UTF-8
	utf := &Codec{Cipher: cipher.Default()}
	_, err = utf.Decode(raw, 0)
	require.ErrorIs(t, err, ErrInvalidEncoding)

	latin := &Codec{Encoding: charmap.Windows1252}
	plain := make([]byte, RecordSize)
	plain[0] = byte(KindFile)
	copy(plain[nameOff:], []byte{'c', 'a', 'f', 0xe9})
	got, err = latin.Decode(plain, 0)
	require.NoError(t, err)
	assert.Equal(t, "café", got.Name)

	// 0xff never starts a Korean character
	bad := &Codec{Encoding: korean.EUCKR}
	plain[nameOff] = 0xff
	_, err = bad.Decode(plain, 0)
	require.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestRecord_EmptySlotKeepsNextBlock(t *testing.T) {
	c := &Codec{Cipher: cipher.Default()}
	r := Record{Kind: KindEmpty, NextBlock: 9000}
	raw := make([]byte, RecordSize)
	require.NoError(t, c.Encode(&r, raw))

	got, err := c.Decode(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(9000), got.NextBlock)
	assert.Empty(t, got.Name)
}

func TestFiletime(t *testing.T) {
	require.True(t, Filetime(0).Time().IsZero())
	require.Equal(t, Filetime(0), FiletimeFromTime(time.Time{}))

	// 1970-01-01 in FILETIME ticks
	require.Equal(t, time.Unix(0, 0).UTC(), Filetime(116444736000000000).Time())

	ts := time.Date(2008, 2, 21, 3, 4, 5, 600, time.UTC)
	require.Equal(t, ts, FiletimeFromTime(ts).Time())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "empty", KindEmpty.String())
	assert.Equal(t, "directory", KindDirectory.String())
	assert.Equal(t, "file", KindFile.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
