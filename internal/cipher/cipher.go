// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package cipher implements the record cipher used by PK2 archives.
//
// Records are enciphered with Blowfish in ECB mode over 8-byte blocks.  The
// format was written by little-endian x86 code, so each 32-bit half of a
// block is loaded little-endian, while golang.org/x/crypto/blowfish loads
// them big-endian; we swap around every block operation.
package cipher

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/blowfish"
)

// BlockSize is the size of a cipher block.  Bytes past the last whole block
// of a buffer are passed through untouched.
const BlockSize = blowfish.BlockSize

var (
	// BaseKey is the archive-wide key shipped with the game client.
	BaseKey = []byte("169841")

	keyMask = [...]byte{0x03, 0xF8, 0xE4, 0x44, 0x88, 0x99, 0x3F, 0x64, 0xFE, 0x35}
)

// DeriveKey turns a base key into the Blowfish key actually used on disk.
// Keys longer than the mask are truncated to it.
func DeriveKey(base []byte) []byte {
	n := len(base)
	if n > len(keyMask) {
		n = len(keyMask)
	}
	key := make([]byte, n)
	for i := 0; i < n; i++ {
		key[i] = base[i] ^ keyMask[i]
	}
	return key
}

// DefaultKey returns the derived form of BaseKey: 32 CE DD 7C BC A8.
func DefaultKey() []byte {
	return DeriveKey(BaseKey)
}

// Block transforms archive records.  Implementations are stateless and safe
// for concurrent use; dst and src may overlap exactly.
type Block interface {
	Encrypt(dst, src []byte)
	Decrypt(dst, src []byte)
}

// Cipher is a Blowfish keystream with the format's word order.
type Cipher struct {
	b *blowfish.Cipher
}

var _ Block = (*Cipher)(nil)

// New returns a Cipher for an already-derived key.
func New(key []byte) (*Cipher, error) {
	b, err := blowfish.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("blowfish.NewCipher: %w", err)
	}
	return &Cipher{b: b}, nil
}

var (
	defaultOnce   sync.Once
	defaultCipher *Cipher
)

// Default returns the shared cipher for DefaultKey.
func Default() *Cipher {
	defaultOnce.Do(func() {
		c, err := New(DefaultKey())
		if err != nil {
			// a 6-byte key is always accepted by blowfish
			panic(err)
		}
		defaultCipher = c
	})
	return defaultCipher
}

// swapWords reverses the byte order of both 32-bit halves of a block.
func swapWords(dst, src []byte) {
	_ = src[BlockSize-1]
	_ = dst[BlockSize-1]
	dst[0], dst[1], dst[2], dst[3] = src[3], src[2], src[1], src[0]
	dst[4], dst[5], dst[6], dst[7] = src[7], src[6], src[5], src[4]
}

func (c *Cipher) crypt(dst, src []byte, fn func(dst, src []byte)) {
	if len(dst) < len(src) {
		panic("pk2/cipher: output smaller than input")
	}
	var blk [BlockSize]byte
	whole := len(src) - len(src)%BlockSize
	for i := 0; i < whole; i += BlockSize {
		swapWords(blk[:], src[i:i+BlockSize])
		fn(blk[:], blk[:])
		swapWords(dst[i:i+BlockSize], blk[:])
	}
	copy(dst[whole:len(src)], src[whole:])
}

// Encrypt enciphers src into dst.
func (c *Cipher) Encrypt(dst, src []byte) {
	c.crypt(dst, src, c.b.Encrypt)
}

// Decrypt deciphers src into dst.
func (c *Cipher) Decrypt(dst, src []byte) {
	c.crypt(dst, src, c.b.Decrypt)
}

// Identity is used for archives whose header marks records as plaintext.
type Identity struct{}

var _ Block = Identity{}

func (Identity) Encrypt(dst, src []byte) { copy(dst, src) }
func (Identity) Decrypt(dst, src []byte) { copy(dst, src) }

// checkPlaintext is enciphered to produce the header's key check bytes.
var checkPlaintext = [16]byte{'J', 'o', 'y', 'm', 'a', 'x', ' ', 'P', 'a', 'k', ' ', 'F', 'i', 'l', 'e', 0}

// CheckLen is the number of significant key check bytes in a header.
const CheckLen = 3

// CheckBytes returns the key check bytes a header written with b carries.
func CheckBytes(b Block) [CheckLen]byte {
	var out [len(checkPlaintext)]byte
	b.Encrypt(out[:], checkPlaintext[:])
	var check [CheckLen]byte
	copy(check[:], out[:CheckLen])
	return check
}
