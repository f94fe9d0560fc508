// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package format

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	HeaderSize = 256

	// RootOffset is where the root directory's first block lives.
	RootOffset = HeaderSize

	// Signature identifies a PK2 container.  The on-disk field is
	// signatureLen bytes, zero padded.
	Signature = "JoyMax File Manager!\n"

	// Version is the only format version written by the game tools.
	Version = 0x01000002

	signatureLen = 30
	versionOff   = signatureLen
	encryptedOff = versionOff + 4
	checkOff     = encryptedOff + 1
	checkLen     = 16
)

// Header is the fixed-size block at the start of every archive.
type Header struct {
	Version   uint32
	Encrypted bool
	Check     [checkLen]byte
}

// NewHeader returns the header the game tools write for an encrypted archive.
func NewHeader() Header {
	return Header{
		Version:   Version,
		Encrypted: true,
	}
}

var paddedSignature = func() (sig [signatureLen]byte) {
	copy(sig[:], Signature)
	return sig
}()

// UnmarshalBytes decodes the header at the start of b.  The whole signature
// field, padding included, must match.
func (h *Header) UnmarshalBytes(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("header too short: %d < %d: %w", len(b), HeaderSize, ErrTruncated)
	}
	b = b[:HeaderSize]

	sig := b[:signatureLen]
	if !bytes.Equal(sig, paddedSignature[:]) {
		return fmt.Errorf("signature %q: %w", bytes.TrimRight(sig, "\x00"), ErrBadMagic)
	}

	h.Version = binary.LittleEndian.Uint32(b[versionOff : versionOff+4])
	h.Encrypted = b[encryptedOff] != 0
	copy(h.Check[:], b[checkOff:checkOff+checkLen])
	return nil
}

// MarshalTo encodes h into the first HeaderSize bytes of b.
func (h *Header) MarshalTo(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("buffer too short for header: %d < %d", len(b), HeaderSize)
	}
	b = b[:HeaderSize]
	clear(b)

	copy(b[:signatureLen], paddedSignature[:])
	binary.LittleEndian.PutUint32(b[versionOff:versionOff+4], h.Version)
	if h.Encrypted {
		b[encryptedOff] = 1
	}
	copy(b[checkOff:checkOff+checkLen], h.Check[:])
	return nil
}

// WriteTo writes the encoded header to w.
func (h *Header) WriteTo(w io.Writer) (n int64, err error) {
	var buf [HeaderSize]byte
	if err := h.MarshalTo(buf[:]); err != nil {
		return 0, err
	}
	written, err := w.Write(buf[:])
	if err != nil {
		return int64(written), fmt.Errorf("write: %w", err)
	}
	return int64(written), nil
}
