// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package format

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"

	"github.com/MahmoudFarouq/pk2/internal/cipher"
)

const (
	RecordSize   = 128
	NameSize     = 81
	BlockRecords = 20
	BlockSize    = RecordSize * BlockRecords

	kindOff      = 0
	nameOff      = 1
	createdOff   = nameOff + NameSize
	accessedOff  = createdOff + 8
	modifiedOff  = accessedOff + 8
	positionOff  = modifiedOff + 8
	sizeOff      = positionOff + 8
	nextBlockOff = sizeOff + 4
)

// Kind says what a record describes.
type Kind uint8

const (
	KindEmpty     Kind = 0
	KindDirectory Kind = 1
	KindFile      Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Record is one decoded 128-byte entry.
type Record struct {
	Kind     Kind
	Name     string
	Created  Filetime
	Accessed Filetime
	Modified Filetime
	// Position is the first block of a directory, or the contents of a file.
	Position uint64
	Size     uint32
	// NextBlock links to a continuation block; only read from a block's
	// last record.
	NextBlock uint64

	// Offset is where the record was read from.  It isn't stored on disk.
	Offset int64
}

// IsDir reports whether r is a directory.
func (r *Record) IsDir() bool { return r.Kind == KindDirectory }

// IsFile reports whether r is a file.
func (r *Record) IsFile() bool { return r.Kind == KindFile }

// IsEmpty reports whether r is an unused slot.
func (r *Record) IsEmpty() bool { return r.Kind == KindEmpty }

// Codec deciphers and decodes records.  The zero Codec reads plaintext
// records with UTF-8 names.
type Codec struct {
	Cipher cipher.Block
	// Encoding of names; nil means UTF-8.
	Encoding encoding.Encoding
}

func (c *Codec) block() cipher.Block {
	if c.Cipher == nil {
		return cipher.Identity{}
	}
	return c.Cipher
}

// Decode deciphers and decodes the record at the start of raw, which was
// read from container offset off.  raw is not modified.
func (c *Codec) Decode(raw []byte, off int64) (Record, error) {
	if len(raw) < RecordSize {
		return Record{}, &RecordError{Offset: off, Err: fmt.Errorf("short record of %d bytes: %w", len(raw), ErrMalformedRecord)}
	}

	var buf [RecordSize]byte
	c.block().Decrypt(buf[:], raw[:RecordSize])

	kind := Kind(buf[kindOff])
	if kind > KindFile {
		return Record{}, &RecordError{Offset: off, Err: fmt.Errorf("unknown %v: %w", kind, ErrMalformedRecord)}
	}

	r := Record{
		Kind:      kind,
		Created:   Filetime(binary.LittleEndian.Uint64(buf[createdOff : createdOff+8])),
		Accessed:  Filetime(binary.LittleEndian.Uint64(buf[accessedOff : accessedOff+8])),
		Modified:  Filetime(binary.LittleEndian.Uint64(buf[modifiedOff : modifiedOff+8])),
		Position:  binary.LittleEndian.Uint64(buf[positionOff : positionOff+8]),
		Size:      binary.LittleEndian.Uint32(buf[sizeOff : sizeOff+4]),
		NextBlock: binary.LittleEndian.Uint64(buf[nextBlockOff : nextBlockOff+8]),
		Offset:    off,
	}
	// empty slots carry no name, but may still carry the block's next link
	if kind == KindEmpty {
		return r, nil
	}

	name, err := c.decodeName(buf[nameOff : nameOff+NameSize])
	if err != nil {
		return Record{}, &RecordError{Offset: off, Err: err}
	}
	r.Name = name
	return r, nil
}

func (c *Codec) decodeName(field []byte) (string, error) {
	raw, _, _ := bytes.Cut(field, []byte{0})
	if c.Encoding == nil {
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("name %q: %w", raw, ErrInvalidEncoding)
		}
		return string(raw), nil
	}

	decoded, err := c.Encoding.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("name %q: %v: %w", raw, err, ErrInvalidEncoding)
	}
	// decoders substitute U+FFFD for bytes they can't map
	if bytes.ContainsRune(decoded, utf8.RuneError) || !utf8.Valid(decoded) {
		return "", fmt.Errorf("name %q: unmappable bytes: %w", raw, ErrInvalidEncoding)
	}
	return string(decoded), nil
}

func (c *Codec) encodeName(name string) ([]byte, error) {
	if c.Encoding == nil {
		return []byte(name), nil
	}
	b, err := c.Encoding.NewEncoder().Bytes([]byte(name))
	if err != nil {
		return nil, fmt.Errorf("encode name %q: %w", name, err)
	}
	return b, nil
}

// Encode writes r, enciphered, into the first RecordSize bytes of dst.
// Only archive builders in tests need this direction.
func (c *Codec) Encode(r *Record, dst []byte) error {
	if len(dst) < RecordSize {
		return fmt.Errorf("buffer too short for record: %d < %d", len(dst), RecordSize)
	}
	if r.Kind > KindFile {
		return fmt.Errorf("unknown %v", r.Kind)
	}

	var buf [RecordSize]byte
	buf[kindOff] = byte(r.Kind)
	if r.Kind != KindEmpty {
		name, err := c.encodeName(r.Name)
		if err != nil {
			return err
		}
		if len(name) > NameSize {
			return fmt.Errorf("name %q longer than %d bytes", r.Name, NameSize)
		}
		copy(buf[nameOff:nameOff+NameSize], name)
	}
	binary.LittleEndian.PutUint64(buf[createdOff:createdOff+8], uint64(r.Created))
	binary.LittleEndian.PutUint64(buf[accessedOff:accessedOff+8], uint64(r.Accessed))
	binary.LittleEndian.PutUint64(buf[modifiedOff:modifiedOff+8], uint64(r.Modified))
	binary.LittleEndian.PutUint64(buf[positionOff:positionOff+8], r.Position)
	binary.LittleEndian.PutUint32(buf[sizeOff:sizeOff+4], r.Size)
	binary.LittleEndian.PutUint64(buf[nextBlockOff:nextBlockOff+8], r.NextBlock)

	c.block().Encrypt(dst[:RecordSize], buf[:])
	return nil
}
