// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package pk2

import (
	"bytes"
	"log/slog"

	"golang.org/x/text/encoding"

	"github.com/MahmoudFarouq/pk2/internal/cipher"
)

// Option configures an Archive.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	key            []byte
	encoding       encoding.Encoding
	cache          bool
	maxChainBlocks int
	keyCheck       bool
}

// WithLogger sets the logger for debug events.  By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// WithKey deciphers records with the key derived from base, in the same
// way the default key is derived from "169841".
func WithKey(base []byte) Option {
	return func(opts *options) {
		opts.key = cipher.DeriveKey(base)
	}
}

// WithRawKey deciphers records with key as is.
func WithRawKey(key []byte) Option {
	return func(opts *options) {
		opts.key = bytes.Clone(key)
	}
}

// WithNameEncoding decodes entry names with enc, e.g. korean.EUCKR for
// archives from the Korean client.  By default names must be UTF-8.
func WithNameEncoding(enc encoding.Encoding) Option {
	return func(opts *options) {
		opts.encoding = enc
	}
}

// WithDirectoryCache keeps every listed directory in memory, indexed by
// name, so repeated lookups need no I/O (default: false).
func WithDirectoryCache(enabled bool) Option {
	return func(opts *options) {
		opts.cache = enabled
	}
}

// WithMaxChainBlocks caps the number of blocks a single directory may
// span before it is reported as a continuation cycle.  By default the cap
// is the number of blocks that fit in the container.
func WithMaxChainBlocks(n int) Option {
	return func(opts *options) {
		if n < 0 {
			n = 0
		}
		opts.maxChainBlocks = n
	}
}

// WithKeyCheck verifies the key against the check bytes in the header when
// opening (default: false).
func WithKeyCheck(enabled bool) Option {
	return func(opts *options) {
		opts.keyCheck = enabled
	}
}
