// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// gen-testdata writes a sample PK2 archive with a few thousand small text
// files spread over nested directories, for trying out the pk2 command.
package main

import (
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/MahmoudFarouq/pk2/internal/pk2test"
)

const (
	prefix    = "pref_"
	suffixLen = 16
	hmacKey   = "d259c7f656caf7f1"
)

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		var seedBytes [8]byte
		_, _ = crand.Read(seedBytes[:])
		seed = int64(binary.LittleEndian.Uint64(seedBytes[:]))
	}
	return rand.New(rand.NewSource(seed))
}

func main() {
	out := flag.String("o", "testdata/sample.pk2", "output archive")
	nFiles := flag.Int("n", 5000, "number of files")
	nDirs := flag.Int("dirs", 40, "number of leaf directories")
	plain := flag.Bool("plain", false, "write records unciphered")
	seed := flag.Int64("seed", 0, "random seed (0 picks one)")
	flag.Parse()

	if err := generate(*out, *nFiles, *nDirs, *plain, *seed); err != nil {
		fmt.Fprintf(os.Stderr, "gen-testdata: %v\n", err)
		os.Exit(1)
	}
}

func generate(path string, nFiles, nDirs int, plain bool, seed int64) error {
	if nDirs < 1 {
		nDirs = 1
	}
	rng := newRand(seed)
	h := hmac.New(sha256.New, []byte(hmacKey))

	var opts []pk2test.BuilderOption
	if plain {
		opts = append(opts, pk2test.WithPlaintext())
	}
	b := pk2test.NewBuilder(opts...)

	for i := 0; i < nFiles; i++ {
		var buf [suffixLen / 2]byte
		if _, err := rng.Read(buf[:]); err != nil {
			return err
		}
		value := fmt.Sprintf("%s%x", prefix, buf)
		h.Reset()
		h.Write([]byte(value))
		name := hex.EncodeToString(h.Sum(nil))[:32] + ".txt"

		dir := i % nDirs
		filePath := fmt.Sprintf("server_dep/silkroad/textdata_%02d/part_%03d/%s", dir%8, dir, name)
		if err := b.File(filePath, []byte(value+"\n")); err != nil {
			return err
		}
	}
	if err := b.File("readme.txt", []byte("generated by gen-testdata\n")); err != nil {
		return err
	}

	if err := b.WriteFile(path); err != nil {
		return err
	}
	fmt.Printf("wrote %d files to %s\n", nFiles, path)
	return nil
}
