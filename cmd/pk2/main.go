// Copyright 2026 The pk2 Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// pk2 - list and extract files from Silkroad Online PK2 archives
//
// Usage:
//
//	pk2 [-v] [-key K] [-check] [-encoding utf8|euckr|cp1252] [-mmap=false] <archive> <command> [args]
//
// Commands:
//
//	info                          header fields and container size
//	ls [-l] [path]                entries of a directory, in archive order
//	stat <path>                   one entry's record
//	cat <path>                    file contents to stdout
//	sum [path]                    sha256 of a file, or of every file below a directory
//	extract [-o dir] [-j n] [-f] [-t] [path]
//
// Exit status is 2 when a path does not exist, 3 when it names the wrong
// kind of entry, 4 when the archive is damaged, 5 on I/O errors, and 1
// otherwise.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"

	"github.com/MahmoudFarouq/pk2"
)

const (
	exitOK = iota
	exitOther
	exitNotFound
	exitWrongKind
	exitCorrupt
	exitIO
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "pk2: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, pk2.ErrPathNotFound):
		return exitNotFound
	case errors.Is(err, pk2.ErrNotADirectory), errors.Is(err, pk2.ErrNotAFile):
		return exitWrongKind
	case errors.Is(err, pk2.ErrBadMagic),
		errors.Is(err, pk2.ErrTruncated),
		errors.Is(err, pk2.ErrMalformedRecord),
		errors.Is(err, pk2.ErrInvalidEncoding),
		errors.Is(err, pk2.ErrOutOfBounds),
		errors.Is(err, pk2.ErrKeyMismatch):
		return exitCorrupt
	case errors.Is(err, pk2.ErrIO),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission):
		return exitIO
	}
	return exitOther
}

var encodings = map[string]encoding.Encoding{
	"utf8":   nil,
	"euckr":  korean.EUCKR,
	"cp949":  korean.EUCKR,
	"cp1252": charmap.Windows1252,
}

func run(args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("pk2", flag.ContinueOnError)
	flags.SetOutput(stderr)
	verbose := flags.Bool("v", false, "log debug events to stderr")
	key := flags.String("key", "", "base key, if not the game's default")
	check := flags.Bool("check", false, "verify the key against the header before reading")
	encName := flags.String("encoding", "utf8", "entry name encoding: utf8, euckr (cp949) or cp1252")
	useMmap := flags.Bool("mmap", true, "memory-map the archive")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() < 2 {
		return fmt.Errorf("usage: pk2 [flags] <archive> <command> [args]")
	}
	archivePath, command, cmdArgs := flags.Arg(0), flags.Arg(1), flags.Args()[2:]

	enc, ok := encodings[strings.ToLower(*encName)]
	if !ok {
		return fmt.Errorf("unknown encoding %q", *encName)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	opts := []pk2.Option{
		pk2.WithLogger(logger),
		pk2.WithNameEncoding(enc),
		pk2.WithDirectoryCache(true),
		pk2.WithKeyCheck(*check),
	}
	if *key != "" {
		opts = append(opts, pk2.WithKey([]byte(*key)))
	}

	open := pk2.Open
	if !*useMmap {
		open = pk2.OpenFile
	}
	a, err := open(archivePath, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	switch command {
	case "info":
		return runInfo(a, stdout)
	case "ls":
		return runLs(a, cmdArgs, stdout, stderr)
	case "stat":
		return runStat(a, cmdArgs, stdout)
	case "cat":
		return runCat(a, cmdArgs, stdout)
	case "sum":
		return runSum(a, cmdArgs, stdout)
	case "extract":
		return runExtract(a, cmdArgs, stdout, stderr)
	default:
		return fmt.Errorf("unknown command: %s (use info, ls, stat, cat, sum or extract)", command)
	}
}

func runInfo(a *pk2.Archive, out io.Writer) error {
	h := a.Header()
	entries, err := a.List("")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Version:   0x%08x\n", h.Version)
	fmt.Fprintf(out, "Encrypted: %t\n", h.Encrypted)
	fmt.Fprintf(out, "Check:     % x\n", h.Check[:3])
	fmt.Fprintf(out, "Size:      %d bytes\n", a.Size())
	fmt.Fprintf(out, "Root:      %d entries\n", len(entries))
	return nil
}

func runLs(a *pk2.Archive, args []string, out, stderr io.Writer) error {
	flags := flag.NewFlagSet("ls", flag.ContinueOnError)
	flags.SetOutput(stderr)
	long := flags.Bool("l", false, "use long listing format")
	if err := flags.Parse(args); err != nil {
		return err
	}

	path := ""
	if flags.NArg() > 0 {
		path = flags.Arg(0)
	}
	entries, err := a.List(path)
	if err != nil {
		return err
	}

	if !*long {
		for _, e := range entries {
			name := e.Name
			if e.IsDir() {
				name += "/"
			}
			fmt.Fprintln(out, name)
		}
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 8, 1, ' ', tabwriter.AlignRight)
	for _, e := range entries {
		kind := "-"
		if e.IsDir() {
			kind = "d"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t %s\t\n", kind, e.Size, formatTime(e.Modified), e.Name)
	}
	return tw.Flush()
}

func formatTime(ft pk2.Filetime) string {
	t := ft.Time()
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.DateTime)
}

func runStat(a *pk2.Archive, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("stat requires a path argument")
	}
	e, err := a.Stat(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Name:      %s\n", e.Name)
	fmt.Fprintf(out, "Kind:      %s\n", e.Kind)
	fmt.Fprintf(out, "Size:      %d\n", e.Size)
	fmt.Fprintf(out, "Position:  %d\n", e.Position)
	fmt.Fprintf(out, "Record:    %d\n", e.Offset)
	fmt.Fprintf(out, "Created:   %s\n", formatTime(e.Created))
	fmt.Fprintf(out, "Accessed:  %s\n", formatTime(e.Accessed))
	fmt.Fprintf(out, "Modified:  %s\n", formatTime(e.Modified))
	return nil
}

func runCat(a *pk2.Archive, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("cat requires a path argument")
	}
	for _, path := range args {
		sr, _, err := a.OpenEntry(path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, sr); err != nil {
			return fmt.Errorf("cat %s: %w", path, err)
		}
	}
	return nil
}

func runSum(a *pk2.Archive, args []string, out io.Writer) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	e, err := a.Stat(path)
	if err != nil {
		return err
	}
	if e.IsFile() {
		d, err := a.Digest(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s  %s\n", d, path)
		return nil
	}
	return a.Walk(path, func(p string, e pk2.Entry) error {
		if !e.IsFile() {
			return nil
		}
		d, err := a.Digest(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s  %s\n", d, p)
		return nil
	})
}

func runExtract(a *pk2.Archive, args []string, out, stderr io.Writer) error {
	flags := flag.NewFlagSet("extract", flag.ContinueOnError)
	flags.SetOutput(stderr)
	dest := flags.String("o", ".", "destination directory")
	workers := flags.Int("j", 4, "files to write at once")
	force := flags.Bool("f", false, "overwrite existing files")
	times := flags.Bool("t", false, "set file times from the archive")
	if err := flags.Parse(args); err != nil {
		return err
	}
	path := ""
	if flags.NArg() > 0 {
		path = flags.Arg(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stats, err := a.ExtractDir(ctx, path, *dest,
		pk2.ExtractWithWorkers(*workers),
		pk2.ExtractWithOverwrite(*force),
		pk2.ExtractWithPreserveTimes(*times),
	)
	fmt.Fprintf(out, "extracted %d files (%d bytes) into %d directories, skipped %d existing\n",
		stats.Files, stats.Bytes, stats.Dirs, stats.Skipped)
	return err
}
