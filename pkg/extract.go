package prolib

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/vectorio"
)

const (
	extractChunkSize = 64 * 1024
	extractIovecs    = 64 // chunks per writev call, well below IOV_MAX
)

// ExtractOptions controls where and what Extract writes
type ExtractOptions struct {
	Dir      string   // Destination directory, current directory when empty
	Patterns []string // Glob patterns on the slash separated entry name, all entries when empty
}

// ExtractFailure records one entry that could not be extracted
type ExtractFailure struct {
	Name string
	Err  error
}

// ExtractResult summarises an extraction
type ExtractResult struct {
	Extracted []string // Paths written, in library order
	Skipped   int      // Entries not matching any pattern
	Failures  []ExtractFailure
}

// Extract writes every matching entry below opts.Dir, creating parent directories.
// Memory-mapped libraries are refused with ErrNotExtractable before anything is
// written. Existing files are never overwritten: the entry fails and extraction
// carries on with the next one.
func Extract(a Archive, opts ExtractOptions) (*ExtractResult, error) {
	defer VerboseEnter()()

	if !a.SupportsExtraction() {
		return nil, ErrNotExtractable
	}
	if err := ValidatePatterns(opts.Patterns); err != nil {
		return nil, err
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	result := &ExtractResult{}
	for _, entry := range a.Entries() {
		if !MatchPatterns(entry, opts.Patterns) {
			result.Skipped++
			continue
		}

		target, err := extractEntry(a, entry, dir)
		if err != nil {
			VerboseLog(1, "Unable to extract %s: %v", entry.Name, err)
			result.Failures = append(result.Failures, ExtractFailure{Name: entry.Name, Err: err})
			continue
		}
		VerboseLog(2, "Extracted %s", target)
		result.Extracted = append(result.Extracted, target)
	}
	return result, nil
}

// ValidatePatterns rejects malformed glob patterns with path.ErrBadPattern
func ValidatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// MatchPatterns reports whether the entry matches one of the patterns.
// A pattern without a slash is also tried against the base name.
func MatchPatterns(entry Entry, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	name := entry.SlashName()
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, _ := path.Match(pattern, path.Base(name)); ok {
				return true
			}
		}
	}
	return false
}

// extractEntry copies one entry to its path below dir
func extractEntry(a Archive, entry Entry, dir string) (string, error) {
	rel, ok := entry.RelativePath()
	if !ok {
		return "", fmt.Errorf("refusing unsafe entry path %q", entry.Name)
	}
	target := filepath.Join(dir, filepath.FromSlash(rel))

	rc, err := a.Open(entry)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	written, err := writeVectored(file, rc)
	if closeErr := file.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close file: %w", closeErr)
	}
	if err != nil {
		os.Remove(target)
		return "", err
	}

	if written != entry.Size {
		VerboseLog(1, "Entry %s: wrote %d bytes, TOC size is %d", entry.Name, written, entry.Size)
	}
	return target, nil
}

// writeVectored copies r to file, handing batches of chunks to writev
func writeVectored(file *os.File, r io.Reader) (int64, error) {
	var written int64
	chunks := make([][]byte, 0, extractIovecs)

	flush := func() error {
		if len(chunks) == 0 {
			return nil
		}
		iovecs := make([]syscall.Iovec, len(chunks))
		expected := 0
		for i, chunk := range chunks {
			iovecs[i].Base = &chunk[0]
			iovecs[i].SetLen(len(chunk))
			expected += len(chunk)
		}
		nw, err := vectorio.WritevRaw(file.Fd(), iovecs)
		if err != nil {
			return fmt.Errorf("failed to write with vectorio: %w", err)
		}
		if nw != expected {
			return fmt.Errorf("short write: %d of %d bytes", nw, expected)
		}
		written += int64(nw)
		chunks = chunks[:0]
		return nil
	}

	for {
		buf := make([]byte, extractChunkSize)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			chunks = append(chunks, buf[:n])
			if len(chunks) == extractIovecs {
				if err := flush(); err != nil {
					return written, err
				}
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return written, err
		}
	}

	if err := flush(); err != nil {
		return written, err
	}
	return written, nil
}
