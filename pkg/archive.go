package prolib

import (
	"io"
	"path"
	"slices"
	"strings"
)

// Entry is one member of a library. Entries are ordered and matched by Name only.
type Entry struct {
	Name    string
	Size    int64
	ModTime int64 // seconds since epoch, 0 when unknown
	AddTime int64 // seconds since epoch, 0 when unknown

	offset int64
}

// SlashName returns the entry name with backslashes turned into forward slashes
func (e Entry) SlashName() string {
	return strings.ReplaceAll(e.Name, "\\", "/")
}

// RelativePath returns the cleaned, slash separated path the entry extracts to.
// ok is false when the name is absolute or escapes the destination directory.
func (e Entry) RelativePath() (string, bool) {
	name := e.SlashName()
	if name == "" || strings.HasPrefix(name, "/") || hasDriveLetter(name) {
		return "", false
	}
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}

func hasDriveLetter(name string) bool {
	return len(name) >= 2 && name[1] == ':' &&
		(('a' <= name[0] && name[0] <= 'z') || ('A' <= name[0] && name[0] <= 'Z'))
}

// compareEntries orders entries by name
func compareEntries(a, b Entry) int {
	return strings.Compare(a.Name, b.Name)
}

// SortEntries returns a copy of entries stably sorted by name
func SortEntries(entries []Entry) []Entry {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, compareEntries)
	return sorted
}

// Archive is the read capability the commands need from a library
type Archive interface {
	// Path returns the file the archive was opened from
	Path() string
	// Entries returns the entries in library order
	Entries() []Entry
	// Open streams the bytes of one entry. The caller must close the reader.
	Open(entry Entry) (io.ReadCloser, error)
	// SupportsExtraction is false for memory-mapped libraries
	SupportsExtraction() bool
	Close() error
}

// Opener opens an archive by path
type Opener func(path string) (Archive, error)

// OpenArchive is the default Opener, backed by OpenLibrary
func OpenArchive(path string) (Archive, error) {
	lib, err := OpenLibrary(path)
	if err != nil {
		return nil, err
	}
	return lib, nil
}
