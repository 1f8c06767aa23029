package prolib

import (
	"bytes"
	"errors"
	"io"
)

// memArchive is an in-memory Archive. Entry.offset indexes data so duplicate
// names can carry different bytes.
type memArchive struct {
	path        string
	entries     []Entry
	data        [][]byte
	openErr     map[string]error
	extractable bool
	open        int // streams not yet closed
	opened      int
}

type memMember struct {
	name string
	data []byte
}

func newMemArchive(path string, members ...memMember) *memArchive {
	a := &memArchive{path: path, openErr: make(map[string]error), extractable: true}
	for i, m := range members {
		a.entries = append(a.entries, Entry{Name: m.name, Size: int64(len(m.data)), offset: int64(i)})
		a.data = append(a.data, m.data)
	}
	return a
}

func (a *memArchive) Path() string             { return a.path }
func (a *memArchive) Entries() []Entry         { return append([]Entry(nil), a.entries...) }
func (a *memArchive) SupportsExtraction() bool { return a.extractable }
func (a *memArchive) Close() error             { return nil }

func (a *memArchive) Open(entry Entry) (io.ReadCloser, error) {
	if err := a.openErr[entry.Name]; err != nil {
		return nil, &EntryReadError{Name: entry.Name, Err: err}
	}
	if entry.offset < 0 || int(entry.offset) >= len(a.data) {
		return nil, &EntryReadError{Name: entry.Name, Err: errors.New("unknown entry")}
	}
	a.open++
	a.opened++
	return &memReader{Reader: bytes.NewReader(a.data[entry.offset]), archive: a}, nil
}

type memReader struct {
	*bytes.Reader
	archive *memArchive
	closed  bool
}

func (r *memReader) Close() error {
	if !r.closed {
		r.closed = true
		r.archive.open--
	}
	return nil
}
